package farm

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

func TestCurrentPhaseLatestBegun(t *testing.T) {
	plant := &protocol.Plant{
		ID: 1,
		Phases: []protocol.PlantPhase{
			{Phase: int32(PhaseSeed), BeginTime: 100},
			{Phase: int32(PhaseMature), BeginTime: 200},
			{Phase: int32(PhaseDead), BeginTime: 300},
		},
	}
	cases := []struct {
		now  int64
		want Phase
	}{
		{50, PhaseSeed}, // nothing begun yet: first entry counts
		{100, PhaseSeed},
		{250, PhaseMature},
		{400, PhaseDead},
	}
	for _, tc := range cases {
		if got, _ := CurrentPhase(plant, tc.now); got != tc.want {
			t.Fatalf("now=%d: phase=%v want %v", tc.now, got, tc.want)
		}
	}
	if got, _ := CurrentPhase(nil, 100); got != PhaseUnknown {
		t.Fatalf("nil plant: phase=%v want unknown", got)
	}
}

func TestCurrentPhaseMillisecondTimestamps(t *testing.T) {
	plant := &protocol.Plant{
		Phases: []protocol.PlantPhase{
			{Phase: int32(PhaseSeed), BeginTime: 100_000},
			{Phase: int32(PhaseBlooming), BeginTime: 200_000_000_000_000}, // ms
		},
	}
	if got, _ := CurrentPhase(plant, 300_000_000_000); got != PhaseBlooming {
		t.Fatalf("phase=%v want blooming", got)
	}
}

func TestPlantNeedsCountersAndDueTimes(t *testing.T) {
	now := int64(1000)
	p := &protocol.Plant{DryNum: 1}
	n := PlantNeeds(p, protocol.PlantPhase{}, now)
	if !n.Water || n.Weed || n.Insect {
		t.Fatalf("counter-only needs wrong: %+v", n)
	}

	p = &protocol.Plant{WeedOwners: []uint64{5}, InsectOwners: []uint64{6}}
	n = PlantNeeds(p, protocol.PlantPhase{DryTime: 900}, now)
	if !n.Water || !n.Weed || !n.Insect {
		t.Fatalf("needs are orthogonal, got %+v", n)
	}

	// A due time in the future flags nothing.
	n = PlantNeeds(&protocol.Plant{}, protocol.PlantPhase{DryTime: 2000, WeedsTime: 2000, InsectTime: 2000}, now)
	if n.Water || n.Weed || n.Insect {
		t.Fatalf("future due times flagged: %+v", n)
	}
}

func plantAt(phase Phase, begin int64) *protocol.Plant {
	return &protocol.Plant{ID: 1, Phases: []protocol.PlantPhase{{Phase: int32(phase), BeginTime: begin}}}
}

func TestClassifyBuckets(t *testing.T) {
	now := int64(1000)
	mature := plantAt(PhaseMature, 500)
	mature.DryNum = 2 // mature plots are past tending
	mature.Stealable = true
	growing := plantAt(PhaseSmallLeaves, 500)
	growing.WeedOwners = []uint64{9}
	growing.DryNum = 1

	lands := []protocol.Land{
		{ID: 1, Unlocked: true, Plant: mature},
		{ID: 2, Unlocked: true, Plant: growing},
		{ID: 3, Unlocked: true, Plant: plantAt(PhaseDead, 500)},
		{ID: 4, Unlocked: true},
		{ID: 5, CouldUnlock: true},
		{ID: 6, Unlocked: true, CouldUpgrade: true},
	}
	sv := Classify(lands, now)

	if len(sv.Harvest) != 1 || sv.Harvest[0] != 1 {
		t.Fatalf("harvest bucket: %v", sv.Harvest)
	}
	if len(sv.Steal) != 1 || sv.Steal[0] != 1 {
		t.Fatalf("steal bucket: %v", sv.Steal)
	}
	if len(sv.Water) != 1 || sv.Water[0] != 2 {
		t.Fatalf("mature dry plot must not be watered: %v", sv.Water)
	}
	if len(sv.Weed) != 1 || sv.Weed[0] != 2 {
		t.Fatalf("weed bucket: %v", sv.Weed)
	}
	if len(sv.Dead) != 1 || sv.Dead[0] != 3 {
		t.Fatalf("dead bucket: %v", sv.Dead)
	}
	if len(sv.Empty) != 2 || sv.Empty[0] != 4 || sv.Empty[1] != 6 {
		t.Fatalf("empty bucket: %v", sv.Empty)
	}
	if len(sv.Unlockable) != 1 || sv.Unlockable[0] != 5 {
		t.Fatalf("unlockable bucket: %v", sv.Unlockable)
	}
	if len(sv.Upgradable) != 1 || sv.Upgradable[0] != 6 {
		t.Fatalf("upgradable bucket: %v", sv.Upgradable)
	}
	if sv.Growing != 1 {
		t.Fatalf("growing count: %d", sv.Growing)
	}
}

func TestStrategies(t *testing.T) {
	opts := []SeedOption{
		{GoodsID: 10, SeedID: 100, Price: 30, MinLevel: 5},
		{GoodsID: 11, SeedID: 101, Price: 10, MinLevel: 1},
		{GoodsID: 12, SeedID: 102, Price: 50, MinLevel: 9},
	}
	if o, ok := StrategyByName("lowest-cost", 0).Select(opts); !ok || o.SeedID != 101 {
		t.Fatalf("lowest-cost picked %+v", o)
	}
	if o, ok := StrategyByName("highest-level", 0).Select(opts); !ok || o.SeedID != 102 {
		t.Fatalf("highest-level picked %+v", o)
	}
	if o, ok := StrategyByName("lowest-level", 0).Select(opts); !ok || o.SeedID != 101 {
		t.Fatalf("lowest-level picked %+v", o)
	}
	if o, ok := StrategyByName("preferred", 100).Select(opts); !ok || o.SeedID != 100 {
		t.Fatalf("preferred picked %+v", o)
	}
	// Preferred seed gone from the shop: cheapest wins.
	if o, ok := StrategyByName("preferred", 999).Select(opts); !ok || o.SeedID != 101 {
		t.Fatalf("preferred fallback picked %+v", o)
	}
	if _, ok := StrategyByName("lowest-cost", 0).Select(nil); ok {
		t.Fatalf("empty shop produced a choice")
	}
}

func TestSeedOptionsFiltering(t *testing.T) {
	goods := []protocol.Goods{
		{ID: 1, ItemID: 100, Price: 10, Unlocked: true,
			Conds: []protocol.GoodsCond{{Type: protocol.CondLevel, Param: 3}}},
		{ID: 2, ItemID: 101, Price: 20, Unlocked: false},
		{ID: 3, ItemID: 102, Price: 0, Unlocked: true},
		{ID: 4, ItemID: 103, Price: 5, Unlocked: true, LimitCount: 2, BoughtNum: 2},
	}
	opts := SeedOptions(goods)
	if len(opts) != 1 || opts[0].SeedID != 100 || opts[0].MinLevel != 3 {
		t.Fatalf("options: %+v", opts)
	}
}

type fakeCaller struct {
	mu    sync.Mutex
	lands []protocol.Land
	goods []protocol.Goods
	gold  int64

	watered    []int64
	weeded     []int64
	sprayed    []int64
	harvested  []int64
	removed    []int64
	bought     []protocol.BuyGoodsRequest
	planted    []protocol.PlantRequest
	fertilized [][]int64
	unlocked   []int64
	upgraded   []int64
}

func (f *fakeCaller) Call(ctx context.Context, service, method string, req, reply any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch method {
	case protocol.MethodAllLands:
		*reply.(*protocol.AllLandsReply) = protocol.AllLandsReply{Lands: f.lands}
	case protocol.MethodWaterLand:
		f.watered = append(f.watered, req.(protocol.TendRequest).LandIDs...)
	case protocol.MethodWeedOut:
		f.weeded = append(f.weeded, req.(protocol.TendRequest).LandIDs...)
	case protocol.MethodInsecticide:
		f.sprayed = append(f.sprayed, req.(protocol.TendRequest).LandIDs...)
	case protocol.MethodHarvest:
		f.harvested = append(f.harvested, req.(protocol.HarvestRequest).LandIDs...)
		*reply.(*protocol.HarvestReply) = protocol.HarvestReply{
			Items: []protocol.Item{{ID: 1030001, Count: int64(len(f.harvested))}},
		}
	case protocol.MethodRemovePlant:
		f.removed = append(f.removed, req.(protocol.RemovePlantRequest).LandIDs...)
	case protocol.MethodShopInfo:
		*reply.(*protocol.ShopInfoReply) = protocol.ShopInfoReply{Goods: f.goods}
	case protocol.MethodBuyGoods:
		r := req.(protocol.BuyGoodsRequest)
		cost := r.Num * r.Price
		if cost > f.gold {
			return &protocol.CallError{Service: service, Method: method, Code: protocol.CodeInsufficientFunds}
		}
		f.gold -= cost
		f.bought = append(f.bought, r)
	case protocol.MethodPlant:
		f.planted = append(f.planted, req.(protocol.PlantRequest))
	case protocol.MethodFertilize:
		f.fertilized = append(f.fertilized, req.(protocol.FertilizeRequest).LandIDs)
	case protocol.MethodUnlockLand:
		f.unlocked = append(f.unlocked, req.(protocol.UnlockLandRequest).LandID)
	case protocol.MethodUpgradeLand:
		f.upgraded = append(f.upgraded, req.(protocol.UpgradeLandRequest).LandID)
	}
	return nil
}

func (f *fakeCaller) goldLeft() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gold
}

func newTestLoop(f *fakeCaller, mod func(*Config)) *Loop {
	cfg := Config{
		PlantGap: time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	}
	if mod != nil {
		mod(&cfg)
	}
	return NewLoop(NewClient(f), gameclock.New(), f.goldLeft, cfg)
}

func TestRunOnceFullCycle(t *testing.T) {
	past := time.Now().Unix() - 600
	weedy := plantAt(PhaseLargeLeaves, past)
	weedy.WeedOwners = []uint64{4}
	weedy.DryNum = 1
	f := &fakeCaller{
		gold: 1000,
		lands: []protocol.Land{
			{ID: 1, Unlocked: true, Plant: weedy},
			{ID: 2, Unlocked: true, Plant: plantAt(PhaseMature, past)},
			{ID: 3, Unlocked: true, Plant: plantAt(PhaseDead, past)},
			{ID: 4, Unlocked: true},
		},
		goods: []protocol.Goods{{ID: 7, ItemID: 700, Price: 10, Unlocked: true}},
	}
	l := newTestLoop(f, func(c *Config) { c.Fertilize = true })

	res := l.RunOnce(context.Background())
	if res.Errors != 0 {
		t.Fatalf("cycle errors: %d", res.Errors)
	}
	if res.Watered != 1 || res.Weeded != 1 || res.Sprayed != 0 {
		t.Fatalf("tend counts: %+v", res)
	}
	if res.Harvested != 1 || len(f.harvested) != 1 || f.harvested[0] != 2 {
		t.Fatalf("harvest: %+v / %v", res, f.harvested)
	}
	// Dead and harvested plots are cleared together.
	if res.Removed != 2 || len(f.removed) != 2 {
		t.Fatalf("removed: %+v / %v", res, f.removed)
	}
	// Cleared plots plus the already-empty one get replanted, lowest first.
	if res.Planted != 3 || len(f.planted) != 3 {
		t.Fatalf("planted: %+v / %v", res, f.planted)
	}
	wantOrder := []int64{2, 3, 4}
	for i, p := range f.planted {
		if p.SeedID != 700 || len(p.LandIDs) != 1 || p.LandIDs[0] != wantOrder[i] {
			t.Fatalf("plant %d: %+v", i, p)
		}
	}
	if len(f.bought) != 1 || f.bought[0].Num != 3 || f.bought[0].GoodsID != 7 {
		t.Fatalf("purchase: %+v", f.bought)
	}
	if len(f.fertilized) != 1 || len(f.fertilized[0]) != 3 {
		t.Fatalf("fertilize: %v", f.fertilized)
	}
}

func TestRunOnceReplantsOnlyWhatGoldAllows(t *testing.T) {
	f := &fakeCaller{
		gold: 25,
		lands: []protocol.Land{
			{ID: 3, Unlocked: true},
			{ID: 1, Unlocked: true},
			{ID: 2, Unlocked: true},
		},
		goods: []protocol.Goods{{ID: 7, ItemID: 700, Price: 10, Unlocked: true}},
	}
	l := newTestLoop(f, nil)

	res := l.RunOnce(context.Background())
	if res.Planted != 2 {
		t.Fatalf("planted %d plots, want 2", res.Planted)
	}
	if len(f.bought) != 1 || f.bought[0].Num != 2 {
		t.Fatalf("purchase: %+v", f.bought)
	}
	// The two lowest plot ids win.
	if f.planted[0].LandIDs[0] != 1 || f.planted[1].LandIDs[0] != 2 {
		t.Fatalf("plant order: %+v", f.planted)
	}
	if f.goldLeft() != 5 {
		t.Fatalf("gold after purchase: %d", f.goldLeft())
	}
}

func TestRunOnceBrokeAccountSkipsReplant(t *testing.T) {
	f := &fakeCaller{
		gold:  5,
		lands: []protocol.Land{{ID: 1, Unlocked: true}},
		goods: []protocol.Goods{{ID: 7, ItemID: 700, Price: 10, Unlocked: true}},
	}
	l := newTestLoop(f, nil)
	res := l.RunOnce(context.Background())
	if res.Planted != 0 || len(f.bought) != 0 {
		t.Fatalf("broke account still planted: %+v / %+v", res, f.bought)
	}
	if res.Errors != 0 {
		t.Fatalf("being broke is not an error: %+v", res)
	}
}

func TestRunOnceLandDevelopment(t *testing.T) {
	f := &fakeCaller{
		gold: 100,
		lands: []protocol.Land{
			{ID: 1, CouldUnlock: true},
			{ID: 2, Unlocked: true, CouldUpgrade: true, Plant: plantAt(PhaseSeed, time.Now().Unix()-10)},
		},
		goods: []protocol.Goods{{ID: 7, ItemID: 700, Price: 10, Unlocked: true}},
	}
	l := newTestLoop(f, func(c *Config) {
		c.AutoUnlock = true
		c.AutoUpgrade = true
	})
	res := l.RunOnce(context.Background())
	if res.Unlocked != 1 || len(f.unlocked) != 1 || f.unlocked[0] != 1 {
		t.Fatalf("unlock: %+v / %v", res, f.unlocked)
	}
	if res.Upgraded != 1 || len(f.upgraded) != 1 || f.upgraded[0] != 2 {
		t.Fatalf("upgrade: %+v / %v", res, f.upgraded)
	}
}
