package farm

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

type Config struct {
	// Interval is the fixed delay between the end of one cycle and the
	// start of the next.
	Interval time.Duration // default 5m

	// PlantGap spaces out the sequential plant requests so a replant burst
	// does not look like a flood.
	PlantGap time.Duration // default 300ms

	Strategy     Strategy
	ShopID       int64 // default 1
	Fertilize    bool
	FertilizerID int64 // default normal container
	AutoUnlock   bool
	AutoUpgrade  bool

	Logger *log.Logger
}

func (c *Config) fill() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.PlantGap <= 0 {
		c.PlantGap = 300 * time.Millisecond
	}
	if c.Strategy == nil {
		c.Strategy = lowestCost{}
	}
	if c.ShopID == 0 {
		c.ShopID = 1
	}
	if c.FertilizerID == 0 {
		c.FertilizerID = protocol.ContainerNormal
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "[farm] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// CycleResult tallies what one pass over the farm actually did.
type CycleResult struct {
	Watered   int
	Weeded    int
	Sprayed   int
	Harvested int
	Removed   int
	Planted   int
	Unlocked  int
	Upgraded  int
	Errors    int
}

// Loop runs the farm automation cycle for one account's own farm.
type Loop struct {
	client *Client
	clock  *gameclock.Clock
	gold   func() int64
	cfg    Config
	log    *log.Logger

	onCycle func(CycleResult)
}

func NewLoop(client *Client, clock *gameclock.Clock, gold func() int64, cfg Config) *Loop {
	cfg.fill()
	return &Loop{
		client: client,
		clock:  clock,
		gold:   gold,
		cfg:    cfg,
		log:    cfg.Logger,
	}
}

// OnCycle registers a callback fired after every completed cycle. Must be
// set before Run.
func (l *Loop) OnCycle(fn func(CycleResult)) { l.onCycle = fn }

// Run cycles until ctx is canceled. A panic in one cycle is logged and the
// loop carries on at the next interval.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.safeCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.Interval):
		}
	}
}

func (l *Loop) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Printf("cycle panic: %v", r)
		}
	}()
	res := l.RunOnce(ctx)
	if l.onCycle != nil {
		l.onCycle(res)
	}
}

// RunOnce performs one full pass: survey, tend, harvest, clear, replant,
// then land development. Step failures are logged and counted; they never
// abort the rest of the pass.
func (l *Loop) RunOnce(ctx context.Context) CycleResult {
	var res CycleResult

	lands, err := l.client.AllLands(ctx)
	if err != nil {
		l.log.Printf("survey: %v", err)
		res.Errors++
		return res
	}
	sv := Classify(lands, l.clock.NowSec())

	// The three tending batches are independent; run them together.
	var mu sync.Mutex
	var wg sync.WaitGroup
	tend := func(name string, ids []int64, do func(context.Context, []int64, uint64) error, count *int) {
		defer wg.Done()
		if len(ids) == 0 {
			return
		}
		if err := do(ctx, ids, 0); err != nil {
			l.log.Printf("%s %d plots: %v", name, len(ids), err)
			mu.Lock()
			res.Errors++
			mu.Unlock()
			return
		}
		mu.Lock()
		*count = len(ids)
		mu.Unlock()
	}
	wg.Add(3)
	go tend("water", sv.Water, l.client.Water, &res.Watered)
	go tend("weed", sv.Weed, l.client.WeedOut, &res.Weeded)
	go tend("spray", sv.Insect, l.client.Insecticide, &res.Sprayed)
	wg.Wait()

	cleared := append([]int64(nil), sv.Dead...)
	if len(sv.Harvest) > 0 {
		if _, err := l.client.Harvest(ctx, sv.Harvest, 0); err != nil {
			l.log.Printf("harvest %d plots: %v", len(sv.Harvest), err)
			res.Errors++
		} else {
			res.Harvested = len(sv.Harvest)
			cleared = append(cleared, sv.Harvest...)
		}
	}

	if len(cleared) > 0 {
		if err := l.client.RemovePlants(ctx, cleared); err != nil {
			l.log.Printf("remove %d plots: %v", len(cleared), err)
			res.Errors++
			cleared = nil
		} else {
			res.Removed = len(cleared)
		}
	}

	targets := sortIDs(append(append([]int64(nil), sv.Empty...), cleared...))
	if len(targets) > 0 {
		l.replant(ctx, targets, &res)
	}

	l.develop(ctx, sv, &res)

	return res
}

// replant buys one seed type for as many empty plots as funds allow and
// plants them lowest id first, one request per plot.
func (l *Loop) replant(ctx context.Context, targets []int64, res *CycleResult) {
	goods, err := l.client.ShopInfo(ctx, l.cfg.ShopID)
	if err != nil {
		l.log.Printf("shop: %v", err)
		res.Errors++
		return
	}
	opt, ok := l.cfg.Strategy.Select(SeedOptions(goods))
	if !ok {
		l.log.Printf("shop has no plantable seed")
		return
	}

	n := int64(len(targets))
	if afford := l.gold() / opt.Price; afford < n {
		n = afford
	}
	if n <= 0 {
		l.log.Printf("cannot afford seed %d at %d gold", opt.SeedID, opt.Price)
		return
	}
	if err := l.client.BuyGoods(ctx, opt.GoodsID, n, opt.Price); err != nil {
		if protocol.IsCode(err, protocol.CodeInsufficientFunds) {
			l.log.Printf("seed purchase declined: out of gold")
		} else {
			l.log.Printf("buy seed %d x%d: %v", opt.SeedID, n, err)
		}
		res.Errors++
		return
	}

	planted := make([]int64, 0, n)
	for i, id := range targets[:n] {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.cfg.PlantGap):
			}
		}
		if err := l.client.PlantSeed(ctx, opt.SeedID, id); err != nil {
			l.log.Printf("plant %d on plot %d: %v", opt.SeedID, id, err)
			res.Errors++
			continue
		}
		planted = append(planted, id)
		res.Planted++
	}

	if l.cfg.Fertilize && len(planted) > 0 {
		if err := l.client.Fertilize(ctx, planted, l.cfg.FertilizerID); err != nil {
			l.log.Printf("fertilize %d plots: %v", len(planted), err)
			res.Errors++
		}
	}
}
