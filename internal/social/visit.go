package social

import (
	"context"
	"log"
	"os"
	"time"

	"farmfleet.dev/internal/farm"
	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

type Config struct {
	// Interval is the fixed delay between visit rounds.
	Interval time.Duration // default 10m

	// MaxVisits caps how many farms one round enters.
	MaxVisits int // default 5

	Help  bool
	Steal bool
	Quiet Window

	// IgnoreCrops lists plant ids never worth stealing (cheap filler
	// crops), even when the server marks them stealable.
	IgnoreCrops []int64

	// Account and Store persist visit stats across restarts; Store nil
	// keeps them in memory only.
	Account string
	Store   StatsStore

	Logger *log.Logger
}

// StatsStore persists per-peer visit outcomes. *rewards.SQLiteStore
// implements it.
type StatsStore interface {
	LoadVisitStats(account string) (map[uint64][]bool, error)
	SaveVisitStats(account string, stats map[uint64][]bool) error
}

func (c *Config) fill() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.MaxVisits <= 0 {
		c.MaxVisits = 5
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "[visit] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// RoundResult tallies one pass over the friend list.
type RoundResult struct {
	Candidates int
	Visited    int
	Helped     int
	Stolen     int
	Errors     int
}

// visitReason is what the server is told when entering a peer farm.
const visitReason int32 = 1

// Visitor runs the peer-visit loop for one account.
type Visitor struct {
	call   farm.Caller
	client *farm.Client
	clock  *gameclock.Clock
	stats  *Stats
	cfg    Config
	log    *log.Logger

	onRound func(RoundResult)
}

func NewVisitor(call farm.Caller, clock *gameclock.Clock, cfg Config) *Visitor {
	cfg.fill()
	v := &Visitor{
		call:   call,
		client: farm.NewClient(call),
		clock:  clock,
		stats:  NewStats(),
		cfg:    cfg,
		log:    cfg.Logger,
	}
	if cfg.Store != nil {
		if m, err := cfg.Store.LoadVisitStats(cfg.Account); err != nil {
			v.log.Printf("load visit stats: %v", err)
		} else {
			v.stats.Restore(m)
		}
	}
	return v
}

// OnRound registers a callback fired after every completed round. Must be
// set before Run.
func (v *Visitor) OnRound(fn func(RoundResult)) { v.onRound = fn }

// Run visits until ctx is canceled, sitting out rounds that fall inside
// the quiet window.
func (v *Visitor) Run(ctx context.Context) {
	for {
		now := time.Unix(v.clock.NowSec(), 0)
		if v.cfg.Quiet.Contains(now) {
			v.log.Printf("quiet hours, staying home")
		} else {
			v.safeRound(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(v.cfg.Interval):
		}
	}
}

func (v *Visitor) safeRound(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Printf("round panic: %v", r)
		}
	}()
	res, err := v.RunOnce(ctx)
	if err != nil {
		v.log.Printf("round: %v", err)
	}
	if v.onRound != nil {
		v.onRound(res)
	}
}

// RunOnce fetches the friend list, prefilters it on the summary counters,
// and visits the best candidates.
func (v *Visitor) RunOnce(ctx context.Context) (RoundResult, error) {
	var res RoundResult

	var reply protocol.PeersReply
	if err := v.call.Call(ctx, protocol.SvcFriend, protocol.MethodFriendsAll,
		protocol.PeersRequest{}, &reply); err != nil {
		res.Errors++
		return res, err
	}

	candidates := Prefilter(reply.Peers, v.cfg.Help, v.cfg.Steal)
	SortByPriority(candidates, v.stats, v.cfg.Help, v.cfg.Steal)
	res.Candidates = len(candidates)

	for _, peer := range candidates {
		if res.Visited >= v.cfg.MaxVisits {
			break
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		helped, stolen, err := v.visit(ctx, peer)
		if err != nil {
			v.log.Printf("visit %q gid=%d: %v", peer.Name, peer.GID, err)
			res.Errors++
			v.stats.Record(peer.GID, false)
			continue
		}
		res.Visited++
		res.Helped += helped
		res.Stolen += stolen
		v.stats.Record(peer.GID, helped+stolen > 0)
	}

	if v.cfg.Store != nil {
		if err := v.cfg.Store.SaveVisitStats(v.cfg.Account, v.stats.Snapshot()); err != nil {
			v.log.Printf("save visit stats: %v", err)
		}
	}
	return res, nil
}

// visit enters one farm, does what the config allows, and always tries to
// leave. Leaving is courtesy only; a failed leave never fails the visit.
func (v *Visitor) visit(ctx context.Context, peer protocol.PeerSummary) (helped, stolen int, err error) {
	var enter protocol.VisitEnterReply
	if err := v.call.Call(ctx, protocol.SvcVisit, protocol.MethodVisitEnter,
		protocol.VisitEnterRequest{HostGID: peer.GID, Reason: visitReason}, &enter); err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := v.call.Call(ctx, protocol.SvcVisit, protocol.MethodVisitLeave,
			protocol.VisitLeaveRequest{HostGID: peer.GID}, nil); err != nil {
			v.log.Printf("leave gid=%d: %v", peer.GID, err)
		}
	}()

	sv := farm.Classify(enter.Lands, v.clock.NowSec())

	if v.cfg.Help {
		for _, chore := range []struct {
			name string
			ids  []int64
			do   func(context.Context, []int64, uint64) error
		}{
			{"water", sv.Water, v.client.Water},
			{"weed", sv.Weed, v.client.WeedOut},
			{"spray", sv.Insect, v.client.Insecticide},
		} {
			if len(chore.ids) == 0 {
				continue
			}
			if err := chore.do(ctx, chore.ids, peer.GID); err != nil {
				v.log.Printf("%s on gid=%d: %v", chore.name, peer.GID, err)
				continue
			}
			helped += len(chore.ids)
		}
	}

	steal := v.worthStealing(enter.Lands, sv.Steal)
	if v.cfg.Steal && len(steal) > 0 {
		items, err := v.client.Harvest(ctx, steal, peer.GID)
		if err != nil {
			// Someone beat us to it or the server said no; the visit
			// itself still counts.
			v.log.Printf("steal on gid=%d: %v", peer.GID, err)
		} else {
			for _, it := range items {
				stolen += int(it.Count)
			}
		}
	}

	return helped, stolen, nil
}

// worthStealing drops plots growing crops from the ignore list.
func (v *Visitor) worthStealing(lands []protocol.Land, ids []int64) []int64 {
	if len(v.cfg.IgnoreCrops) == 0 {
		return ids
	}
	ignored := make(map[int64]bool, len(v.cfg.IgnoreCrops))
	for _, id := range v.cfg.IgnoreCrops {
		ignored[id] = true
	}
	crops := make(map[int64]int64, len(lands))
	for _, l := range lands {
		if l.Plant != nil {
			crops[l.ID] = l.Plant.ID
		}
	}
	kept := ids[:0]
	for _, id := range ids {
		if !ignored[crops[id]] {
			kept = append(kept, id)
		}
	}
	return kept
}
