// Package farm turns raw land state into work: growth-phase resolution,
// maintenance classification and the automation cycle that keeps every
// plot planted.
package farm

import (
	"sort"

	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

// Phase is a growth stage. The wire values are fixed by the server.
type Phase int32

const (
	PhaseUnknown     Phase = 0
	PhaseSeed        Phase = 1
	PhaseGermination Phase = 2
	PhaseSmallLeaves Phase = 3
	PhaseLargeLeaves Phase = 4
	PhaseBlooming    Phase = 5
	PhaseMature      Phase = 6
	PhaseDead        Phase = 7
)

func (p Phase) String() string {
	switch p {
	case PhaseSeed:
		return "seed"
	case PhaseGermination:
		return "germination"
	case PhaseSmallLeaves:
		return "small-leaves"
	case PhaseLargeLeaves:
		return "large-leaves"
	case PhaseBlooming:
		return "blooming"
	case PhaseMature:
		return "mature"
	case PhaseDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CurrentPhase resolves which stage a plant is in right now: the entry with
// the latest begin time at or before now. Before the first stage begins the
// first entry counts, so a freshly planted seed is never "unknown".
func CurrentPhase(p *protocol.Plant, nowSec int64) (Phase, protocol.PlantPhase) {
	if p == nil || len(p.Phases) == 0 {
		return PhaseUnknown, protocol.PlantPhase{}
	}
	best := p.Phases[0]
	bestBegin := int64(-1)
	for _, ph := range p.Phases {
		begin := gameclock.ToSec(ph.BeginTime)
		if begin <= nowSec && begin >= bestBegin {
			best = ph
			bestBegin = begin
		}
	}
	return Phase(best.Phase), best
}

// Needs are the maintenance conditions of one plot. They are orthogonal: a
// plot can need all three at once.
type Needs struct {
	Water  bool
	Weed   bool
	Insect bool
}

// PlantNeeds derives maintenance needs from counters and due-times. The
// counters are authoritative when present; a due-time in the past flags the
// condition even when the counter has not caught up yet.
func PlantNeeds(p *protocol.Plant, cur protocol.PlantPhase, nowSec int64) Needs {
	var n Needs
	if p == nil {
		return n
	}
	n.Water = p.DryNum > 0 || due(cur.DryTime, nowSec)
	n.Weed = len(p.WeedOwners) > 0 || due(cur.WeedsTime, nowSec)
	n.Insect = len(p.InsectOwners) > 0 || due(cur.InsectTime, nowSec)
	return n
}

func due(ts, nowSec int64) bool {
	sec := gameclock.ToSec(ts)
	return sec > 0 && sec <= nowSec
}

// Survey buckets every land on a farm by the action it needs. A land can
// appear in several maintenance buckets, but Harvest/Dead/Empty are
// mutually exclusive with them: mature and dead plants are past tending.
type Survey struct {
	Water   []int64
	Weed    []int64
	Insect  []int64
	Harvest []int64
	Steal   []int64 // mature and flagged stealable; relevant on peer farms
	Dead    []int64
	Empty   []int64
	Growing int

	Unlockable []int64
	Upgradable []int64
}

// Classify walks the land list once and fills the survey buckets.
func Classify(lands []protocol.Land, nowSec int64) Survey {
	var sv Survey
	for _, land := range lands {
		if !land.Unlocked {
			if land.CouldUnlock {
				sv.Unlockable = append(sv.Unlockable, land.ID)
			}
			continue
		}
		if land.CouldUpgrade {
			sv.Upgradable = append(sv.Upgradable, land.ID)
		}
		if land.Plant == nil {
			sv.Empty = append(sv.Empty, land.ID)
			continue
		}
		phase, cur := CurrentPhase(land.Plant, nowSec)
		switch phase {
		case PhaseDead:
			sv.Dead = append(sv.Dead, land.ID)
		case PhaseMature:
			sv.Harvest = append(sv.Harvest, land.ID)
			if land.Plant.Stealable {
				sv.Steal = append(sv.Steal, land.ID)
			}
		default:
			sv.Growing++
			n := PlantNeeds(land.Plant, cur, nowSec)
			if n.Water {
				sv.Water = append(sv.Water, land.ID)
			}
			if n.Weed {
				sv.Weed = append(sv.Weed, land.ID)
			}
			if n.Insect {
				sv.Insect = append(sv.Insect, land.ID)
			}
		}
	}
	return sv
}

// sortIDs orders plots ascending so partial actions hit the lowest ids
// first, which keeps behavior deterministic when funds are short.
func sortIDs(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
