package social

import (
	"sort"
	"sync"

	"farmfleet.dev/internal/protocol"
)

// statsWindow bounds how many recent outcomes weigh into a peer's success
// rate, so one bad week does not haunt a friend forever.
const statsWindow = 100

// Stats tracks per-peer visit outcomes across rounds. Safe for concurrent
// use.
type Stats struct {
	mu     sync.Mutex
	byPeer map[uint64][]bool
}

func NewStats() *Stats {
	return &Stats{byPeer: make(map[uint64][]bool)}
}

// Record appends one visit outcome for a peer, evicting the oldest beyond
// the window.
func (s *Stats) Record(gid uint64, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := append(s.byPeer[gid], success)
	if len(o) > statsWindow {
		o = o[len(o)-statsWindow:]
	}
	s.byPeer[gid] = o
}

// Snapshot copies the outcome history for persistence.
func (s *Stats) Snapshot() map[uint64][]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64][]bool, len(s.byPeer))
	for gid, o := range s.byPeer {
		cp := make([]bool, len(o))
		copy(cp, o)
		out[gid] = cp
	}
	return out
}

// Restore replaces the outcome history, trimming anything beyond the
// window.
func (s *Stats) Restore(m map[uint64][]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPeer = make(map[uint64][]bool, len(m))
	for gid, o := range m {
		if len(o) > statsWindow {
			o = o[len(o)-statsWindow:]
		}
		cp := make([]bool, len(o))
		copy(cp, o)
		s.byPeer[gid] = cp
	}
}

// SuccessRate returns the fraction of recorded visits that paid off.
// Unvisited peers score 1.0 so new friends get explored first.
func (s *Stats) SuccessRate(gid uint64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.byPeer[gid]
	if len(o) == 0 {
		return 1.0
	}
	hits := 0
	for _, ok := range o {
		if ok {
			hits++
		}
	}
	return float64(hits) / float64(len(o))
}

// Prefilter drops peers whose summary counters promise nothing under the
// enabled features, without spending a single visit request on them. A
// farm that only needs chores is not a candidate when helping is off.
func Prefilter(peers []protocol.PeerSummary, help, steal bool) []protocol.PeerSummary {
	kept := make([]protocol.PeerSummary, 0, len(peers))
	for _, p := range peers {
		if p.Plant == nil {
			continue
		}
		pl := p.Plant
		canSteal := steal && pl.StealNum > 0
		canHelp := help && (pl.DryNum > 0 || pl.WeedNum > 0 || pl.InsectNum > 0)
		if canSteal || canHelp {
			kept = append(kept, p)
		}
	}
	return kept
}

// Priority scores a peer: steals are worth far more than chores, higher
// level farms carry better crops, and a history of empty-handed visits
// discounts the whole farm. Counters behind a disabled feature score
// nothing.
func Priority(p protocol.PeerSummary, successRate float64, help, steal bool) float64 {
	pl := p.Plant
	if pl == nil {
		return 0
	}
	var base float64
	if steal {
		base += float64(pl.StealNum) * 10
	}
	if help {
		base += float64(pl.WeedNum)*3 +
			float64(pl.InsectNum)*3 +
			float64(pl.DryNum)*2
	}
	base += float64(p.Level) * 0.1
	return base * (0.5 + successRate)
}

// SortByPriority orders peers best first. The sort is stable so equal
// scores keep the server's friend-list order.
func SortByPriority(peers []protocol.PeerSummary, stats *Stats, help, steal bool) {
	sort.SliceStable(peers, func(i, j int) bool {
		return Priority(peers[i], stats.SuccessRate(peers[i].GID), help, steal) >
			Priority(peers[j], stats.SuccessRate(peers[j].GID), help, steal)
	})
}
