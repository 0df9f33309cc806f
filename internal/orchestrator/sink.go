package orchestrator

import (
	"sync"
	"time"

	"farmfleet.dev/internal/workeripc"
)

// Sink receives the merged event stream of every account runner.
type Sink func(workeripc.Event)

// AllAccounts subscribes a sink to every account's events.
const AllAccounts = "all"

// Broadcast fans events out to every attached sink. Safe for concurrent
// use; sinks must not block.
type Broadcast struct {
	mu    sync.Mutex
	sinks []subscription
}

type subscription struct {
	account string
	sink    Sink
}

// Add attaches a sink to the full stream, same as Subscribe(AllAccounts).
func (b *Broadcast) Add(s Sink) { b.Subscribe(AllAccounts, s) }

// Subscribe attaches a sink to one account's events, or to everything
// under the reserved AllAccounts tag.
func (b *Broadcast) Subscribe(account string, s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, subscription{account: account, sink: s})
	b.mu.Unlock()
}

func (b *Broadcast) Emit(ev workeripc.Event) {
	b.mu.Lock()
	sinks := make([]subscription, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.Unlock()
	for _, sub := range sinks {
		if sub.account == AllAccounts || sub.account == ev.Account {
			sub.sink(ev)
		}
	}
}

// Coalesce batches the chatty event types per account so a fleet of busy
// workers cannot drown the sink: at most one delivery per gap, with
// suppressed statuses collapsed to the newest snapshot and suppressed log
// lines queued until the gap expires. Nothing is dropped. Lifecycle
// events always pass straight through: delaying a state transition would
// lie to the operator.
func Coalesce(out Sink, minGap time.Duration) Sink {
	type bucket struct {
		events    []workeripc.Event
		scheduled bool
	}
	var mu sync.Mutex
	last := make(map[string]time.Time)
	pending := make(map[string]*bucket)

	var flush func(key string)
	flush = func(key string) {
		mu.Lock()
		b := pending[key]
		delete(pending, key)
		var evs []workeripc.Event
		if b != nil {
			evs = b.events
			last[key] = time.Now()
		}
		mu.Unlock()
		for _, ev := range evs {
			out(ev)
		}
	}

	return func(ev workeripc.Event) {
		switch ev.Type {
		case workeripc.EvStatus, workeripc.EvLog:
			key := string(ev.Type) + "/" + ev.Account
			mu.Lock()
			if t, ok := last[key]; ok && time.Since(t) < minGap {
				b := pending[key]
				if b == nil {
					b = &bucket{}
					pending[key] = b
				}
				if ev.Type == workeripc.EvStatus {
					// Only the newest snapshot matters.
					b.events = b.events[:0]
				}
				b.events = append(b.events, ev)
				if !b.scheduled {
					b.scheduled = true
					time.AfterFunc(minGap-time.Since(t), func() { flush(key) })
				}
				mu.Unlock()
				return
			}
			last[key] = time.Now()
			mu.Unlock()
		}
		out(ev)
	}
}
