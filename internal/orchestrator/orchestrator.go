// Package orchestrator runs the whole fleet: a registry of account
// runners (in-process or subprocess), a merged event stream, and the
// restart policy for runners that die on their own.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"farmfleet.dev/internal/config"
	"farmfleet.dev/internal/workeripc"
)

type Orchestrator struct {
	cfg     config.Fleet
	factory Factory
	log     *log.Logger

	bcast *Broadcast
	sink  Sink

	mu      sync.Mutex
	running map[string]*entry
	last    map[string]workeripc.Status
	backoff map[string]time.Duration
	closed  bool
}

type entry struct {
	runner   Runner
	userStop bool
}

func New(cfg config.Fleet, factory Factory, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(os.Stdout, "[fleet] ", log.LstdFlags|log.Lmicroseconds)
	}
	o := &Orchestrator{
		cfg:     cfg,
		factory: factory,
		log:     logger,
		bcast:   &Broadcast{},
		running: make(map[string]*entry),
		last:    make(map[string]workeripc.Status),
		backoff: make(map[string]time.Duration),
	}
	// Status and log chatter is coalesced; lifecycle events pass through.
	o.sink = Coalesce(o.bcast.Emit, time.Second)
	return o
}

// AddSink attaches a consumer to the merged event stream.
func (o *Orchestrator) AddSink(s Sink) { o.bcast.Add(s) }

// Subscribe attaches a consumer to one account's events ("all" for every
// account).
func (o *Orchestrator) Subscribe(account string, s Sink) { o.bcast.Subscribe(account, s) }

// Start launches one account, replacing any instance already running
// under the same id. A full fleet rejects the start rather than queue it.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	ac := o.cfg.AccountByID(id)
	if ac == nil {
		return fmt.Errorf("unknown account %q", id)
	}

	// Starting an account that is already running means "restart it".
	if o.StopAccount(id) {
		o.log.Printf("account %s was running, stopped it first", id)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is shut down")
	}
	if len(o.running) >= o.cfg.MaxWorkers {
		o.mu.Unlock()
		return fmt.Errorf("fleet is full (%d workers), %s rejected", o.cfg.MaxWorkers, id)
	}
	runner := o.factory(*ac, o.sink)
	e := &entry{runner: runner}
	o.running[id] = e
	delete(o.backoff, id)
	o.mu.Unlock()

	if err := runner.Start(ctx); err != nil {
		o.mu.Lock()
		if o.running[id] == e {
			delete(o.running, id)
		}
		o.mu.Unlock()
		return err
	}

	go o.watch(ctx, id, e)
	return nil
}

// watch notices a runner dying on its own and applies restart policy.
func (o *Orchestrator) watch(ctx context.Context, id string, e *entry) {
	<-e.runner.Done()
	st := e.runner.Status()

	o.mu.Lock()
	if o.running[id] != e {
		// Already replaced or removed.
		o.mu.Unlock()
		return
	}
	delete(o.running, id)
	o.last[id] = st
	userStop := e.userStop
	o.mu.Unlock()

	if userStop || !o.cfg.Restart.Enabled || ctx.Err() != nil {
		return
	}
	o.scheduleRestart(ctx, id)
}

func (o *Orchestrator) scheduleRestart(ctx context.Context, id string) {
	o.mu.Lock()
	delay := o.backoff[id]
	if delay <= 0 {
		delay = time.Duration(o.cfg.Restart.BackoffSec) * time.Second
	} else {
		delay *= 2
	}
	if max := time.Duration(o.cfg.Restart.MaxBackoffSec) * time.Second; max > 0 && delay > max {
		delay = max
	}
	o.backoff[id] = delay
	o.mu.Unlock()

	o.log.Printf("account %s died, restarting in %s", id, delay)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		o.mu.Lock()
		_, alreadyRunning := o.running[id]
		o.mu.Unlock()
		if alreadyRunning {
			return
		}
		if err := o.startKeepingBackoff(ctx, id); err != nil {
			o.log.Printf("restart %s: %v", id, err)
			o.scheduleRestart(ctx, id)
		}
	}()
}

// startKeepingBackoff is Start without the backoff reset, so repeated
// restart failures keep widening the delay.
func (o *Orchestrator) startKeepingBackoff(ctx context.Context, id string) error {
	o.mu.Lock()
	saved := o.backoff[id]
	o.mu.Unlock()
	err := o.Start(ctx, id)
	o.mu.Lock()
	o.backoff[id] = saved
	o.mu.Unlock()
	return err
}

// StopAccount stops one account. Returns false when it was not running;
// that is not an error, there is just nothing to do.
func (o *Orchestrator) StopAccount(id string) bool {
	o.mu.Lock()
	e, ok := o.running[id]
	if ok {
		e.userStop = true
	}
	o.mu.Unlock()
	if !ok {
		return false
	}
	e.runner.Stop()
	st := e.runner.Status()
	o.mu.Lock()
	if o.running[id] == e {
		delete(o.running, id)
		o.last[id] = st
	}
	o.mu.Unlock()
	return true
}

// StartAll brings up every configured account, staggering the logins. One
// account failing to start never blocks the rest.
func (o *Orchestrator) StartAll(ctx context.Context) {
	stagger := time.Duration(o.cfg.StartStaggerMs) * time.Millisecond
	for i, ac := range o.cfg.Accounts {
		if i > 0 && stagger > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(stagger):
			}
		}
		if err := o.Start(ctx, ac.ID); err != nil {
			o.log.Printf("start %s: %v", ac.ID, err)
		}
	}
}

// StopAll shuts the fleet down and refuses new starts.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	o.closed = true
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.StopAccount(id)
	}
}

// Running reports whether an account currently has a live runner.
func (o *Orchestrator) Running(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

// Statuses snapshots every account that has run, ordered by account id.
// Live runners report their current state; dead or stopped ones the last
// state they were seen in, so an observer can still read why an account
// went away.
func (o *Orchestrator) Statuses() []workeripc.Status {
	o.mu.Lock()
	byID := make(map[string]workeripc.Status, len(o.running)+len(o.last))
	for id, st := range o.last {
		byID[id] = st
	}
	runners := make(map[string]Runner, len(o.running))
	for id, e := range o.running {
		runners[id] = e.runner
	}
	o.mu.Unlock()

	// Live runners win over their own last-known snapshot.
	for id, r := range runners {
		byID[id] = r.Status()
	}
	out := make([]workeripc.Status, 0, len(byID))
	for _, st := range byID {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
