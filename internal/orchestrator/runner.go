package orchestrator

import (
	"context"
	"io"
	"sync"

	"farmfleet.dev/internal/account"
	"farmfleet.dev/internal/config"
	"farmfleet.dev/internal/journal"
	"farmfleet.dev/internal/rewards"
	"farmfleet.dev/internal/session"
	"farmfleet.dev/internal/workeripc"
)

// Runner is one hosted account, regardless of where it actually runs.
// Done is closed when the runner has stopped for any reason; after that
// Status still answers with the final snapshot.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
	Status() workeripc.Status
}

// Factory builds a fresh runner for an account. Called again on restart;
// runners are single-use.
type Factory func(ac config.Account, sink Sink) Runner

// InprocDeps are the process-wide resources shared by in-process runners.
type InprocDeps struct {
	Fleet   *config.Fleet
	Store   rewards.Store
	Journal *journal.Writer

	// Dial overrides the transport, for tests.
	Dial session.Dialer

	// LogSink overrides where account logs go; nil means stdout.
	LogSink io.Writer
}

// NewInprocFactory hosts accounts as goroutines inside this process.
func NewInprocFactory(deps InprocDeps) Factory {
	return func(ac config.Account, sink Sink) Runner {
		opts := account.FromConfig(deps.Fleet, ac, deps.Store, deps.Journal)
		opts.Dial = deps.Dial
		opts.LogSink = deps.LogSink
		return newInprocRunner(ac.ID, opts, sink)
	}
}

type inprocRunner struct {
	id   string
	acct *account.Runner
	sink Sink

	done     chan struct{}
	doneOnce sync.Once
}

func newInprocRunner(id string, opts account.Options, sink Sink) *inprocRunner {
	r := &inprocRunner{
		id:   id,
		sink: sink,
		done: make(chan struct{}),
	}
	acct := account.New(opts)
	acct.OnEvent(func(ev account.Event) {
		switch ev.Type {
		case account.EventState:
			sink(workeripc.Event{
				Type: workeripc.EvState, Account: id,
				State: ev.State, Reason: ev.Reason,
			})
			if ev.State == "disconnected" || ev.State == "error" {
				r.doneOnce.Do(func() { close(r.done) })
			}
		case account.EventLog:
			sink(workeripc.Event{Type: workeripc.EvLog, Account: id, Message: ev.Message})
		case account.EventStats:
			st := r.Status()
			sink(workeripc.Event{Type: workeripc.EvStatus, Account: id, Status: &st})
		}
	})
	r.acct = acct
	return r
}

func (r *inprocRunner) Start(ctx context.Context) error {
	if err := r.acct.Start(ctx); err != nil {
		r.doneOnce.Do(func() { close(r.done) })
		return err
	}
	r.sink(workeripc.Event{Type: workeripc.EvStarted, Account: r.id})
	return nil
}

func (r *inprocRunner) Stop() {
	r.acct.Stop()
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *inprocRunner) Done() <-chan struct{} { return r.done }

func (r *inprocRunner) Status() workeripc.Status {
	st := r.acct.Status()
	return workeripc.Status{
		Account:    st.Account,
		State:      st.State,
		Reason:     st.Reason,
		GID:        st.User.GID,
		Name:       st.User.Name,
		Level:      st.User.Level,
		Gold:       st.User.Gold,
		Cycles:     st.Stats.Cycles,
		Planted:    st.Stats.Planted,
		Harvested:  st.Stats.Harvested,
		Visited:    st.Stats.Visited,
		Helped:     st.Stats.Helped,
		Stolen:     st.Stats.Stolen,
		GoldEarned: st.Stats.GoldEarned,
		Errors:     st.Stats.Errors,
	}
}
