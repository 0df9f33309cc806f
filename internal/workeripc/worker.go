package workeripc

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"farmfleet.dev/internal/account"
	"farmfleet.dev/internal/journal"
	"farmfleet.dev/internal/rewards"
	"farmfleet.dev/internal/session"
)

// Worker hosts one account.Runner behind the pipe protocol. It exits when
// told to stop, when its account dies, or when stdin closes (the
// orchestrator is gone and an orphan must not keep playing).
type Worker struct {
	in  *LineReader
	out *LineWriter
	log *log.Logger

	statusEvery time.Duration

	// dial overrides the transport, for tests.
	dial session.Dialer
}

func NewWorker(in io.Reader, out io.Writer, logger *log.Logger) *Worker {
	return &Worker{
		in:          NewLineReader(in),
		out:         NewLineWriter(out),
		log:         logger,
		statusEvery: 5 * time.Second,
	}
}

func (w *Worker) emit(ev Event) {
	if err := w.out.Write(ev); err != nil {
		w.log.Printf("event pipe: %v", err)
	}
}

// Run processes commands until the account stops. The first command must
// be a start.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cmd Command
	if err := w.in.Next(&cmd); err != nil {
		return fmt.Errorf("reading start command: %w", err)
	}
	if cmd.Type != CmdStart || cmd.Start == nil {
		w.emit(Event{Type: EvError, Message: "first command must be start"})
		return fmt.Errorf("first command was %q", cmd.Type)
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	terminal := make(chan termination, 4)
	runner, err := w.launch(ctx, *cmd.Start, terminal, &closers)
	if err != nil {
		return err
	}
	accountID := cmd.Start.Account.ID

	// Periodic status plus command dispatch until something ends the run.
	cmds := make(chan Command)
	readErr := make(chan error, 1)
	go func() {
		for {
			var c Command
			if err := w.in.Next(&c); err != nil {
				readErr <- err
				return
			}
			select {
			case cmds <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(w.statusEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.emit(Event{Type: EvStatus, Account: accountID, Status: statusOf(runner)})
		case t := <-terminal:
			if t.runner != runner {
				// A runner replaced by a config command died late.
				continue
			}
			runner.Stop()
			w.emit(Event{Type: EvStopped, Account: accountID, Reason: t.reason})
			return nil
		case err := <-readErr:
			// Orchestrator hung up; shut the account down.
			runner.Stop()
			w.emit(Event{Type: EvStopped, Account: accountID, Reason: "orchestrator gone"})
			if err == io.EOF {
				return nil
			}
			return err
		case c := <-cmds:
			switch c.Type {
			case CmdStop:
				runner.Stop()
				w.emit(Event{Type: EvStopped, Account: accountID, Reason: "stopped"})
				return nil
			case CmdConfig:
				if c.Start == nil {
					w.emit(Event{Type: EvError, Account: accountID,
						Message: "config command carries no settings"})
					continue
				}
				runner.Stop()
				next, err := w.launch(ctx, *c.Start, terminal, &closers)
				if err != nil {
					return err
				}
				runner = next
				accountID = c.Start.Account.ID
			case CmdAction:
				w.handleAction(runner, accountID, c.Action)
			default:
				w.emit(Event{Type: EvError, Account: accountID,
					Message: fmt.Sprintf("unexpected command %q", c.Type)})
			}
		case <-ctx.Done():
			runner.Stop()
			w.emit(Event{Type: EvStopped, Account: accountID, Reason: "canceled"})
			return ctx.Err()
		}
	}
}

type termination struct {
	runner *account.Runner
	reason string
}

// launch builds, wires and starts one runner for the given settings.
func (w *Worker) launch(ctx context.Context, start Start, terminal chan termination, closers *[]io.Closer) (*account.Runner, error) {
	runner, cl, err := w.buildRunner(start)
	if err != nil {
		w.emit(Event{Type: EvError, Account: start.Account.ID, Message: err.Error()})
		return nil, err
	}
	*closers = append(*closers, cl...)

	accountID := start.Account.ID
	runner.OnEvent(func(ev account.Event) {
		switch ev.Type {
		case account.EventState:
			w.emit(Event{Type: EvState, Account: accountID, State: ev.State, Reason: ev.Reason})
			if ev.State == "disconnected" || ev.State == "error" {
				select {
				case terminal <- termination{runner: runner, reason: ev.Reason}:
				default:
				}
			}
		case account.EventLog:
			w.emit(Event{Type: EvLog, Account: accountID, Message: ev.Message})
		case account.EventStats:
			w.emit(Event{Type: EvStatus, Account: accountID, Status: statusOf(runner)})
		}
	})

	if err := runner.Start(ctx); err != nil {
		w.emit(Event{Type: EvError, Account: accountID, Message: err.Error()})
		return nil, err
	}
	w.emit(Event{Type: EvStarted, Account: accountID})
	return runner, nil
}

func (w *Worker) handleAction(runner *account.Runner, accountID, action string) {
	switch action {
	case ActionStatus:
		w.emit(Event{Type: EvStatus, Account: accountID, Status: statusOf(runner)})
	case ActionLog:
		w.emit(Event{Type: EvLog, Account: accountID, Lines: runner.LogLines()})
	default:
		w.emit(Event{Type: EvError, Account: accountID,
			Message: fmt.Sprintf("unknown action %q", action)})
	}
}

func (w *Worker) buildRunner(start Start) (*account.Runner, []io.Closer, error) {
	var closers []io.Closer

	var store rewards.Store
	if start.Fleet.StateDir != "" {
		s, err := rewards.OpenSQLite(filepath.Join(start.Fleet.StateDir, "daily.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("reward store: %w", err)
		}
		closers = append(closers, s)
		store = s
	}

	var jw *journal.Writer
	if start.Fleet.JournalDir != "" {
		jw = journal.New(start.Fleet.JournalDir)
		closers = append(closers, jw)
	}

	opts := account.FromConfig(&start.Fleet, start.Account, store, jw)
	opts.Dial = w.dial
	// Stdout belongs to the event pipe; the account's log goes to stderr.
	opts.LogSink = os.Stderr
	return account.New(opts), closers, nil
}

func statusOf(r *account.Runner) *Status {
	st := r.Status()
	return &Status{
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
