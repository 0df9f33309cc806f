// Package account assembles one autonomous player: a session plus the
// farm, visit, sell, task and daily-reward loops, with aggregated stats
// and a bounded log history.
package account

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"farmfleet.dev/internal/farm"
	"farmfleet.dev/internal/inventory"
	"farmfleet.dev/internal/journal"
	"farmfleet.dev/internal/protocol"
	"farmfleet.dev/internal/rewards"
	"farmfleet.dev/internal/session"
	"farmfleet.dev/internal/social"
)

type Options struct {
	ID        string
	ServerURL string
	Code      string
	Platform  string
	OS        string
	Device    protocol.DeviceInfo

	Heartbeat      time.Duration
	HealthMultiple int
	CallTimeout    time.Duration

	FarmEnabled bool
	Farm        farm.Config

	VisitEnabled bool
	Visit        social.Config

	SellEnabled  bool
	SellInterval time.Duration

	TasksEnabled bool
	TaskInterval time.Duration

	DailyEnabled  bool
	DailyInterval time.Duration

	// RewardStore persists daily markers; nil keeps them in memory.
	RewardStore rewards.Store

	Journal *journal.Writer

	// Dial overrides the websocket dialer, for tests.
	Dial session.Dialer

	// LogSink receives the account's log output in addition to the ring.
	// Defaults to stdout.
	LogSink io.Writer
}

// Stats aggregates what the account's loops have accomplished since start.
type Stats struct {
	Cycles     int
	Planted    int
	Harvested  int
	VisitRuns  int
	Visited    int
	Helped     int
	Stolen     int
	GoldEarned int64
	TasksDone  int
	Errors     int
}

// Event types pushed to the orchestrator.
const (
	EventState = "state"
	EventStats = "stats"
	EventLog   = "log"
)

type Event struct {
	Account string
	Type    string
	State   string
	Reason  string
	Stats   *Stats
	Message string
}

// Status is a point-in-time snapshot for monitoring surfaces.
type Status struct {
	Account   string
	State     string
	Reason    string
	User      session.UserState
	Stats     Stats
	StartedAt time.Time
}

// Runner owns one account's lifetime from login to shutdown. It does not
// reconnect; when the session dies the runner stops and reports why, and
// restart policy lives with whoever started it.
type Runner struct {
	opts Options
	log  *log.Logger
	ring *logRing

	mu        sync.Mutex
	sess      *session.Session
	stats     Stats
	state     string
	reason    string
	startedAt time.Time
	onEvent   func(Event)
	cancel    context.CancelFunc

	wg sync.WaitGroup
}

func New(opts Options) *Runner {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	if opts.SellInterval <= 0 {
		opts.SellInterval = time.Hour
	}
	if opts.TaskInterval <= 0 {
		opts.TaskInterval = 30 * time.Minute
	}
	if opts.DailyInterval <= 0 {
		opts.DailyInterval = time.Hour
	}
	if opts.RewardStore == nil {
		opts.RewardStore = rewards.NewMemoryStore()
	}
	if opts.LogSink == nil {
		opts.LogSink = os.Stdout
	}
	ring := newLogRing(500)
	r := &Runner{
		opts:  opts,
		ring:  ring,
		state: "idle",
	}
	r.log = log.New(io.MultiWriter(opts.LogSink, ring), "["+opts.ID+"] ", log.LstdFlags|log.Lmicroseconds)
	ring.onLine = func(line string) {
		r.emit(Event{Account: opts.ID, Type: EventLog, Message: line})
	}
	return r
}

// OnEvent registers the event sink. Must be set before Start.
func (r *Runner) OnEvent(fn func(Event)) { r.onEvent = fn }

func (r *Runner) emit(ev Event) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

func (r *Runner) setState(state, reason string) {
	r.mu.Lock()
	r.state = state
	r.reason = reason
	r.mu.Unlock()
	r.emit(Event{Account: r.opts.ID, Type: EventState, State: state, Reason: reason})
	r.opts.Journal.Record(r.opts.ID, journal.KindSession, map[string]string{
		"state": state, "reason": reason,
	})
}

// Start connects and launches the enabled loops. It returns once login has
// succeeded or definitively failed; the loops then run until Stop or until
// the session dies.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("account %s already started", r.opts.ID)
	}
	r.cancel = cancel
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.setState("connecting", "")

	sess := session.New(session.Config{
		URL:               r.opts.ServerURL,
		AccountID:         r.opts.ID,
		Code:              r.opts.Code,
		Platform:          r.opts.Platform,
		OS:                r.opts.OS,
		Device:            r.opts.Device,
		HeartbeatInterval: r.opts.Heartbeat,
		HealthMultiple:    r.opts.HealthMultiple,
		CallTimeout:       r.opts.CallTimeout,
		Dial:              r.opts.Dial,
		Logger:            r.log,
	})
	sess.OnClosed(func(reason string, err error) {
		if err != nil {
			r.setState("disconnected", fmt.Sprintf("%s: %v", reason, err))
		} else {
			r.setState("disconnected", reason)
		}
		cancel()
	})
	var levelMu sync.Mutex
	var lastLevel int32
	sess.OnUserChanged(func(u session.UserState) {
		levelMu.Lock()
		up := lastLevel != 0 && u.Level > lastLevel
		lastLevel = u.Level
		levelMu.Unlock()
		if up {
			r.log.Printf("reached level %d", u.Level)
		}
	})
	sess.Handle(protocol.EventKickout, func(body []byte) {
		var n protocol.KickoutNotify
		_ = protocol.UnmarshalBody(body, &n)
		r.log.Printf("kicked out by server: %s", n.Reason)
		go sess.Close()
	})

	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()

	if _, err := sess.Connect(ctx); err != nil {
		r.setState("error", err.Error())
		cancel()
		return err
	}
	r.setState("connected", "")

	r.startLoops(ctx, sess)
	return nil
}

func (r *Runner) startLoops(ctx context.Context, sess *session.Session) {
	clock := sess.Clock()

	if r.opts.FarmEnabled {
		cfg := r.opts.Farm
		cfg.Logger = r.log
		loop := farm.NewLoop(farm.NewClient(sess), clock, func() int64 { return sess.User().Gold }, cfg)
		loop.OnCycle(func(res farm.CycleResult) {
			r.mu.Lock()
			r.stats.Cycles++
			r.stats.Planted += res.Planted
			r.stats.Harvested += res.Harvested
			r.stats.Errors += res.Errors
			stats := r.stats
			r.mu.Unlock()
			r.opts.Journal.Record(r.opts.ID, journal.KindCycle, res)
			r.emit(Event{Account: r.opts.ID, Type: EventStats, Stats: &stats})
		})
		r.goRun(func() { loop.Run(ctx) })
	}

	if r.opts.VisitEnabled {
		cfg := r.opts.Visit
		cfg.Logger = r.log
		if ss, ok := r.opts.RewardStore.(social.StatsStore); ok {
			cfg.Account = r.opts.ID
			cfg.Store = ss
		}
		visitor := social.NewVisitor(sess, clock, cfg)
		visitor.OnRound(func(res social.RoundResult) {
			r.mu.Lock()
			r.stats.VisitRuns++
			r.stats.Visited += res.Visited
			r.stats.Helped += res.Helped
			r.stats.Stolen += res.Stolen
			r.stats.Errors += res.Errors
			stats := r.stats
			r.mu.Unlock()
			r.opts.Journal.Record(r.opts.ID, journal.KindVisit, res)
			r.emit(Event{Account: r.opts.ID, Type: EventStats, Stats: &stats})
		})
		r.goRun(func() { visitor.Run(ctx) })
	}

	if r.opts.SellEnabled {
		seller := inventory.NewSeller(sess, inventory.Config{
			Interval: r.opts.SellInterval,
			Logger:   r.log,
		})
		seller.OnSold(func(gold int64) {
			r.mu.Lock()
			r.stats.GoldEarned += gold
			stats := r.stats
			r.mu.Unlock()
			r.opts.Journal.Record(r.opts.ID, journal.KindSale, map[string]int64{"gold": gold})
			r.emit(Event{Account: r.opts.ID, Type: EventStats, Stats: &stats})
		})
		r.goRun(func() { seller.Run(ctx) })
	}

	if r.opts.TasksEnabled {
		tasks := rewards.NewTaskLoop(sess, r.opts.TaskInterval, r.log)
		r.goRun(func() { tasks.Run(ctx) })
	}

	if r.opts.DailyEnabled {
		ledger := rewards.NewLedger(r.opts.RewardStore, r.opts.ID, clock)
		daily := rewards.NewDaily(sess, ledger, r.log)
		r.goRun(func() { daily.Run(ctx, r.opts.DailyInterval) })
	}
}

func (r *Runner) goRun(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// Stop shuts the account down and waits for its loops.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	sess := r.sess
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if sess != nil {
		sess.Close()
	}
	r.wg.Wait()
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Account:   r.opts.ID,
		State:     r.state,
		Reason:    r.reason,
		Stats:     r.stats,
		StartedAt: r.startedAt,
	}
	if r.sess != nil {
		st.User = r.sess.User()
	}
	return st
}

// LogLines returns the retained tail of the account's log.
func (r *Runner) LogLines() []string { return r.ring.Lines() }
