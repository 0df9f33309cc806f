// Package session maintains one authenticated connection to the game
// server: frame correlation, notify dispatch, heartbeats and liveness.
// A session never reconnects itself; once it reaches a terminal state the
// owner decides whether to build a new one.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

// State is the session lifecycle position. Disconnected and Error are
// terminal; Degraded may still recover to Connected.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDegraded
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UserState is the session's view of the account, merged from the login
// reply and subsequent server pushes.
type UserState struct {
	GID   uint64
	Name  string
	Level int32
	Gold  int64
	Exp   int64
}

type Config struct {
	URL       string
	AccountID string

	// Code is the account's access token, sent with login.
	Code     string
	Platform string
	OS       string
	Device   protocol.DeviceInfo

	HeartbeatInterval time.Duration // default 25s
	HealthMultiple    int           // silence windows before termination, default 3
	CallTimeout       time.Duration // default 10s

	Dial   Dialer // default DialWebSocket
	Logger *log.Logger
}

func (c *Config) fill() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.HealthMultiple <= 0 {
		c.HealthMultiple = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.Dial == nil {
		c.Dial = DialWebSocket
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "[session "+c.AccountID+"] ", log.LstdFlags|log.Lmicroseconds)
	}
}

type callResult struct {
	body []byte
	err  error
}

type Session struct {
	cfg   Config
	log   *log.Logger
	clock *gameclock.Clock

	mu       sync.Mutex
	tr       Transport
	state    State
	reason   string
	termErr  error
	nextSeq  uint64
	maxAck   uint64
	pending  map[uint64]chan callResult
	user     UserState
	lastSend time.Time
	lastRecv time.Time
	handlers map[string]func(body []byte)
	onClosed func(reason string, err error)
	onUser   func(UserState)

	// healthKill marks that the monitor, not the peer, tore the
	// transport down; the read loop reports the right reason.
	healthKill bool
	stopping   bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config) *Session {
	cfg.fill()
	return &Session{
		cfg:      cfg,
		log:      cfg.Logger,
		clock:    gameclock.New(),
		state:    StateConnecting,
		nextSeq:  1,
		pending:  make(map[uint64]chan callResult),
		handlers: make(map[string]func(body []byte)),
		stop:     make(chan struct{}),
	}
}

// Clock returns the server-time estimate owned by this session.
func (s *Session) Clock() *gameclock.Clock { return s.clock }

// Handle registers a handler for one server push type. Pushes with no
// registered handler are ignored. Must not be called after Connect.
func (s *Session) Handle(eventType string, h func(body []byte)) {
	s.mu.Lock()
	s.handlers[eventType] = h
	s.mu.Unlock()
}

// OnClosed registers the terminal callback. Invoked exactly once, after
// the session has left Connected for good.
func (s *Session) OnClosed(fn func(reason string, err error)) {
	s.mu.Lock()
	s.onClosed = fn
	s.mu.Unlock()
}

// OnUserChanged registers a callback fired whenever a server push updates
// the account snapshot.
func (s *Session) OnUserChanged(fn func(UserState)) {
	s.mu.Lock()
	s.onUser = fn
	s.mu.Unlock()
}

// Connect dials, logs in and starts the background loops. On success the
// session is Connected and the returned snapshot reflects the login reply.
func (s *Session) Connect(ctx context.Context) (UserState, error) {
	tr, err := s.cfg.Dial(ctx, s.cfg.URL)
	if err != nil {
		s.fail("dial failed", &TransportError{Op: "dial", Err: err})
		return UserState{}, &TransportError{Op: "dial", Err: err}
	}

	s.mu.Lock()
	s.tr = tr
	s.lastRecv = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(tr)

	req := protocol.LoginRequest{
		Code:     s.cfg.Code,
		Platform: s.cfg.Platform,
		OS:       s.cfg.OS,
		Device:   s.cfg.Device,
	}
	var reply protocol.LoginReply
	if err := s.Call(ctx, protocol.SvcUser, protocol.MethodLogin, req, &reply); err != nil {
		s.fail("login failed", err)
		tr.Close()
		return UserState{}, fmt.Errorf("login: %w", err)
	}
	if reply.Basic == nil {
		err := fmt.Errorf("login reply carries no account info (token expired?)")
		s.fail("login rejected", err)
		tr.Close()
		return UserState{}, err
	}

	s.clock.Sync(reply.TimeNowMillis)

	s.mu.Lock()
	s.user = UserState{
		GID:   reply.Basic.GID,
		Name:  reply.Basic.Name,
		Level: reply.Basic.Level,
		Gold:  reply.Basic.Gold,
		Exp:   reply.Basic.Exp,
	}
	s.state = StateConnected
	user := s.user
	s.mu.Unlock()

	s.wg.Add(2)
	go s.heartbeatLoop()
	go s.monitorLoop()

	s.log.Printf("connected as %q gid=%d level=%d gold=%d", user.Name, user.GID, user.Level, user.Gold)
	return user, nil
}

// Call sends one request and waits for the matching response, the
// configured timeout, or ctx. On timeout the pending entry is discarded
// and any late response is silently dropped.
func (s *Session) Call(ctx context.Context, service, method string, req, reply any) error {
	body, err := protocol.MarshalBody(req)
	if err != nil {
		return fmt.Errorf("marshal %s.%s: %w", service, method, err)
	}

	s.mu.Lock()
	if s.tr == nil || s.stopping {
		s.mu.Unlock()
		return ErrNotConnected
	}
	seq := s.nextSeq
	s.nextSeq++
	ack := s.maxAck
	ch := make(chan callResult, 1)
	s.pending[seq] = ch
	tr := s.tr
	s.lastSend = time.Now()
	s.mu.Unlock()

	frame, err := protocol.Encode(protocol.Envelope{
		Service: service,
		Method:  method,
		Kind:    protocol.KindRequest,
		Seq:     seq,
		Ack:     ack,
		Body:    body,
	})
	if err != nil {
		s.discard(seq)
		return fmt.Errorf("encode %s.%s: %w", service, method, err)
	}
	if err := tr.WriteFrame(frame); err != nil {
		s.discard(seq)
		return &TransportError{Op: "write " + method, Err: err}
	}

	timer := time.NewTimer(s.cfg.CallTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if reply == nil {
			return nil
		}
		if err := protocol.UnmarshalBody(res.body, reply); err != nil {
			return fmt.Errorf("decode %s.%s reply: %w", service, method, err)
		}
		return nil
	case <-timer.C:
		s.discard(seq)
		return fmt.Errorf("%w: %s.%s after %s", ErrCallTimeout, service, method, s.cfg.CallTimeout)
	case <-ctx.Done():
		s.discard(seq)
		return ctx.Err()
	}
}

func (s *Session) discard(seq uint64) {
	s.mu.Lock()
	delete(s.pending, seq)
	s.mu.Unlock()
}

func (s *Session) readLoop(tr Transport) {
	defer s.wg.Done()
	for {
		raw, err := tr.ReadFrame()
		if err != nil {
			s.readEnded(err)
			return
		}
		s.mu.Lock()
		s.lastRecv = time.Now()
		s.mu.Unlock()

		env, err := protocol.Decode(raw)
		if err != nil {
			// Malformed frames are dropped; the connection stays up.
			s.log.Printf("dropping frame: %v", err)
			continue
		}

		switch env.Kind {
		case protocol.KindResponse:
			s.resolve(env)
		case protocol.KindNotify:
			s.dispatch(env)
		default:
			// The server never sends us requests.
		}
	}
}

func (s *Session) resolve(env protocol.Envelope) {
	s.mu.Lock()
	if env.Seq > s.maxAck {
		s.maxAck = env.Seq
	}
	ch, ok := s.pending[env.Ack]
	if ok {
		delete(s.pending, env.Ack)
	}
	s.mu.Unlock()
	if !ok {
		// Timed out or never ours.
		return
	}
	if env.ErrCode != 0 {
		ch <- callResult{err: &protocol.CallError{Service: env.Service, Method: env.Method, Code: env.ErrCode}}
		return
	}
	ch <- callResult{body: env.Body}
}

func (s *Session) dispatch(env protocol.Envelope) {
	s.mu.Lock()
	if env.Seq > s.maxAck {
		s.maxAck = env.Seq
	}
	s.mu.Unlock()

	ev, err := protocol.DecodeEvent(env.Body)
	if err != nil {
		s.log.Printf("dropping push: %v", err)
		return
	}

	switch ev.Type {
	case protocol.EventBasic:
		var n protocol.BasicNotify
		if err := protocol.UnmarshalBody(ev.Body, &n); err != nil || n.Basic == nil {
			return
		}
		s.mergeBasic(*n.Basic)
	case protocol.EventItems:
		var n protocol.ItemNotify
		if err := protocol.UnmarshalBody(ev.Body, &n); err != nil {
			return
		}
		s.mergeItems(n)
	}

	s.mu.Lock()
	h := s.handlers[ev.Type]
	s.mu.Unlock()
	if h != nil {
		h(ev.Body)
	}
}

func (s *Session) mergeBasic(b protocol.BasicInfo) {
	s.mu.Lock()
	if b.GID != 0 && b.GID != s.user.GID {
		s.mu.Unlock()
		return
	}
	s.user.Name = pick(b.Name, s.user.Name)
	if b.Level != 0 {
		s.user.Level = b.Level
	}
	s.user.Gold = b.Gold
	if b.Exp != 0 {
		s.user.Exp = b.Exp
	}
	user := s.user
	fn := s.onUser
	s.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

func (s *Session) mergeItems(n protocol.ItemNotify) {
	var gold int64
	found := false
	for _, it := range n.Items {
		if it.Item != nil && protocol.IsGold(it.Item.ID) {
			gold = it.Item.Count
			found = true
		}
	}
	if !found {
		return
	}
	s.mu.Lock()
	s.user.Gold = gold
	user := s.user
	fn := s.onUser
	s.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

func pick(v, old string) string {
	if v != "" {
		return v
	}
	return old
}

// readEnded classifies why the read loop stopped and drives the session to
// its terminal state.
func (s *Session) readEnded(err error) {
	s.mu.Lock()
	switch {
	case s.stopping:
		s.mu.Unlock()
		s.terminate(StateDisconnected, "stopped", nil)
	case s.healthKill:
		s.mu.Unlock()
		s.terminate(StateDisconnected, "health timeout", ErrHealthTimeout)
	case isCleanClose(err) || err == io.EOF:
		s.mu.Unlock()
		s.terminate(StateDisconnected, "closed by server", nil)
	default:
		s.mu.Unlock()
		s.terminate(StateDisconnected, "transport failure", &TransportError{Op: "read", Err: err})
	}
}

// terminate moves the session to a terminal state exactly once: rejects
// all pending calls, stops the loops and fires OnClosed.
func (s *Session) terminate(st State, reason string, err error) {
	fired := false
	s.stopOnce.Do(func() {
		fired = true
		close(s.stop)
	})
	if !fired {
		return
	}

	s.mu.Lock()
	s.state = st
	s.reason = reason
	s.termErr = err
	for seq, ch := range s.pending {
		delete(s.pending, seq)
		ch <- callResult{err: ErrClosed}
	}
	tr := s.tr
	fn := s.onClosed
	s.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	if err != nil {
		s.log.Printf("session over: %s: %v", reason, err)
	} else {
		s.log.Printf("session over: %s", reason)
	}
	if fn != nil {
		fn(reason, err)
	}
}

// fail marks a pre-handshake failure.
func (s *Session) fail(reason string, err error) {
	fired := false
	s.stopOnce.Do(func() {
		fired = true
		close(s.stop)
	})
	s.mu.Lock()
	s.state = StateError
	s.reason = reason
	s.termErr = err
	if fired {
		for seq, ch := range s.pending {
			delete(s.pending, seq)
			ch <- callResult{err: ErrClosed}
		}
	}
	fn := s.onClosed
	s.mu.Unlock()
	if fired && fn != nil {
		fn(reason, err)
	}
}

func (s *Session) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			gid := s.user.GID
			s.mu.Unlock()
			var reply protocol.HeartbeatReply
			err := s.Call(context.Background(), protocol.SvcUser, protocol.MethodHeartbeat,
				protocol.HeartbeatRequest{GID: gid, ClientVersion: s.cfg.Device.ClientVersion}, &reply)
			if err != nil {
				s.log.Printf("heartbeat: %v", err)
				continue
			}
			s.clock.Sync(reply.ServerTime)
		}
	}
}

// monitorLoop watches inbound traffic. Heartbeat replies alone keep the
// session alive; total silence past HealthMultiple intervals kills it.
func (s *Session) monitorLoop() {
	defer s.wg.Done()
	hb := s.cfg.HeartbeatInterval
	limit := time.Duration(s.cfg.HealthMultiple) * hb
	ticker := time.NewTicker(hb / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			silence := time.Since(s.lastRecv)
			st := s.state
			tr := s.tr
			s.mu.Unlock()
			if st != StateConnected && st != StateDegraded {
				continue
			}
			switch {
			case silence >= limit:
				s.mu.Lock()
				s.healthKill = true
				s.mu.Unlock()
				s.log.Printf("no server traffic for %s, closing transport", silence.Round(time.Second))
				// Unblocks the read loop, which finishes termination.
				tr.Close()
				return
			case silence >= 2*hb && st == StateConnected:
				s.mu.Lock()
				s.state = StateDegraded
				s.mu.Unlock()
				s.log.Printf("no server traffic for %s, marking degraded", silence.Round(time.Second))
			case silence < hb && st == StateDegraded:
				s.mu.Lock()
				s.state = StateConnected
				s.mu.Unlock()
				s.log.Printf("server traffic resumed")
			}
		}
	}
}

// Close shuts the session down deliberately and waits for the loops.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopping = true
	tr := s.tr
	s.mu.Unlock()
	if tr != nil {
		tr.Close()
	} else {
		s.terminate(StateDisconnected, "stopped", nil)
	}
	s.wg.Wait()
	// The read loop may not have run if dial failed.
	s.terminate(StateDisconnected, "stopped", nil)
}

// User returns the current account snapshot.
func (s *Session) User() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Info is a point-in-time status for monitoring surfaces.
type Info struct {
	State    State
	Reason   string
	User     UserState
	LastSend time.Time
	LastRecv time.Time
	Pending  int
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		State:    s.state,
		Reason:   s.reason,
		User:     s.user,
		LastSend: s.lastSend,
		LastRecv: s.lastRecv,
		Pending:  len(s.pending),
	}
}

// State returns the lifecycle position and, for terminal states, the reason.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.reason
}
