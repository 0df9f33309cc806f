package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"farmfleet.dev/internal/protocol"
	"farmfleet.dev/internal/session"
)

type fakeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case b := <-t.in:
		return b, nil
	case <-t.closed:
		return nil, errors.New("use of closed transport")
	}
}

func (t *fakeTransport) WriteFrame(b []byte) error {
	select {
	case <-t.closed:
		return errors.New("use of closed transport")
	case t.out <- b:
		return nil
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// autoRespond answers every request: a populated login reply, an empty
// body for everything else. Empty replies decode to zero values, so all
// loops see a farm with nothing to do.
func autoRespond(t *testing.T, tr *fakeTransport, rejectLogin bool) {
	var seq uint64
	for {
		var raw []byte
		select {
		case raw = <-tr.out:
		case <-tr.closed:
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return
		}
		seq++
		resp := protocol.Envelope{
			Service: env.Service,
			Method:  env.Method,
			Kind:    protocol.KindResponse,
			Seq:     seq,
			Ack:     env.Seq,
		}
		if env.Method == protocol.MethodLogin && !rejectLogin {
			body, _ := protocol.MarshalBody(protocol.LoginReply{
				Basic:         &protocol.BasicInfo{GID: 42, Name: "tester", Level: 7, Gold: 900},
				TimeNowMillis: time.Now().UnixMilli(),
			})
			resp.Body = body
		}
		frame, _ := protocol.Encode(resp)
		select {
		case tr.in <- frame:
		case <-tr.closed:
			return
		}
	}
}

func testOptions(tr *fakeTransport) Options {
	return Options{
		ID:        "acct-1",
		ServerURL: "ws://fake",
		Code:      "token",
		Dial: func(ctx context.Context, url string) (session.Transport, error) {
			return tr, nil
		},
		LogSink: io.Discard,
	}
}

func collectEvents() (func(Event), func() []Event) {
	var mu sync.Mutex
	var events []Event
	add := func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	snap := func() []Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]Event, len(events))
		copy(out, events)
		return out
	}
	return add, snap
}

func waitForState(t *testing.T, snap func() []Event, state string) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range snap() {
			if ev.Type == EventState && ev.State == state {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state %q never reported", state)
	return Event{}
}

func TestStartRunsLoopsAndStops(t *testing.T) {
	tr := newFakeTransport()
	go autoRespond(t, tr, false)

	opts := testOptions(tr)
	opts.FarmEnabled = true
	opts.Farm.Interval = 10 * time.Millisecond
	opts.Farm.PlantGap = time.Millisecond
	opts.SellEnabled = true
	opts.SellInterval = 10 * time.Millisecond
	opts.TasksEnabled = true
	opts.TaskInterval = 10 * time.Millisecond
	opts.DailyEnabled = true
	opts.DailyInterval = 10 * time.Millisecond

	r := New(opts)
	add, snap := collectEvents()
	r.OnEvent(add)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForState(t, snap, "connected")

	st := r.Status()
	if st.User.GID != 42 || st.User.Name != "tester" {
		t.Fatalf("status user: %+v", st.User)
	}

	// Let a few cycles go by against the empty farm.
	deadline := time.Now().Add(2 * time.Second)
	for r.Status().Stats.Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Status().Stats.Cycles == 0 {
		t.Fatalf("farm loop never cycled")
	}
	if r.Status().Stats.Errors != 0 {
		t.Fatalf("idle farm produced errors: %+v", r.Status().Stats)
	}

	r.Stop()
	ev := waitForState(t, snap, "disconnected")
	if ev.Reason != "stopped" {
		t.Fatalf("stop reason: %q", ev.Reason)
	}
	if len(r.LogLines()) == 0 {
		t.Fatalf("log ring empty after a full run")
	}
}

func TestStartLoginRejected(t *testing.T) {
	tr := newFakeTransport()
	go autoRespond(t, tr, true)

	r := New(testOptions(tr))
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("rejected login reported success")
	}
	if st := r.Status(); st.State != "error" {
		t.Fatalf("state = %q, want error", st.State)
	}
}

func TestStartTwiceFails(t *testing.T) {
	tr := newFakeTransport()
	go autoRespond(t, tr, false)

	r := New(testOptions(tr))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("second start succeeded")
	}
}

func TestKickoutStopsTheAccount(t *testing.T) {
	tr := newFakeTransport()
	go autoRespond(t, tr, false)

	r := New(testOptions(tr))
	add, snap := collectEvents()
	r.OnEvent(add)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	inner, _ := protocol.MarshalBody(protocol.KickoutNotify{Reason: "duplicate login"})
	wrapped, _ := protocol.EncodeEvent(protocol.Event{Type: protocol.EventKickout, Body: inner})
	frame, _ := protocol.Encode(protocol.Envelope{Kind: protocol.KindNotify, Seq: 99, Body: wrapped})
	tr.in <- frame

	waitForState(t, snap, "disconnected")
}

func TestLogRingBounded(t *testing.T) {
	r := newLogRing(10)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(r, "line %d\n", i)
	}
	lines := r.Lines()
	if len(lines) != 10 {
		t.Fatalf("ring holds %d lines", len(lines))
	}
	if lines[0] != "line 15" || lines[9] != "line 24" {
		t.Fatalf("ring kept wrong window: %v", lines)
	}
}
