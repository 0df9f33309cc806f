package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means a call was attempted with no live transport.
	ErrNotConnected = errors.New("session not connected")

	// ErrClosed rejects calls that were still pending when the session
	// reached a terminal state.
	ErrClosed = errors.New("session closed")

	// ErrCallTimeout means no response arrived within the caller's
	// deadline. The pending entry is discarded; a late response is dropped.
	ErrCallTimeout = errors.New("call timeout")

	// ErrHealthTimeout means the health monitor saw no inbound traffic for
	// the configured window and terminated the transport. Distinct from a
	// clean remote close so the orchestrator can apply reconnect policy.
	ErrHealthTimeout = errors.New("health timeout: no traffic from server")
)

// TransportError wraps a socket-level failure. Terminal for the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
