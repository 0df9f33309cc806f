package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries whole binary frames. Implementations must allow Close
// to be called concurrently with a blocked ReadFrame and unblock it.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(b []byte) error
	Close() error
}

// Dialer opens a Transport to the game server. Injected in tests.
type Dialer func(ctx context.Context, url string) (Transport, error)

const writeDeadline = 10 * time.Second

type wsTransport struct {
	conn *websocket.Conn

	// gorilla permits one concurrent writer only.
	writeMu sync.Mutex
}

// DialWebSocket connects to the server over a binary-frame websocket.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	header := http.Header{}
	header.Set("User-Agent", "farmfleet/1.0")
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	for {
		typ, b, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		return b, nil
	}
}

func (t *wsTransport) WriteFrame(b []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// isCleanClose distinguishes a deliberate server-side close from a broken
// connection.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
