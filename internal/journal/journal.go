// Package journal appends a compressed activity record per account event:
// cycles, visits, sales, claims, session transitions. One file per hour,
// JSON lines inside zstd.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one journal line. Data carries the event-specific payload.
type Entry struct {
	Time    string `json:"time"`
	Account string `json:"account"`
	Kind    string `json:"kind"`
	Data    any    `json:"data,omitempty"`
}

// Event kinds written by the fleet.
const (
	KindSession = "session"
	KindCycle   = "cycle"
	KindVisit   = "visit"
	KindSale    = "sale"
	KindDaily   = "daily"
	KindStatus  = "status"
)

// Writer is safe for concurrent use. A nil *Writer discards everything,
// so journaling stays optional at the call sites.
type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func New(baseDir string) *Writer {
	return &Writer{baseDir: baseDir, prefix: "journal"}
}

// Record appends one entry, stamping it now.
func (w *Writer) Record(account, kind string, data any) error {
	if w == nil {
		return nil
	}
	return w.write(Entry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Account: account,
		Kind:    kind,
		Data:    data,
	})
}

func (w *Writer) write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
