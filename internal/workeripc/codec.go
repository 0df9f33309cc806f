package workeripc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxLine bounds one pipe message. Log lines and status payloads are
// small; anything bigger is a framing bug.
const maxLine = 1 << 20

// LineWriter emits newline-delimited JSON. Safe for concurrent use.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

func (l *LineWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// LineReader parses newline-delimited JSON messages one at a time.
type LineReader struct {
	sc *bufio.Scanner
}

func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &LineReader{sc: sc}
}

// Next decodes the next message into v. Returns io.EOF when the pipe is
// done. Blank lines are skipped; a malformed line is an error because the
// peer is ours and should never produce one.
func (l *LineReader) Next(v any) error {
	for l.sc.Scan() {
		line := l.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return fmt.Errorf("bad pipe message: %w", err)
		}
		return nil
	}
	if err := l.sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
