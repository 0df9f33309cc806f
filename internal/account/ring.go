package account

import (
	"strings"
	"sync"
)

// logRing keeps the most recent log lines for an account so a monitoring
// surface can show history without trawling files. It doubles as an
// io.Writer target for the account's logger.
type logRing struct {
	mu    sync.Mutex
	lines []string
	max   int

	onLine func(string)
}

func newLogRing(max int) *logRing {
	if max <= 0 {
		max = 500
	}
	return &logRing{max: max}
}

func (r *logRing) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	r.mu.Lock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
	fn := r.onLine
	r.mu.Unlock()
	if fn != nil {
		fn(line)
	}
	return len(p), nil
}

func (r *logRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
