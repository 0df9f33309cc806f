// Package social drives the peer-visit protocol: choosing which farms are
// worth a trip, helping or stealing once there, and staying home during
// the configured quiet hours.
package social

import "time"

// Window is a daily hour range during which visiting pauses. Start==End
// disables the window; Start>End wraps past midnight (23..7 covers the
// night).
type Window struct {
	Start int
	End   int
}

func (w Window) Enabled() bool { return w.Start != w.End }

func (w Window) Contains(t time.Time) bool {
	if !w.Enabled() {
		return false
	}
	h := t.Hour()
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}
