// Package rewards claims the daily freebies an account is entitled to:
// free mall packs, mailbox rewards, month-card payouts, album rewards and
// the stored fertilizer. Each feature runs at most once per server day.
package rewards

import (
	"context"
	"time"

	"farmfleet.dev/internal/gameclock"
)

// Store persists the day each feature last ran for an account.
type Store interface {
	LastAttempt(account, feature string) (string, error)
	MarkAttempt(account, feature, day string) error
}

const dayFormat = "2006-01-02"

// Ledger gates daily features. A feature is marked done the moment it is
// attempted: a claim that then fails is not retried until the next server
// day. That keeps a broken claim from hammering the server all day.
type Ledger struct {
	store   Store
	account string
	clock   *gameclock.Clock
}

func NewLedger(store Store, account string, clock *gameclock.Clock) *Ledger {
	return &Ledger{store: store, account: account, clock: clock}
}

func (l *Ledger) today() string {
	return time.Unix(l.clock.NowSec(), 0).Format(dayFormat)
}

// ShouldRun reports whether the feature has not yet been attempted today.
// A store read failure counts as "not attempted"; worst case a feature
// runs twice, which the server tolerates.
func (l *Ledger) ShouldRun(feature string) bool {
	day, err := l.store.LastAttempt(l.account, feature)
	if err != nil {
		return true
	}
	return day != l.today()
}

// Run executes fn if the feature is due today, marking the attempt first.
// Returns (false, nil) when the feature already ran.
func (l *Ledger) Run(ctx context.Context, feature string, fn func(context.Context) error) (bool, error) {
	if !l.ShouldRun(feature) {
		return false, nil
	}
	if err := l.store.MarkAttempt(l.account, feature, l.today()); err != nil {
		// Still run: a day without rewards is worse than a double claim.
		_ = err
	}
	return true, fn(ctx)
}
