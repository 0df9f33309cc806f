package farm

import "context"

// develop expands the farm when enabled: unlock plots the server says are
// ready, then upgrade the ones eligible for a higher tier. Both are
// opportunistic; a refusal (level, funds) is logged and skipped.
func (l *Loop) develop(ctx context.Context, sv Survey, res *CycleResult) {
	if l.cfg.AutoUnlock {
		for _, id := range sortIDs(sv.Unlockable) {
			if err := l.client.UnlockLand(ctx, id); err != nil {
				l.log.Printf("unlock plot %d: %v", id, err)
				res.Errors++
				continue
			}
			res.Unlocked++
		}
	}
	if l.cfg.AutoUpgrade {
		for _, id := range sortIDs(sv.Upgradable) {
			if err := l.client.UpgradeLand(ctx, id); err != nil {
				l.log.Printf("upgrade plot %d: %v", id, err)
				res.Errors++
				continue
			}
			res.Upgraded++
		}
	}
}
