package account

import (
	"time"

	"farmfleet.dev/internal/config"
	"farmfleet.dev/internal/farm"
	"farmfleet.dev/internal/journal"
	"farmfleet.dev/internal/protocol"
	"farmfleet.dev/internal/rewards"
	"farmfleet.dev/internal/social"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }

// FromConfig resolves one account's runtime options from the fleet file.
// Zero intervals fall through to each loop's own default.
func FromConfig(f *config.Fleet, a config.Account, store rewards.Store, jw *journal.Writer) Options {
	return Options{
		ID:        a.ID,
		ServerURL: f.ServerURL,
		Code:      a.Code,
		Platform:  f.Platform,
		OS:        f.OS,
		Device: protocol.DeviceInfo{
			ClientVersion: f.ClientVersion,
			SysSoftware:   f.OS,
			Network:       "wifi",
			DeviceID:      a.ID,
		},
		Heartbeat:      seconds(f.HeartbeatSec),
		HealthMultiple: f.HealthMultiple,
		CallTimeout:    seconds(f.CallTimeoutSec),

		FarmEnabled: a.Farm.Enabled,
		Farm: farm.Config{
			Interval:    seconds(a.Farm.IntervalSec),
			PlantGap:    millis(a.Farm.PlantGapMs),
			Strategy:    farm.StrategyByName(a.Farm.Strategy, a.Farm.PreferredSeed),
			Fertilize:   a.Farm.Fertilize,
			AutoUnlock:  a.Farm.AutoUnlock,
			AutoUpgrade: a.Farm.AutoUpgrade,
		},

		VisitEnabled: a.Visit.Enabled,
		Visit: social.Config{
			Interval:    seconds(a.Visit.IntervalSec),
			MaxVisits:   a.Visit.MaxVisits,
			Help:        a.Visit.Help,
			Steal:       a.Visit.Steal,
			IgnoreCrops: a.Visit.IgnoreCrops,
			Quiet:       social.Window{Start: a.Visit.QuietStart, End: a.Visit.QuietEnd},
		},

		SellEnabled:  a.Sell.Enabled,
		SellInterval: seconds(a.Sell.IntervalSec),

		TasksEnabled: a.Tasks.Enabled,
		TaskInterval: seconds(a.Tasks.IntervalSec),

		DailyEnabled:  a.Daily.Enabled,
		DailyInterval: seconds(a.Daily.IntervalSec),

		RewardStore: store,
		Journal:     jw,
	}
}
