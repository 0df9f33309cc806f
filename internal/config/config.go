// Package config loads the fleet configuration: the server endpoint,
// orchestration policy and the per-account automation settings. Durations
// are plain seconds so the same structs serialize cleanly as YAML on disk
// and JSON over the worker pipe.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Isolation modes for account runners.
const (
	IsolationInproc  = "inproc"
	IsolationProcess = "process"
)

type Fleet struct {
	ServerURL     string `yaml:"server_url" json:"server_url"`
	Platform      string `yaml:"platform" json:"platform"`
	OS            string `yaml:"os" json:"os"`
	ClientVersion string `yaml:"client_version" json:"client_version"`

	HeartbeatSec   int `yaml:"heartbeat_sec" json:"heartbeat_sec"`
	HealthMultiple int `yaml:"health_multiple" json:"health_multiple"`
	CallTimeoutSec int `yaml:"call_timeout_sec" json:"call_timeout_sec"`

	// Isolation picks how account runners are hosted: goroutines in the
	// fleet process, or one worker subprocess per account.
	Isolation  string `yaml:"isolation" json:"isolation"`
	MaxWorkers int    `yaml:"max_workers" json:"max_workers"`
	WorkerBin  string `yaml:"worker_bin" json:"worker_bin"`

	// StartStaggerMs spaces out logins during a fleet-wide start so the
	// server does not see the whole fleet connect in one burst.
	StartStaggerMs int `yaml:"start_stagger_ms" json:"start_stagger_ms"`

	StateDir   string `yaml:"state_dir" json:"state_dir"`
	JournalDir string `yaml:"journal_dir" json:"journal_dir"`

	Restart Restart `yaml:"restart" json:"restart"`

	Accounts []Account `yaml:"accounts" json:"accounts"`
}

// Restart is the orchestrator's policy for runners that die on their own.
type Restart struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	BackoffSec    int  `yaml:"backoff_sec" json:"backoff_sec"`
	MaxBackoffSec int  `yaml:"max_backoff_sec" json:"max_backoff_sec"`
}

type Account struct {
	ID   string `yaml:"id" json:"id"`
	Code string `yaml:"code" json:"code"`

	Farm  FarmSettings  `yaml:"farm" json:"farm"`
	Visit VisitSettings `yaml:"visit" json:"visit"`
	Sell  Toggle        `yaml:"sell" json:"sell"`
	Tasks Toggle        `yaml:"tasks" json:"tasks"`
	Daily Toggle        `yaml:"daily" json:"daily"`
}

type FarmSettings struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	IntervalSec   int    `yaml:"interval_sec" json:"interval_sec"`
	PlantGapMs    int    `yaml:"plant_gap_ms" json:"plant_gap_ms"`
	Strategy      string `yaml:"strategy" json:"strategy"`
	PreferredSeed int64  `yaml:"preferred_seed" json:"preferred_seed"`
	Fertilize     bool   `yaml:"fertilize" json:"fertilize"`
	AutoUnlock    bool   `yaml:"auto_unlock" json:"auto_unlock"`
	AutoUpgrade   bool   `yaml:"auto_upgrade" json:"auto_upgrade"`
}

type VisitSettings struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	IntervalSec int  `yaml:"interval_sec" json:"interval_sec"`
	MaxVisits   int  `yaml:"max_visits" json:"max_visits"`
	Help        bool `yaml:"help" json:"help"`
	Steal       bool `yaml:"steal" json:"steal"`

	// IgnoreCrops lists plant ids not worth stealing.
	IgnoreCrops []int64 `yaml:"ignore_crops" json:"ignore_crops,omitempty"`
	QuietStart  int  `yaml:"quiet_start_hour" json:"quiet_start_hour"`
	QuietEnd    int  `yaml:"quiet_end_hour" json:"quiet_end_hour"`
}

type Toggle struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	IntervalSec int  `yaml:"interval_sec" json:"interval_sec"`
}

// Default returns the fleet settings used when the file leaves them out.
func Default() Fleet {
	return Fleet{
		Platform:       "android",
		OS:             "android 14",
		ClientVersion:  "1.0.0",
		HeartbeatSec:   25,
		HealthMultiple: 3,
		CallTimeoutSec: 10,
		Isolation:      IsolationInproc,
		MaxWorkers:     16,
		StartStaggerMs: 500,
		Restart: Restart{
			BackoffSec:    30,
			MaxBackoffSec: 600,
		},
	}
}

func Load(path string) (Fleet, error) {
	f := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *Fleet) Validate() error {
	if f.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if f.Isolation != IsolationInproc && f.Isolation != IsolationProcess {
		return fmt.Errorf("isolation must be %q or %q, got %q", IsolationInproc, IsolationProcess, f.Isolation)
	}
	if f.Isolation == IsolationProcess && f.WorkerBin == "" {
		return fmt.Errorf("worker_bin is required with process isolation")
	}
	if f.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}
	if len(f.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}
	seen := make(map[string]bool, len(f.Accounts))
	for i, a := range f.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if a.Code == "" {
			return fmt.Errorf("account %s: code is required", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %s", a.ID)
		}
		seen[a.ID] = true
		v := a.Visit
		if v.QuietStart < 0 || v.QuietStart > 23 || v.QuietEnd < 0 || v.QuietEnd > 23 {
			return fmt.Errorf("account %s: quiet hours out of range", a.ID)
		}
	}
	return nil
}

// AccountByID looks an account up; nil when absent.
func (f *Fleet) AccountByID(id string) *Account {
	for i := range f.Accounts {
		if f.Accounts[i].ID == id {
			return &f.Accounts[i]
		}
	}
	return nil
}
