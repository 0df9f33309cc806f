// Package workeripc is the pipe protocol between the fleet orchestrator
// and one account worker subprocess: JSON lines, commands down stdin,
// events up stdout. The worker's own logging goes to stderr so the event
// stream stays clean.
package workeripc

import "farmfleet.dev/internal/config"

type CommandType string

const (
	CmdStart  CommandType = "start"
	CmdStop   CommandType = "stop"
	CmdAction CommandType = "action"

	// CmdConfig replaces the running account's settings: the worker stops
	// the account and relaunches it with the new start payload.
	CmdConfig CommandType = "config"
)

// Actions a running worker answers on demand.
const (
	ActionStatus = "status"
	ActionLog    = "log"
)

type Command struct {
	Type   CommandType `json:"type"`
	Start  *Start      `json:"start,omitempty"`
	Action string      `json:"action,omitempty"`
}

// Start carries everything the worker needs to run one account. Fleet is
// the shared settings with the account list stripped.
type Start struct {
	Fleet   config.Fleet   `json:"fleet"`
	Account config.Account `json:"account"`
}

type EventType string

const (
	EvStarted EventType = "started"
	EvState   EventType = "state"
	EvStatus  EventType = "status"
	EvLog     EventType = "log"
	EvStopped EventType = "stopped"
	EvError   EventType = "error"
)

type Event struct {
	Type    EventType `json:"type"`
	Account string    `json:"account,omitempty"`
	State   string    `json:"state,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
	Status  *Status   `json:"status,omitempty"`
	Lines   []string  `json:"lines,omitempty"`
}

// Status is the flattened account snapshot shipped over the pipe.
type Status struct {
	Account string `json:"account"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`

	GID   uint64 `json:"gid,omitempty"`
	Name  string `json:"name,omitempty"`
	Level int32  `json:"level,omitempty"`
	Gold  int64  `json:"gold,omitempty"`

	Cycles     int   `json:"cycles"`
	Planted    int   `json:"planted"`
	Harvested  int   `json:"harvested"`
	Visited    int   `json:"visited"`
	Helped     int   `json:"helped"`
	Stolen     int   `json:"stolen"`
	GoldEarned int64 `json:"gold_earned"`
	Errors     int   `json:"errors"`
}
