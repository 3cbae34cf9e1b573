package domain

import "time"

// TickAction records what a scheduler tick did about the downstream state.
type TickAction string

const (
	TickActionNone          TickAction = "none"
	TickActionRestart       TickAction = "restart"
	TickActionRestartFailed TickAction = "restart_failed"
	TickActionSkipped       TickAction = "skipped"
)

// TickReport is the audit record of one health scheduler tick.
type TickReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Slot      time.Time     `json:"slot"`
	Duration  time.Duration `json:"duration_ns"`
	State     State         `json:"state,omitempty"`
	Reported  string        `json:"reported,omitempty"`
	Action    TickAction    `json:"action"`
	Error     string        `json:"error,omitempty"`
}
