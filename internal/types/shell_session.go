package types

import "time"

type ShellState string

const (
	ShellStateNotStarted ShellState = "not_started"
	ShellStateRunning    ShellState = "running"
	ShellStateTimedOut   ShellState = "timed_out"
)

type ShellStatus struct {
	State          ShellState `json:"state"`
	PID            int        `json:"pid,omitempty"`
	Shell          string     `json:"shell"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	Commands       int        `json:"commands"`
	TimeoutSeconds float64    `json:"timeout_seconds"`
}
