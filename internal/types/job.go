package types

import "time"

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusExited  JobStatus = "exited"
	JobStatusError   JobStatus = "error"
)

type JobSummary struct {
	ID        int        `json:"id"`
	Command   string     `json:"command"`
	Args      []string   `json:"args,omitempty"`
	Cwd       string     `json:"cwd,omitempty"`
	Status    JobStatus  `json:"status"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}
