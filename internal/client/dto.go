package client

import "hostexec/internal/types"

// ExecRequest mirrors the daemon's exec body. Timeout is in seconds.
type ExecRequest struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	MergeStderr bool              `json:"merge_stderr,omitempty"`
	Timeout     float64           `json:"timeout,omitempty"`
}

type JobsResponse struct {
	Jobs []types.JobSummary `json:"jobs"`
}

type TerminateJobResponse struct {
	ID         int  `json:"id"`
	Terminated bool `json:"terminated"`
}

type HistoryResponse struct {
	Entries []types.HistoryEntry `json:"entries"`
}

type SessionRunRequest struct {
	Command string `json:"command"`
}

type EnvResponse struct {
	Env map[string]string `json:"env"`
}

type CwdResponse struct {
	Cwd string `json:"cwd"`
}

type WhichResponse struct {
	Command string `json:"command"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
}

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

type errorPayload struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Partial bool   `json:"partial"`
}
