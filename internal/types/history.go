package types

import "time"

type HistoryEntry struct {
	ID        uint64    `json:"id"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	Cwd       string    `json:"cwd,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	ExitCode  int       `json:"exit_code"`
}
