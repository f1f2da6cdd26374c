package daemon

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"hostexec/internal/logging"
	"hostexec/internal/types"
)

type API struct {
	Version  string
	Service  *CommandService
	Shutdown func(context.Context) error
	Logger   logging.Logger
}

// ExecRequest is the body of the exec and job endpoints. Timeout is in
// seconds; zero means the daemon default.
type ExecRequest struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	MergeStderr bool              `json:"merge_stderr,omitempty"`
	Timeout     float64           `json:"timeout,omitempty"`
}

func (r ExecRequest) spec() (types.CommandSpec, error) {
	if r.Timeout < 0 || math.IsNaN(r.Timeout) || math.IsInf(r.Timeout, 0) {
		return types.CommandSpec{}, invalidError("timeout must be a non-negative number of seconds", nil)
	}
	return types.CommandSpec{
		Program:     r.Command,
		Args:        r.Args,
		Dir:         r.Cwd,
		Env:         r.Env,
		MergeStderr: r.MergeStderr,
		Timeout:     time.Duration(r.Timeout * float64(time.Second)),
	}, nil
}

type TerminateJobResponse struct {
	ID         int  `json:"id"`
	Terminated bool `json:"terminated"`
}

type SessionRunRequest struct {
	Command string `json:"command"`
}

type WhichResponse struct {
	Command string `json:"command"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0
	}
	return val
}
