package types

import (
	"sort"
	"time"
)

// UnknownExitCode is reported when the OS gives no exit status, e.g. for a
// process terminated by a signal.
const UnknownExitCode = -1

type CommandSpec struct {
	Program     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Dir         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	MergeStderr bool              `json:"merge_stderr,omitempty"`
	Timeout     time.Duration     `json:"-"`
}

// EnvList renders the overrides as sorted KEY=VALUE pairs.
func (s CommandSpec) EnvList() []string {
	if len(s.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Env))
	for key := range s.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+s.Env[key])
	}
	return out
}

type CommandOutcome struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Success  bool   `json:"success"`
}
