// Package runner spawns one-shot child processes and normalizes their
// results. A Runner holds no per-command state and is safe for concurrent use.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"hostexec/internal/execerr"
	"hostexec/internal/logging"
	"hostexec/internal/types"
)

const opRun = "run"

type Runner struct {
	logger logging.Logger
}

func New(logger logging.Logger) *Runner {
	return &Runner{logger: logging.OrNop(logger)}
}

// Run executes spec and waits for it to exit. The wait ends early when ctx
// is done or spec.Timeout elapses; the child's process group is then killed
// and the output collected so far travels on the error.
func (r *Runner) Run(ctx context.Context, spec types.CommandSpec) (types.CommandOutcome, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := buildCommand(spec)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return types.CommandOutcome{}, execerr.IO(opRun, "stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return types.CommandOutcome{}, execerr.IO(opRun, "stderr pipe", err)
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.logger.Warn("command_spawn_failed", logging.F("command", spec.Program), logging.Err(err))
		return types.CommandOutcome{}, execerr.Spawn(opRun, err)
	}

	stdout := &lineCollector{}
	stderr := stdout
	if !spec.MergeStderr {
		stderr = &lineCollector{}
	}
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		stdout.readFrom(stdoutPipe)
	}()
	go func() {
		defer readers.Done()
		stderr.readFrom(stderrPipe)
	}()

	done := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait closes them.
		readers.Wait()
		done <- cmd.Wait()
	}()

	select {
	case waitErr := <-done:
		outcome, err := outcomeFromWait(waitErr)
		if err != nil {
			return types.CommandOutcome{}, err
		}
		outcome.Stdout = stdout.String()
		if !spec.MergeStderr {
			outcome.Stderr = stderr.String()
		}
		r.logger.Debug("command_finished",
			logging.F("command", spec.Program),
			logging.F("pid", cmd.Process.Pid),
			logging.F("exit_code", outcome.ExitCode),
			logging.F("latency_ms", time.Since(start).Milliseconds()),
		)
		return outcome, nil
	case <-ctx.Done():
		_ = KillProcessGroup(cmd.Process)
		partial := &execerr.Partial{Stdout: stdout.String()}
		if !spec.MergeStderr {
			partial.Stderr = stderr.String()
		}
		var abortErr *execerr.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			abortErr = execerr.Timeout(opRun, timeoutMessage(spec.Timeout))
		} else {
			abortErr = execerr.New(execerr.KindWait, opRun, "command cancelled", ctx.Err())
		}
		abortErr.Partial = partial
		r.logger.Warn("command_aborted",
			logging.F("command", spec.Program),
			logging.F("pid", cmd.Process.Pid),
			logging.Err(abortErr),
		)
		return types.CommandOutcome{}, abortErr
	}
}

// Process is a spawned child nobody waits on yet.
type Process struct {
	Spec      types.CommandSpec
	Cmd       *exec.Cmd
	StartedAt time.Time
}

func (p *Process) PID() int {
	if p == nil || p.Cmd == nil || p.Cmd.Process == nil {
		return 0
	}
	return p.Cmd.Process.Pid
}

// Start spawns spec detached from the caller: standard streams go to the
// null device and the child leads its own process group.
func (r *Runner) Start(spec types.CommandSpec) (*Process, error) {
	cmd := buildCommand(spec)
	if err := cmd.Start(); err != nil {
		r.logger.Warn("command_spawn_failed", logging.F("command", spec.Program), logging.Err(err))
		return nil, execerr.Spawn("start", err)
	}
	return &Process{Spec: spec, Cmd: cmd, StartedAt: time.Now().UTC()}, nil
}

func buildCommand(spec types.CommandSpec) *exec.Cmd {
	cmd := exec.Command(spec.Program, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if env := spec.EnvList(); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	ConfigureProcessGroup(cmd)
	return cmd
}

func outcomeFromWait(err error) (types.CommandOutcome, error) {
	if err == nil {
		return types.CommandOutcome{ExitCode: 0, Success: true}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 for signal terminations.
		return types.CommandOutcome{ExitCode: exitErr.ExitCode(), Success: false}, nil
	}
	return types.CommandOutcome{}, execerr.Wait(opRun, err)
}

func timeoutMessage(timeout time.Duration) string {
	if timeout <= 0 {
		return "command deadline exceeded"
	}
	return fmt.Sprintf("command timed out after %gs", timeout.Seconds())
}
