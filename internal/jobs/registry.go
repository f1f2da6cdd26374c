// Package jobs tracks detached background processes by pid.
package jobs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"hostexec/internal/logging"
	"hostexec/internal/runner"
	"hostexec/internal/types"
)

// Registry owns every registered child. Entries leave the map only through
// Terminate or Shutdown; a job that exits on its own stays listed as exited.
// The lock guards the map only and is never held across a kill or a wait.
type Registry struct {
	mu     sync.Mutex
	jobs   map[int]*job
	logger logging.Logger
	kill   func(*os.Process) error
}

type job struct {
	id        int
	spec      types.CommandSpec
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	waitErr   error
	exitedAt  time.Time
}

func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		jobs:   make(map[int]*job),
		logger: logging.OrNop(logger),
		kill:   runner.KillProcessGroup,
	}
}

// Add takes ownership of proc and starts reaping it in the background. If
// the pid is already registered the process group is killed and reaped, so a
// failed Add never leaves an untracked child behind.
func (r *Registry) Add(proc *runner.Process) (int, error) {
	if proc == nil || proc.Cmd == nil || proc.Cmd.Process == nil {
		return 0, errors.New("process is not started")
	}
	j := &job{
		id:        proc.PID(),
		spec:      proc.Spec,
		cmd:       proc.Cmd,
		startedAt: proc.StartedAt,
		done:      make(chan struct{}),
	}
	if j.startedAt.IsZero() {
		j.startedAt = time.Now().UTC()
	}

	r.mu.Lock()
	if _, exists := r.jobs[j.id]; exists {
		r.mu.Unlock()
		r.discard(j)
		return 0, fmt.Errorf("job %d already registered", j.id)
	}
	r.jobs[j.id] = j
	r.mu.Unlock()

	go func() {
		err := j.cmd.Wait()
		j.waitErr = err
		j.exitedAt = time.Now().UTC()
		close(j.done)
		r.logger.Info("job_exited", logging.F("job_id", j.id), logging.F("command", j.spec.Program))
	}()

	r.logger.Info("job_started",
		logging.F("job_id", j.id),
		logging.F("command", j.spec.Program),
		logging.F("args", j.spec.Args),
	)
	return j.id, nil
}

func (r *Registry) discard(j *job) {
	if err := r.kill(j.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Warn("job_discard_kill_failed", logging.F("job_id", j.id), logging.Err(err))
	}
	go func() {
		_ = j.cmd.Wait()
	}()
	r.logger.Warn("job_discarded", logging.F("job_id", j.id), logging.F("command", j.spec.Program))
}

func (r *Registry) List() []types.JobSummary {
	r.mu.Lock()
	snapshot := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		snapshot = append(snapshot, j)
	}
	r.mu.Unlock()

	out := make([]types.JobSummary, 0, len(snapshot))
	for _, j := range snapshot {
		out = append(out, j.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Terminate removes the job and kills its process group. It reports false
// for ids that are not registered. A job whose leader already exited counts
// as terminated; the group is still signalled so that leftover children die
// with it.
func (r *Registry) Terminate(id int) (bool, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	if j.exited() {
		// The leader is gone but its process group may still hold children.
		if err := r.kill(j.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.logger.Debug("job_group_kill_failed", logging.F("job_id", id), logging.Err(err))
		}
		r.logger.Info("job_terminated", logging.F("job_id", id), logging.F("already_exited", true))
		return true, nil
	}
	if err := r.kill(j.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return true, nil
		}
		r.logger.Warn("job_terminate_failed", logging.F("job_id", id), logging.Err(err))
		return false, fmt.Errorf("terminate job %d: %w", id, err)
	}
	r.logger.Info("job_terminated", logging.F("job_id", id))
	return true, nil
}

// Shutdown kills every registered job and empties the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := r.jobs
	r.jobs = make(map[int]*job)
	r.mu.Unlock()
	for id, j := range all {
		if err := r.kill(j.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) && !j.exited() {
			r.logger.Warn("job_shutdown_kill_failed", logging.F("job_id", id), logging.Err(err))
		}
	}
}

func (j *job) exited() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

func (j *job) summary() types.JobSummary {
	summary := types.JobSummary{
		ID:        j.id,
		Command:   j.spec.Program,
		Args:      append([]string(nil), j.spec.Args...),
		Cwd:       j.spec.Dir,
		Status:    types.JobStatusRunning,
		StartedAt: j.startedAt,
	}
	if !j.exited() {
		return summary
	}
	exitedAt := j.exitedAt
	summary.ExitedAt = &exitedAt
	summary.Status = types.JobStatusExited
	var exitErr *exec.ExitError
	switch {
	case j.waitErr == nil:
		code := 0
		summary.ExitCode = &code
	case errors.As(j.waitErr, &exitErr):
		code := exitErr.ExitCode()
		summary.ExitCode = &code
	default:
		summary.Status = types.JobStatusError
		summary.Error = j.waitErr.Error()
	}
	return summary
}
