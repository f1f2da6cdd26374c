package daemon

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"hostexec/internal/history"
	"hostexec/internal/jobs"
	"hostexec/internal/logging"
	"hostexec/internal/runner"
	"hostexec/internal/shell"
	"hostexec/internal/types"
)

// CommandService owns the runner, the job registry, the history log and the
// interactive session for one daemon process.
type CommandService struct {
	runner         *runner.Runner
	jobs           *jobs.Registry
	history        *history.Log
	session        *shell.Session
	defaultTimeout time.Duration
	historyLimit   int
	logger         logging.Logger
}

type CommandServiceConfig struct {
	Runner  *runner.Runner
	Jobs    *jobs.Registry
	History *history.Log
	Session *shell.Session
	// DefaultTimeout bounds one-shot runs that carry no timeout of their own.
	DefaultTimeout time.Duration
	HistoryLimit   int
	Logger         logging.Logger
}

func NewCommandService(cfg CommandServiceConfig) (*CommandService, error) {
	logger := logging.OrNop(cfg.Logger)
	svc := &CommandService{
		runner:         cfg.Runner,
		jobs:           cfg.Jobs,
		history:        cfg.History,
		session:        cfg.Session,
		defaultTimeout: cfg.DefaultTimeout,
		historyLimit:   cfg.HistoryLimit,
		logger:         logger,
	}
	if svc.runner == nil {
		svc.runner = runner.New(logger)
	}
	if svc.jobs == nil {
		svc.jobs = jobs.NewRegistry(logger)
	}
	if svc.history == nil {
		log, err := history.NewLog(context.Background(), history.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		svc.history = log
	}
	if svc.session == nil {
		session, err := shell.New(shell.Config{}, logger)
		if err != nil {
			return nil, err
		}
		svc.session = session
	}
	if svc.historyLimit <= 0 {
		svc.historyLimit = history.DefaultLimit
	}
	return svc, nil
}

// Pending is an in-flight asynchronous run.
type Pending struct {
	done    chan struct{}
	outcome types.CommandOutcome
	err     error
}

// Wait blocks until the run finishes or ctx ends. Ending ctx does not stop
// the run; cancel the context given to ExecuteAsync for that.
func (p *Pending) Wait(ctx context.Context) (types.CommandOutcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return types.CommandOutcome{}, ctx.Err()
	}
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Execute runs spec to completion and records it in history. The caller's
// cancellation is ignored; only the timeout can cut the run short.
func (s *CommandService) Execute(ctx context.Context, spec types.CommandSpec) (types.CommandOutcome, error) {
	spec, err := s.prepare(spec)
	if err != nil {
		return types.CommandOutcome{}, err
	}
	return s.run(context.WithoutCancel(ctx), spec)
}

// ExecuteAsync starts spec and returns immediately. Cancelling ctx kills the
// child.
func (s *CommandService) ExecuteAsync(ctx context.Context, spec types.CommandSpec) (*Pending, error) {
	spec, err := s.prepare(spec)
	if err != nil {
		return nil, err
	}
	pending := &Pending{done: make(chan struct{})}
	go func() {
		defer close(pending.done)
		pending.outcome, pending.err = s.run(ctx, spec)
	}()
	return pending, nil
}

func (s *CommandService) run(ctx context.Context, spec types.CommandSpec) (types.CommandOutcome, error) {
	outcome, err := s.runner.Run(ctx, spec)
	if err != nil {
		return types.CommandOutcome{}, err
	}
	entry := s.history.Record(ctx, spec, outcome)
	s.logger.Debug("history_recorded", logging.F("history_id", entry.ID), logging.F("command", spec.Program))
	return outcome, nil
}

func (s *CommandService) prepare(spec types.CommandSpec) (types.CommandSpec, error) {
	spec.Program = strings.TrimSpace(spec.Program)
	if spec.Program == "" {
		return spec, invalidError("command is required", nil)
	}
	if spec.Timeout < 0 {
		return spec, invalidError("timeout must not be negative", nil)
	}
	if spec.Timeout == 0 {
		spec.Timeout = s.defaultTimeout
	}
	spec.Args = append([]string(nil), spec.Args...)
	return spec, nil
}

// ExecuteBackground spawns spec detached and registers it. The job id is the
// child's pid.
func (s *CommandService) ExecuteBackground(ctx context.Context, spec types.CommandSpec) (types.JobSummary, error) {
	spec.Program = strings.TrimSpace(spec.Program)
	if spec.Program == "" {
		return types.JobSummary{}, invalidError("command is required", nil)
	}
	proc, err := s.runner.Start(spec)
	if err != nil {
		return types.JobSummary{}, err
	}
	id, err := s.jobs.Add(proc)
	if err != nil {
		return types.JobSummary{}, unavailableError("failed to register job", err)
	}
	return s.jobSummary(id), nil
}

func (s *CommandService) jobSummary(id int) types.JobSummary {
	for _, job := range s.jobs.List() {
		if job.ID == id {
			return job
		}
	}
	return types.JobSummary{ID: id, Status: types.JobStatusRunning}
}

func (s *CommandService) ListJobs(ctx context.Context) []types.JobSummary {
	return s.jobs.List()
}

func (s *CommandService) TerminateJob(ctx context.Context, id int) (bool, error) {
	if id <= 0 {
		return false, invalidError("job id must be positive", nil)
	}
	terminated, err := s.jobs.Terminate(id)
	if err != nil {
		return false, unavailableError("failed to terminate job", err)
	}
	if terminated {
		s.logger.Info("job_terminated", logging.F("job_id", id))
	}
	return terminated, nil
}

// History returns the most recent entries, oldest first. limit <= 0 uses the
// configured default.
func (s *CommandService) History(ctx context.Context, limit int) []types.HistoryEntry {
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.history.Tail(limit)
}

func (s *CommandService) SearchHistory(ctx context.Context, query string) []types.HistoryEntry {
	return s.history.Search(query)
}

func (s *CommandService) HistoryEntry(ctx context.Context, id uint64) (types.HistoryEntry, error) {
	return s.history.Get(id)
}

// Rerun replays history entry id through Execute, which records a new entry.
func (s *CommandService) Rerun(ctx context.Context, id uint64) (types.CommandOutcome, error) {
	return s.history.Replay(ctx, id, s)
}

func (s *CommandService) StartSession(ctx context.Context) (types.ShellStatus, error) {
	if err := s.session.Start(); err != nil {
		return s.session.Status(), err
	}
	return s.session.Status(), nil
}

func (s *CommandService) StopSession(ctx context.Context) (types.ShellStatus, error) {
	if err := s.session.Stop(); err != nil {
		return s.session.Status(), err
	}
	return s.session.Status(), nil
}

func (s *CommandService) RestartSession(ctx context.Context) (types.ShellStatus, error) {
	if err := s.session.Restart(); err != nil {
		return s.session.Status(), err
	}
	return s.session.Status(), nil
}

// RunInSession does not start the session; call StartSession first.
func (s *CommandService) RunInSession(ctx context.Context, text string) (types.CommandOutcome, error) {
	return s.session.Run(text)
}

func (s *CommandService) SessionStatus(ctx context.Context) types.ShellStatus {
	return s.session.Status()
}

// Environment returns the daemon's environment as a map.
func (s *CommandService) Environment(ctx context.Context) map[string]string {
	env := map[string]string{}
	for _, pair := range os.Environ() {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

func (s *CommandService) WorkingDirectory(ctx context.Context) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", unavailableError("failed to read working directory", err)
	}
	return dir, nil
}

// Which resolves command against the daemon's PATH. A missing command is not
// an error.
func (s *CommandService) Which(ctx context.Context, command string) (string, bool, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false, invalidError("command is required", nil)
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", false, nil
	}
	return path, true, nil
}

// monitorColumns are the ps columns reported for a monitored process.
const monitorColumns = "pid,ppid,user,%cpu,%mem,vsz,rss,tty,stat,start,time,command"

// MonitorProcess runs ps for pid, which need not be a registered job. A pid
// that does not exist yields an unsuccessful outcome rather than an error.
// The run is not recorded in history.
func (s *CommandService) MonitorProcess(ctx context.Context, pid int) (types.CommandOutcome, error) {
	if pid <= 0 {
		return types.CommandOutcome{}, invalidError("pid must be positive", nil)
	}
	return s.runner.Run(ctx, types.CommandSpec{
		Program: "ps",
		Args:    []string{"-p", strconv.Itoa(pid), "-o", monitorColumns},
		Timeout: s.defaultTimeout,
	})
}

// Close stops the session and kills every background job.
func (s *CommandService) Close() {
	s.session.Close()
	s.jobs.Shutdown()
}
