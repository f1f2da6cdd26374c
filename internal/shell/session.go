// Package shell multiplexes logical commands over one long-lived shell
// process.
//
// Every command is followed by an echo of a sentinel token on stdout and a
// stderr variant of it on stderr; a command is complete once both have been
// read back. If the shell closes its stderr (exec 2>&1, exec 2>/dev/null)
// only stdout is awaited from then on, and stderr markers that end up on
// stdout are dropped. A Session is in one of three states:
//
//   - not_started: no shell process. Start is allowed; Run and Stop fail.
//   - running: a shell is alive and idle between commands.
//   - timed_out: a command overran the timeout. The shell is left as is and
//     every Run fails until Stop (or Restart) discards it.
//
// The session lock is held for the whole of Run, so concurrent callers are
// serialized and never share a sentinel scan.
package shell

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostexec/internal/execerr"
	"hostexec/internal/logging"
	"hostexec/internal/runner"
	"hostexec/internal/types"
)

const (
	DefaultShell   = "/bin/bash"
	DefaultTimeout = 120 * time.Second

	readChunkSize = 4096
	chunkBacklog  = 64
)

type Config struct {
	Shell    string
	Args     []string
	Dir      string
	Timeout  time.Duration
	Sentinel string
}

type Session struct {
	mu       sync.Mutex
	shell    string
	args     []string
	dir      string
	timeout  time.Duration
	sentinel string
	logger   logging.Logger

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	pipes    []io.Closer
	stdout   <-chan []byte
	stderr   <-chan []byte
	exited   <-chan struct{}
	quit     chan struct{}
	carryOut []byte
	carryErr []byte

	statusMu sync.RWMutex
	status   types.ShellStatus
}

func New(cfg Config, logger logging.Logger) (*Session, error) {
	shell := strings.TrimSpace(cfg.Shell)
	if shell == "" {
		shell = DefaultShell
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sentinel := strings.TrimSpace(cfg.Sentinel)
	if sentinel == "" {
		sentinel = NewSentinel()
	}
	if strings.ContainsAny(sentinel, "'\n\r") {
		return nil, fmt.Errorf("sentinel %q must not contain quotes or newlines", sentinel)
	}
	s := &Session{
		shell:    shell,
		args:     append([]string(nil), cfg.Args...),
		dir:      cfg.Dir,
		timeout:  timeout,
		sentinel: sentinel,
		logger:   logging.OrNop(logger).With(logging.F("component", "shell_session")),
	}
	s.status = types.ShellStatus{
		State:          types.ShellStateNotStarted,
		Shell:          shell,
		TimeoutSeconds: timeout.Seconds(),
	}
	return s, nil
}

// NewSentinel returns a token that will not plausibly appear in command
// output.
func NewSentinel() string {
	return "__HOSTEXEC_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")) + "__"
}

func (s *Session) Sentinel() string {
	return s.sentinel
}

func (s *Session) Status() types.ShellStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	status := s.status
	if status.StartedAt != nil {
		startedAt := *status.StartedAt
		status.StartedAt = &startedAt
	}
	return status
}

func (s *Session) state() types.ShellState {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status.State
}

func (s *Session) updateStatus(fn func(*types.ShellStatus)) {
	s.statusMu.Lock()
	fn(&s.status)
	s.statusMu.Unlock()
}

// Start spawns the shell. It is a no-op while a shell is running and fails
// while the session is timed out.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state() {
	case types.ShellStateRunning:
		return nil
	case types.ShellStateTimedOut:
		return execerr.InvalidState("session start", "session timed out; stop or restart it first")
	}
	return s.startLocked()
}

func (s *Session) startLocked() error {
	cmd := exec.Command(s.shell, s.args...)
	if s.dir != "" {
		cmd.Dir = s.dir
	}
	runner.ConfigureProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return execerr.IO("session start", "stdin pipe", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return execerr.IO("session start", "stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return execerr.IO("session start", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn("session_start_failed", logging.F("shell", s.shell), logging.Err(err))
		return execerr.Spawn("session start", err)
	}

	quit := make(chan struct{})
	exited := make(chan struct{})
	s.cmd = cmd
	s.stdin = stdin
	s.pipes = []io.Closer{stdoutPipe, stderrPipe}
	s.quit = quit
	s.exited = exited
	s.stdout = pump(stdoutPipe, quit)
	s.stderr = pump(stderrPipe, quit)
	s.carryOut = nil
	s.carryErr = nil
	// cmd.Wait would close the read pipes under the pumps and would block
	// while a background child still holds them, so the shell is reaped
	// directly and the pipes are closed on teardown.
	go func() {
		_, _ = cmd.Process.Wait()
		close(exited)
	}()

	startedAt := time.Now().UTC()
	s.updateStatus(func(status *types.ShellStatus) {
		status.State = types.ShellStateRunning
		status.PID = cmd.Process.Pid
		status.StartedAt = &startedAt
		status.Commands = 0
	})
	s.logger.Info("session_started", logging.F("shell", s.shell), logging.F("pid", cmd.Process.Pid))
	return nil
}

// Stop kills the shell. Kill failures are ignored.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() == types.ShellStateNotStarted {
		return execerr.InvalidState("session stop", "session not started")
	}
	s.teardownLocked("stopped")
	return nil
}

// Restart discards any current shell, timed out or not, and starts a new one.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() != types.ShellStateNotStarted {
		s.teardownLocked("restarted")
	}
	return s.startLocked()
}

// Close stops the shell if one exists.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state() != types.ShellStateNotStarted {
		s.teardownLocked("closed")
	}
}

func (s *Session) teardownLocked(reason string) {
	if s.quit != nil {
		close(s.quit)
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	for _, pipe := range s.pipes {
		_ = pipe.Close()
	}
	pid := 0
	if s.cmd != nil && s.cmd.Process != nil {
		pid = s.cmd.Process.Pid
		_ = runner.KillProcessGroup(s.cmd.Process)
	}
	s.cmd = nil
	s.stdin = nil
	s.pipes = nil
	s.stdout = nil
	s.stderr = nil
	s.exited = nil
	s.quit = nil
	s.carryOut = nil
	s.carryErr = nil
	s.updateStatus(func(status *types.ShellStatus) {
		status.State = types.ShellStateNotStarted
		status.PID = 0
		status.StartedAt = nil
	})
	s.logger.Info("session_stopped", logging.F("pid", pid), logging.F("reason", reason))
}

// Run sends text to the shell and blocks until its output is complete or the
// session timeout elapses. The exit code is always 0: the shell does not
// report per-command status. text runs with stdin redirected from /dev/null,
// so commands that read input see end-of-file instead of the protocol.
func (s *Session) Run(text string) (types.CommandOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state() {
	case types.ShellStateNotStarted:
		return types.CommandOutcome{}, execerr.InvalidState("session run", "session not started")
	case types.ShellStateTimedOut:
		return types.CommandOutcome{}, execerr.InvalidState("session run", "session timed out; restart it")
	}
	if strings.TrimSpace(text) == "" {
		return types.CommandOutcome{}, execerr.Invalid("session run", "command is required")
	}

	if _, err := io.WriteString(s.stdin, s.frame(text)); err != nil {
		s.teardownLocked("write_failed")
		return types.CommandOutcome{}, execerr.IO("session run", "failed to send command", err)
	}

	out := newSentinelScan(s.outMarker(), s.carryOut)
	out.drop = []byte(s.errMarker())
	errOut := newSentinelScan(s.errMarker(), s.carryErr)
	stdout, stderr := s.stdout, s.stderr
	if stderr == nil {
		errOut.close()
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for !out.done || !errOut.done {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				return s.shellExitedLocked(out, errOut)
			}
			out.write(chunk)
		case chunk, ok := <-stderr:
			if !ok {
				// The shell redirected its stderr away; it is still alive.
				s.logger.Info("session_stderr_closed", logging.F("command", text))
				s.stderr = nil
				stderr = nil
				errOut.close()
				continue
			}
			errOut.write(chunk)
		case <-s.exited:
			return s.shellExitedLocked(out, errOut)
		case <-timer.C:
			s.updateStatus(func(status *types.ShellStatus) {
				status.State = types.ShellStateTimedOut
			})
			s.logger.Warn("session_timed_out",
				logging.F("timeout", s.timeout),
				logging.F("command", text),
			)
			err := execerr.Timeout("session run", fmt.Sprintf("command timed out after %gs", s.timeout.Seconds()))
			err.Partial = &execerr.Partial{Stdout: string(out.partial()), Stderr: string(errOut.partial())}
			return types.CommandOutcome{}, err
		}
	}

	s.carryOut = out.rest
	s.carryErr = errOut.rest
	s.updateStatus(func(status *types.ShellStatus) {
		status.Commands++
	})
	return types.CommandOutcome{
		ExitCode: 0,
		Stdout:   strings.TrimSuffix(string(out.result()), "\n"),
		Stderr:   strings.TrimSuffix(string(errOut.result()), "\n"),
		Success:  true,
	}, nil
}

// frame groups text so the shell parses all of it before running any of it
// and feeds it /dev/null as input. The leading ":" keeps a comment-only text
// from leaving the group empty. The markers go on their own line so that
// commands ending in "&", ";" or a comment still reach them.
func (s *Session) frame(text string) string {
	return fmt.Sprintf("{ :\n%s\n} </dev/null\necho '%s'; echo '%s' >&2\n",
		strings.TrimRight(text, "\n"), s.outMarker(), s.errMarker())
}

func (s *Session) outMarker() string {
	return s.sentinel
}

// errMarker differs from the stdout marker so that it can be told apart when
// stderr has been folded into stdout.
func (s *Session) errMarker() string {
	return s.sentinel + "ERR"
}

func (s *Session) shellExitedLocked(out, errOut *sentinelScan) (types.CommandOutcome, error) {
	s.teardownLocked("shell_exited")
	err := execerr.IO("session run", "shell exited before the command completed", io.ErrUnexpectedEOF)
	err.Partial = &execerr.Partial{Stdout: string(out.partial()), Stderr: string(errOut.partial())}
	return types.CommandOutcome{}, err
}

// pump forwards reads from r until EOF or quit.
func pump(r io.Reader, quit <-chan struct{}) <-chan []byte {
	ch := make(chan []byte, chunkBacklog)
	go func() {
		defer close(ch)
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case ch <- chunk:
				case <-quit:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// sentinelScan accumulates one stream until a line ending in the marker shows
// up. Lines holding only drop are removed from the output.
type sentinelScan struct {
	marker []byte
	drop   []byte
	acc    []byte
	output []byte
	rest   []byte
	done   bool
}

func newSentinelScan(marker string, carry []byte) *sentinelScan {
	scan := &sentinelScan{marker: []byte(marker + "\n")}
	if len(carry) > 0 {
		scan.write(carry)
	}
	return scan
}

func (s *sentinelScan) write(chunk []byte) {
	if s.done {
		s.rest = append(s.rest, chunk...)
		return
	}
	s.acc = append(s.acc, chunk...)
	idx := bytes.Index(s.acc, s.marker)
	if idx < 0 {
		return
	}
	s.output = s.acc[:idx]
	s.rest = append([]byte(nil), s.acc[idx+len(s.marker):]...)
	s.done = true
}

// close ends the scan for a stream that will not deliver its marker.
func (s *sentinelScan) close() {
	if s.done {
		return
	}
	s.output = s.acc
	s.done = true
}

func (s *sentinelScan) result() []byte {
	return s.strip(s.output)
}

func (s *sentinelScan) partial() []byte {
	return s.strip(s.acc)
}

func (s *sentinelScan) strip(data []byte) []byte {
	if len(s.drop) == 0 || len(data) == 0 {
		return data
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	kept := make([]byte, 0, len(data))
	for _, line := range lines {
		if bytes.Equal(bytes.TrimSuffix(line, []byte("\n")), s.drop) {
			continue
		}
		kept = append(kept, line...)
	}
	return kept
}
