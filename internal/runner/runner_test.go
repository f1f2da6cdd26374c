package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostexec/internal/execerr"
	"hostexec/internal/types"
)

func TestRunEchoHello(t *testing.T) {
	r := New(nil)
	outcome, err := r.Run(context.Background(), types.CommandSpec{Program: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := types.CommandOutcome{ExitCode: 0, Stdout: "hello", Stderr: "", Success: true}
	if outcome != want {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	r := New(nil)
	outcome, err := r.Run(context.Background(), types.CommandSpec{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ExitCode != 3 || outcome.Success {
		t.Fatalf("expected exit 3 and failure, got %#v", outcome)
	}
	if outcome.Stdout != "out" || outcome.Stderr != "err" {
		t.Fatalf("unexpected streams: %#v", outcome)
	}
	if outcome.Success != (outcome.ExitCode == 0) {
		t.Fatalf("success must mirror exit code")
	}
}

func TestRunJoinsLinesWithoutTrailingNewline(t *testing.T) {
	r := New(nil)
	outcome, err := r.Run(context.Background(), types.CommandSpec{
		Program: "sh",
		Args:    []string{"-c", "printf 'a\\nb\\r\\nc\\n'"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Stdout != "a\nb\nc" {
		t.Fatalf("unexpected stdout: %q", outcome.Stdout)
	}
}

func TestRunMergesStderrIntoStdout(t *testing.T) {
	r := New(nil)
	outcome, err := r.Run(context.Background(), types.CommandSpec{
		Program:     "sh",
		Args:        []string{"-c", "echo one >&2"},
		MergeStderr: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Stdout != "one" || outcome.Stderr != "" {
		t.Fatalf("expected stderr merged into stdout, got %#v", outcome)
	}
}

func TestRunAppliesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	outcome, err := r.Run(context.Background(), types.CommandSpec{
		Program: "sh",
		Args:    []string{"-c", "pwd; echo \"$HOSTEXEC_TEST_VALUE\""},
		Dir:     dir,
		Env:     map[string]string{"HOSTEXEC_TEST_VALUE": "from-env"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(outcome.Stdout, "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected stdout: %q", outcome.Stdout)
	}
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	wantDir, _ := filepath.EvalSymlinks(dir)
	if gotDir != wantDir {
		t.Fatalf("unexpected cwd: got=%q want=%q", gotDir, wantDir)
	}
	if lines[1] != "from-env" {
		t.Fatalf("unexpected env value: %q", lines[1])
	}
}

func TestRunSpawnFailure(t *testing.T) {
	r := New(nil)
	_, err := r.Run(context.Background(), types.CommandSpec{Program: "hostexec-definitely-missing-binary"})
	if !execerr.Is(err, execerr.KindSpawn) {
		t.Fatalf("expected spawn error, got %v", err)
	}
}

func TestRunTimeoutKeepsPartialOutput(t *testing.T) {
	r := New(nil)
	start := time.Now()
	_, err := r.Run(context.Background(), types.CommandSpec{
		Program: "sh",
		Args:    []string{"-c", "echo started; sleep 5"},
		Timeout: 500 * time.Millisecond,
	})
	if !execerr.Is(err, execerr.KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
	if !strings.Contains(err.Error(), "0.5s") {
		t.Fatalf("expected timeout duration in message, got %q", err.Error())
	}
	execErr := err.(*execerr.Error)
	if execErr.Partial == nil {
		t.Fatalf("expected partial output")
	}
	if execErr.Partial.Stdout != "started" {
		t.Fatalf("unexpected partial stdout: %q", execErr.Partial.Stdout)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	r := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, types.CommandSpec{Program: "sleep", Args: []string{"5"}})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if execerr.Is(err, execerr.KindTimeout) {
		t.Fatalf("cancellation should not be reported as timeout: %v", err)
	}
}

func TestStartDetachesProcess(t *testing.T) {
	r := New(nil)
	proc, err := r.Start(types.CommandSpec{Program: "sleep", Args: []string{"5"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = KillProcessGroup(proc.Cmd.Process)
		_ = proc.Cmd.Wait()
	})
	if proc.PID() <= 0 {
		t.Fatalf("expected pid, got %d", proc.PID())
	}
	if proc.Cmd.Stdout != nil || proc.Cmd.Stderr != nil {
		t.Fatalf("expected discarded streams")
	}
	if proc.StartedAt.IsZero() {
		t.Fatalf("expected start time")
	}
}

func TestStartSpawnFailure(t *testing.T) {
	r := New(nil)
	_, err := r.Start(types.CommandSpec{Program: filepath.Join(os.TempDir(), "hostexec-missing", "bin")})
	if !execerr.Is(err, execerr.KindSpawn) {
		t.Fatalf("expected spawn error, got %v", err)
	}
}
