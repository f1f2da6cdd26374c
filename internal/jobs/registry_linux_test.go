package jobs

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"hostexec/internal/runner"
	"hostexec/internal/types"
)

func TestTerminateReapsLeftoverGroupMembers(t *testing.T) {
	reg := NewRegistry(nil)
	t.Cleanup(reg.Shutdown)

	marker := filepath.Join(t.TempDir(), "child.pid")
	id := startJob(t, reg, "sh", "-c", "sleep 30 & echo $! > "+marker)
	waitForStatus(t, reg, id, types.JobStatusExited)

	var childPID int
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(marker)
		if err == nil {
			if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil && pid > 0 {
				childPID = pid
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if childPID == 0 {
		t.Fatalf("child pid never written")
	}
	pgid, err := unix.Getpgid(childPID)
	if err != nil {
		t.Fatalf("Getpgid: %v", err)
	}
	if pgid != id {
		t.Fatalf("expected child in job group %d, got %d", id, pgid)
	}

	if ok, err := reg.Terminate(id); err != nil || !ok {
		t.Fatalf("Terminate: ok=%v err=%v", ok, err)
	}
	// The orphan may linger as a zombie under init, so check group membership
	// through the signal rather than pid existence.
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(-id, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		if state, err := procState(childPID); err != nil || state == "Z" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("child %d of job %d survived terminate", childPID, id)
}

// procState returns the single-letter state from /proc/<pid>/stat.
func procState(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	if len(fields) == 0 {
		return "", errors.New("malformed stat")
	}
	return fields[0], nil
}

func TestAddDuplicatePIDKillsAndReapsChild(t *testing.T) {
	reg := NewRegistry(nil)
	t.Cleanup(reg.Shutdown)

	proc, err := runner.New(nil).Start(types.CommandSpec{Program: "sleep", Args: []string{"30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := proc.PID()
	stale := &job{id: pid, cmd: &exec.Cmd{}, done: make(chan struct{})}
	close(stale.done)
	reg.mu.Lock()
	reg.jobs[pid] = stale
	reg.mu.Unlock()

	if _, err := reg.Add(proc); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate pid error, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("rejected child %d was left running or unreaped", pid)
}
