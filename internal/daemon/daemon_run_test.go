package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
)

func TestDaemonRunStopsOnCancelledContext(t *testing.T) {
	svc, err := NewCommandService(CommandServiceConfig{})
	if err != nil {
		t.Fatalf("NewCommandService: %v", err)
	}
	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	d := New(Options{Addr: "127.0.0.1:0", Token: "token", Version: "test", LockPath: lockPath, Service: svc})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The lock is released on exit.
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("expected lock to be free after Run, locked=%v err=%v", locked, err)
	}
	_ = lock.Unlock()
}

func TestDaemonRunRefusesSecondInstance(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	svc, err := NewCommandService(CommandServiceConfig{})
	if err != nil {
		t.Fatalf("NewCommandService: %v", err)
	}
	d := New(Options{Addr: "127.0.0.1:0", Token: "token", LockPath: lockPath, Service: svc})
	if err := d.Run(context.Background()); !errors.Is(err, ErrDaemonRunning) {
		t.Fatalf("expected ErrDaemonRunning, got %v", err)
	}
}

func TestDaemonRunRequiresService(t *testing.T) {
	d := New(Options{Addr: "127.0.0.1:0"})
	if err := d.Run(context.Background()); err == nil {
		t.Fatalf("expected error without a service")
	}
}
