package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hostexec/internal/types"
)

func historyEntry(id uint64, command string) types.HistoryEntry {
	return types.HistoryEntry{
		ID:        id,
		Command:   command,
		Args:      []string{"-n", command},
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Add(time.Duration(id) * time.Second),
		Success:   id%2 == 0,
		ExitCode:  int(id % 2),
	}
}

func TestBboltHistoryStoreAppendAndLoad(t *testing.T) {
	repo, err := NewBboltRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewBboltRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	for id := uint64(1); id <= 3; id++ {
		if err := repo.History().AppendHistory(ctx, historyEntry(id, "echo"), 10); err != nil {
			t.Fatalf("append %d: %v", id, err)
		}
	}
	entries, err := repo.History().LoadHistory(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.ID != uint64(i+1) {
			t.Fatalf("entries out of order: %#v", entries)
		}
	}
	if entries[1].Args[1] != "echo" || !entries[1].Success {
		t.Fatalf("unexpected round trip: %#v", entries[1])
	}
}

func TestBboltHistoryStorePrunesOldest(t *testing.T) {
	repo, err := NewBboltRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewBboltRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	// Ids above 255 catch keys that do not sort numerically.
	for id := uint64(250); id <= 260; id++ {
		if err := repo.History().AppendHistory(ctx, historyEntry(id, "ls"), 4); err != nil {
			t.Fatalf("append %d: %v", id, err)
		}
	}
	entries, err := repo.History().LoadHistory(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 4 || entries[0].ID != 257 || entries[3].ID != 260 {
		t.Fatalf("unexpected retained entries: %#v", entries)
	}
	latest, err := repo.History().LoadHistory(ctx, 2)
	if err != nil {
		t.Fatalf("load limit: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != 259 || latest[1].ID != 260 {
		t.Fatalf("unexpected limited load: %#v", latest)
	}
}

func TestBboltHistoryStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	repo, err := NewBboltRepository(path)
	if err != nil {
		t.Fatalf("NewBboltRepository: %v", err)
	}
	if err := repo.History().AppendHistory(ctx, historyEntry(7, "pwd"), 10); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenRepository(RepositoryPaths{DBPath: path}, RepositoryBackendBbolt)
	if err != nil {
		t.Fatalf("OpenRepository: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.History().LoadHistory(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 7 || entries[0].Command != "pwd" {
		t.Fatalf("unexpected entries after reopen: %#v", entries)
	}
}

func TestBboltHistoryStoreRejectsZeroID(t *testing.T) {
	repo, err := NewBboltRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewBboltRepository: %v", err)
	}
	defer repo.Close()
	if err := repo.History().AppendHistory(context.Background(), types.HistoryEntry{Command: "x"}, 10); err == nil {
		t.Fatalf("expected error for zero id")
	}
}
