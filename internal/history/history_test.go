package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"hostexec/internal/execerr"
	"hostexec/internal/types"
)

func newTestLog(t *testing.T, opts ...Option) *Log {
	t.Helper()
	log, err := NewLog(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	return log
}

func appendN(log *Log, n int) {
	for i := 0; i < n; i++ {
		log.Append(context.Background(), types.HistoryEntry{
			Command: "echo",
			Args:    []string{fmt.Sprintf("n%d", i)},
		})
	}
}

func TestTailAfterOverflowKeepsLastHundred(t *testing.T) {
	log := newTestLog(t)
	appendN(log, 250)

	entries := log.Tail(100)
	if len(entries) != 100 {
		t.Fatalf("expected 100 entries, got %d", len(entries))
	}
	if entries[0].Args[0] != "n150" || entries[99].Args[0] != "n249" {
		t.Fatalf("unexpected window: first=%v last=%v", entries[0].Args, entries[99].Args)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID <= entries[i-1].ID {
			t.Fatalf("ids must strictly increase: %d then %d", entries[i-1].ID, entries[i].ID)
		}
	}
	if entries[99].ID != 250 {
		t.Fatalf("expected last id 250, got %d", entries[99].ID)
	}
}

func TestTailClampsLimit(t *testing.T) {
	log := newTestLog(t)
	appendN(log, 30)
	if got := len(log.Tail(0)); got != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, got)
	}
	if got := len(log.Tail(1000)); got != 30 {
		t.Fatalf("expected all 30 entries, got %d", got)
	}
	tail := log.Tail(2)
	if tail[0].Args[0] != "n28" || tail[1].Args[0] != "n29" {
		t.Fatalf("expected oldest-to-newest order, got %v %v", tail[0].Args, tail[1].Args)
	}
}

func TestSearchIsCaseInsensitiveOverCommandAndArgs(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	log.Append(ctx, types.HistoryEntry{Command: "Git", Args: []string{"status"}})
	log.Append(ctx, types.HistoryEntry{Command: "ls", Args: []string{"-la", "/TMP"}})
	log.Append(ctx, types.HistoryEntry{Command: "git", Args: []string{"log"}})

	got := log.Search("GIT")
	if len(got) != 2 || got[0].Args[0] != "status" || got[1].Args[0] != "log" {
		t.Fatalf("unexpected search result: %#v", got)
	}
	got = log.Search("tmp")
	if len(got) != 1 || got[0].Command != "ls" {
		t.Fatalf("expected arg match, got %#v", got)
	}
	if got := log.Search("missing"); len(got) != 0 {
		t.Fatalf("expected no matches, got %#v", got)
	}
}

type recordingExecutor struct {
	specs []types.CommandSpec
	log   *Log
}

func (e *recordingExecutor) Execute(ctx context.Context, spec types.CommandSpec) (types.CommandOutcome, error) {
	e.specs = append(e.specs, spec)
	outcome := types.CommandOutcome{ExitCode: 0, Stdout: "again", Success: true}
	if e.log != nil {
		e.log.Record(ctx, spec, outcome)
	}
	return outcome, nil
}

func TestReplayRebuildsSpecAndRecordsNewEntry(t *testing.T) {
	log := newTestLog(t)
	first := log.Append(context.Background(), types.HistoryEntry{
		Command: "make",
		Args:    []string{"test"},
		Cwd:     "/src",
	})
	exec := &recordingExecutor{log: log}

	outcome, err := log.Replay(context.Background(), first.ID, exec)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if outcome.Stdout != "again" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
	if len(exec.specs) != 1 {
		t.Fatalf("expected one execution, got %d", len(exec.specs))
	}
	spec := exec.specs[0]
	if spec.Program != "make" || len(spec.Args) != 1 || spec.Args[0] != "test" || spec.Dir != "/src" {
		t.Fatalf("unexpected replay spec: %#v", spec)
	}
	if spec.Env != nil || spec.MergeStderr {
		t.Fatalf("env and merge flag must not be replayed: %#v", spec)
	}
	tail := log.Tail(10)
	if len(tail) != 2 || tail[1].ID != first.ID+1 {
		t.Fatalf("expected replay to append a new entry, got %#v", tail)
	}
}

func TestReplayEvictedIDIsNotFound(t *testing.T) {
	log := newTestLog(t)
	appendN(log, 101)

	_, err := log.Replay(context.Background(), 1, &recordingExecutor{})
	if !execerr.Is(err, execerr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := log.Get(2); err != nil {
		t.Fatalf("id 2 should still be present: %v", err)
	}
	if _, err := log.Get(500); !execerr.Is(err, execerr.KindNotFound) {
		t.Fatalf("expected not found for unissued id, got %v", err)
	}
}

func TestAppendCopiesArgs(t *testing.T) {
	log := newTestLog(t)
	args := []string{"a"}
	log.Append(context.Background(), types.HistoryEntry{Command: "echo", Args: args})
	args[0] = "mutated"
	if got := log.Tail(1)[0].Args[0]; got != "a" {
		t.Fatalf("entry changed after append: %q", got)
	}
}

type memoryStore struct {
	entries []types.HistoryEntry
	failing bool
}

func (s *memoryStore) AppendHistory(_ context.Context, entry types.HistoryEntry, keep int) error {
	if s.failing {
		return errors.New("disk full")
	}
	s.entries = append(s.entries, entry)
	if len(s.entries) > keep {
		s.entries = s.entries[len(s.entries)-keep:]
	}
	return nil
}

func (s *memoryStore) LoadHistory(_ context.Context, limit int) ([]types.HistoryEntry, error) {
	if len(s.entries) > limit {
		return s.entries[len(s.entries)-limit:], nil
	}
	return s.entries, nil
}

func TestLogResumesIDsFromStore(t *testing.T) {
	store := &memoryStore{}
	first := newTestLog(t, WithStore(store), WithCapacity(5))
	appendN(first, 8)
	if len(store.entries) != 5 {
		t.Fatalf("expected store trimmed to capacity, got %d", len(store.entries))
	}

	second := newTestLog(t, WithStore(store), WithCapacity(5))
	tail := second.Tail(5)
	if len(tail) != 5 || tail[0].ID != 4 || tail[4].ID != 8 {
		t.Fatalf("unexpected reloaded entries: %#v", tail)
	}
	next := second.Append(context.Background(), types.HistoryEntry{Command: "true"})
	if next.ID != 9 {
		t.Fatalf("expected id 9 after reload, got %d", next.ID)
	}
}

func TestAppendSurvivesStoreFailure(t *testing.T) {
	log := newTestLog(t, WithStore(&memoryStore{failing: true}))
	entry := log.Append(context.Background(), types.HistoryEntry{Command: "true"})
	if entry.ID != 1 {
		t.Fatalf("expected id 1, got %d", entry.ID)
	}
	if len(log.Tail(1)) != 1 {
		t.Fatalf("expected in-memory entry despite store failure")
	}
}
