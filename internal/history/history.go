// Package history keeps a bounded, ordered log of executed commands.
//
// Entry ids are assigned at append time, grow monotonically and are never
// handed out twice, even after the entry they named has been evicted.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hostexec/internal/execerr"
	"hostexec/internal/logging"
	"hostexec/internal/types"
)

const (
	DefaultCapacity = 100
	DefaultLimit    = 20
)

// Store persists entries so the log survives restarts.
type Store interface {
	AppendHistory(ctx context.Context, entry types.HistoryEntry, keep int) error
	LoadHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// Executor runs a rebuilt command during Replay.
type Executor interface {
	Execute(ctx context.Context, spec types.CommandSpec) (types.CommandOutcome, error)
}

type Log struct {
	mu       sync.Mutex
	ring     []types.HistoryEntry
	head     int
	size     int
	nextID   uint64
	capacity int
	store    Store
	logger   logging.Logger
	now      func() time.Time
}

type Option func(*Log)

func WithCapacity(capacity int) Option {
	return func(l *Log) {
		if capacity > 0 {
			l.capacity = capacity
		}
	}
}

func WithStore(store Store) Option {
	return func(l *Log) { l.store = store }
}

func WithLogger(logger logging.Logger) Option {
	return func(l *Log) { l.logger = logging.OrNop(logger) }
}

// NewLog builds a log and, when a store is configured, seeds it with the
// most recent stored entries.
func NewLog(ctx context.Context, opts ...Option) (*Log, error) {
	l := &Log{
		capacity: DefaultCapacity,
		nextID:   1,
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.ring = make([]types.HistoryEntry, l.capacity)
	if l.store == nil {
		return l, nil
	}
	stored, err := l.store.LoadHistory(ctx, l.capacity)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	// Concurrent appends may reach the store out of id order.
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })
	for _, entry := range stored {
		l.push(entry)
		if entry.ID >= l.nextID {
			l.nextID = entry.ID + 1
		}
	}
	return l, nil
}

func (l *Log) Capacity() int {
	return l.capacity
}

// Append assigns the next id to entry, evicting the oldest entry when full.
func (l *Log) Append(ctx context.Context, entry types.HistoryEntry) types.HistoryEntry {
	l.mu.Lock()
	entry.ID = l.nextID
	l.nextID++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	entry.Args = append([]string(nil), entry.Args...)
	l.push(entry)
	store := l.store
	l.mu.Unlock()

	if store != nil {
		if err := store.AppendHistory(ctx, entry, l.capacity); err != nil {
			l.logger.Warn("history_persist_failed", logging.F("history_id", entry.ID), logging.Err(err))
		}
	}
	return cloneEntry(entry)
}

// Record appends the outcome of running spec.
func (l *Log) Record(ctx context.Context, spec types.CommandSpec, outcome types.CommandOutcome) types.HistoryEntry {
	return l.Append(ctx, types.HistoryEntry{
		Command:  spec.Program,
		Args:     spec.Args,
		Cwd:      spec.Dir,
		Success:  outcome.Success,
		ExitCode: outcome.ExitCode,
	})
}

func (l *Log) push(entry types.HistoryEntry) {
	if l.size < l.capacity {
		l.ring[(l.head+l.size)%l.capacity] = entry
		l.size++
		return
	}
	l.ring[l.head] = entry
	l.head = (l.head + 1) % l.capacity
}

// at returns the i-th oldest entry. Callers hold l.mu.
func (l *Log) at(i int) types.HistoryEntry {
	return l.ring[(l.head+i)%l.capacity]
}

// Tail returns the most recent min(limit, capacity) entries, oldest first.
// A non-positive limit selects DefaultLimit.
func (l *Log) Tail(limit int) []types.HistoryEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > l.size {
		limit = l.size
	}
	out := make([]types.HistoryEntry, 0, limit)
	for i := l.size - limit; i < l.size; i++ {
		out = append(out, cloneEntry(l.at(i)))
	}
	return out
}

// Search matches query case-insensitively against the command and each
// argument, keeping log order.
func (l *Log) Search(query string) []types.HistoryEntry {
	needle := strings.ToLower(query)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.HistoryEntry, 0)
	for i := 0; i < l.size; i++ {
		entry := l.at(i)
		if matches(entry, needle) {
			out = append(out, cloneEntry(entry))
		}
	}
	return out
}

func matches(entry types.HistoryEntry, needle string) bool {
	if strings.Contains(strings.ToLower(entry.Command), needle) {
		return true
	}
	for _, arg := range entry.Args {
		if strings.Contains(strings.ToLower(arg), needle) {
			return true
		}
	}
	return false
}

func (l *Log) Get(id uint64) (types.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size == 0 || id < l.at(0).ID || id > l.at(l.size-1).ID {
		return types.HistoryEntry{}, execerr.NotFound("history", fmt.Sprintf("command %d not found in history", id))
	}
	// Ids are contiguous within the ring except across restarts with a
	// trimmed store, so fall back to a scan.
	for i := 0; i < l.size; i++ {
		if entry := l.at(i); entry.ID == id {
			return cloneEntry(entry), nil
		}
	}
	return types.HistoryEntry{}, execerr.NotFound("history", fmt.Sprintf("command %d not found in history", id))
}

// Replay runs entry id again through exec. Only the program, arguments and
// working directory are reused; environment overrides and the stderr merge
// flag were never recorded.
func (l *Log) Replay(ctx context.Context, id uint64, exec Executor) (types.CommandOutcome, error) {
	entry, err := l.Get(id)
	if err != nil {
		return types.CommandOutcome{}, err
	}
	l.logger.Info("history_replay", logging.F("history_id", id), logging.F("command", entry.Command))
	return exec.Execute(ctx, types.CommandSpec{
		Program: entry.Command,
		Args:    entry.Args,
		Dir:     entry.Cwd,
	})
}

func cloneEntry(entry types.HistoryEntry) types.HistoryEntry {
	entry.Args = append([]string(nil), entry.Args...)
	return entry
}
