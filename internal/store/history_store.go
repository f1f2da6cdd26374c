package store

import (
	"context"
	"errors"
	"os"
	"sync"

	"hostexec/internal/types"
)

// HistoryStore persists history entries in id order. AppendHistory keeps at
// most keep entries, dropping the oldest.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry types.HistoryEntry, keep int) error
	LoadHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

type historyFile struct {
	Entries []types.HistoryEntry `json:"entries"`
}

type FileHistoryStore struct {
	path string
	mu   sync.Mutex
}

func NewFileHistoryStore(path string) *FileHistoryStore {
	return &FileHistoryStore{path: path}
}

func (s *FileHistoryStore) AppendHistory(ctx context.Context, entry types.HistoryEntry, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	file.Entries = append(file.Entries, cloneHistoryEntry(entry))
	if keep > 0 && len(file.Entries) > keep {
		file.Entries = append([]types.HistoryEntry(nil), file.Entries[len(file.Entries)-keep:]...)
	}
	return writeJSONAtomic(s.path, file)
}

func (s *FileHistoryStore) LoadHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	entries := file.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]types.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, cloneHistoryEntry(entry))
	}
	return out, nil
}

func (s *FileHistoryStore) load() (*historyFile, error) {
	file := &historyFile{}
	if err := readJSON(s.path, file); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errEmptyFile) {
			return &historyFile{}, nil
		}
		return nil, err
	}
	return file, nil
}

func cloneHistoryEntry(entry types.HistoryEntry) types.HistoryEntry {
	entry.Args = append([]string(nil), entry.Args...)
	return entry
}
