package store

import (
	"errors"
	"strings"
)

const (
	RepositoryBackendFile  = "file"
	RepositoryBackendBbolt = "bbolt"
)

type Repository interface {
	History() HistoryStore
	Backend() string
	Close() error
}

type RepositoryPaths struct {
	HistoryPath string
	DBPath      string
}

type fileRepository struct {
	history HistoryStore
}

func NewFileRepository(paths RepositoryPaths) Repository {
	return &fileRepository{history: NewFileHistoryStore(paths.HistoryPath)}
}

func (r *fileRepository) History() HistoryStore {
	return r.history
}

func (r *fileRepository) Backend() string {
	return RepositoryBackendFile
}

func (r *fileRepository) Close() error {
	return nil
}

func OpenRepository(paths RepositoryPaths, backend string) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", RepositoryBackendBbolt:
		if strings.TrimSpace(paths.DBPath) == "" {
			return nil, errors.New("db path is required for bbolt repository")
		}
		return NewBboltRepository(paths.DBPath)
	case RepositoryBackendFile:
		if strings.TrimSpace(paths.HistoryPath) == "" {
			return nil, errors.New("history path is required for file repository")
		}
		return NewFileRepository(paths), nil
	default:
		return nil, errors.New("unsupported repository backend: " + backend)
	}
}
