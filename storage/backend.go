package storage

import (
	"context"
	"path/filepath"

	"github.com/rohanthewiz/serr"
)

// Backend is an adapter the caller must close when done.
type Backend interface {
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, data []byte) error
	Close() error
}

func (m *Memory) Close() error { return nil }
func (f *File) Close() error   { return nil }

// OpenBackend opens the named backend ("memory", "file", "duckdb" or
// "sqlite") rooted at dataDir. ext is the file suffix for the file backend.
func OpenBackend(kind, dataDir, ext string) (Backend, error) {
	switch kind {
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(dataDir, ext)
	case "duckdb":
		return OpenDuckDB(filepath.Join(dataDir, "notes.duckdb"))
	case "sqlite":
		return OpenSQLite(filepath.Join(dataDir, "notes.sqlite"))
	}
	return nil, serr.New("unknown storage backend: " + kind)
}
