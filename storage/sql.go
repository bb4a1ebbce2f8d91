package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	_ "modernc.org/sqlite"
)

// SQL keeps namespaces as rows of a single key-value table in an embedded
// database.
type SQL struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex // serializes writes
}

const ddlCreateNamespacesTable = `
CREATE TABLE IF NOT EXISTS note_namespaces (
	namespace  VARCHAR PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// OpenDuckDB opens (creating if needed) a DuckDB file at path.
// An empty path gives an in-memory database.
func OpenDuckDB(path string) (*SQL, error) {
	return openSQL("duckdb", path)
}

// OpenSQLite opens (creating if needed) a SQLite file at path.
// An empty path gives an in-memory database.
func OpenSQLite(path string) (*SQL, error) {
	if path == "" {
		path = ":memory:"
	}
	return openSQL("sqlite", path)
}

func openSQL(driver, path string) (*SQL, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, serr.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open "+driver+" database")
	}
	// one connection keeps in-memory databases shared and writes ordered
	db.SetMaxOpenConns(1)

	s := &SQL{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, serr.Wrap(err, "failed to migrate "+driver+" database")
	}
	logger.Info("Opened note database", "driver", driver, "path", path)
	return s, nil
}

func (s *SQL) migrate() error {
	if _, err := s.db.Exec(ddlCreateNamespacesTable); err != nil {
		return serr.Wrap(err, "failed to create note_namespaces table")
	}
	return nil
}

func (s *SQL) Load(ctx context.Context, namespace string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM note_namespaces WHERE namespace = ?`, namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to load namespace "+namespace)
	}
	return data, nil
}

func (s *SQL) Save(ctx context.Context, namespace string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO note_namespaces (namespace, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, namespace, data, time.Now().UTC())
	if err != nil {
		return serr.Wrap(err, "failed to save namespace "+namespace)
	}
	return nil
}

// Driver returns the database/sql driver name in use.
func (s *SQL) Driver() string { return s.driver }

func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
