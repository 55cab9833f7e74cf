// Package offline keeps the client usable without a connection: a durable
// action queue replayed on reconnect, a time-boxed read cache and the
// connectivity monitor that decides when to replay.
package offline

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"rescuehub/errs"
)

// Store is a durable key-value medium. Get returns nil data and no error
// when the key is absent.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// MemoryStore keeps values in process memory. Used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// FileStore writes each key to its own JSON file under dir.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.Storage, "failed to create data directory", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Storage, fmt.Sprintf("failed to read %s", key), err)
	}
	return data, nil
}

// Set writes through a temp file and rename so a crash never leaves a
// half-written value behind.
func (s *FileStore) Set(key string, value []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("failed to write %s", key), err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.Wrap(errs.Storage, fmt.Sprintf("failed to write %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrap(errs.Storage, fmt.Sprintf("failed to write %s", key), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrap(errs.Storage, fmt.Sprintf("failed to write %s", key), err)
	}
	return nil
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps values in a single-table SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and applies the
// schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Wrap(errs.Storage, "failed to create data directory", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "failed to open local database", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Storage, "failed to apply local schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Storage, fmt.Sprintf("failed to read %s", key), err)
	}
	return v, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("failed to write %s", key), err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenStore returns the store named by kind ("file" or "sqlite") rooted at
// dataDir.
func OpenStore(kind, dataDir string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "file":
		return NewFileStore(dataDir)
	case "sqlite":
		return OpenSQLiteStore(filepath.Join(dataDir, "offline.db"))
	default:
		return nil, errs.Newf(errs.Validation, "unknown store %q", kind)
	}
}
