package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"romimport/internal/config"
	"romimport/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

const (
	schemaVersion = 1
	lockFileName  = "library.lock"
)

var (
	// ErrLocked means another process holds the library open.
	ErrLocked = errors.New("library is locked by another process")
	// ErrDuplicate means a game or BIOS with the same MD5 is already stored.
	ErrDuplicate = errors.New("already in library")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = sqlitedb.ErrSchemaMismatch
)

// Store is the library database plus the writer lock guarding it.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	lockPath string
}

// Open opens the library database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.LibraryDBPath())
}

// OpenPath opens the library database at path, taking library.lock in the
// same directory first.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	lockPath := filepath.Join(filepath.Dir(path), lockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire library lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
	}

	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "library", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &Store{db: db, path: path, lock: lock, lockPath: lockPath}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the lock file location.
func (s *Store) LockPath() string {
	return s.lockPath
}

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("release library lock: %w", unlockErr)
	}
	return err
}
