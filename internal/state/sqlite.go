package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var errNotOpened = errors.New("database not opened")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
// A nil logger discards.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database, creating its parent
// directory when needed. Use MemoryPath for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state store", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying connection for read-only queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func generateID() string {
	return uuid.New().String()
}
