package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedded embed.FS

// migrationProvider returns a goose provider over the embedded run-history
// migrations. Providers keep no global state, so stores can migrate
// concurrently in tests.
func migrationProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, db, fsys)
}

// Migrate brings the schema up to date.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return errNotOpened
	}

	p, err := migrationProvider(s.db)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	results, err := p.Up(context.Background())
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Debug("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// MigrationVersion returns the highest applied migration.
func (s *SQLiteStore) MigrationVersion() (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	p, err := migrationProvider(s.db)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(context.Background())
}
