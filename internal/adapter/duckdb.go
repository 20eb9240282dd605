package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("database connection not established")

// ErrTableNotFound is returned by Describe for an unknown table.
var ErrTableNotFound = errors.New("table not found")

// DuckDBAdapter loads CSV files into DuckDB.
type DuckDBAdapter struct {
	db *sql.DB
}

var _ Adapter = (*DuckDBAdapter)(nil)

// NewDuckDBAdapter creates an unconnected adapter.
func NewDuckDBAdapter() *DuckDBAdapter {
	return &DuckDBAdapter{}
}

// Connect opens the database. Every pooled connection applies the thread
// limit when it is created.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.Path
	if dsn == ":memory:" {
		dsn = ""
	}

	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		if cfg.Threads <= 0 {
			return nil
		}
		_, err := execer.ExecContext(context.Background(), fmt.Sprintf("SET threads = %d", cfg.Threads), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.db = db
	return nil
}

// Close closes the database.
func (a *DuckDBAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// DB returns the underlying handle, or nil before Connect.
func (a *DuckDBAdapter) DB() *sql.DB {
	return a.db
}

// LoadCSV reads path with read_csv_auto into a table named table,
// replacing any previous contents.
func (a *DuckDBAdapter) LoadCSV(ctx context.Context, table, path string) (*Table, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header = true)",
		QuoteIdent(table), quoteLiteral(abs))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to load CSV %s: %w", path, err)
	}

	return a.Describe(ctx, table)
}

// Describe reads a table's columns from information_schema and counts its
// rows.
func (a *DuckDBAdapter) Describe(ctx context.Context, table string) (*Table, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	t := &Table{Name: table}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}

	count := "SELECT count(*) FROM " + QuoteIdent(table)
	if err := a.db.QueryRowContext(ctx, count).Scan(&t.RowCount); err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return t, nil
}

// QuoteIdent quotes an identifier for use in DuckDB SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
