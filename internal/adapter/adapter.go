// Package adapter wraps the embedded analytical database that the pipeline
// outputs are loaded into before aggregation.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for opening the analytical database.
type Config struct {
	// Path is the database file. Empty or ":memory:" opens an in-memory
	// database, which is what a normal analysis run uses.
	Path string

	// Threads caps DuckDB worker threads. Zero leaves the engine default.
	Threads int
}

// Column is one column of a loaded table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Table describes a loaded table.
type Table struct {
	Name     string
	Columns  []Column
	RowCount int64
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Adapter is the set of database operations the loader needs.
type Adapter interface {
	Connect(ctx context.Context, cfg Config) error
	Close() error

	// LoadCSV creates (or replaces) a table from a CSV file with a header
	// row and describes the result.
	LoadCSV(ctx context.Context, table, path string) (*Table, error)

	// Describe returns the columns and row count of a table.
	Describe(ctx context.Context, table string) (*Table, error)

	// DB exposes the handle analyses and ad-hoc queries run against.
	DB() *sql.DB
}
