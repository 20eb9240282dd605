package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// resultSet is a query result read fully into memory.
type resultSet struct {
	columns []string
	rows    [][]any
}

func readResultSet(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &resultSet{columns: cols}
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		rs.rows = append(rs.rows, dest)
	}
	return rs, rows.Err()
}

// records returns one column->value map per row, for JSON.
func (rs *resultSet) records() []map[string]any {
	out := make([]map[string]any, 0, len(rs.rows))
	for _, row := range rs.rows {
		rec := make(map[string]any, len(rs.columns))
		for i, col := range rs.columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

func (rs *resultSet) writer(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(rs.columns))
	for i, c := range rs.columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, row := range rs.rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = formatValue(v)
		}
		t.AppendRow(r)
	}
	return t
}

// render writes the result as table (default), csv, md/markdown or json.
func (rs *resultSet) render(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs.records())
	case "csv":
		rs.writer(w).RenderCSV()
		return nil
	}

	if len(rs.rows) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	t := rs.writer(w)
	if format == "md" || format == "markdown" {
		t.RenderMarkdown()
		_, err := fmt.Fprintln(w)
		return err
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	return err
}

func renderResults(w io.Writer, rows *sql.Rows, format string) error {
	rs, err := readResultSet(rows)
	if err != nil {
		return err
	}
	return rs.render(w, format)
}

// formatValue prints NULLs explicitly and dates without a midnight time.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if h, m, sec := v.Clock(); h == 0 && m == 0 && sec == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func queryAndRender(ctx context.Context, w io.Writer, db *sql.DB, format, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return renderResults(w, rows, format)
}

// listTablesFromDB lists the loaded datasets with their row counts.
func listTablesFromDB(ctx context.Context, w io.Writer, db *sql.DB, format string) error {
	return queryAndRender(ctx, w, db, format, `
		SELECT table_name AS name, estimated_size AS row_count, column_count
		FROM duckdb_tables()
		WHERE schema_name = 'main'
		ORDER BY table_name`)
}

type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type schemaOutput struct {
	Name    string       `json:"name"`
	Columns []columnInfo `json:"columns"`
}

func showSchemaFromDB(ctx context.Context, w io.Writer, db *sql.DB, tableName, format string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM duckdb_columns()
		WHERE schema_name = 'main' AND table_name = ?
		ORDER BY column_index`, tableName)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	schema := schemaOutput{Name: tableName}
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable); err != nil {
			return err
		}
		schema.Columns = append(schema.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(schema.Columns) == 0 {
		return fmt.Errorf("table '%s' not found", tableName)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable"})
	for _, c := range schema.Columns {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		t.AppendRow(table.Row{c.Name, c.Type, nullable})
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "md", "markdown":
		_, _ = fmt.Fprintf(w, "### %s\n\n", tableName)
		t.RenderMarkdown()
	default:
		_, _ = fmt.Fprintf(w, "Table: %s\n", tableName)
		t.SetStyle(table.StyleLight)
		t.Render()
	}
	return nil
}
