package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL over the loaded datasets",
		Long: `Query the pipeline outputs with DuckDB SQL.

Every CSV found in the outputs directory is loaded as a table of the same
name (nps_linkage_detail, portfolio_kpis, roll_rates, ...). Supports
multiple output formats for scripting and integration.

When invoked without arguments, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  creditviz query "SELECT account_status, avg(nps_score) FROM nps_linkage_detail GROUP BY 1"

  # List loaded tables
  creditviz query tables

  # Show columns of a table
  creditviz query schema roll_rates

  # Output as CSV
  creditviz query "SELECT * FROM portfolio_kpis" --format csv

  # Interactive mode
  creditviz query`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

// openDatasets loads the outputs and returns the database handle.
func openDatasets(cmd *cobra.Command) (*sql.DB, func(), error) {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	cat, err := cc.Engine.LoadDatasets(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if cat.Empty() {
		cc.Renderer.Warning(fmt.Sprintf("no datasets found in %s", cat.Dir()))
	}

	db, err := cc.Engine.DB(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return db.DB(), cleanup, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	db, cleanup, err := openDatasets(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if strings.TrimSpace(sqlQuery) == "" {
		return runQueryREPL(cmd, db, opts)
	}
	return executeAndRenderQuery(cmd.Context(), cmd.OutOrStdout(), db, sqlQuery, opts.Format)
}

// executeAndRenderQuery runs one statement and renders its result.
func executeAndRenderQuery(ctx context.Context, w io.Writer, db *sql.DB, query, format string) error {
	if err := queryAndRender(ctx, w, db, format, query); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return nil
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the loaded dataset tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cleanup, err := openDatasets(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return listTablesFromDB(cmd.Context(), cmd.OutOrStdout(), db, opts.Format)
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a dataset table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDatasets(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return showSchemaFromDB(cmd.Context(), cmd.OutOrStdout(), db, args[0], opts.Format)
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
