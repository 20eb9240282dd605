package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "creditviz> "
	replContPrompt = "       ...> "
)

const replHelp = `Commands:
  .help           Show this help message
  .tables         List the loaded dataset tables
  .schema <name>  Show the columns of a table
  .format <fmt>   Switch output format (table, csv, md, json)
  .clear          Clear the screen
  .quit / .exit   Exit

Statements run when a line ends with a semicolon (;).
Tab completes dataset names; arrow keys walk the history.
`

// replSession is one interactive query session. SQL accumulates in pending
// until a line ends with a semicolon.
type replSession struct {
	ctx     context.Context
	db      *sql.DB
	out     io.Writer
	errOut  io.Writer
	format  string
	pending strings.Builder
}

func newREPLSession(cmd *cobra.Command, db *sql.DB, format string) *replSession {
	return &replSession{
		ctx:    cmd.Context(),
		db:     db,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		format: format,
	}
}

func runQueryREPL(cmd *cobra.Command, db *sql.DB, opts *QueryOptions) error {
	cfg := getConfig()
	s := newREPLSession(cmd, db, opts.Format)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cfg.StatePath), "query_history"),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          s.out,
		Stderr:          s.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(s.out, "creditviz query (outputs: %s)\nType .help for commands, .quit to exit\n\n", cfg.OutputsDir)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.pending.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if err != nil {
			return nil
		}

		if s.feed(line) {
			return nil
		}
		if s.pending.Len() > 0 {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// feed handles one input line and reports whether the session should end.
func (s *replSession) feed(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dot(line)
	}

	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.pending.WriteByte(' ')
		return false
	}

	query := strings.TrimSuffix(s.pending.String(), ";")
	s.pending.Reset()
	if err := executeAndRenderQuery(s.ctx, s.out, s.db, query, s.format); err != nil {
		s.errorf("%v", err)
	}
	_, _ = fmt.Fprintln(s.out)
	return false
}

// dot runs a meta command and reports whether the session should end.
func (s *replSession) dot(line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name := strings.ToLower(fields[0]); name {
	case ".quit", ".exit":
		return true
	case ".help":
		_, _ = fmt.Fprint(s.out, replHelp)
	case ".tables":
		if err := listTablesFromDB(s.ctx, s.out, s.db, s.format); err != nil {
			s.errorf("%v", err)
		}
	case ".schema":
		if arg == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .schema <table>")
			return false
		}
		if err := showSchemaFromDB(s.ctx, s.out, s.db, arg, s.format); err != nil {
			s.errorf("%v", err)
		}
	case ".format":
		switch arg {
		case "table", "csv", "md", "markdown", "json":
			s.format = arg
		default:
			_, _ = fmt.Fprintln(s.errOut, "Usage: .format table|csv|md|json")
		}
	case ".clear":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", name)
	}
	return false
}

func (s *replSession) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.errOut, "Error: "+format+"\n", args...)
}

// completer offers the meta commands and the loaded table names.
func (s *replSession) completer() *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	if rows, err := s.db.QueryContext(s.ctx,
		`SELECT table_name FROM duckdb_tables() WHERE schema_name = 'main' ORDER BY 1`); err == nil {
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				tables = append(tables, readline.PcItem(name))
			}
		}
		_ = rows.Close()
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", tables...),
		readline.PcItem(".format",
			readline.PcItem("table"), readline.PcItem("csv"), readline.PcItem("md"), readline.PcItem("json")),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
	}
	items = append(items, tables...)
	return readline.NewPrefixCompleter(items...)
}
