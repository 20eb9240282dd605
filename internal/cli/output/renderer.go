// Package output renders command results as styled text, markdown or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how command output is rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Modes lists the accepted values of the --output flag.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}

	color := isTTY && !termenv.EnvNoColor()
	lr := lipgloss.NewRenderer(out)
	if color {
		lr.SetColorProfile(termenv.ANSI256)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr, color),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves auto to text on a terminal and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the text-mode styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		return
	}
	r.Println(r.styles.Header.Render(text))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Printf("  %s %s\n", r.styles.Key.Render(key+":"), r.styles.Value.Render(value))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("Warning: "+msg))
}

// Error writes an error message to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+msg))
}

// Muted writes de-emphasised text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes "<symbol> name  detail" with the status styling.
func (r *Renderer) StatusLine(name, status, detail string) {
	if r.EffectiveMode() == ModeMarkdown {
		line := fmt.Sprintf("- %s: %s", name, status)
		if detail != "" {
			line += " (" + detail + ")"
		}
		r.Println(line)
		return
	}

	sym, ok := statusSymbols[status]
	if !ok {
		sym = "-"
	}
	line := r.styles.forStatus(status).Render(sym) + " " + name
	if detail != "" {
		line += "  " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// Table writes rows under a header: a light box table in text mode and a
// pipe table in markdown mode.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	t.AppendHeader(hr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		r.Println()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
