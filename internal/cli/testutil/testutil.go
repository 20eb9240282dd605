// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mophones/creditviz/internal/cli/config"
	"github.com/mophones/creditviz/internal/cli/output"
	"github.com/mophones/creditviz/internal/testutil"
)

// Project is a temporary creditviz project on disk.
type Project struct {
	Root       string
	OutputsDir string
	StatePath  string
}

// SetupTestProject creates a temporary project whose outputs directory holds
// the given datasets (name -> CSV body). A minimal creditviz.yaml at the root
// keeps charts at a low DPI.
func SetupTestProject(t *testing.T, datasets map[string]string) *Project {
	t.Helper()

	root := t.TempDir()
	p := &Project{
		Root:       root,
		OutputsDir: filepath.Join(root, config.DefaultOutputsDir),
		StatePath:  filepath.Join(root, config.DefaultStateFile),
	}
	testutil.WriteOutputs(t, p.OutputsDir, datasets)
	testutil.WriteFile(t, filepath.Join(root, config.ConfigFileName), "outputs_dir: outputs\ndpi: 72\n")
	return p
}

// ChartPath returns the path a chart file would have in the outputs directory.
func (p *Project) ChartPath(file string) string {
	return filepath.Join(p.OutputsDir, file)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a text-mode renderer on a simulated TTY.
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for balanced code fences and non-empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
