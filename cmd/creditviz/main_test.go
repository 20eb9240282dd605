package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mophones/creditviz/internal/cli"
	"github.com/mophones/creditviz/internal/cli/config"
	clitest "github.com/mophones/creditviz/internal/cli/testutil"
	"github.com/mophones/creditviz/internal/testutil"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})
	t.Cleanup(config.ResetConfig)
	t.Chdir(t.TempDir())

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "creditviz v")
}

func TestInitThenAnalyze(t *testing.T) {
	t.Cleanup(config.ResetConfig)
	p := clitest.SetupTestProject(t, testutil.AllOutputs())
	t.Chdir(p.Root)

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"inputs", "-o", "markdown"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "| portfolio_kpis | found | 3 |")

	out.Reset()
	cmd = cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--dpi", "72"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "4 rendered, 0 skipped")

	out.Reset()
	cmd = cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"history"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "completed")
}
