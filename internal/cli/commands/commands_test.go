package commands

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/chart"
	"github.com/mophones/creditviz/internal/cli/config"
	clitest "github.com/mophones/creditviz/internal/cli/testutil"
	"github.com/mophones/creditviz/internal/engine"
	"github.com/mophones/creditviz/internal/state"
	"github.com/mophones/creditviz/internal/testutil"
)

// setupCommandEnv creates a project and points the commands at it through
// CREDITVIZ_* variables, the way they resolve config outside the root command.
func setupCommandEnv(t *testing.T, datasets map[string]string) *clitest.Project {
	t.Helper()

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	p := clitest.SetupTestProject(t, datasets)
	t.Chdir(p.Root)
	t.Setenv("CREDITVIZ_OUTPUTS_DIR", p.OutputsDir)
	t.Setenv("CREDITVIZ_STATE_PATH", p.StatePath)
	t.Setenv("CREDITVIZ_DPI", "72")
	t.Setenv("CREDITVIZ_OUTPUT", "")
	t.Setenv("CREDITVIZ_CHARTS_DIR", "")
	return p
}

func executeCommand(cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func withoutDataset(name string) map[string]string {
	files := testutil.AllOutputs()
	delete(files, name)
	return files
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewAnalyzeCommand(), "analyze", []string{"only", "show"}},
		{NewInputsCommand(), "inputs", nil},
		{NewExportCommand(), "export", []string{"file", "only"}},
		{NewViewCommand(), "view", []string{"port", "no-open", "no-watch"}},
		{NewHistoryCommand(), "history", []string{"limit"}},
		{NewInitCommand(), "init [directory]", []string{"force"}},
		{NewVersionCommand("dev"), "version", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "missing flag %s", name)
			}
		})
	}

	assert.Contains(t, NewAnalyzeCommand().Aliases, "run")
}

func TestAnalyzeCommand(t *testing.T) {
	p := setupCommandEnv(t, testutil.AllOutputs())

	out, errOut, err := executeCommand(NewAnalyzeCommand(), "")
	require.NoError(t, err)

	for _, want := range []string{
		"## NPS Analysis Summary",
		"| current | 8.00 | 8.00 | 3 |",
		"| default | 2.00 | 2.00 | 1 |",
		"## Run Summary",
		"4 rendered, 0 skipped",
	} {
		assert.Contains(t, out, want)
	}
	assert.Empty(t, errOut)
	clitest.AssertNoANSI(t, out)
	clitest.AssertValidMarkdown(t, out)

	for _, file := range []string{chart.FileNPS, chart.FilePortfolio, chart.FileSegments, chart.FileRollRates} {
		assert.True(t, clitest.Exists(p.ChartPath(file)), "missing %s", file)
	}
}

func TestAnalyzeCommand_MissingDataset(t *testing.T) {
	p := setupCommandEnv(t, withoutDataset("roll_rates"))

	out, errOut, err := executeCommand(NewAnalyzeCommand(), "")
	require.NoError(t, err)

	assert.Contains(t, out, "3 rendered, 1 skipped")
	assert.Contains(t, out, "Missing inputs")
	assert.Contains(t, errOut, "Warning:")
	assert.Contains(t, errOut, "roll_rates")
	assert.False(t, clitest.Exists(p.ChartPath(chart.FileRollRates)))
	assert.True(t, clitest.Exists(p.ChartPath(chart.FileNPS)))
}

func TestAnalyzeCommand_Only(t *testing.T) {
	p := setupCommandEnv(t, testutil.AllOutputs())

	out, _, err := executeCommand(NewAnalyzeCommand(), "", "--only", "roll_rates")
	require.NoError(t, err)

	assert.Contains(t, out, "1 rendered, 0 skipped")
	assert.NotContains(t, out, "NPS Analysis Summary")
	assert.True(t, clitest.Exists(p.ChartPath(chart.FileRollRates)))
	assert.False(t, clitest.Exists(p.ChartPath(chart.FileNPS)))
}

func TestAnalyzeCommand_UnknownAnalysis(t *testing.T) {
	setupCommandEnv(t, testutil.AllOutputs())

	_, _, err := executeCommand(NewAnalyzeCommand(), "", "--only", "vintage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vintage")
}

func TestAnalyzeCommand_NoOutputs(t *testing.T) {
	setupCommandEnv(t, nil)

	out, _, err := executeCommand(NewAnalyzeCommand(), "")
	require.NoError(t, err)
	assert.Equal(t, engine.NoOutputsMessage, strings.TrimSpace(out))
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	setupCommandEnv(t, withoutDataset("segment_metrics"))
	t.Setenv("CREDITVIZ_OUTPUT", "json")

	out, _, err := executeCommand(NewAnalyzeCommand(), "")
	require.NoError(t, err)

	var got struct {
		Run        state.Run        `json:"run"`
		Outcomes   []engine.Outcome `json:"outcomes"`
		NPSSummary []struct {
			Status string   `json:"account_status"`
			Mean   *float64 `json:"mean"`
		} `json:"nps_summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, state.RunStatusCompleted, got.Run.Status)
	assert.Equal(t, []string{"segment_metrics"}, got.Run.Missing)
	require.Len(t, got.Outcomes, 4)

	statuses := map[string]state.ChartStatus{}
	for _, o := range got.Outcomes {
		statuses[o.Analysis] = o.Status
	}
	assert.Equal(t, state.ChartStatusSkipped, statuses["segments"])
	assert.Equal(t, state.ChartStatusRendered, statuses["nps"])
	require.NotEmpty(t, got.NPSSummary)
	assert.Equal(t, "arrears", got.NPSSummary[0].Status)
	require.NotNil(t, got.NPSSummary[0].Mean)
	assert.InDelta(t, 5.5, *got.NPSSummary[0].Mean, 1e-9)
}

func TestNPSSummary_NaNIsNull(t *testing.T) {
	rows := npsSummary(&analysis.NPSResult{Groups: []analysis.NPSGroup{
		{Status: "closed", Mean: math.NaN(), Median: math.NaN()},
		{Status: "current", Mean: 8, Median: 8, Count: 3},
	}})

	b, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"account_status":"closed","mean":null,"median":null`)
	assert.Contains(t, string(b), `"mean":8`)
}

func TestInputsCommand(t *testing.T) {
	setupCommandEnv(t, withoutDataset("vintage_metrics"))

	out, _, err := executeCommand(NewInputsCommand(), "")
	require.NoError(t, err)

	assert.Contains(t, out, "| roll_rates | found | 5 |")
	assert.Contains(t, out, "| nps_linkage_detail | found | 7 |")
	assert.Contains(t, out, "| vintage_metrics | missing | - |")
	assert.NotContains(t, out, engine.NoOutputsMessage)
}

func TestInputsCommand_JSON(t *testing.T) {
	setupCommandEnv(t, map[string]string{"roll_rates": "from_status,roll_rate\ncurrent,0.9\n"})
	t.Setenv("CREDITVIZ_OUTPUT", "json")

	out, _, err := executeCommand(NewInputsCommand(), "")
	require.NoError(t, err)

	var inputs []inputStatus
	require.NoError(t, json.Unmarshal([]byte(out), &inputs))

	byName := map[string]inputStatus{}
	for _, in := range inputs {
		byName[in.Name] = in
	}
	require.Contains(t, byName, "roll_rates")
	assert.True(t, byName["roll_rates"].Found)
	assert.Equal(t, []string{"to_status"}, byName["roll_rates"].MissingColumns)
	assert.False(t, byName["portfolio_kpis"].Found)
}

func TestInputsCommand_Empty(t *testing.T) {
	setupCommandEnv(t, nil)

	out, _, err := executeCommand(NewInputsCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, engine.NoOutputsMessage)
}

func TestExportCommand(t *testing.T) {
	p := setupCommandEnv(t, withoutDataset("roll_rates"))

	out, errOut, err := executeCommand(NewExportCommand(), "", "--file", "report.xlsx")
	require.NoError(t, err)

	path := filepath.Join(p.Root, "report.xlsx")
	assert.Contains(t, out, "Exported 3 analyses to")
	assert.Contains(t, errOut, "roll_rates")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Len(t, f.GetSheetList(), 3)

	assert.False(t, clitest.Exists(p.ChartPath(chart.FileNPS)), "export must not render charts")
}

func TestExportCommand_NoOutputs(t *testing.T) {
	p := setupCommandEnv(t, nil)

	out, _, err := executeCommand(NewExportCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, engine.NoOutputsMessage)
	assert.False(t, clitest.Exists(filepath.Join(p.Root, "analysis.xlsx")))
}

func TestHistoryCommand(t *testing.T) {
	setupCommandEnv(t, testutil.AllOutputs())

	out, _, err := executeCommand(NewHistoryCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet")

	for range 2 {
		_, _, err = executeCommand(NewAnalyzeCommand(), "")
		require.NoError(t, err)
	}

	out, _, err = executeCommand(NewHistoryCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "# Recent runs")
	assert.Contains(t, out, "| 4/4 |")

	t.Setenv("CREDITVIZ_OUTPUT", "json")
	out, _, err = executeCommand(NewHistoryCommand(), "", "--limit", "1")
	require.NoError(t, err)

	var runs []struct {
		ID     string              `json:"id"`
		Status state.RunStatus     `json:"status"`
		Charts []state.ChartRecord `json:"charts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
	assert.Len(t, runs[0].Charts, 4)
}

func TestRenderOutcomes(t *testing.T) {
	outcomes := []engine.Outcome{
		{Analysis: "nps", Title: "NPS by Account Status", Status: state.ChartStatusRendered, Path: "/tmp/out/nps_analysis.png"},
		{Analysis: "roll_rates", Title: "Roll Rates Between Account Statuses", Status: state.ChartStatusSkipped,
			Reason: "analysis skipped: roll_rates: dataset not loaded"},
		{Analysis: "segments", Title: "Default Rate by Segment", Status: state.ChartStatusFailed,
			Reason: "segments: create charts dir: permission denied"},
	}

	t.Run("markdown", func(t *testing.T) {
		tr := clitest.NewTestRendererMarkdown()
		renderOutcomes(tr.Renderer, outcomes)

		assert.Contains(t, tr.Output(), "- NPS by Account Status: rendered (/tmp/out/nps_analysis.png)")
		assert.Contains(t, tr.Output(), "- Roll Rates Between Account Statuses: skipped (skipped)")
		assert.Contains(t, tr.Output(), "- Default Rate by Segment: failed (segments: create charts dir: permission denied)")
		assert.Contains(t, tr.ErrorOutput(), "Warning: analysis skipped: roll_rates")
		clitest.AssertNoANSI(t, tr.Output())
		clitest.AssertValidMarkdown(t, tr.Output())
	})

	t.Run("text", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		tr := clitest.NewTestRendererText()
		renderOutcomes(tr.Renderer, outcomes)

		assert.Contains(t, tr.Output(), "NPS by Account Status  /tmp/out/nps_analysis.png")
		assert.NotContains(t, tr.Output(), "- NPS")
		clitest.AssertNoANSI(t, tr.Output())
	})
}
