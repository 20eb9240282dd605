package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/cli/output"
	"github.com/mophones/creditviz/internal/dataset"
	"github.com/mophones/creditviz/internal/engine"
)

// inputStatus describes one expected pipeline output.
type inputStatus struct {
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	Found          bool     `json:"found"`
	Rows           int64    `json:"rows"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// NewInputsCommand creates the inputs command.
func NewInputsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inputs",
		Short: "List the expected input datasets and whether they were found",
		Long: `Check the outputs directory for the CSV files the analyses read.

Each dataset is reported as found or missing, with its row count and any
expected columns it lacks. Missing files are reported, never an error.`,
		Example: `  creditviz inputs
  creditviz inputs --outputs-dir ../dbt/outputs -o json`,
		RunE: runInputs,
	}
}

func runInputs(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cat, err := cc.Engine.LoadDatasets(cmd.Context())
	if err != nil {
		return err
	}

	inputs := make([]inputStatus, 0, len(dataset.Names))
	for _, name := range dataset.Names {
		in := inputStatus{Name: name, Path: dataset.Path(cat.Dir(), name)}
		if info, err := cat.Get(name); err == nil {
			in.Found = true
			in.Rows = info.Rows
			in.MissingColumns = info.MissingColumns(dataset.ExpectedColumns[name])
		}
		inputs = append(inputs, in)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(inputs)
	}

	r.Header(1, "Inputs in "+cat.Dir())
	rows := make([][]string, 0, len(inputs))
	for _, in := range inputs {
		status, count := "missing", "-"
		if in.Found {
			status, count = "found", strconv.FormatInt(in.Rows, 10)
		}
		rows = append(rows, []string{in.Name, status, count, strings.Join(in.MissingColumns, ", ")})
	}
	r.Table([]string{"dataset", "status", "rows", "missing columns"}, rows)

	if cat.Empty() {
		r.Println()
		r.Println(engine.NoOutputsMessage)
	}
	return nil
}
