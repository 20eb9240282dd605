package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		version string
		want    []string
	}{
		{"0.1.0", []string{"creditviz v0.1.0", "DuckDB"}},
		{"1.2.3", []string{"creditviz v1.2.3"}},
		{"dev", []string{"creditviz vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
