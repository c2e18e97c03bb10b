package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "scenario name must match file name")
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestMarshalSnapshot_NoHTMLEscape(t *testing.T) {
	data, err := MarshalSnapshot(&Result{
		Scenario: "s",
		Steps:    []StepResult{{Op: "encode", Wire: "Pair, m<|>{:}x"}},
	})
	require.NoError(t, err)
	require.Contains(t, string(data), `"wire": "Pair, m<|>{:}x"`)
}
