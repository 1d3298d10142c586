package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToastTraceGolden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "toast_over_limit.yaml"))
	require.NoError(t, err)

	RunWithGolden(t, scenario)
}
