package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "testdata/bundle", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "testdata/bundle"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓")
}

func TestRootLogFileFanOut(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "uipulse.log")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "testdata/bundle", "--log-file", logFile})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(logFile)
	assert.NoError(t, err, "log file should be created by the fan-out handler")
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "diags")))
}

func TestLoadBundleErrors(t *testing.T) {
	_, errs := LoadBundle(filepath.Join(t.TempDir(), "missing"))
	require.NotEmpty(t, errs)
	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)

	empty := t.TempDir()
	_, errs = LoadBundle(empty)
	require.NotEmpty(t, errs)
	loadErr, ok = errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadBundleParsesScreens(t *testing.T) {
	bundle, errs := LoadBundle("testdata/bundle")
	require.Empty(t, errs)
	require.Len(t, bundle.Screens, 2)

	assert.Equal(t, "counter", bundle.Screens[0].Name)
	assert.Len(t, bundle.Screens[0].Handlers, 2)
	assert.Equal(t, "profile", bundle.Screens[1].Name)
	assert.Contains(t, bundle.Screens[1].Handlers["save"], "store.transaction")
}
