package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uipulse/internal/ir"
)

func bundleDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join("testdata", name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatalf("missing fixture %s", dir)
	}
	return dir
}

func TestCompileBundleText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "bundle")})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 3 handler(s)")
	assert.Contains(t, output, "counter.increment")
	assert.Contains(t, output, "profile.save")
}

func TestCompileBundleJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "bundle")})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "bundle"), "--output", outputFile})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var compiled CompiledBundle
	require.NoError(t, json.Unmarshal(data, &compiled))
	require.Len(t, compiled.Handlers, 3)

	// Every emitted action must decode back and match its recorded hash.
	for _, h := range compiled.Handlers {
		action, err := ir.DecodeAction(h.Action)
		require.NoError(t, err, "%s.%s", h.Screen, h.Event)
		hash, err := ir.Hash(action)
		require.NoError(t, err)
		assert.Equal(t, h.Hash, hash)
	}
}

func TestCompileDiagnosticsBlockOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "badbundle")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, output, "ExternalReference")
	assert.Contains(t, output, "broken.tap")
}

func TestCompileMissingDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateBundle(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "bundle")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ 2 screen(s), 3 handler(s) ok")
}

func TestValidateBadBundle(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{bundleDir(t, "badbundle")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ExternalReference", resp.Error.Code)
}
