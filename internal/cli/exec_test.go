package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIR(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "action.json")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestExecDryRun(t *testing.T) {
	irPath := writeIR(t, `{"kind": "sequence", "strategy": "serial", "actions": [
		{"kind": "setValue", "storeRef": {"store": "app"}, "keyPath": "greeting",
		 "value": {"kind": "eventData", "path": "name"}},
		{"kind": "showToast", "message": {"kind": "computed", "operation": "concat",
		 "operands": [{"kind": "literal", "value": "Hi "}, {"kind": "eventData", "path": "name"}]}}
	]}`)

	buf := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath, "--event", `{"name": "Ada"}`})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, `→ showToast message="Hi Ada"`)
	assert.Contains(t, output, "✓ done")
}

func TestExecReportsFaults(t *testing.T) {
	irPath := writeIR(t, `{"kind": "setValue", "storeRef": {"store": "app"}, "keyPath": "x",
		"value": {"kind": "storeValue", "storeRef": {"store": "app"}, "keyPath": "absent"}}`)

	buf := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ faults:")
	assert.Contains(t, buf.String(), "unresolvable")
}

func TestExecRejectsMalformedIR(t *testing.T) {
	irPath := writeIR(t, `{"kind": "noSuchKind"}`)

	buf := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExecRejectsMalformedEvent(t *testing.T) {
	irPath := writeIR(t, `{"kind": "dismissSheet"}`)

	buf := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath, "--event", "{not json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExecPersistsToStateDir(t *testing.T) {
	irPath := writeIR(t, `{"kind": "setValue", "storeRef": {"store": "file", "namespace": "settings"},
		"keyPath": "theme", "value": {"kind": "literal", "value": "dark"}}`)
	stateDir := t.TempDir()

	buf := &bytes.Buffer{}
	cmd := NewExecCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath, "--state-dir", stateDir})

	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(stateDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "file-backed scope should persist under --state-dir")
}
