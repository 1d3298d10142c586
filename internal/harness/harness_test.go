package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestInlineHandlerScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_toast",
		Description: "Handler emits a toast built from the event payload.",
		Handler: `(event) => {
			ui.showToast("Hello " + event.who);
		}`,
		Event: map[string]any{"who": "world"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "hostCall", result.Trace[0].Type)
	assert.Equal(t, "showToast", result.Trace[0].Kind)
}

func TestSessionScopedScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "session_step",
		Description: "Session store writes bind to the scenario session.",
		Session:     "s-1",
		Handler: `(event) => {
			session.set("wizard.step", 2);
		}`,
		ExpectState: []StateExpect{
			{Store: "session", Path: "wizard.step", Value: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestFaultAppearsInTrace(t *testing.T) {
	scenario := &Scenario{
		Name:        "fault_trace",
		Description: "An absent read without a default traces as a fault.",
		Action: `{"kind": "setValue", "storeRef": {"store": "app"}, "keyPath": "x",
			"value": {"kind": "storeValue", "storeRef": {"store": "app"}, "keyPath": "nothing"}}`,
		ExpectFaults: 1,
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "fault", result.Trace[0].Type)
	assert.Contains(t, result.Trace[0].Error, "unresolvable")
}

func TestFailedExpectationReportsError(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expect",
		Description: "A wrong expectation fails the scenario, not the run.",
		Handler:     `(event) => { store.set("n", 1); }`,
		ExpectState: []StateExpect{{Path: "n", Value: 2}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "want 2, got 1")
}

func TestHandlerDiagnosticsFailTheLoad(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_handler",
		Description: "Compiler diagnostics are setup failures.",
		Handler:     `(event) => { someGlobal(); }`,
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario handler")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: typo\ndescription: x\naction: '{}'\nassertion: []\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenarioRequiresExactlyOneActionSource(t *testing.T) {
	dir := t.TempDir()

	neither := filepath.Join(dir, "neither.yaml")
	require.NoError(t, os.WriteFile(neither, []byte("name: neither\n"), 0o644))
	_, err := LoadScenario(neither)
	require.Error(t, err)

	both := filepath.Join(dir, "both.yaml")
	require.NoError(t, os.WriteFile(both, []byte(
		"name: both\naction: '{}'\nhandler: '(e) => {}'\n"), 0o644))
	_, err = LoadScenario(both)
	require.Error(t, err)
}
