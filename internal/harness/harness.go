// Package harness executes YAML conformance scenarios against a fresh
// in-memory store arena. Every host-facing leaf is served by a recording
// handler, so a scenario's observable behavior is the ordered host-call
// trace plus the final store state.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/uipulse/internal/compiler"
	"github.com/roach88/uipulse/internal/executor"
	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/store"
	"github.com/roach88/uipulse/internal/value"
)

// hostKinds lists every leaf kind the recording registry serves.
var hostKinds = []string{
	ir.KindNavigate,
	ir.KindShowToast,
	ir.KindShowAlert,
	ir.KindShowSheet,
	ir.KindDismissSheet,
	ir.KindShowLoading,
	ir.KindHideLoading,
	ir.KindSystem,
}

// TraceEvent is one observable step: a host call with its resolved value
// positions, or a fault.
type TraceEvent struct {
	Type   string                 `json:"type"`
	Kind   string                 `json:"kind,omitempty"`
	Values map[string]value.Value `json:"values,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Pass   bool
	Errors []string
	Trace  []TraceEvent
	Faults []executor.Fault
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// recorder is the host: it records every dispatched leaf and approves it.
type recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *recorder) handle(_ context.Context, call executor.HostCall) (ir.ActionDesc, error) {
	r.mu.Lock()
	r.events = append(r.events, TraceEvent{
		Type:   "hostCall",
		Kind:   call.Kind,
		Values: call.Values,
	})
	r.mu.Unlock()
	return nil, nil
}

// Run executes a scenario in a fresh ephemeral arena and evaluates its
// expectations. The returned error covers setup problems only; expectation
// mismatches land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	action, err := buildAction(scenario)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores := store.NewStores(store.Config{EphemeralOnly: true, Logger: logger})
	defer stores.Reset()

	if err := applySeed(stores, scenario); err != nil {
		return nil, err
	}

	rec := &recorder{}
	ex := executor.New(stores, executor.WithLogger(logger))
	for _, kind := range hostKinds {
		ex.Registry().Register(kind, rec.handle)
	}

	var event value.Value
	if scenario.Event != nil {
		event, err = value.FromGo(scenario.Event)
		if err != nil {
			return nil, fmt.Errorf("scenario event: %w", err)
		}
	}

	faults := ex.Execute(context.Background(), action, event, scenario.Session)

	result := &Result{Trace: rec.events, Faults: faults}
	for _, f := range faults {
		result.Trace = append(result.Trace, TraceEvent{
			Type:  "fault",
			Kind:  f.Action,
			Error: f.Err.Error(),
		})
	}

	if len(faults) != scenario.ExpectFaults {
		result.addError("expected %d faults, got %d: %v",
			scenario.ExpectFaults, len(faults), faults)
	}
	checkState(stores, scenario, result)

	result.Pass = len(result.Errors) == 0
	return result, nil
}

// buildAction decodes the inline IR or compiles the handler source.
func buildAction(scenario *Scenario) (ir.ActionDesc, error) {
	if scenario.Handler != "" {
		action, diags := compiler.Compile(scenario.Name+".js", scenario.Handler, nil)
		if len(diags) > 0 {
			return nil, fmt.Errorf("scenario handler: %s: %s", diags[0].Loc, diags[0].Message)
		}
		return action, nil
	}
	action, err := ir.DecodeAction([]byte(scenario.Action))
	if err != nil {
		return nil, fmt.Errorf("scenario action: %w", err)
	}
	return action, nil
}

func applySeed(stores *store.Stores, scenario *Scenario) error {
	for i, seed := range scenario.Seed {
		s, err := storeFor(stores, seed.Store, scenario.Session)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		v, err := value.FromGo(seed.Value)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if err := s.Set(seed.Path, v); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	return nil
}

func checkState(stores *store.Stores, scenario *Scenario, result *Result) {
	for _, exp := range scenario.ExpectState {
		s, err := storeFor(stores, exp.Store, scenario.Session)
		if err != nil {
			result.addError("expect_state %s: %v", exp.Path, err)
			continue
		}
		got, ok, err := s.Get(exp.Path)
		if err != nil {
			result.addError("expect_state %s: %v", exp.Path, err)
			continue
		}
		if exp.Absent {
			if ok {
				result.addError("expect_state %s: expected absent, got %s",
					exp.Path, value.AsString(got))
			}
			continue
		}
		if !ok {
			result.addError("expect_state %s: path is absent", exp.Path)
			continue
		}
		want, err := value.FromGo(exp.Value)
		if err != nil {
			result.addError("expect_state %s: %v", exp.Path, err)
			continue
		}
		if !value.Equal(got, want) {
			result.addError("expect_state %s: want %s, got %s",
				exp.Path, value.AsString(want), value.AsString(got))
		}
	}
}

// storeFor binds a scenario store name to a live store.
func storeFor(stores *store.Stores, name, session string) (*store.Store, error) {
	switch name {
	case "", "app":
		return stores.Get(store.App())
	case "prefs":
		return stores.Get(store.Prefs())
	case "session":
		if session == "" {
			return nil, fmt.Errorf("session store needs a scenario session id")
		}
		return stores.Get(store.Session(session))
	default:
		return nil, fmt.Errorf("unknown store %q", name)
	}
}
