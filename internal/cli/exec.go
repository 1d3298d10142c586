package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/uipulse/internal/executor"
	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/store"
	"github.com/roach88/uipulse/internal/value"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Event    string
	Session  string
	DBPath   string
	StateDir string
}

// HostEvent is one host-facing leaf the execution dispatched, in order.
type HostEvent struct {
	Kind   string                 `json:"kind"`
	Values map[string]value.Value `json:"values,omitempty"`
}

// ExecResult is the exec command's output payload.
type ExecResult struct {
	HostCalls []HostEvent `json:"hostCalls"`
	Faults    []string    `json:"faults,omitempty"`
}

// NewExecCommand creates the exec command: run one IR action descriptor
// against a configured store arena.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <ir.json>",
		Short: "Execute an action descriptor",
		Long: `Execute a compiled action descriptor against a store arena.

Without --db or --state-dir the arena is fully in-memory, which makes exec a
dry run: host-facing leaves print instead of reaching a device.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "", "event payload as JSON")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id for session-scoped stores")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "sqlite database for durable scopes")
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "directory for file-backed scopes")
	return cmd
}

func runExec(opts *ExecOptions, irPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	raw, err := os.ReadFile(irPath)
	if err != nil {
		_ = formatter.Fail(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	action, err := ir.DecodeAction(raw)
	if err != nil {
		_ = formatter.Fail(ErrCodeBadInput, fmt.Sprintf("decoding IR: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	var event value.Value
	if opts.Event != "" {
		event, err = value.Decode([]byte(opts.Event))
		if err != nil {
			_ = formatter.Fail(ErrCodeBadInput, fmt.Sprintf("decoding event: %v", err), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}

	stores := store.NewStores(store.Config{
		SQLitePath:    opts.DBPath,
		StateDir:      opts.StateDir,
		EphemeralOnly: opts.DBPath == "" && opts.StateDir == "",
	})
	defer stores.Reset()

	ex := executor.New(stores)
	var mu sync.Mutex
	var calls []HostEvent
	for _, kind := range hostKinds() {
		ex.Registry().Register(kind, func(_ context.Context, call executor.HostCall) (ir.ActionDesc, error) {
			mu.Lock()
			calls = append(calls, HostEvent{Kind: call.Kind, Values: call.Values})
			mu.Unlock()
			return nil, nil
		})
	}

	faults := ex.Execute(cmd.Context(), action, event, opts.Session)

	result := &ExecResult{HostCalls: calls}
	for _, f := range faults {
		result.Faults = append(result.Faults, f.Error())
	}
	if err := outputExecResult(formatter, result); err != nil {
		return err
	}
	if len(faults) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("execution finished with %d fault(s)", len(faults)))
	}
	return nil
}

// hostKinds lists the leaf kinds the dry-run host serves.
func hostKinds() []string {
	return []string{
		ir.KindNavigate,
		ir.KindShowToast,
		ir.KindShowAlert,
		ir.KindShowSheet,
		ir.KindDismissSheet,
		ir.KindShowLoading,
		ir.KindHideLoading,
		ir.KindSystem,
	}
}

func outputExecResult(formatter *OutputFormatter, result *ExecResult) error {
	if formatter.Format == "json" {
		if len(result.Faults) > 0 {
			enc := json.NewEncoder(formatter.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(Response{
				Status: "error",
				Error:  &Error{Code: ErrCodeGeneric, Message: result.Faults[0]},
				Data:   result,
			})
		}
		return formatter.Success(result)
	}

	for _, call := range result.HostCalls {
		fmt.Fprintf(formatter.Writer, "→ %s%s\n", call.Kind, renderValues(call.Values))
	}
	if len(result.Faults) == 0 {
		fmt.Fprintln(formatter.Writer, "✓ done")
		return nil
	}
	fmt.Fprintln(formatter.Writer, "✗ faults:")
	for _, f := range result.Faults {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
	return nil
}

func renderValues(values map[string]value.Value) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, k := range keys {
		out += fmt.Sprintf(" %s=%q", k, value.AsString(values[k]))
	}
	return out
}
