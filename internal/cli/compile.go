package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/uipulse/internal/compiler"
	"github.com/roach88/uipulse/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompiledHandler is one handler lowered to wire IR.
type CompiledHandler struct {
	Screen string          `json:"screen"`
	Event  string          `json:"event"`
	Hash   string          `json:"hash"`
	Action json.RawMessage `json:"action"`
}

// CompiledBundle is the compile command's output payload.
type CompiledBundle struct {
	Handlers []CompiledHandler `json:"handlers"`
}

// HandlerDiagnostic ties a compiler diagnostic to its handler.
type HandlerDiagnostic struct {
	Screen     string              `json:"screen"`
	Event      string              `json:"event"`
	Diagnostic compiler.Diagnostic `json:"diagnostic"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <bundle-dir>",
		Short: "Compile screen handlers to action IR",
		Long: `Compile every handler in a CUE screen bundle to action descriptor IR.

Handlers are statically lowered; any diagnostic blocks output for the whole
bundle so a deploy never ships partial IR.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCompile(opts *CompileOptions, bundleDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	bundle, result, diags, err := compileBundle(formatter, bundleDir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Found %d CUE file(s), %d screen(s) in %s",
		bundle.FileCount, len(bundle.Screens), bundleDir)

	if len(diags) > 0 {
		return outputDiagnostics(formatter, diags)
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: marshaling IR: %v", ErrCodeWriteFailed, err))
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Fail(ErrCodeWriteFailed, err.Error(), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", ErrCodeWriteFailed, err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileBundle loads the bundle and lowers every handler, collecting
// diagnostics across all of them.
func compileBundle(formatter *OutputFormatter, bundleDir string) (*Bundle, *CompiledBundle, []HandlerDiagnostic, error) {
	bundle, loadErrors := LoadBundle(bundleDir)
	if len(loadErrors) > 0 {
		first := loadErrors[0]
		if loadErr, ok := first.(*LoadError); ok {
			_ = formatter.Fail(loadErr.Code, loadErr.Message, nil)
			return nil, nil, nil, NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Fail(ErrCodeGeneric, first.Error(), nil)
		return nil, nil, nil, NewExitError(ExitCommandError, first.Error())
	}

	result := &CompiledBundle{}
	var diags []HandlerDiagnostic
	for _, screen := range bundle.Screens {
		events := make([]string, 0, len(screen.Handlers))
		for event := range screen.Handlers {
			events = append(events, event)
		}
		sort.Strings(events)

		for _, event := range events {
			name := screen.Name + "." + event
			action, handlerDiags := compiler.Compile(name, screen.Handlers[event], nil)
			for _, d := range handlerDiags {
				diags = append(diags, HandlerDiagnostic{
					Screen:     screen.Name,
					Event:      event,
					Diagnostic: d,
				})
			}
			if len(handlerDiags) > 0 {
				continue
			}

			wire, err := compiler.MarshalIR(action)
			if err != nil {
				return nil, nil, nil, NewExitError(ExitCommandError,
					fmt.Sprintf("%s: marshaling %s: %v", ErrCodeGeneric, name, err))
			}
			hash, err := ir.Hash(action)
			if err != nil {
				return nil, nil, nil, NewExitError(ExitCommandError,
					fmt.Sprintf("%s: hashing %s: %v", ErrCodeGeneric, name, err))
			}
			result.Handlers = append(result.Handlers, CompiledHandler{
				Screen: screen.Name,
				Event:  event,
				Hash:   hash,
				Action: wire,
			})
		}
	}
	return bundle, result, diags, nil
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompiledBundle, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d handler(s)\n\n", len(result.Handlers))
	for _, h := range result.Handlers {
		fmt.Fprintf(formatter.Writer, "  %s.%s  %s\n", h.Screen, h.Event, h.Hash[:12])
	}
	if len(result.Handlers) > 0 {
		fmt.Fprintln(formatter.Writer)
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

func outputDiagnostics(formatter *OutputFormatter, diags []HandlerDiagnostic) error {
	if formatter.Format == "json" {
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Response{
			Status: "error",
			Error: &Error{
				Code:    string(diags[0].Diagnostic.Code),
				Message: diags[0].Diagnostic.Message,
			},
			Data: diags,
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure,
			fmt.Sprintf("compilation failed with %d diagnostic(s)", len(diags)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, d := range diags {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n",
			d.Diagnostic.Loc, d.Diagnostic.Code, d.Diagnostic.Message)
		if d.Diagnostic.Suggestion != "" {
			fmt.Fprintf(formatter.Writer, "  hint: %s\n", d.Diagnostic.Suggestion)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return NewExitError(ExitFailure,
		fmt.Sprintf("compilation failed with %d diagnostic(s)", len(diags)))
}
