package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command: compile-only checking
// with no IR output.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <bundle-dir>",
		Short: "Check a screen bundle without emitting IR",
		Long: `Load a CUE screen bundle and compile every handler, reporting
diagnostics without writing any output IR.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, bundleDir string, cmd *cobra.Command) error {
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
	if len(diags) > 0 {
		return outputDiagnostics(formatter, diags)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"screens":  len(bundle.Screens),
			"handlers": len(result.Handlers),
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d screen(s), %d handler(s) ok\n",
		len(bundle.Screens), len(result.Handlers))
	return nil
}
