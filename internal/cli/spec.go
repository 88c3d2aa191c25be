package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/schema"
)

// NewSpecCommand creates the spec command.
func NewSpecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Print the compiled control store schema",
		Long: `Print the compiled control store schema.

Compiles the CUE schema the reconciler would apply: the built-in one, or
the file named by spec_path when a config file sets it. Useful for
checking a custom schema before pointing reconcile at it.

Example:
  eventbook spec
  eventbook --config eventbook.toml spec --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpec(rootOpts, cmd)
		},
	}

	return cmd
}

func runSpec(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	spec, err := loadStoreSpec(cfg.SpecPath)
	if err != nil {
		if outErr := formatter.Error(string(fault.CodeSchemaCorrupt), err.Error(), nil); outErr != nil {
			return WrapExitError(ExitCommandError, "failed to write error output", outErr)
		}
		return WrapExitError(ExitFailure, "schema compilation failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(spec)
	}

	w := formatter.Writer
	for _, table := range spec.Tables {
		fmt.Fprintf(w, "table %s\n", table.Name)
		for _, col := range table.Columns {
			fmt.Fprintf(w, "  %-14s %s\n", col.Name, col.Type)
		}
		if len(table.Unique) > 0 {
			fmt.Fprintf(w, "  unique(%s)\n", strings.Join(table.Unique, ", "))
		}
		if len(table.Seeds) > 0 {
			fmt.Fprintf(w, "  seed rows: %d\n", len(table.Seeds))
		}
	}
	return nil
}

func loadStoreSpec(path string) (record.StoreSpec, error) {
	if path != "" {
		return schema.LoadSpecFile(path)
	}
	return schema.DefaultSpec()
}
