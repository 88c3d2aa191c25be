package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ensure the control store exists and matches its schema",
		Long: `Ensure the control store exists and matches its schema.

Opens the store referenced by the data directory, adopting a valid store
found by scan or rebuilding an invalid one. The outcome reports which of
those paths was taken, plus any duplicate files set aside and any tables
whose rows a rebuild had to abandon.

Example:
  eventbook reconcile
  eventbook --data-dir /srv/events reconcile --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(rootOpts, cmd)
		},
	}

	return cmd
}

func runReconcile(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	svc, outcome, err := openService(opts, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if opts.Format == "json" {
		return formatter.Success(outcome)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "store %s at %s\n", outcome.Status, outcome.Path)
	for _, name := range outcome.Duplicates {
		fmt.Fprintf(w, "  set aside: %s\n", name)
	}
	for _, table := range outcome.Lost {
		fmt.Fprintf(w, "  rows lost from: %s\n", table)
	}
	return nil
}
