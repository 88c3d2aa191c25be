package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// archiveResult is the JSON payload of a successful archive.
type archiveResult struct {
	Key      string `json:"key"`
	Archived bool   `json:"archived"`
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <event>",
		Short: "Remove an event from the index",
		Long: `Remove an event from the index.

The event is addressed by id or slug. Only the control store row is
removed; the workbook database stays on disk untouched.

Example:
  eventbook archive fall-league`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runArchive(opts *RootOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	svc, _, err := openService(opts, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.Archive(cmd.Context(), key)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(archiveResult{Key: key, Archived: true})
	}
	fmt.Fprintf(formatter.Writer, "archived: %s\n", key)
	return nil
}
