package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// setDefaultResult is the JSON payload of a successful set-default.
type setDefaultResult struct {
	Key     string `json:"key"`
	Default bool   `json:"default"`
}

// NewSetDefaultCommand creates the set-default command.
func NewSetDefaultCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-default <event>",
		Short: "Mark one event as the default",
		Long: `Mark one event as the default.

The event is addressed by id or slug. At most one record carries the
default flag; marking a new default clears the previous one in the same
transaction.

Example:
  eventbook set-default fall-league`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetDefault(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSetDefault(opts *RootOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	svc, _, err := openService(opts, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.SetDefault(cmd.Context(), key)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(setDefaultResult{Key: key, Default: true})
	}
	fmt.Fprintf(formatter.Writer, "default set: %s\n", key)
	return nil
}
