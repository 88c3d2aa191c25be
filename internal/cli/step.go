package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/record"
)

// stepResult is the JSON payload of a successful step.
type stepResult struct {
	Key   string        `json:"key"`
	State record.Status `json:"state"`
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step <event>",
		Short: "Advance an event's provisioning by one stage",
		Long: `Advance an event's provisioning by one stage.

The event is addressed by id or slug. A created event gains its
workbook, an event with a workbook gains its links, and a finished or
failed event stays where it is. Repair after a partial failure happens
by stepping again.

Example:
  eventbook step fall-league`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runStep(opts *RootOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	svc, _, err := openService(opts, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.Step(cmd.Context(), key)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(stepResult{Key: key, State: res.State})
	}
	fmt.Fprintf(formatter.Writer, "state: %s\n", res.State)
	return nil
}
