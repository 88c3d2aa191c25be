package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/record"
)

// stateResult is the JSON payload of a state read.
type stateResult struct {
	Key         string        `json:"key"`
	State       record.Status `json:"state"`
	HasResource bool          `json:"has_resource"`
	HasLinks    bool          `json:"has_links"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <event>",
		Short: "Report an event's provisioning state",
		Long: `Report an event's provisioning state.

The event is addressed by id or slug. Shows the lifecycle stage plus
whether the workbook and the links have been provisioned yet.

Example:
  eventbook state fall-league`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runState(opts *RootOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	svc, _, err := openService(opts, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.GetState(cmd.Context(), key)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(stateResult{
			Key:         key,
			State:       res.State,
			HasResource: res.HasResource,
			HasLinks:    res.HasLinks,
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "state:    %s\n", res.State)
	fmt.Fprintf(w, "resource: %s\n", yesNo(res.HasResource))
	fmt.Fprintf(w, "links:    %s\n", yesNo(res.HasLinks))
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
