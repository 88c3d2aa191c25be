package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/record"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Etag string
}

// indexResult is the JSON payload of an index read.
type indexResult struct {
	Status int                 `json:"status"`
	Etag   string              `json:"etag"`
	Items  []record.IndexEntry `json:"items,omitempty"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Read the event index projection",
		Long: `Read the event index projection.

Lists every event record ordered by start date then slug, together with
the projection's ETag. Passing a previously returned ETag with --etag
performs a conditional read: an unchanged index answers 304 with no
items.

Example:
  eventbook index
  eventbook index --etag 4f2d1c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Etag, "etag", "", "client ETag for a conditional read")

	return cmd
}

func runIndex(opts *IndexOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	svc, _, err := openService(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.GetIndex(cmd.Context(), opts.Etag)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(indexResult{
			Status: res.Status,
			Etag:   res.Etag,
			Items:  res.Items,
		})
	}

	w := formatter.Writer
	if res.Status == http.StatusNotModified {
		fmt.Fprintf(w, "not modified (etag %s)\n", res.Etag)
		return nil
	}
	for _, item := range res.Items {
		marker := " "
		if item.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %-24s %s\n", marker, item.StartDate, item.Slug, item.Status)
	}
	fmt.Fprintf(w, "etag: %s\n", res.Etag)
	return nil
}
