package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
)

// ProvisionOptions holds flags for the provision command.
type ProvisionOptions struct {
	*RootOptions
	Name      string
	StartDate string
	SeedMode  string
	ElimType  string
	Lat       float64
	Lng       float64
	Venue     string
	City      string
	State     string
	Country   string
}

// provisionResult is the JSON payload of a successful provision.
type provisionResult struct {
	ID         string             `json:"id"`
	Slug       string             `json:"slug"`
	Tag        string             `json:"tag"`
	Resource   record.ResourceRef `json:"resource"`
	Idempotent bool               `json:"idempotent"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProvisionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision an event with its workbook and links",
		Long: `Provision an event with its workbook and links.

Creates an event record from the name and start date, materializes its
workbook database and stores the navigation links. Repeating the call
with the same name and start date returns the existing event unchanged.

Example:
  eventbook provision --name "Fall League" --start-date 2025-10-01
  eventbook provision --name "Fall League" --start-date 2025-10-01 \
    --lat 40.015 --lng -105.27 --venue "Main Hall"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "event name (required)")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "start date as YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.SeedMode, "seed-mode", "", "bracket seeding mode (random|seeded)")
	cmd.Flags().StringVar(&opts.ElimType, "elim-type", "", "elimination format (single|double|none)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "venue latitude")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "venue longitude")
	cmd.Flags().StringVar(&opts.Venue, "venue", "", "venue name")
	cmd.Flags().StringVar(&opts.City, "city", "", "venue city")
	cmd.Flags().StringVar(&opts.State, "state", "", "venue state or region")
	cmd.Flags().StringVar(&opts.Country, "country", "", "venue country")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start-date")

	return cmd
}

func runProvision(opts *ProvisionOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	svc, _, err := openService(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	params := provision.Params{
		Name:      opts.Name,
		StartDate: opts.StartDate,
		SeedMode:  opts.SeedMode,
		ElimType:  opts.ElimType,
		Geo:       opts.geo(cmd),
	}
	res := svc.Provision(cmd.Context(), params)
	if res.Err != nil {
		return opFailure(formatter, res.Err)
	}

	if opts.Format == "json" {
		return formatter.Success(provisionResult{
			ID:         res.ID,
			Slug:       res.Slug,
			Tag:        res.Tag,
			Resource:   res.Resource,
			Idempotent: res.Idempotent,
			Warnings:   res.Warnings,
		})
	}

	w := formatter.Writer
	verb := "provisioned"
	if res.Idempotent {
		verb = "already provisioned"
	}
	fmt.Fprintf(w, "%s %s\n", verb, res.Tag)
	fmt.Fprintf(w, "  id:       %s\n", res.ID)
	fmt.Fprintf(w, "  slug:     %s\n", res.Slug)
	fmt.Fprintf(w, "  workbook: %s\n", res.Resource.Addr)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning:  %s\n", warn)
	}
	return nil
}

// geo assembles the optional location from flags. Nil when no geo flag
// was given at all.
func (o *ProvisionOptions) geo(cmd *cobra.Command) *record.Geo {
	hasCoords := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
	hasPlace := o.Venue != "" || o.City != "" || o.State != "" || o.Country != ""
	if !hasCoords && !hasPlace {
		return nil
	}
	return &record.Geo{
		Latitude:  o.Lat,
		Longitude: o.Lng,
		Venue:     o.Venue,
		City:      o.City,
		State:     o.State,
		Country:   o.Country,
	}
}
