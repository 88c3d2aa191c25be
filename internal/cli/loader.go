package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/eventbook/internal/config"
	"github.com/roach88/eventbook/internal/schema"
	"github.com/roach88/eventbook/internal/service"
)

// resolveConfig builds the runtime configuration from flags. A config
// file, when given, supplies the base; --data-dir overrides it only
// when the flag was set explicitly.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = opts.DataDir
	}
	return cfg, nil
}

// openService reconciles the control store and assembles the service
// stack. Callers must Close the returned service.
func openService(opts *RootOptions, cmd *cobra.Command) (*service.Service, schema.Outcome, error) {
	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return nil, schema.Outcome{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	svc, outcome, err := service.Bootstrap(cmd.Context(), cfg)
	if err != nil {
		return nil, schema.Outcome{}, WrapExitError(ExitCommandError, "failed to open control store", err)
	}
	return svc, outcome, nil
}
