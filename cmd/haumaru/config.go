package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/config"
)

// loadConfig resolves the effective configuration for a subcommand:
// --config (or discovery) provides the base, then --path/--working
// override individual fields.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Config{}, err
		}
		discovered, err := config.Discover(cwd)
		if err != nil {
			return config.Config{}, err
		}
		path = discovered
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if override, _ := cmd.Flags().GetString("path"); override != "" {
		cfg.Path = override
	}
	if override, _ := cmd.Flags().GetString("working"); override != "" {
		cfg.Working = override
	}
	return cfg, nil
}

func addPathFlags(cmd *cobra.Command) {
	cmd.Flags().String("path", "", "override the backup root from the config file")
	cmd.Flags().String("working", "", "override the working directory from the config file")
}
