package commands

import (
	"github.com/dyluth/sortie/internal/config"
	"github.com/dyluth/sortie/internal/printer"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a mission file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return printer.ErrorWithContext(
					"invalid mission file",
					err.Error(),
					map[string]string{"File": configPath},
					[]string{"Fix the reported field and run:\n  sortie validate -f " + configPath},
				)
			}

			printer.Success("%s is valid\n", configPath)
			printer.Info("  grid:      %dx%d, %d walls\n", cfg.Grid.Width, cfg.Grid.Height, len(cfg.Grid.Walls))
			printer.Info("  explorers: %v\n", cfg.ExplorerNames())
			printer.Info("  rescuers:  %v\n", cfg.RescuerNames())
			printer.Info("  targets:   %d\n", len(cfg.Targets))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "sortie.yml", "Mission file")
	return cmd
}
