package commands

import (
	"strings"

	"github.com/dyluth/sortie/internal/printer"
	"github.com/dyluth/sortie/internal/scaffold"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write an example mission and triage model",
		Long: `Write an example sortie.yml and models/triage.yml into DIR (default: current directory).

The example mission has three explorers, three rescuers and seven victims on a
12x10 grid, and passes 'sortie validate' as written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			if err := scaffold.Initialize(dir, force); err != nil {
				if strings.HasPrefix(err.Error(), "mission already initialized") {
					return printer.Error(
						"mission already initialized",
						err.Error(),
						nil,
					)
				}
				return printer.Error("initialization failed", err.Error(), nil)
			}

			scaffold.PrintSuccess(dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}
