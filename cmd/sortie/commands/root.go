package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// NewRootCmd builds the sortie command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sortie",
		Short: "Sortie - multi-agent search and rescue mission runner",
		Long: `Sortie runs a search-and-rescue mission on a grid world.

Explorer agents map their sectors, collect victim signals and return to base.
The leading explorer merges every map once its peers have finished, and hands
the merged world to the rescue team, whose leader triages and clusters the
victims into one ordered group per rescuer.

Snapshots, the merged world, the synchronization report and every assignment
can be journaled to a Redis blackboard for later inspection.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		// Errors are printed by the printer package
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newValidateCmd(),
		newAssignmentsCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo records build information reported by --version and `sortie version`.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
