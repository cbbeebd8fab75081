package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/sortie/internal/filter"
	"github.com/dyluth/sortie/internal/printer"
	"github.com/dyluth/sortie/internal/report"
	"github.com/dyluth/sortie/internal/resolver"
	"github.com/spf13/cobra"
)

func newAssignmentsCmd() *cobra.Command {
	var (
		redisURL     string
		instanceName string
		outputFormat string
		since        string
		until        string
		recipient    string
		minSurvival  float64
	)

	cmd := &cobra.Command{
		Use:   "assignments [ASSIGNMENT_ID]",
		Short: "Inspect the rescue assignments journaled on the blackboard",
		Long: `Inspect the rescue assignments of a mission instance in list or get mode.

List Mode (no ASSIGNMENT_ID):
  Displays assignments matching filters as a table or JSONL stream.

Get Mode (with ASSIGNMENT_ID):
  Displays one assignment as pretty-printed JSON.
  Accepts short IDs (e.g. "abc123" instead of the full UUID).

Output Formats (list mode only):
  default - Table with group, recipient, target count and top target
  jsonl   - Line-delimited JSON, one assignment per line

Filters (list mode only):
  --since/--until  - creation time bounds (duration like 2h or RFC3339)
  --recipient      - glob on the recipient ID ("RESCUER_*")
  --min-survival   - best survival estimate in the group

Examples:
  # Show the assignments of the default instance
  sortie assignments

  # Groups whose best victim has at least a 50% survival estimate
  sortie assignments --min-survival 0.5

  # Pipe recipients and target ids to jq
  sortie assignments -o jsonl | jq '{recipient, ids: [.targets[].id]}'

  # Show one assignment by short ID
  sortie assignments abc123`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isGetMode := len(args) > 0

			var (
				format  report.OutputFormat
				filters filter.Criteria
			)
			if !isGetMode {
				var err error
				if format, err = report.ParseOutputFormat(outputFormat); err != nil {
					return printer.Error(
						"invalid output format",
						fmt.Sprintf("Unknown format: %s", outputFormat),
						[]string{"Valid formats: default, jsonl"},
					)
				}
				if err := filters.WithTimeRange(since, until, time.Now()); err != nil {
					return printer.Error("invalid time filter", err.Error(),
						[]string{"Use a duration like 1h30m or an RFC3339 timestamp"})
				}
				filters.RecipientGlob = recipient
				filters.MinSurvival = minSurvival
			}

			ctx := cmd.Context()
			client, err := openBlackboard(ctx, redisURL, instanceName)
			if err != nil {
				return printer.ErrorWithContext(
					"blackboard unavailable",
					err.Error(),
					map[string]string{"Redis": redisURL, "Instance": instanceName},
					[]string{"Pass the journal location with --redis-url or SORTIE_REDIS_URL"},
				)
			}
			defer client.Close()

			if !isGetMode {
				return report.ListAssignments(ctx, client, format, &filters, printer.Out())
			}

			a, err := resolver.ResolveAssignment(ctx, client, args[0])
			if err != nil {
				var notFound *resolver.NotFoundError
				var ambiguous *resolver.AmbiguousError
				switch {
				case errors.As(err, &ambiguous):
					return printer.Error("ambiguous assignment ID", resolver.FormatAmbiguousError(ambiguous), nil)
				case errors.As(err, &notFound):
					return printer.ErrorWithContext(
						"assignment not found",
						err.Error(),
						map[string]string{"Instance": instanceName},
						[]string{"List assignments with:\n  sortie assignments"},
					)
				default:
					return printer.Error("invalid assignment ID", err.Error(), nil)
				}
			}
			return report.FormatSingleJSON(printer.Out(), a)
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", redisURLFromEnv(), "Blackboard Redis URL")
	cmd.Flags().StringVarP(&instanceName, "instance", "n", "sortie", "Mission instance name")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	cmd.Flags().StringVar(&since, "since", "", "Show assignments created after time (duration or RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "Show assignments created before time (duration or RFC3339)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Filter by recipient (glob pattern)")
	cmd.Flags().Float64Var(&minSurvival, "min-survival", 0, "Minimum best survival estimate in the group")
	return cmd
}
