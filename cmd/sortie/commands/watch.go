package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/sortie/internal/printer"
	"github.com/dyluth/sortie/internal/report"
	"github.com/dyluth/sortie/internal/watch"
	"github.com/spf13/cobra"
)

const defaultWaitTimeout = time.Minute

func newWatchCmd() *cobra.Command {
	var (
		redisURL     string
		instanceName string
		outputFormat string
		forRecipient string
		exitAfter    int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow mission events live",
		Long: `Follow the events a running mission publishes on the blackboard:
world-view snapshots, the merged world, the synchronization report and
assignments.

With --for, waits instead for one rescuer's assignment and prints it as JSON.

Examples:
  # Stream events until interrupted
  sortie watch

  # Stop once three assignments were delivered
  sortie watch --exit-after 3 -o jsonl

  # Block until RESCUER_2 has its group
  sortie watch --for RESCUER_2 --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonl := outputFormat == "jsonl"
			if !jsonl && outputFormat != "default" {
				return printer.Error(
					"invalid output format",
					"Unknown format: "+outputFormat,
					[]string{"Valid formats: default, jsonl"},
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

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

			if forRecipient != "" {
				if timeout <= 0 {
					timeout = defaultWaitTimeout
				}
				a, err := watch.PollForAssignment(ctx, client, forRecipient, timeout)
				if err != nil {
					return printer.Error("no assignment received", err.Error(),
						[]string{"Check the mission is running with the same --instance"})
				}
				return report.FormatSingleJSON(printer.Out(), a)
			}

			sub, err := client.SubscribeMissionEvents(ctx)
			if err != nil {
				return printer.Error("subscription failed", err.Error(), nil)
			}
			defer sub.Close()

			if !jsonl {
				printer.Info("Watching mission events for instance '%s' (Ctrl+C to stop)\n", instanceName)
			}
			streamCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				streamCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return watch.StreamEvents(streamCtx, sub, printer.Out(), jsonl, exitAfter)
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", redisURLFromEnv(), "Blackboard Redis URL")
	cmd.Flags().StringVarP(&instanceName, "instance", "n", "sortie", "Mission instance name")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "default", "Output format: default or jsonl")
	cmd.Flags().StringVar(&forRecipient, "for", "", "Wait for this rescuer's assignment and print it")
	cmd.Flags().IntVar(&exitAfter, "exit-after", 0, "Stop after this many assignment events (0 = never)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (with --for: default 1m)")
	return cmd
}
