package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/sortie/internal/config"
	"github.com/dyluth/sortie/internal/metrics"
	"github.com/dyluth/sortie/internal/mission"
	"github.com/dyluth/sortie/internal/printer"
	"github.com/dyluth/sortie/internal/report"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath   string
	redisURL     string
	metricsAddr  string
	maxTicks     int
	outputFormat string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a mission to completion",
		Long: `Run the mission described by a sortie.yml file.

Explorers tick until every one has returned home or stopped, the leading
explorer merges the maps, and the rescue leader writes one cluster file per
group (cluster1.txt, cluster2.txt, ...) into output.clusters_dir.

Optional surfaces:
  --redis-url     journal snapshots, the merged world and assignments to Redis
  --metrics-addr  serve /metrics and /healthz while the mission runs

Examples:
  sortie run -f sortie.yml
  sortie run -f sortie.yml --redis-url redis://localhost:6379 --metrics-addr :9090
  sortie run -f sortie.yml -o json | jq .report.overlap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMission(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "file", "f", "sortie.yml", "Mission file")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "Blackboard Redis URL (overrides blackboard.redis_url)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Address for /metrics and /healthz (overrides metrics.addr)")
	cmd.Flags().IntVar(&opts.maxTicks, "max-ticks", 0, "Stop after this many ticks (overrides max_ticks)")
	cmd.Flags().StringVarP(&opts.outputFormat, "output", "o", "default", "Output format: default or json")
	return cmd
}

func runMission(ctx context.Context, opts *runOptions) error {
	if opts.outputFormat != "default" && opts.outputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", opts.outputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return printer.ErrorWithContext(
			"invalid mission file",
			err.Error(),
			map[string]string{"File": opts.configPath},
			[]string{"Check the file with:\n  sortie validate -f " + opts.configPath},
		)
	}
	if opts.redisURL != "" {
		cfg.Blackboard.RedisURL = opts.redisURL
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.maxTicks > 0 {
		cfg.MaxTicks = &opts.maxTicks
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	missionOpts := mission.Options{Collector: collector}

	var pinger metrics.Pinger
	if cfg.Blackboard.RedisURL != "" {
		client, err := openBlackboard(ctx, cfg.Blackboard.RedisURL, cfg.Blackboard.Instance)
		if err != nil {
			return printer.ErrorWithContext(
				"blackboard unavailable",
				err.Error(),
				map[string]string{"Redis": cfg.Blackboard.RedisURL},
				[]string{
					"Start Redis and retry",
					"Run without a journal by omitting --redis-url and blackboard.redis_url",
				},
			)
		}
		defer client.Close()
		missionOpts.Journal = client
		pinger = client
	}

	if cfg.Metrics.Addr != "" {
		server := metrics.NewServer(cfg.Metrics.Addr, collector, pinger)
		if err := server.Start(); err != nil {
			return printer.Error(
				"metrics server failed to start",
				err.Error(),
				[]string{"Choose a free address with --metrics-addr"},
			)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		if opts.outputFormat == "default" {
			printer.Info("Serving metrics on http://%s/metrics\n", server.Addr())
		}
	}

	m, err := mission.Build(cfg, missionOpts)
	if err != nil {
		return printer.Error("mission could not be assembled", err.Error(), nil)
	}

	if opts.outputFormat == "json" {
		res, runErr := m.Run(ctx)
		if res != nil {
			if err := report.FormatSingleJSON(printer.Out(), res); err != nil {
				return err
			}
		}
		return runErr
	}

	printer.Step("Running mission %s (%d explorers, %d rescuers, %d targets)\n",
		m.RunID(), len(cfg.Explorers), len(cfg.Rescuers), len(cfg.Targets))

	res, err := m.Run(ctx)
	if res != nil {
		printer.Println()
		report.FormatSummary(printer.Out(), res)
		printer.Println()
	}
	if err != nil {
		return printer.Error("mission interrupted", err.Error(), nil)
	}

	if !res.Stats.Completed {
		printer.Warning("Tick limit %d reached before every agent finished\n", *cfg.MaxTicks)
		return nil
	}
	if len(res.Groups) > 0 {
		printer.Success("Mission complete: %d groups written to %s\n", len(res.Groups), cfg.Output.ClustersDir)
	} else {
		printer.Success("Mission complete\n")
	}
	return nil
}
