package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/discovery"
	"github.com/sells-group/contact-finder/internal/monitoring"
	"github.com/sells-group/contact-finder/internal/source"
)

var (
	discoverInput       string
	discoverSheet       string
	discoverConcurrency int
	discoverDeadline    time.Duration
	discoverNoResume    bool
	discoverSummary     string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find contact emails for every organization in an input file",
	Long: `Reads organizations from a CSV, JSON or XLSX file and records the emails
found for each one in the configured sink (csv, sqlite or postgres).

Organizations already in the sink are skipped, so an interrupted run can be
restarted with the same command.

Examples:
  contact-finder discover --input agencies.json
  contact-finder discover --input agencies.xlsx --sheet Costa --concurrency 8
  CONTACT_STORE_DRIVER=sqlite CONTACT_STORE_DATABASE_URL=results.db contact-finder discover --input agencies.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, err := openSource(discoverInput, discoverSheet)
		if err != nil {
			return err
		}

		env, err := initDiscovery(ctx, cfg, true)
		if err != nil {
			return eris.Wrap(err, "discover: init")
		}
		defer env.Close()

		concurrency := discoverConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentOrgs
		}
		deadline := discoverDeadline
		if deadline == 0 && cfg.Batch.DeadlineMins > 0 {
			deadline = time.Duration(cfg.Batch.DeadlineMins) * time.Minute
		}

		batch := discovery.NewBatch(env.Orchestrator, env.Sink, discovery.BatchOptions{
			MaxConcurrent: concurrency,
			Deadline:      deadline,
			Resume:        !discoverNoResume,
		})
		sum, runErr := batch.Run(ctx, src)

		alerter := monitoring.NewAlerter(cfg.Monitor)
		if alerts := alerter.Evaluate(sum, runErr); len(alerts) > 0 {
			// The batch context may be cancelled; alerts still go out.
			alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			alerter.SendAlerts(alertCtx, alerts)
			cancel()
		}

		if discoverSummary != "" {
			if err := writeSummary(discoverSummary, sum); err != nil {
				return err
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "discover")
		}
		return nil
	},
}

func openSource(path, sheet string) (source.Source, error) {
	if path == "" {
		return nil, eris.New("--input is required")
	}
	if sheet != "" {
		return source.NewXLSX(path, sheet), nil
	}
	return source.FromFile(path)
}

func writeSummary(path string, sum discovery.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write summary %s", path)
	}
	zap.L().Info("summary written", zap.String("path", path))
	return nil
}

func init() {
	discoverCmd.Flags().StringVar(&discoverInput, "input", "", "organizations file (.csv, .json or .xlsx)")
	discoverCmd.Flags().StringVar(&discoverSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	discoverCmd.Flags().IntVar(&discoverConcurrency, "concurrency", 0, "organizations processed at once (default from config)")
	discoverCmd.Flags().DurationVar(&discoverDeadline, "deadline", 0, "stop the batch after this long (default from config)")
	discoverCmd.Flags().BoolVar(&discoverNoResume, "no-resume", false, "process organizations already in the sink again")
	discoverCmd.Flags().StringVar(&discoverSummary, "summary", "", "write the batch summary as JSON to this path")
	_ = discoverCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(discoverCmd)
}
