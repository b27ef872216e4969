package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/scheduler"
	"github.com/oyvindh/stillingsvakt/internal/store"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync daemon",
	Long:  "Start the cron-driven sync and sweep daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"keywords", len(cfg.Keywords),
		"finn", cfg.Finn.Enabled,
		"nav", cfg.Nav.Enabled,
		"sync_spec", cfg.Schedule.Sync,
		"sweep_spec", cfg.Schedule.Sweep,
		"grace_window", cfg.Lifecycle.GraceWindow.String(),
		"retention_age", cfg.Lifecycle.RetentionAge.String(),
	)

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	n := setupNotifier(cfg, httpClient, logger)

	sources := buildSources(cfg, httpClient, logger)
	if len(sources) == 0 {
		logger.Error("no sources to sync")
		os.Exit(1)
	}

	lifecycle := buildLifecycle(cfg, st, logger)
	runner := buildRunner(cfg, st, sources, lifecycle, n, logger)

	runSync := func(ctx context.Context) {
		stats, err := runner.Run(ctx)
		if err != nil {
			logger.Error("sync run failed", "error", err)
			return
		}
		logger.Info("sync run finished",
			"run_id", stats.RunID,
			"fetched", stats.Fetched,
			"new", stats.New,
			"reobserved", stats.Reobserved,
			"irrelevant", stats.Irrelevant,
			"warnings", stats.Warnings,
		)
	}
	runSweep := func(ctx context.Context) {
		if _, err := lifecycle.Sweep(time.Now()); err != nil {
			logger.Error("retention sweep failed", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cfg.Schedule.Sync, cfg.Schedule.Sweep, runSync, runSweep, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sched.Stop()

	logger.Info("goodbye")
	return nil
}
