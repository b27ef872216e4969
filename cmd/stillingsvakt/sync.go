package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oyvindh/stillingsvakt/internal/pipeline"
	"github.com/oyvindh/stillingsvakt/internal/store"
	"github.com/spf13/cobra"
)

var (
	syncSource string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync now, then exit",
	Long:  "One-shot sync: fetches every enabled source, reconciles the catalogue, annotates new postings, exits.",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSource, "source", "", "sync only this source (FINN or NAV)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would change without writing anything")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	n := setupNotifier(cfg, httpClient, logger)

	sources := buildSources(cfg, httpClient, logger)
	if syncSource != "" {
		want := strings.ToUpper(syncSource)
		var kept []pipeline.SourceRunner
		for _, src := range sources {
			if string(src.Adapter.Source()) == want {
				kept = append(kept, src)
			}
		}
		if len(kept) == 0 {
			return fmt.Errorf("source %q is unknown or not enabled", syncSource)
		}
		sources = kept
	}
	if len(sources) == 0 {
		logger.Error("no sources to sync")
		os.Exit(1)
	}

	lifecycle := buildLifecycle(cfg, st, logger)
	runner := buildRunner(cfg, st, sources, lifecycle, n, logger)
	runner.SetDryRun(syncDryRun)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := runner.Run(ctx)
	if err != nil {
		logger.Error("sync run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("sync complete",
		"run_id", stats.RunID,
		"fetched", stats.Fetched,
		"new", stats.New,
		"reobserved", stats.Reobserved,
		"duplicates", stats.Duplicates,
		"irrelevant", stats.Irrelevant,
		"deactivated", stats.Deactivated,
		"expired", stats.Expired,
		"warnings", stats.Warnings,
		"failed_sources", len(stats.Failed),
	)
	return nil
}
