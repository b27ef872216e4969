package main

import (
	"os"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/store"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the retention sweep now, then exit",
	Long:  "Deletes INACTIVE and EXPIRED postings unobserved for longer than the retention age. Favorite and applied postings are never deleted.",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	lifecycle := buildLifecycle(cfg, st, logger)
	if _, err := lifecycle.Sweep(time.Now()); err != nil {
		logger.Error("retention sweep failed", "error", err)
		os.Exit(1)
	}
	return nil
}
