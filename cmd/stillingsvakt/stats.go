package main

import (
	"fmt"
	"os"

	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalogue statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := st.Stats()
	if err != nil {
		logger.Error("failed to read stats", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Total postings:    %d\n", stats.Total)
	for _, status := range []model.Status{model.StatusActive, model.StatusInactive, model.StatusExpired} {
		if count, ok := stats.ByStatus[status]; ok {
			fmt.Printf("  %-16s %d\n", string(status)+":", count)
		}
	}
	for _, source := range []model.Source{model.SourceFinn, model.SourceNav} {
		if count, ok := stats.BySource[source]; ok {
			fmt.Printf("  from %-11s %d\n", string(source)+":", count)
		}
	}
	fmt.Printf("Favorites:         %d\n", stats.Favorites)
	fmt.Printf("Applied:           %d\n", stats.Applied)
	fmt.Printf("New last 7 days:   %d\n", stats.NewLast7d)
	fmt.Printf("Irrelevant cached: %d\n", stats.Irrelevant)
	return nil
}
