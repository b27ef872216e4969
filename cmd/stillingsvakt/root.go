package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/oyvindh/stillingsvakt/internal/adapter"
	"github.com/oyvindh/stillingsvakt/internal/ai"
	"github.com/oyvindh/stillingsvakt/internal/config"
	"github.com/oyvindh/stillingsvakt/internal/filter"
	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/notifier"
	"github.com/oyvindh/stillingsvakt/internal/pipeline"
	"github.com/oyvindh/stillingsvakt/internal/ratelimit"
	"github.com/oyvindh/stillingsvakt/internal/retry"
	"github.com/oyvindh/stillingsvakt/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	debug   bool
)

// How many postings are annotated concurrently within one run.
const annotationConcurrency = 4

var rootCmd = &cobra.Command{
	Use:   "stillingsvakt",
	Short: "Stillingsvakt — a personal job posting watchdog",
	Long:  "Stillingsvakt collects job postings from FINN and NAV, keeps one deduplicated catalogue, and alerts you to relevant new openings.",
	// Default to `start` so that `stillingsvakt` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: STILLINGSVAKT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > STILLINGSVAKT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	// Secrets like NAV_API_TOKEN and OPENAI_API_KEY live in .env during
	// development; a missing file is fine.
	_ = godotenv.Load()

	if path == "" {
		if env := os.Getenv("STILLINGSVAKT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func setupAnnotator(cfg *config.Config, logger *slog.Logger) pipeline.Annotator {
	if !cfg.AI.ClassifyEnabled && !cfg.AI.SummarizeEnabled {
		return ai.NewNopAnnotator()
	}

	client := &http.Client{Timeout: cfg.AI.Timeout}
	provider := ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, client)
	policy := retry.Policy{MaxAttempts: cfg.AI.MaxAttempts, BaseDelay: cfg.AI.RetryDelay}

	logger.Info("llm annotation enabled",
		"model", cfg.AI.Model,
		"classify", cfg.AI.ClassifyEnabled,
		"summarize", cfg.AI.SummarizeEnabled,
	)
	return ai.NewLLMAnnotator(provider, cfg.AI.ClassifyEnabled, cfg.AI.SummarizeEnabled, policy, logger)
}

// buildSources assembles the enabled adapters, each wrapped with the shared
// per-source rate limiter and the whole-fetch retry policy.
func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []pipeline.SourceRunner {
	limiter := ratelimit.NewSourceLimiter(cfg.RateLimit.MinDelayFor)
	fetchPolicy := retry.Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second}

	var sources []pipeline.SourceRunner

	if cfg.Finn.Enabled {
		detailDelay := cfg.RateLimit.MinDelayFor(string(model.SourceFinn))
		finn := adapter.NewFinnAdapter(cfg.Finn.BaseURL, cfg.Finn.Location, cfg.Keywords, cfg.Finn.MaxPerKeyword, detailDelay, httpClient, logger)

		var a model.SourceAdapter = finn
		a = ratelimit.WrapAdapter(a, limiter)
		a = retry.WrapAdapter(a, fetchPolicy, logger)
		sources = append(sources, pipeline.SourceRunner{Adapter: a})
		logger.Info("registered source", "source", model.SourceFinn)
	}

	if cfg.Nav.Enabled {
		nav := adapter.NewNavAdapter(
			cfg.Nav.BaseURL,
			cfg.Nav.TokenURL,
			cfg.Nav.APIToken,
			cfg.Nav.MaxPages,
			filter.NewKeywordMatcher(cfg.Keywords),
			filter.NewLocationMatcher(cfg.Nav.County, cfg.Nav.Municipal),
			httpClient,
			logger,
		)

		var a model.SourceAdapter = nav
		a = ratelimit.WrapAdapter(a, limiter)
		a = retry.WrapAdapter(a, fetchPolicy, logger)
		sources = append(sources, pipeline.SourceRunner{Adapter: a, Cursor: nav})
		logger.Info("registered source", "source", model.SourceNav)
	}

	return sources
}

func buildLifecycle(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Lifecycle {
	return pipeline.NewLifecycle(st, cfg.Lifecycle.GraceWindow, cfg.Lifecycle.RetentionAge, logger)
}

func buildRunner(cfg *config.Config, st *store.Store, sources []pipeline.SourceRunner, lifecycle *pipeline.Lifecycle, n model.Notifier, logger *slog.Logger) *pipeline.Runner {
	reconciler := pipeline.NewReconciler(st, logger)
	annotation := pipeline.NewAnnotationStage(setupAnnotator(cfg, logger), st, annotationConcurrency, logger)
	return pipeline.NewRunner(sources, st, reconciler, annotation, lifecycle, n, logger)
}
