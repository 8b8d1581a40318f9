package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/predictor/config"
	"github.com/alejandrodnm/predictor/internal/adapters/llm"
	"github.com/alejandrodnm/predictor/internal/adapters/news"
	"github.com/alejandrodnm/predictor/internal/adapters/notify"
	"github.com/alejandrodnm/predictor/internal/adapters/polymarket"
	"github.com/alejandrodnm/predictor/internal/adapters/social"
	"github.com/alejandrodnm/predictor/internal/adapters/storage"
	"github.com/alejandrodnm/predictor/internal/classifier"
	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/engine"
	"github.com/alejandrodnm/predictor/internal/health"
	"github.com/alejandrodnm/predictor/internal/learning"
	"github.com/alejandrodnm/predictor/internal/pipeline"
	"github.com/alejandrodnm/predictor/internal/ports"
	"github.com/alejandrodnm/predictor/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	log.Info("predictor starting",
		"environment", cfg.Environment,
		"model", cfg.Model,
		"bankroll", cfg.Bankroll,
		"tier1_interval_min", cfg.Tier1.ScanIntervalMinutes,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		log.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.ApplySchema(ctx); err != nil {
		log.Error("failed to apply schema", "err", err)
		os.Exit(1)
	}

	if err := ensureExperiment(ctx, store, cfg); err != nil {
		log.Error("failed to ensure experiment run", "err", err)
		os.Exit(1)
	}
	if err := ensurePortfolio(ctx, store, cfg.Bankroll); err != nil {
		log.Error("failed to init portfolio", "err", err)
		os.Exit(1)
	}

	state := learning.NewState(store, log)
	if err := state.Load(ctx); err != nil {
		log.Error("failed to load learning state", "err", err)
		os.Exit(1)
	}

	registry, err := classifier.LoadRegistry(cfg.Sources.KnownSourcesPath)
	if err != nil {
		log.Error("failed to load source registry", "err", err)
		os.Exit(1)
	}
	collector, err := news.NewCollector(cfg.Sources.RSSFeedsPath, log)
	if err != nil {
		log.Error("failed to load rss feeds", "err", err)
		os.Exit(1)
	}

	market := polymarket.NewClient(cfg.API.MarketBase, cfg.API.BooksBase)
	searcher := social.NewSearcher(cfg.API.SocialBase, cfg.SocialAPIKey, registry, log)
	completer := llm.NewClient(cfg.API.LLMBase, cfg.LLMAPIKey, cfg.Model, log)
	notifier := notify.NewConsole()

	var executor ports.OrderExecutor
	if cfg.Environment == "live" {
		executor = polymarket.NewLiveExecutor(market)
		log.Warn("LIVE environment: orders hit the real exchange")
	} else {
		executor = engine.NewPaperExecutor(time.Now().UnixNano())
	}

	scanner := scheduler.NewScanner(scheduler.ScannerDeps{
		Cfg:       cfg,
		Store:     store,
		Markets:   market,
		Books:     market,
		News:      collector,
		Social:    searcher,
		Completer: completer,
		Executor:  executor,
		Notifier:  notifier,
		Learning:  state,
		Keywords:  pipeline.NewKeywordExtractor(completer, log),
		Tier1: func(ms []domain.Market) []domain.Market {
			return polymarket.FilterTier1(ms, cfg.Tier1.MinHoursToRes, cfg.Tier1.MaxHoursToRes, cfg.Tier1.MinLiquidity)
		},
		Tier2: polymarket.FilterTier2,
		Log:   log,
	})

	resolver := engine.NewResolver(store, market, state, log)
	sched := scheduler.New(cfg, scanner, resolver, store, notifier, log)
	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "err", err)
		os.Exit(1)
	}

	healthSrv := health.NewServer(cfg.Health.Addr, store, sched, log)
	go func() {
		if err := healthSrv.Run(); err != nil {
			log.Error("health server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("health server shutdown", "err", err)
	}
	log.Info("predictor stopped cleanly")
}

// ensureExperiment abre un run si no hay ninguno activo. El snapshot de
// configuración se persiste con los secretos redactados.
func ensureExperiment(ctx context.Context, store *storage.SQLiteStorage, cfg *config.Config) error {
	_, ok, err := store.ActiveExperiment(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	now := time.Now().UTC()
	run := domain.ExperimentRun{
		RunID:             fmt.Sprintf("run_%s", now.Format("20060102_150405")),
		StartedAt:         now,
		ConfigSnapshot:    cfg.SafeSnapshot(),
		Description:       "auto-started on boot",
		ModelUsed:         cfg.Model,
		IncludeInLearning: true,
	}
	if err := store.StartExperiment(ctx, run); err != nil {
		return err
	}
	slog.Info("experiment run started", "run_id", run.RunID, "model", run.ModelUsed)
	return nil
}

// ensurePortfolio crea la fila de cartera con el bankroll inicial si no existe.
func ensurePortfolio(ctx context.Context, store *storage.SQLiteStorage, bankroll float64) error {
	_, ok, err := store.LoadPortfolio(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return store.SavePortfolio(ctx, domain.NewPortfolio(bankroll))
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
