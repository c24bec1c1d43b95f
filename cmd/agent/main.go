package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deltabot/config"
	"deltabot/internal/adapters/execute"
	"deltabot/internal/adapters/feed"
	"deltabot/internal/adapters/notify"
	"deltabot/internal/adapters/sentiment"
	"deltabot/internal/adapters/storage"
	"deltabot/internal/agent"
	"deltabot/internal/analyzer"
	"deltabot/internal/compound"
	"deltabot/internal/ports"
	"deltabot/internal/risk"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	replayFile := flag.String("replay", "", "replay ticks from a JSONL file instead of the websocket feed")
	verbose := flag.Bool("verbose", false, "set log level to debug and print skipped ticks")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	history := flag.Bool("history", false, "print completed compound cycles and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *replayFile != "" {
		cfg.Feed.ReplayFile = *replayFile
	}

	if *history {
		printHistory(cfg)
		return
	}

	slog.Info("deltabot starting",
		"config", *configPath,
		"symbols", cfg.Feed.Symbols,
		"replay", cfg.Feed.ReplayFile,
		"preview", cfg.Agent.Preview,
	)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	marketFeed, err := openFeed(cfg)
	if err != nil {
		slog.Error("failed to open market feed", "err", err)
		os.Exit(1)
	}
	defer marketFeed.Close()

	var sentimentProvider ports.SentimentProvider
	if cfg.Sentiment.BaseURL != "" {
		sentimentProvider, err = sentiment.New(sentiment.Config{
			BaseURL: cfg.Sentiment.BaseURL,
			APIKey:  cfg.Sentiment.APIKey,
			TTL:     cfg.SentimentTTL(),
		})
		if err != nil {
			slog.Error("failed to build sentiment provider", "err", err)
			os.Exit(1)
		}
	}

	orch := agent.New(agent.Config{
		InitialBalance:  cfg.Agent.InitialBalance,
		SentimentWeight: cfg.Agent.SentimentWeight,
		ExecTimeout:     cfg.ExecTimeout(),
		StatusInterval:  cfg.StatusInterval(),
		PersistRetries:  cfg.Agent.PersistRetries,
		Preview:         cfg.Agent.Preview,
	}, agent.Deps{
		Feed:      marketFeed,
		Executor:  execute.NewPaper(0, 0),
		Store:     store,
		Notifier:  notify.NewConsole(*verbose),
		Sentiment: sentimentProvider,
		Analyzer: analyzer.New(analyzer.Config{
			DeltaThreshold:   cfg.Analyzer.DeltaThreshold,
			VolumeMultiplier: cfg.Analyzer.VolumeMultiplier,
			VolumeMinimum:    cfg.Analyzer.VolumeMinimum,
			SpreadMaximum:    cfg.Analyzer.SpreadMaximum,
			MomentumWindow:   cfg.Analyzer.MomentumWindow,
			MinConfidence:    cfg.Analyzer.MinConfidence,
			StopLossPct:      cfg.Analyzer.StopLossPct,
			TakeProfitPct:    cfg.Analyzer.TakeProfitPct,
			MaxHold:          cfg.MaxHold(),
			MaxErrors:        cfg.Analyzer.MaxErrors,
		}),
		Gate: risk.New(risk.Policy{
			MaxPortfolioRiskPct: cfg.Risk.MaxPortfolioRiskPct,
			MaxPositionPct:      cfg.Risk.MaxPositionPct,
			MaxDailyTrades:      cfg.Risk.MaxDailyTrades,
			MaxDailyLossPct:     cfg.Risk.MaxDailyLossPct,
			EmergencyStopPct:    cfg.Risk.EmergencyStopPct,
			TradingHourStart:    cfg.Risk.TradingHourStart,
			TradingHourEnd:      cfg.Risk.TradingHourEnd,
			Preview:             cfg.Agent.Preview,
			ResetToken:          cfg.Risk.ResetToken,
		}),
		Compound: compound.New(compound.Config{
			InitialCapital: cfg.Compound.InitialCapital,
			TargetCapital:  cfg.Compound.TargetCapital,
			BaseRiskPct:    cfg.Compound.BaseRiskPct,
			MaxRiskPct:     cfg.Compound.MaxRiskPct,
			MaxDailyTrades: cfg.Compound.MaxDailyTrades,
		}),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		startAdminServer(ctx, cfg.Metrics.Addr, orch)
	}

	if err := orch.Run(ctx); err != nil {
		slog.Error("agent exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("deltabot stopped cleanly")
}

// openStore selects the state store from the DSN: a .json path uses the
// plain file store, anything else is a SQLite path.
func openStore(cfg *config.Config) (ports.StateStore, error) {
	if strings.HasSuffix(cfg.Storage.DSN, ".json") {
		return storage.NewFileStore(cfg.Storage.DSN)
	}
	return storage.NewSQLiteStore(cfg.Storage.DSN)
}

func openFeed(cfg *config.Config) (ports.MarketFeed, error) {
	if cfg.Feed.ReplayFile != "" {
		return feed.NewReplayFeed(cfg.Feed.ReplayFile, cfg.ReplayDelay())
	}
	return feed.NewWSFeed(feed.WSConfig{
		URL:         cfg.Feed.URL,
		Symbols:     cfg.Feed.Symbols,
		HistorySize: cfg.Feed.HistorySize,
		AvgWindow:   cfg.Feed.AvgWindow,
		SpikePct:    cfg.Feed.SpikePct,
	})
}

// printHistory renders the completed compound cycles from storage.
func printHistory(cfg *config.Config) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	cycles, err := store.CycleHistory(context.Background(), 50)
	if err != nil {
		slog.Error("failed to read cycle history", "err", err)
		os.Exit(1)
	}
	notify.RenderCycles(os.Stdout, cycles)
}

// startAdminServer serves Prometheus metrics and the emergency reset
// endpoint until the context ends.
func startAdminServer(ctx context.Context, addr string, orch *agent.Orchestrator) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /admin/emergency-reset", func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Reset-Token")
		if !orch.ResetEmergencyStop(r.Context(), token) {
			http.Error(w, "invalid reset authorization", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
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
