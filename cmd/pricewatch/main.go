package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/mercadolibre"
	"github.com/use-agent/pricewatch/monitor"
	"github.com/use-agent/pricewatch/notify"
	"github.com/use-agent/pricewatch/registry"
	"github.com/use-agent/pricewatch/report"
	"github.com/use-agent/pricewatch/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logger := initLogger(cfg.Log)
	logger.Info("pricewatch starting",
		"targets", cfg.Registry.Path,
		"history", cfg.History.Backend,
		"headless", cfg.Browser.Headless,
	)

	// ── 3. Load the target registry ─────────────────────────────────
	targets, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		logger.Error("invalid target registry", "path", cfg.Registry.Path, "error", err)
		os.Exit(1)
	}
	logger.Info("registry loaded", "count", len(targets))

	rend, err := report.New(cfg.Report)
	if err != nil {
		logger.Error("invalid report configuration", "error", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancel the run; targets still pending end as null
	// results and the report is still produced.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Acquisition session and item source ──────────────────────
	session := scraper.NewSession(
		scraper.NewScraper(cfg.Browser, cfg.Scraper, logger),
		scraper.NewHTTPFetcher(nil, cfg.Browser.DefaultProxy),
	)
	items := mercadolibre.NewClient(cfg.MercadoLibre, cfg.Browser.DefaultProxy, logger)
	runner := monitor.NewRunner(session, items, cfg.Browser, cfg.Scraper, logger)

	// ── 5. History ──────────────────────────────────────────────────
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		logger.Error("history unavailable, running without it", "error", err)
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("history close failed", "error", err)
			}
		}()
	}

	// ── 6. Run ──────────────────────────────────────────────────────
	job := &monitor.Job{
		Collector: runner,
		History:   store,
		Renderer:  rend,
		Notifier:  notify.FromConfig(cfg.Notify, logger),
		Logger:    logger,
	}
	out := job.Execute(ctx, targets)

	logger.Info("pricewatch finished",
		"success", out.Snapshot.SuccessCount,
		"targets", len(out.Snapshot.Results),
		"drops", len(out.Diff.Drops()),
		"delivered", out.Delivered,
	)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) *slog.Logger {
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

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
