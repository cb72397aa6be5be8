// Package monitor drives one run: every target is processed in registry
// order on a single acquisition session, and each ends in exactly one
// result, null when it could not be determined.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/pricewatch/availability"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/evasion"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/mercadolibre"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/retry"
	"github.com/use-agent/pricewatch/scraper"
)

// ItemSource resolves API-backed targets.
type ItemSource interface {
	Item(ctx context.Context, id string) (*mercadolibre.Item, error)
}

// Runner processes targets sequentially. It owns the acquirer for the
// duration of Run and closes it on every exit path.
type Runner struct {
	acq       scraper.Acquirer
	items     ItemSource
	evasion   *evasion.Controller
	extractor *extract.Engine
	avail     *availability.Evaluator
	cfg       config.ScraperConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner wires a Runner. items may be nil when no target uses mode api.
func NewRunner(acq scraper.Acquirer, items ItemSource, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if scraperCfg.Pacing > 0 {
		limit = rate.Every(scraperCfg.Pacing)
	}
	return &Runner{
		acq:       acq,
		items:     items,
		evasion:   evasion.New(browserCfg, scraperCfg, logger),
		extractor: extract.New(logger),
		avail:     availability.New(logger),
		cfg:       scraperCfg,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		now:       time.Now,
	}
}

// Run processes targets in order and returns the run's snapshot. Results
// appear in registry order. A failing target never stops the run.
func (r *Runner) Run(ctx context.Context, targets []models.Target) models.Snapshot {
	defer r.acq.Close()

	start := r.now()
	results := make([]models.ExtractionResult, 0, len(targets))
	for i, t := range targets {
		r.logger.Info("processing target", "target", t.Name, "index", i+1, "total", len(targets))
		res := r.process(ctx, t)
		r.logger.Info("target done",
			"target", t.Name,
			"success", res.Success,
			"price", res.PriceValue(),
			"available", res.Available.String(),
			"failure", res.Failure,
		)
		results = append(results, res)
	}

	snap := models.NewSnapshot(r.now(), results)
	r.logger.Info("run complete",
		"targets", len(targets),
		"success", snap.SuccessCount,
		"elapsed", r.now().Sub(start).Round(time.Millisecond),
	)
	return snap
}

// process is the failure boundary of one target: errors and panics become
// a null result here.
func (r *Runner) process(ctx context.Context, t models.Target) (res models.ExtractionResult) {
	logger := r.logger.With("target", t.Name)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("target processing panicked", "error", fmt.Sprint(rec))
			res = models.FailedResult(t, models.ErrCodeInternal)
		}
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		logger.Warn("pacing wait interrupted", "error", err)
		return models.FailedResult(t, models.ErrCodeTimeout)
	}

	tctx := ctx
	if r.cfg.TargetTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.cfg.TargetTimeout)
		defer cancel()
	}

	if t.Mode == models.ModeAPI {
		return r.resolveAPI(tctx, t, logger)
	}
	return newMachine(r, t, logger).run(tctx)
}

// retryConfig is the navigation-level retry policy.
func (r *Runner) retryConfig(logger *slog.Logger, shouldRetry func(error) bool) retry.Config {
	return retry.Config{
		Attempts:    r.cfg.NavigationAttempts,
		Backoff:     r.cfg.RetryBackoff,
		ShouldRetry: shouldRetry,
		OnRetry: func(attempt int, err error) {
			logger.Warn("attempt failed, retrying",
				"attempt", attempt,
				"backoff", retry.Delay(attempt, r.cfg.RetryBackoff),
				"error", err,
			)
		},
	}
}

// resolveAPI reads price and availability from the items API.
func (r *Runner) resolveAPI(ctx context.Context, t models.Target, logger *slog.Logger) models.ExtractionResult {
	if r.items == nil {
		logger.Error("api target without an item source")
		res := models.FailedResult(t, models.ErrCodeAPI)
		res.URL = mercadolibre.Locator(t.ItemID, nil)
		return res
	}

	it, err := retry.DoVal(ctx, r.retryConfig(logger, mercadolibre.IsTransient),
		func(ctx context.Context) (*mercadolibre.Item, error) {
			return r.items.Item(ctx, t.ItemID)
		})
	if err != nil {
		logger.Warn("item lookup failed", "item", t.ItemID, "error", err)
		res := models.FailedResult(t, models.CodeOf(err))
		res.URL = mercadolibre.Locator(t.ItemID, nil)
		return res
	}

	price := it.PriceValue()
	if price != nil && !t.Plausibility.Contains(*price) {
		logger.Warn("api price outside plausible range", "price", *price,
			"min", t.Plausibility.Min, "max", t.Plausibility.Max)
		price = nil
	}
	res := models.NewResult(t, price, it.Availability())
	res.URL = mercadolibre.Locator(t.ItemID, it)
	return res
}
