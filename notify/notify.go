// Package notify delivers rendered reports. Delivery failures are reported
// to the caller, which logs them; they never fail a run.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// Notifier delivers one formatted report.
type Notifier interface {
	Name() string
	Send(ctx context.Context, report string) error
}

// deliveryDelays are the pauses before each delivery attempt.
var deliveryDelays = []time.Duration{0, time.Second, 5 * time.Second}

// withRetry calls send with fixed delays until it succeeds or the delays
// run out.
func withRetry(ctx context.Context, logger *slog.Logger, name string, delays []time.Duration, send func(context.Context) error) error {
	var lastErr error
	for attempt, delay := range delays {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return models.NewScrapeError(models.ErrCodeNotifier, name+": delivery canceled", ctx.Err())
			case <-timer.C:
			}
		}
		err := send(ctx)
		if err == nil {
			logger.Info("report delivered", "notifier", name, "attempt", attempt+1)
			return nil
		}
		lastErr = err
		logger.Warn("report delivery failed", "notifier", name, "attempt", attempt+1, "error", err)
	}
	return models.NewScrapeError(models.ErrCodeNotifier, name+": all delivery attempts failed", lastErr)
}

// Multi fans a report out to several notifiers. Every notifier is tried;
// the joined errors of the failed ones are returned.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, report string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes the report to the logger. It is the fallback when no
// delivery channel is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Name() string { return "log" }

func (l Log) Send(_ context.Context, report string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("report", "text", report)
	return nil
}

// FromConfig builds the notifiers enabled in cfg, falling back to Log.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	var out Multi
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, NewTelegram(cfg.TelegramAPI, cfg.TelegramToken, cfg.TelegramChatID, logger))
	} else {
		logger.Warn("telegram not configured")
	}
	if cfg.WebhookURL != "" {
		out = append(out, NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, logger))
	}
	switch len(out) {
	case 0:
		return Log{Logger: logger}
	case 1:
		return out[0]
	default:
		return out
	}
}
