package monitor

import (
	"context"
	"log/slog"

	"github.com/use-agent/pricewatch/diff"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/notify"
	"github.com/use-agent/pricewatch/report"
)

// Collector produces a run's snapshot. *Runner is the production Collector.
type Collector interface {
	Run(ctx context.Context, targets []models.Target) models.Snapshot
}

// Job is one complete monitoring run: collect, compare with history,
// persist, render and deliver.
type Job struct {
	Collector Collector
	History   history.Store
	Renderer  *report.Renderer
	Notifier  notify.Notifier
	Logger    *slog.Logger
}

// Outcome is what a run produced.
type Outcome struct {
	Snapshot  models.Snapshot
	Diff      diff.Result
	Report    string
	Delivered bool
}

// Execute runs the job. History and delivery failures are logged and the
// run still completes; a report is always produced. A snapshot is not
// persisted when ctx ended during the run.
func (j *Job) Execute(ctx context.Context, targets []models.Target) Outcome {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	snap := j.Collector.Run(ctx, targets)

	var previous *models.Snapshot
	if j.History != nil {
		prev, err := j.History.Load(ctx)
		if err != nil {
			logger.Error("history unavailable, comparing as first run", "code", models.CodeOf(err), "error", err)
		} else {
			previous = prev
		}
	}

	res := diff.Compare(snap, previous)
	logger.Info("diff computed",
		"first_run", res.FirstRun,
		"has_drops", res.HasDrops,
		"changes", len(res.Changes),
	)

	// An interrupted run is mostly null results; keep the last complete one
	// as the baseline for the next run.
	switch {
	case j.History == nil:
	case ctx.Err() != nil:
		logger.Warn("run interrupted, snapshot not persisted", "error", ctx.Err())
	default:
		if err := j.History.Save(ctx, snap); err != nil {
			logger.Error("failed to persist snapshot", "code", models.CodeOf(err), "error", err)
		}
	}

	text := j.Renderer.Render(snap, res, snap.Timestamp)
	out := Outcome{Snapshot: snap, Diff: res, Report: text}

	if j.Notifier == nil {
		return out
	}
	if err := j.Notifier.Send(ctx, text); err != nil {
		logger.Error("report delivery failed", "notifier", j.Notifier.Name(), "error", err)
		return out
	}
	out.Delivered = true
	return out
}
