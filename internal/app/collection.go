package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	"github.com/wisbric/blacklistguard/pkg/collector"
	"github.com/wisbric/blacklistguard/pkg/history"
	"github.com/wisbric/blacklistguard/pkg/normalize"
	"github.com/wisbric/blacklistguard/pkg/regtech"

	"github.com/wisbric/blacklistguard/internal/telemetry"
)

// collectionRunner bridges the scheduler's per-tick trigger to the
// collect -> normalize -> upsert -> record-history pipeline (C4/C5/C6). It
// implements scheduler.Runner.
type collectionRunner struct {
	registry  *collector.Registry
	blacklist blacklist.Store
	history   history.Store
	logger    *slog.Logger
}

func newCollectionRunner(registry *collector.Registry, bl blacklist.Store, hist history.Store, logger *slog.Logger) *collectionRunner {
	return &collectionRunner{registry: registry, blacklist: bl, history: hist, logger: logger}
}

// RunCollection implements scheduler.Runner. A regtech source marked
// scheduled via SetScheduled enables the all-data fallback strategy (§4.3
// strategy #4). Daily/adaptive ticks and force runs pass scheduled=true;
// manual triggers pass false.
func (c *collectionRunner) RunCollection(ctx context.Context, sourceName string, rng collector.DateRange, maxPages int, scheduled bool) (int, error) {
	started := time.Now()

	regtechScheduled(c.registry, scheduled)

	src, err := c.registry.Get(sourceName)
	if err != nil {
		return 0, err
	}

	records, collectErr := src.Collect(ctx, rng, maxPages)

	finished := time.Now()
	run := history.Run{
		ServiceName: sourceName,
		StartedAt:   started,
		FinishedAt:  finished,
		DurationMS:  finished.Sub(started).Milliseconds(),
	}

	if collectErr != nil {
		run.Success = false
		run.ErrorMessage = collectErr.Error()
		telemetry.CollectionRunsTotal.WithLabelValues(sourceName, "failure").Inc()
		if recErr := c.history.Record(ctx, run); recErr != nil {
			c.logger.Error("recording collection history", "source", sourceName, "error", recErr)
		}
		return 0, fmt.Errorf("collecting from %s: %w", sourceName, collectErr)
	}

	now := time.Now()
	rows := make([]blacklist.BlockedIP, 0, len(records))
	for _, rec := range records {
		n, reason := normalize.Normalize(rec, sourceName, now)
		if reason != normalize.RejectNone {
			continue
		}
		rows = append(rows, blacklist.BlockedIP{
			IPAddress:      n.IPAddress,
			Source:         n.Source,
			Reason:         n.Reason,
			Country:        n.Country,
			Confidence:     n.Confidence,
			DetectionDate:  n.DetectionDate,
			RemovalDate:    n.RemovalDate,
			IsActive:       n.IsActive,
			RawPayload:     n.RawPayload,
		})
	}

	var result blacklist.UpsertResult
	if len(rows) > 0 {
		result, err = c.blacklist.Upsert(ctx, rows)
		if err != nil {
			run.Success = false
			run.ErrorMessage = err.Error()
			telemetry.CollectionRunsTotal.WithLabelValues(sourceName, "failure").Inc()
			if recErr := c.history.Record(ctx, run); recErr != nil {
				c.logger.Error("recording collection history", "source", sourceName, "error", recErr)
			}
			return 0, fmt.Errorf("upserting collected records from %s: %w", sourceName, err)
		}
	}

	run.Success = true
	run.ItemsCollected = result.Total
	details := history.Details{NewCount: result.New, UpdatedCount: result.Updated}
	if b, mErr := marshalDetails(details); mErr == nil {
		run.Details = b
	}

	telemetry.CollectionRunsTotal.WithLabelValues(sourceName, "success").Inc()
	telemetry.BlacklistEntriesTotal.WithLabelValues("new").Set(float64(result.New))

	if recErr := c.history.Record(ctx, run); recErr != nil {
		c.logger.Error("recording collection history", "source", sourceName, "error", recErr)
	}

	c.logger.Info("collection run complete",
		"source", sourceName,
		"collected", len(records),
		"normalized", len(rows),
		"new", result.New,
		"updated", result.Updated,
	)

	return result.Total, nil
}

// regtechScheduled sets the REGTECH source's scheduled flag before every
// run: true for daily/adaptive ticks and force runs, false for manual triggers.
func regtechScheduled(registry *collector.Registry, scheduled bool) {
	src, err := registry.Get(regtech.ServiceName)
	if err != nil {
		return
	}
	if rs, ok := src.(*regtech.Source); ok {
		rs.SetScheduled(scheduled)
	}
}

func marshalDetails(d history.Details) (json.RawMessage, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
