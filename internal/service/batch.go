// Scheduled prior-month metric generation
//
// Invoked daily by the host clock. Only the first day of the month (in the
// configured timezone) does any work, unless forced:
//  1. target the previous calendar month
//  2. for every live, operationally active item without a metric for it
//  3. count every incident of the period and apply the batch formula
//  4. insert the metric; an existing period counts as skipped
//
// Each item runs in its own transaction. A failing item is logged and
// counted and the run continues.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

type batchOutcome string

const (
	batchGenerated batchOutcome = "generated"
	batchSkipped   batchOutcome = "skipped"
	batchFailed    batchOutcome = "failed"
)

func (e *ComplianceEngine) RunScheduledBatch(ctx context.Context, force bool) (model.BatchSummary, error) {
	now := e.now().In(e.loc)
	year, month := previousMonth(now)
	summary := model.BatchSummary{Year: year, Month: month}

	if now.Day() != 1 && !force {
		slog.Debug("[Batch] not the first day of the month, nothing to do", "day", now.Day())
		return summary, nil
	}
	summary.Ran = true

	start := time.Now()
	defer func() { telemetry.BatchDuration.Observe(time.Since(start).Seconds()) }()

	graph, err := loadGraph(ctx, e.store)
	if err != nil {
		return summary, err
	}

	for _, item := range graph.Roster() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := e.generateBatchMetric(ctx, item, year, month)
		if err != nil {
			slog.Error("[Batch] metric generation failed", "item", item.Code, "period", fmt.Sprintf("%d-%02d", year, month), "error", err)
		}
		telemetry.BatchItemsTotal.WithLabelValues(string(outcome)).Inc()
		switch outcome {
		case batchGenerated:
			summary.Generated++
		case batchSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	slog.Info("[Batch] completed",
		"period", fmt.Sprintf("%d-%02d", year, month),
		"generated", summary.Generated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (e *ComplianceEngine) generateBatchMetric(ctx context.Context, item model.Item, year, month int) (batchOutcome, error) {
	outcome := batchFailed
	err := e.store.WithTx(ctx, func(tx db.Store) error {
		if _, err := tx.GetMetric(ctx, item.ID, year, month); err == nil {
			outcome = batchSkipped
			return nil
		} else if !db.IsNoRows(err) {
			return fmt.Errorf("load metric: %w", err)
		}

		limit, err := limitOf(ctx, tx, item)
		if err != nil {
			return err
		}
		from, to := monthBounds(year, month, e.loc)
		count, err := tx.CountIncidents(ctx, item.ID, from, to, false)
		if err != nil {
			return fmt.Errorf("count incidents: %w", err)
		}
		semaphore, pct := batchFormula(count, limit)
		m := model.Metric{
			ItemID:        item.ID,
			Year:          year,
			Month:         month,
			Incidents:     count,
			CompliancePct: pct,
			Semaphore:     semaphore,
			Formula:       model.FormulaBatch,
		}
		if err := tx.InsertMetric(ctx, &m); err != nil {
			return err
		}
		telemetry.MetricCompilationsTotal.WithLabelValues(string(m.Formula), string(m.Semaphore)).Inc()
		outcome = batchGenerated
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return batchSkipped, nil
		}
		return batchFailed, err
	}
	return outcome, nil
}
