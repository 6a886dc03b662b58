package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

// GenerateMetric compiles a period that has no metric yet. A second call for
// the same period is a conflict.
func (e *ComplianceEngine) GenerateMetric(ctx context.Context, req model.GenerateMetricRequest) (*model.GenerateMetricResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	result := &model.GenerateMetricResult{Alerts: []model.Alert{}, Notification: model.DeliveryNotRequested}

	eff, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return notFound(err, "item", req.ItemID)
		}
		if _, err := tx.GetMetric(ctx, item.ID, req.Year, req.Month); err == nil {
			return fmt.Errorf("%w: metric for %s %02d/%d already exists", ErrConflict, item.Code, req.Month, req.Year)
		} else if !db.IsNoRows(err) {
			return fmt.Errorf("load metric: %w", err)
		}

		from, to := monthBounds(req.Year, req.Month, e.loc)
		count, err := tx.CountIncidents(ctx, item.ID, from, to, true)
		if err != nil {
			return fmt.Errorf("count incidents: %w", err)
		}
		semaphore, pct := recomputeFormula(count)
		m := model.Metric{
			ItemID:        item.ID,
			Year:          req.Year,
			Month:         req.Month,
			Incidents:     count,
			CompliancePct: pct,
			Semaphore:     semaphore,
			Formula:       model.FormulaRecompute,
		}
		if err := tx.InsertMetric(ctx, &m); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: metric for %s %02d/%d already exists", ErrConflict, item.Code, req.Month, req.Year)
			}
			return fmt.Errorf("insert metric: %w", err)
		}
		telemetry.MetricCompilationsTotal.WithLabelValues(string(m.Formula), string(m.Semaphore)).Inc()
		result.Metric = m

		graph, err := loadGraph(ctx, tx)
		if err != nil {
			return err
		}
		if graph.IsLive(item.ID) {
			_, err = e.applyTrend(ctx, tx, *item, m, eff, &result.Notification)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Alerts = append(result.Alerts, eff.alerts...)
	slog.Info("[Metrics] generated", "item_id", req.ItemID, "period", fmt.Sprintf("%d-%02d", req.Year, req.Month), "semaphore", result.Metric.Semaphore)
	return result, nil
}

// RecalculateMetric recompiles an existing metric in place. Recalculating the
// current month also re-runs the trend and breach rules.
func (e *ComplianceEngine) RecalculateMetric(ctx context.Context, id int64) (*model.GenerateMetricResult, error) {
	result := &model.GenerateMetricResult{Alerts: []model.Alert{}, Notification: model.DeliveryNotRequested}

	eff, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		existing, err := tx.GetMetricByID(ctx, id)
		if err != nil {
			return notFound(err, "metric", id)
		}
		item, err := tx.GetItem(ctx, existing.ItemID)
		if err != nil {
			return notFound(err, "item", existing.ItemID)
		}

		year, month := e.currentPeriod()
		if existing.Year == year && existing.Month == month {
			graph, err := loadGraph(ctx, tx)
			if err != nil {
				return err
			}
			m, err := e.refreshCurrent(ctx, tx, *item, graph.IsLive(item.ID), eff, &result.Notification)
			if err != nil {
				return err
			}
			result.Metric = *m
			return nil
		}

		m, err := e.compile(ctx, tx, *item, existing.Year, existing.Month)
		if err != nil {
			return err
		}
		result.Metric = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Alerts = append(result.Alerts, eff.alerts...)
	return result, nil
}

func (e *ComplianceEngine) ListMetrics(ctx context.Context, filter model.MetricFilter) ([]model.Metric, error) {
	if filter.Month < 0 || filter.Month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	}
	return e.store.ListMetrics(ctx, filter)
}
