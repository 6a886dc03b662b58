// Compliance engine
//
// Every incoming event runs as one unit of work on the record store:
//  1. open a transaction (db.Store.WithTx)
//  2. apply the primary change (incident, alert, metric)
//  3. recompute the item's current-month metric (recompute formula)
//  4. run the semaphore-trend rules against the new metric
//  5. reconcile the SLA breach alert against the active incident count
//  6. commit, then hand the collected notifications to the Notifier
//
// A failure in steps 2-5 rolls the whole unit back. Notification hand-off
// happens after commit and can only degrade the result, never fail it.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

// Notifier takes notifications after the owning transaction committed.
// Enqueue must not block on delivery.
type Notifier interface {
	Enqueue(n model.Notification) error
}

type ComplianceEngine struct {
	store    db.Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

func NewComplianceEngine(store db.Store, notifier Notifier, loc *time.Location) *ComplianceEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &ComplianceEngine{
		store:    store,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

// effects collects what a unit of work produced. Notifications are only
// released once the transaction committed.
type effects struct {
	alerts        []model.Alert
	notifications []pendingNotification
}

type pendingNotification struct {
	n      model.Notification
	status *model.DeliveryStatus
}

func (e *effects) notify(n model.Notification, status *model.DeliveryStatus) {
	e.notifications = append(e.notifications, pendingNotification{n: n, status: status})
}

// ============================================================================
// Transaction plumbing
// ============================================================================

// run executes fn in a transaction and flushes notifications after commit.
func (e *ComplianceEngine) run(ctx context.Context, fn func(tx db.Store, eff *effects) error) (*effects, error) {
	eff := &effects{}
	err := e.store.WithTx(ctx, func(tx db.Store) error {
		return fn(tx, eff)
	})
	if err != nil {
		return nil, err
	}
	e.flush(eff)
	return eff, nil
}

func (e *ComplianceEngine) flush(eff *effects) {
	for _, p := range eff.notifications {
		status := e.dispatch(p.n)
		if p.status != nil && !p.status.Degraded() {
			*p.status = status
		}
	}
}

func (e *ComplianceEngine) dispatch(n model.Notification) model.DeliveryStatus {
	if e.notifier == nil {
		return model.DeliveryFailed
	}
	if err := e.notifier.Enqueue(n); err != nil {
		slog.Warn("[Engine] notification hand-off failed", "notification_id", n.ID, "error", err)
		return model.DeliveryFailed
	}
	if len(n.Recipients) == 0 {
		return model.DeliveryNoRecipients
	}
	return model.DeliveryQueued
}

func (e *ComplianceEngine) currentPeriod() (int, int) {
	now := e.now().In(e.loc)
	return now.Year(), int(now.Month())
}

func loadGraph(ctx context.Context, tx db.Store) (*ChainResolver, error) {
	items, err := tx.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return NewChainResolver(items), nil
}

func limitOf(ctx context.Context, tx db.Store, item model.Item) (int, error) {
	sla, err := tx.GetSLA(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("load sla for item %d: %w", item.ID, err)
	}
	return LimitFor(item, sla), nil
}

func (e *ComplianceEngine) alertNotification(ctx context.Context, tx db.Store, item model.Item, alert model.Alert) (model.Notification, error) {
	recipients, err := tx.ListNotificationEmails(ctx, model.NotificationRoles)
	if err != nil {
		return model.Notification{}, fmt.Errorf("list notification recipients: %w", err)
	}
	a := alert
	return model.Notification{
		ID:         uuid.NewString(),
		Kind:       model.NotificationAlert,
		Item:       item,
		Alert:      &a,
		Recipients: recipients,
		CreatedAt:  e.now(),
	}, nil
}

// ============================================================================
// Metric compiler / policy steps (run inside a transaction)
// ============================================================================

// compile recounts the active incidents of the period and saves the
// metric in place with the recompute formula, creating it if needed.
func (e *ComplianceEngine) compile(ctx context.Context, tx db.Store, item model.Item, year, month int) (*model.Metric, error) {
	from, to := monthBounds(year, month, e.loc)
	count, err := tx.CountIncidents(ctx, item.ID, from, to, true)
	if err != nil {
		return nil, fmt.Errorf("count incidents: %w", err)
	}
	semaphore, pct := recomputeFormula(count)
	m := &model.Metric{
		ItemID:        item.ID,
		Year:          year,
		Month:         month,
		Incidents:     count,
		CompliancePct: pct,
		Semaphore:     semaphore,
		Formula:       model.FormulaRecompute,
	}
	if err := tx.SaveMetric(ctx, m); err != nil {
		return nil, fmt.Errorf("save metric: %w", err)
	}
	telemetry.MetricCompilationsTotal.WithLabelValues(string(m.Formula), string(m.Semaphore)).Inc()
	return m, nil
}

// applyTrend runs the semaphore-trend rules for m. A rule whose alert type is
// already active for the item in m's period does not fire again; an alert
// left open from an earlier month never blocks a new escalation. Only the
// first alert created is notified.
func (e *ComplianceEngine) applyTrend(ctx context.Context, tx db.Store, item model.Item, m model.Metric, eff *effects, status *model.DeliveryStatus) ([]model.Alert, error) {
	if err := tx.LockItem(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("lock item %d: %w", item.ID, err)
	}
	history, err := tx.ListMetricHistory(ctx, item.ID, m.Year, m.Month, 2)
	if err != nil {
		return nil, fmt.Errorf("load metric history: %w", err)
	}

	created := []model.Alert{}
	for _, draft := range evaluateTrend(item, m, history) {
		active, err := tx.ListAlerts(ctx, model.AlertFilter{
			ItemID: &item.ID,
			Type:   draft.Type,
			State:  model.AlertActive,
			Year:   m.Year,
			Month:  m.Month,
		})
		if err != nil {
			return nil, fmt.Errorf("list active %s alerts: %w", draft.Type, err)
		}
		if len(active) > 0 {
			continue
		}
		alert := model.Alert{
			ItemID:           item.ID,
			Type:             draft.Type,
			Urgency:          draft.Urgency,
			State:            model.AlertActive,
			Message:          draft.Message,
			PendingIncidents: m.Incidents,
			CreatedAt:        e.now(),
			PeriodYear:       m.Year,
			PeriodMonth:      m.Month,
		}
		if err := tx.CreateAlert(ctx, &alert); err != nil {
			return nil, fmt.Errorf("create %s alert: %w", draft.Type, err)
		}
		telemetry.AlertsCreatedTotal.WithLabelValues(string(alert.Type)).Inc()
		slog.Info("[Engine] alert created", "alert_id", alert.ID, "item", item.Code, "type", alert.Type)
		created = append(created, alert)
	}

	if len(created) > 0 {
		n, err := e.alertNotification(ctx, tx, item, created[0])
		if err != nil {
			return nil, err
		}
		eff.notify(n, status)
	}
	eff.alerts = append(eff.alerts, created...)
	return created, nil
}

func (e *ComplianceEngine) hasActiveAlert(ctx context.Context, tx db.Store, itemID int64, t model.AlertType) (bool, error) {
	active, err := tx.ListAlerts(ctx, model.AlertFilter{ItemID: &itemID, Type: t, State: model.AlertActive})
	if err != nil {
		return false, fmt.Errorf("list active %s alerts: %w", t, err)
	}
	return len(active) > 0, nil
}

// reconcileBreach compares the active incident count of the current month
// with the item limit. Above the limit a single breach alert is kept active
// with the live count; at or below it every active breach alert is resolved
// by the system. Non-live items can only have breach alerts resolved.
// The item row is locked first so concurrent units of work on the same item
// see each other's breach alert.
func (e *ComplianceEngine) reconcileBreach(ctx context.Context, tx db.Store, item model.Item, live bool, activeCount int, eff *effects, status *model.DeliveryStatus) error {
	if err := tx.LockItem(ctx, item.ID); err != nil {
		return fmt.Errorf("lock item %d: %w", item.ID, err)
	}
	limit, err := limitOf(ctx, tx, item)
	if err != nil {
		return err
	}
	breaches, err := tx.ListAlerts(ctx, model.AlertFilter{ItemID: &item.ID, Type: model.AlertTypeSLABreach, State: model.AlertActive})
	if err != nil {
		return fmt.Errorf("list breach alerts: %w", err)
	}

	if activeCount <= limit {
		for _, a := range breaches {
			ok, err := tx.MarkAlertResolved(ctx, a.ID, nil, e.now())
			if err != nil {
				return fmt.Errorf("resolve breach alert %d: %w", a.ID, err)
			}
			if ok {
				telemetry.AlertsResolvedTotal.WithLabelValues("sla_normalized").Inc()
				slog.Info("[Engine] breach alert auto-resolved", "alert_id", a.ID, "item", item.Code, "active", activeCount, "limit", limit)
			}
		}
		return nil
	}
	if !live {
		return nil
	}

	if len(breaches) > 0 {
		for i := range breaches {
			a := breaches[i]
			if a.PendingIncidents == activeCount {
				continue
			}
			a.PendingIncidents = activeCount
			if err := tx.UpdateAlertCounters(ctx, &a); err != nil {
				return fmt.Errorf("update breach alert %d: %w", a.ID, err)
			}
		}
		return nil
	}

	alert := model.Alert{
		ItemID:           item.ID,
		Type:             model.AlertTypeSLABreach,
		Urgency:          model.UrgencyCritical,
		State:            model.AlertActive,
		Message:          breachMessage(item, activeCount, limit),
		PendingIncidents: activeCount,
		CreatedAt:        e.now(),
	}
	if err := tx.CreateAlert(ctx, &alert); err != nil {
		return fmt.Errorf("create breach alert: %w", err)
	}
	telemetry.AlertsCreatedTotal.WithLabelValues(string(alert.Type)).Inc()
	slog.Warn("[Engine] SLA breach", "alert_id", alert.ID, "item", item.Code, "active", activeCount, "limit", limit)

	n, err := e.alertNotification(ctx, tx, item, alert)
	if err != nil {
		return err
	}
	eff.notify(n, status)
	eff.alerts = append(eff.alerts, alert)
	return nil
}

// refreshCurrent recompiles the current-month metric of item, applies the
// trend rules (live items only) and reconciles the breach alert.
func (e *ComplianceEngine) refreshCurrent(ctx context.Context, tx db.Store, item model.Item, live bool, eff *effects, status *model.DeliveryStatus) (*model.Metric, error) {
	year, month := e.currentPeriod()
	m, err := e.compile(ctx, tx, item, year, month)
	if err != nil {
		return nil, err
	}
	if live {
		if _, err := e.applyTrend(ctx, tx, item, *m, eff, status); err != nil {
			return nil, err
		}
	}
	if err := e.reconcileBreach(ctx, tx, item, live, m.Incidents, eff, status); err != nil {
		return nil, err
	}
	return m, nil
}
