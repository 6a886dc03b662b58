// Alert operations and the alert/incident resolution linker
//
// Resolve flow:
//  1. reject alerts that are already resolved
//  2. no incident ids: resolve the alert as a manual override
//  3. otherwise resolve each eligible incident of the alert's item and
//     credit it to the alert once (alert_incidents link)
//  4. refresh the current-month metric and reconcile the breach alert
//  5. auto-resolve when resolved >= pending and pending > 0

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

func (e *ComplianceEngine) ResolveAlert(ctx context.Context, alertID int64, actorID *int64, req model.ResolveAlertRequest) (*model.ResolveAlertResult, error) {
	result := &model.ResolveAlertResult{}

	_, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		alert, err := tx.GetAlert(ctx, alertID)
		if err != nil {
			return notFound(err, "alert", alertID)
		}
		if alert.State == model.AlertResolved {
			return fmt.Errorf("%w: alert %d is already resolved", ErrConflict, alertID)
		}

		if len(req.IncidentIDs) == 0 {
			ok, err := tx.MarkAlertResolved(ctx, alert.ID, actorID, e.now())
			if err != nil {
				return fmt.Errorf("resolve alert: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: alert %d is already resolved", ErrConflict, alertID)
			}
			telemetry.AlertsResolvedTotal.WithLabelValues("manual").Inc()
			return e.fillResolveResult(ctx, tx, alert.ID, result)
		}

		credited, err := e.creditIncidents(ctx, tx, alert, actorID, req.IncidentIDs)
		if err != nil {
			return err
		}
		alert.ResolvedIncidents += credited
		if credited > 0 {
			if err := tx.UpdateAlertCounters(ctx, alert); err != nil {
				return fmt.Errorf("update alert counters: %w", err)
			}
		}

		item, err := tx.GetItem(ctx, alert.ItemID)
		if err != nil {
			return notFound(err, "item", alert.ItemID)
		}
		graph, err := loadGraph(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := e.refreshCurrent(ctx, tx, *item, graph.IsLive(item.ID), eff, nil); err != nil {
			return err
		}

		// The breach reconcile may have changed the counters or closed the alert.
		current, err := tx.GetAlert(ctx, alert.ID)
		if err != nil {
			return fmt.Errorf("reload alert: %w", err)
		}
		if current.State == model.AlertActive && current.PendingIncidents > 0 && current.ResolvedIncidents >= current.PendingIncidents {
			ok, err := tx.MarkAlertResolved(ctx, current.ID, actorID, e.now())
			if err != nil {
				return fmt.Errorf("auto-resolve alert: %w", err)
			}
			if ok {
				telemetry.AlertsResolvedTotal.WithLabelValues("incidents").Inc()
			}
		}
		result.Resolved = credited
		if err := e.fillResolveResult(ctx, tx, alert.ID, result); err != nil {
			return err
		}
		result.AutoResolved = result.Alert.State == model.AlertResolved
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("[Alerts] resolve", "alert_id", alertID, "credited", result.Resolved, "state", result.Alert.State)
	return result, nil
}

func (e *ComplianceEngine) fillResolveResult(ctx context.Context, tx db.Store, alertID int64, result *model.ResolveAlertResult) error {
	alert, err := tx.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("reload alert: %w", err)
	}
	result.Alert = *alert
	result.Pending = alert.PendingIncidents - alert.ResolvedIncidents
	if result.Pending < 0 {
		result.Pending = 0
	}
	return nil
}

// creditIncidents resolves the eligible incidents and links them to the
// alert. Missing, foreign and already resolved incidents are skipped.
func (e *ComplianceEngine) creditIncidents(ctx context.Context, tx db.Store, alert *model.Alert, actorID *int64, ids []int64) (int, error) {
	seen := make(map[int64]bool, len(ids))
	credited := 0
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		inc, err := tx.GetIncident(ctx, id)
		if err != nil {
			if db.IsNoRows(err) {
				continue
			}
			return 0, fmt.Errorf("load incident %d: %w", id, err)
		}
		if inc.ItemID != alert.ItemID || inc.State == model.IncidentResolved {
			continue
		}

		now := e.now()
		minutes := resolutionMinutes(inc.OccurredAt, now)
		inc.State = model.IncidentResolved
		inc.ResolvedAt = &now
		inc.ResolvedBy = actorID
		inc.ResolutionMinutes = &minutes
		inc.ResolutionComment = fmt.Sprintf("Resolved through alert #%d", alert.ID)
		ok, err := tx.MarkIncidentResolved(ctx, inc)
		if err != nil {
			return 0, fmt.Errorf("resolve incident %d: %w", id, err)
		}
		if !ok {
			continue
		}
		telemetry.IncidentsTotal.WithLabelValues("resolved").Inc()

		linked, err := tx.LinkAlertIncident(ctx, model.AlertIncidentLink{AlertID: alert.ID, IncidentID: id, ResolvedAt: now})
		if err != nil {
			return 0, fmt.Errorf("link incident %d: %w", id, err)
		}
		if linked {
			credited++
		}
	}
	return credited, nil
}

// TriggerManualCriticalAlert force-creates a critical alert tied to an
// incident and notifies the technical roles. Notification failure does not
// undo the alert.
func (e *ComplianceEngine) TriggerManualCriticalAlert(ctx context.Context, actorID *int64, req model.ManualAlertRequest) (*model.ManualAlertResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	result := &model.ManualAlertResult{Notification: model.DeliveryNotRequested}

	_, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return notFound(err, "item", req.ItemID)
		}
		inc, err := tx.GetIncident(ctx, req.IncidentID)
		if err != nil {
			return notFound(err, "incident", req.IncidentID)
		}
		if inc.ItemID != item.ID {
			return fmt.Errorf("%w: incident %d does not belong to item %s", ErrInvalidInput, inc.ID, item.Code)
		}
		active, err := e.hasActiveAlert(ctx, tx, item.ID, model.AlertTypeManualCritical)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: item %s already has an active manual critical alert", ErrConflict, item.Code)
		}

		incidentID := inc.ID
		alert := model.Alert{
			ItemID:           item.ID,
			Type:             model.AlertTypeManualCritical,
			Urgency:          model.UrgencyCritical,
			State:            model.AlertActive,
			Message:          fmt.Sprintf("MANUAL CRITICAL ALERT: %s - %s. Incident #%d: %s.", item.Code, item.Name, inc.ID, inc.Title),
			IncidentID:       &incidentID,
			PendingIncidents: 1,
			CreatedBy:        actorID,
			CreatedAt:        e.now(),
		}
		if err := tx.CreateAlert(ctx, &alert); err != nil {
			return fmt.Errorf("create manual alert: %w", err)
		}
		telemetry.AlertsCreatedTotal.WithLabelValues(string(alert.Type)).Inc()
		result.Alert = alert

		n, err := e.alertNotification(ctx, tx, *item, alert)
		if err != nil {
			return err
		}
		eff.notify(n, &result.Notification)
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch result.Notification {
	case model.DeliveryNoRecipients:
		result.Message = "alert created; no technician or IT lead has an email address"
	case model.DeliveryFailed:
		result.Message = "alert created but notification failed"
	default:
		result.Message = "alert created and notification queued"
	}
	slog.Info("[Alerts] manual critical alert", "alert_id", result.Alert.ID, "item_id", req.ItemID, "notification", result.Notification)
	return result, nil
}

func (e *ComplianceEngine) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, notFound(err, "alert", id)
	}
	return alert, nil
}

func (e *ComplianceEngine) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown alert type %q", ErrInvalidInput, filter.Type)
	}
	return e.store.ListAlerts(ctx, filter)
}

// AlertIncidents returns the incidents already credited to the alert and the
// unresolved incidents of its item that can still be credited.
func (e *ComplianceEngine) AlertIncidents(ctx context.Context, alertID int64) (*model.AlertIncidents, error) {
	alert, err := e.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	linked, err := e.store.ListLinkedIncidents(ctx, alertID)
	if err != nil {
		return nil, err
	}
	all, err := e.store.ListIncidents(ctx, model.IncidentFilter{ItemID: &alert.ItemID})
	if err != nil {
		return nil, err
	}
	candidates := []model.Incident{}
	for _, inc := range all {
		if inc.State != model.IncidentResolved {
			candidates = append(candidates, inc)
		}
	}
	return &model.AlertIncidents{Alert: *alert, Linked: linked, Candidates: candidates}, nil
}

// RecentAlerts returns active alerts created after since.
func (e *ComplianceEngine) RecentAlerts(ctx context.Context, since time.Time) ([]model.Alert, error) {
	return e.store.ListAlerts(ctx, model.AlertFilter{State: model.AlertActive, Since: &since})
}
