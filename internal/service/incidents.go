// Incident ledger
//
// Report flow:
//  1. validate the request and check the item is live
//  2. create the incident (open)
//  3. refresh the current-month metric, trend alerts and breach alert
//  4. optionally notify the technician named in the request
//
// Resolve flow:
//  1. check evidence (comment, image) before touching state
//  2. mark resolved with floor(resolved - occurred) minutes
//  3. refresh the current-month metric and reconcile the breach alert

package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

const (
	minResolutionComment = 10
	maxEvidenceBytes     = 5 << 20
	evidenceDir          = "resolutions"
)

var evidenceExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// EvidenceRef checks the resolution comment and the uploaded image metadata
// and returns the storage reference the image must be saved under.
func EvidenceRef(comment, imageName string, imageSize int64) (string, error) {
	if len([]rune(strings.TrimSpace(comment))) < minResolutionComment {
		return "", fmt.Errorf("%w: resolution comment must have at least %d characters", ErrInvalidInput, minResolutionComment)
	}
	if strings.TrimSpace(imageName) == "" || imageSize <= 0 {
		return "", fmt.Errorf("%w: an evidence image is required", ErrInvalidInput)
	}
	if imageSize > maxEvidenceBytes {
		return "", fmt.Errorf("%w: evidence image exceeds 5MB", ErrInvalidInput)
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(imageName), "."))
	if !evidenceExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", ErrInvalidInput, ext)
	}
	return path.Join(evidenceDir, uuid.NewString()+"."+ext), nil
}

func resolutionMinutes(occurred, resolved time.Time) int {
	minutes := int(math.Floor(resolved.Sub(occurred).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}

func (e *ComplianceEngine) ReportIncident(ctx context.Context, actorID *int64, req model.ReportIncidentRequest) (*model.ReportIncidentResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result := &model.ReportIncidentResult{
		Alerts:       []model.Alert{},
		Notification: model.DeliveryNotRequested,
		Technician:   model.DeliveryNotRequested,
	}

	eff, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return notFound(err, "item", req.ItemID)
		}
		graph, err := loadGraph(ctx, tx)
		if err != nil {
			return err
		}
		if !graph.IsLive(item.ID) {
			return fmt.Errorf("%w: item %s is not live (state %s)", ErrInvalidInput, item.Code, item.State)
		}

		occurred := e.now()
		if req.OccurredAt != nil {
			occurred = *req.OccurredAt
		}
		inc := model.Incident{
			ItemID:        item.ID,
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			Type:          req.Type,
			Severity:      req.Severity,
			AffectedUsers: req.AffectedUsers,
			State:         model.IncidentOpen,
			OccurredAt:    occurred,
			ReportedBy:    actorID,
		}
		if err := tx.CreateIncident(ctx, &inc); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}
		result.Incident = inc

		m, err := e.refreshCurrent(ctx, tx, *item, true, eff, &result.Notification)
		if err != nil {
			return err
		}
		result.Metric = m

		if req.NotifyTechnicianID != nil {
			return e.technicianNotice(ctx, tx, *item, inc, *req.NotifyTechnicianID, eff, &result.Technician)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.IncidentsTotal.WithLabelValues("reported").Inc()
	result.Alerts = append(result.Alerts, eff.alerts...)
	slog.Info("[Incidents] reported", "incident_id", result.Incident.ID, "item_id", req.ItemID, "alerts", len(result.Alerts))
	return result, nil
}

func (e *ComplianceEngine) technicianNotice(ctx context.Context, tx db.Store, item model.Item, inc model.Incident, userID int64, eff *effects, status *model.DeliveryStatus) error {
	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			*status = model.DeliveryNoRecipients
			slog.Warn("[Incidents] technician not found", "user_id", userID)
			return nil
		}
		return fmt.Errorf("load technician: %w", err)
	}
	recipients := []string{}
	if user.Email != "" {
		recipients = append(recipients, user.Email)
	}
	i := inc
	eff.notify(model.Notification{
		ID:         uuid.NewString(),
		Kind:       model.NotificationIncident,
		Item:       item,
		Incident:   &i,
		Recipients: recipients,
		CreatedAt:  e.now(),
	}, status)
	return nil
}

// StartIncident moves an open incident to in_progress.
func (e *ComplianceEngine) StartIncident(ctx context.Context, id int64) (*model.Incident, error) {
	var inc *model.Incident
	_, err := e.run(ctx, func(tx db.Store, _ *effects) error {
		current, err := tx.GetIncident(ctx, id)
		if err != nil {
			return notFound(err, "incident", id)
		}
		ok, err := tx.UpdateIncidentState(ctx, id, model.IncidentOpen, model.IncidentInProgress)
		if err != nil {
			return fmt.Errorf("start incident: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: incident %d is %s", ErrConflict, id, current.State)
		}
		current.State = model.IncidentInProgress
		inc = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.IncidentsTotal.WithLabelValues("started").Inc()
	return inc, nil
}

// ResolveIncident closes an incident with evidence. ev.ImageRef must come
// from EvidenceRef.
func (e *ComplianceEngine) ResolveIncident(ctx context.Context, id int64, actorID *int64, ev model.IncidentEvidence) (*model.Incident, error) {
	if _, err := EvidenceRef(ev.Comment, ev.ImageName, ev.ImageSize); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.ImageRef) == "" {
		return nil, fmt.Errorf("%w: an evidence image is required", ErrInvalidInput)
	}

	var inc *model.Incident
	_, err := e.run(ctx, func(tx db.Store, eff *effects) error {
		current, err := tx.GetIncident(ctx, id)
		if err != nil {
			return notFound(err, "incident", id)
		}
		if current.State == model.IncidentResolved {
			return fmt.Errorf("%w: incident %d is already resolved", ErrConflict, id)
		}

		now := e.now()
		minutes := resolutionMinutes(current.OccurredAt, now)
		current.State = model.IncidentResolved
		current.ResolvedAt = &now
		current.ResolvedBy = actorID
		current.ResolutionMinutes = &minutes
		current.ResolutionComment = strings.TrimSpace(ev.Comment)
		current.ResolutionImage = ev.ImageRef

		ok, err := tx.MarkIncidentResolved(ctx, current)
		if err != nil {
			return fmt.Errorf("resolve incident: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: incident %d is already resolved", ErrConflict, id)
		}
		inc = current

		item, err := tx.GetItem(ctx, current.ItemID)
		if err != nil {
			return notFound(err, "item", current.ItemID)
		}
		graph, err := loadGraph(ctx, tx)
		if err != nil {
			return err
		}
		_, err = e.refreshCurrent(ctx, tx, *item, graph.IsLive(item.ID), eff, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	telemetry.IncidentsTotal.WithLabelValues("resolved").Inc()
	slog.Info("[Incidents] resolved", "incident_id", id, "minutes", *inc.ResolutionMinutes)
	return inc, nil
}

func (e *ComplianceEngine) GetIncident(ctx context.Context, id int64) (*model.Incident, error) {
	inc, err := e.store.GetIncident(ctx, id)
	if err != nil {
		return nil, notFound(err, "incident", id)
	}
	return inc, nil
}

func (e *ComplianceEngine) ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	return e.store.ListIncidents(ctx, filter)
}
