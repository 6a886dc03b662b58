package model

import "time"

// IncidentState transitions open -> in_progress -> resolved, never backwards.
type IncidentState string

const (
	IncidentOpen       IncidentState = "open"
	IncidentInProgress IncidentState = "in_progress"
	IncidentResolved   IncidentState = "resolved"
)

type Incident struct {
	ID                int64         `json:"id"`
	ItemID            int64         `json:"item_id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Type              string        `json:"type"`
	Severity          string        `json:"severity"`
	AffectedUsers     *int          `json:"affected_users,omitempty"`
	State             IncidentState `json:"state"`
	OccurredAt        time.Time     `json:"occurred_at"`
	ReportedBy        *int64        `json:"reported_by,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy        *int64        `json:"resolved_by,omitempty"`
	ResolutionMinutes *int          `json:"resolution_minutes,omitempty"`
	ResolutionComment string        `json:"resolution_comment,omitempty"`
	ResolutionImage   string        `json:"resolution_image,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// ReportIncidentRequest - incident intake payload
type ReportIncidentRequest struct {
	ItemID             int64      `json:"item_id" validate:"required,gt=0"`
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description"`
	Type               string     `json:"type" validate:"required,oneof=critical minor"`
	Severity           string     `json:"severity" validate:"required,oneof=low medium high critical"`
	AffectedUsers      *int       `json:"affected_users,omitempty" validate:"omitempty,gte=0"`
	OccurredAt         *time.Time `json:"occurred_at,omitempty"`
	NotifyTechnicianID *int64     `json:"notify_technician_id,omitempty"`
}

// IncidentEvidence - proof attached when resolving an incident
type IncidentEvidence struct {
	Comment   string
	ImageName string
	ImageSize int64
	ImageRef  string
}

type IncidentFilter struct {
	ItemID *int64
	State  IncidentState
}

type ReportIncidentResult struct {
	Incident     Incident       `json:"incident"`
	Metric       *Metric        `json:"metric,omitempty"`
	Alerts       []Alert        `json:"alerts"`
	Notification DeliveryStatus `json:"notification"`
	Technician   DeliveryStatus `json:"technician_notification"`
}
