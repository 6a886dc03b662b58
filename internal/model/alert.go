// Alert models.
// AlertType values are persisted tags; each one maps to exactly one trigger
// rule in the policy engine.

package model

import "time"

type AlertType string

const (
	AlertTypeFirstRed         AlertType = "rojo_inmediato"
	AlertTypePersistentYellow AlertType = "amarillo_recurrente"
	AlertTypeSecondRed        AlertType = "rojo_mes2"
	AlertTypeThirdRed         AlertType = "rojo_mes3"
	AlertTypeIncidentBurst    AlertType = "incidencias_masivas"
	AlertTypeSLABreach        AlertType = "sobrepaso_sla"
	AlertTypeManualCritical   AlertType = "alerta_manual_critica"
	AlertTypeReplacement      AlertType = "reemplazo"
)

var AlertTypes = []AlertType{
	AlertTypeFirstRed,
	AlertTypePersistentYellow,
	AlertTypeSecondRed,
	AlertTypeThirdRed,
	AlertTypeIncidentBurst,
	AlertTypeSLABreach,
	AlertTypeManualCritical,
	AlertTypeReplacement,
}

func (t AlertType) Valid() bool {
	for _, v := range AlertTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// AlertState transitions active -> resolved only.
type AlertState string

const (
	AlertActive   AlertState = "active"
	AlertResolved AlertState = "resolved"
)

type Alert struct {
	ID                int64      `json:"id"`
	ItemID            int64      `json:"item_id"`
	Type              AlertType  `json:"type"`
	Urgency           Urgency    `json:"urgency"`
	State             AlertState `json:"state"`
	Message           string     `json:"message"`
	IncidentID        *int64     `json:"incident_id,omitempty"`
	PendingIncidents  int        `json:"pending_incident_count"`
	ResolvedIncidents int        `json:"resolved_incident_count"`
	CreatedBy         *int64     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy        *int64     `json:"resolved_by,omitempty"`

	// PeriodYear and PeriodMonth name the metric period a trend alert was
	// raised for. Zero for alerts not tied to a period.
	PeriodYear  int `json:"period_year,omitempty"`
	PeriodMonth int `json:"period_month,omitempty"`
}

// AlertIncidentLink - incident credited toward resolving an alert
type AlertIncidentLink struct {
	AlertID    int64     `json:"alert_id"`
	IncidentID int64     `json:"incident_id"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type AlertFilter struct {
	ItemID *int64
	Type   AlertType
	State  AlertState
	Since  *time.Time

	// Year and Month match the alert period when non-zero.
	Year  int
	Month int
}

type ResolveAlertRequest struct {
	IncidentIDs []int64 `json:"incident_ids"`
}

type ResolveAlertResult struct {
	Alert        Alert `json:"alert"`
	Resolved     int   `json:"resolved"`
	Pending      int   `json:"pending"`
	AutoResolved bool  `json:"auto_resolved"`
}

type ManualAlertRequest struct {
	ItemID     int64 `json:"item_id" validate:"required,gt=0"`
	IncidentID int64 `json:"incident_id" validate:"required,gt=0"`
}

type ManualAlertResult struct {
	Alert        Alert          `json:"alert"`
	Notification DeliveryStatus `json:"notification"`
	Message      string         `json:"message"`
}

// AlertIncidents - incidents already credited to an alert and the ones that
// can still be resolved through it
type AlertIncidents struct {
	Alert      Alert      `json:"alert"`
	Linked     []Incident `json:"linked"`
	Candidates []Incident `json:"candidates"`
}
