// Package template renders notification payloads.
//
// Webhook bodies support these placeholders:
//
//	{{item.id}}, {{item.code}}, {{item.name}}, {{item.type}}, {{item.state}}
//
//	{{alert.id}}, {{alert.type}}, {{alert.urgency}}, {{alert.state}},
//	{{alert.message}}, {{alert.pending}}, {{alert.resolved}}, {{alert.created_at}}
//
//	{{incident.id}}, {{incident.title}}, {{incident.type}}, {{incident.severity}},
//	{{incident.state}}, {{incident.occurred_at}}
//
// Placeholders whose source is absent render as empty strings.
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/model"
)

// ItemData - item fields available to templates
type ItemData struct {
	ID    int64
	Code  string
	Name  string
	Type  string
	State string
}

// AlertData - alert fields available to templates
type AlertData struct {
	ID        int64
	Type      string
	Urgency   string
	State     string
	Message   string
	Pending   int
	Resolved  int
	CreatedAt time.Time
}

// IncidentData - incident fields available to templates
type IncidentData struct {
	ID         int64
	Title      string
	Type       string
	Severity   string
	State      string
	OccurredAt time.Time
}

func ItemDataFromModel(item model.Item) ItemData {
	return ItemData{
		ID:    item.ID,
		Code:  item.Code,
		Name:  item.Name,
		Type:  string(item.Type),
		State: string(item.State),
	}
}

func AlertDataFromModel(alert model.Alert) AlertData {
	return AlertData{
		ID:        alert.ID,
		Type:      string(alert.Type),
		Urgency:   string(alert.Urgency),
		State:     string(alert.State),
		Message:   alert.Message,
		Pending:   alert.PendingIncidents,
		Resolved:  alert.ResolvedIncidents,
		CreatedAt: alert.CreatedAt,
	}
}

func IncidentDataFromModel(inc model.Incident) IncidentData {
	return IncidentData{
		ID:         inc.ID,
		Title:      inc.Title,
		Type:       inc.Type,
		Severity:   inc.Severity,
		State:      string(inc.State),
		OccurredAt: inc.OccurredAt,
	}
}

// RenderNotification renders body with the data carried by n.
func RenderNotification(body string, n model.Notification) string {
	item := ItemDataFromModel(n.Item)
	var alert *AlertData
	if n.Alert != nil {
		a := AlertDataFromModel(*n.Alert)
		alert = &a
	}
	var incident *IncidentData
	if n.Incident != nil {
		i := IncidentDataFromModel(*n.Incident)
		incident = &i
	}
	return RenderBody(body, &item, alert, incident)
}

// RenderBody replaces the placeholders in body. Any of the sources may be nil.
func RenderBody(body string, item *ItemData, alert *AlertData, incident *IncidentData) string {
	pairs := make([]string, 0, 38)

	// --- Item ---
	if item != nil {
		pairs = append(pairs,
			"{{item.id}}", formatID(item.ID),
			"{{item.code}}", item.Code,
			"{{item.name}}", item.Name,
			"{{item.type}}", item.Type,
			"{{item.state}}", item.State,
		)
	} else {
		pairs = append(pairs,
			"{{item.id}}", "",
			"{{item.code}}", "",
			"{{item.name}}", "",
			"{{item.type}}", "",
			"{{item.state}}", "",
		)
	}

	// --- Alert ---
	if alert != nil {
		pairs = append(pairs,
			"{{alert.id}}", formatID(alert.ID),
			"{{alert.type}}", alert.Type,
			"{{alert.urgency}}", alert.Urgency,
			"{{alert.state}}", alert.State,
			"{{alert.message}}", alert.Message,
			"{{alert.pending}}", strconv.Itoa(alert.Pending),
			"{{alert.resolved}}", strconv.Itoa(alert.Resolved),
			"{{alert.created_at}}", formatTime(alert.CreatedAt),
		)
	} else {
		pairs = append(pairs,
			"{{alert.id}}", "",
			"{{alert.type}}", "",
			"{{alert.urgency}}", "",
			"{{alert.state}}", "",
			"{{alert.message}}", "",
			"{{alert.pending}}", "",
			"{{alert.resolved}}", "",
			"{{alert.created_at}}", "",
		)
	}

	// --- Incident ---
	if incident != nil {
		pairs = append(pairs,
			"{{incident.id}}", formatID(incident.ID),
			"{{incident.title}}", incident.Title,
			"{{incident.type}}", incident.Type,
			"{{incident.severity}}", incident.Severity,
			"{{incident.state}}", incident.State,
			"{{incident.occurred_at}}", formatTime(incident.OccurredAt),
		)
	} else {
		pairs = append(pairs,
			"{{incident.id}}", "",
			"{{incident.title}}", "",
			"{{incident.type}}", "",
			"{{incident.severity}}", "",
			"{{incident.state}}", "",
			"{{incident.occurred_at}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
