package model

import "time"

// WebhookHeader - header key/value pair
type WebhookHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WebhookConfig - outbound notification webhook.
// Events restricts delivery to the listed alert types (empty = every alert);
// "incident" subscribes to incident notices.
type WebhookConfig struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	URL       string          `json:"url"`
	Method    string          `json:"method"`
	Headers   []WebhookHeader `json:"headers"`
	Body      string          `json:"body"`
	Events    []string        `json:"events"`
	Enabled   bool            `json:"enabled"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WebhookConfigRequest - create/update payload
type WebhookConfigRequest struct {
	Name    string          `json:"name" validate:"max=100"`
	URL     string          `json:"url" validate:"required,url"`
	Method  string          `json:"method" validate:"omitempty,oneof=POST PUT PATCH"`
	Headers []WebhookHeader `json:"headers"`
	Body    string          `json:"body"`
	Events  []string        `json:"events"`
	Enabled *bool           `json:"enabled,omitempty"`
}

// Accepts reports whether a notification should go to this webhook.
func (w WebhookConfig) Accepts(n Notification) bool {
	if !w.Enabled {
		return false
	}
	if len(w.Events) == 0 {
		return true
	}
	event := string(n.Kind)
	if n.Alert != nil {
		event = string(n.Alert.Type)
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookEvents lists the values a webhook may subscribe to.
func WebhookEvents() []string {
	events := make([]string, 0, len(AlertTypes)+1)
	for _, t := range AlertTypes {
		events = append(events, string(t))
	}
	return append(events, string(NotificationIncident))
}

// WebhookPreview - the request a webhook would receive for a sample event
type WebhookPreview struct {
	WebhookID int             `json:"webhook_id"`
	Event     string          `json:"event"`
	Accepted  bool            `json:"accepted"`
	Method    string          `json:"method"`
	URL       string          `json:"url"`
	Headers   []WebhookHeader `json:"headers"`
	Body      string          `json:"body"`
}

type WebhookPreviewResponse struct {
	Status string          `json:"status"`
	Data   *WebhookPreview `json:"data"`
}

type WebhookEventsResponse struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}

type WebhookConfigResponse struct {
	Status string         `json:"status"`
	Data   *WebhookConfig `json:"data"`
}

type WebhookConfigListResponse struct {
	Status string          `json:"status"`
	Data   []WebhookConfig `json:"data"`
}

type WebhookConfigMutationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      int    `json:"id,omitempty"`
}
