package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/model"
	tmpl "github.com/slatrack/backend/internal/template"
)

// webhookRepo - settings storage
type webhookRepo interface {
	GetWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error)
	GetWebhookConfigByID(ctx context.Context, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error)
	UpdateWebhookConfig(ctx context.Context, id int, cfg model.WebhookConfig) error
	DeleteWebhookConfig(ctx context.Context, id int) error
}

// WebhookService - notification webhook settings
type WebhookService struct {
	db webhookRepo
}

func NewWebhookService(db webhookRepo) *WebhookService {
	return &WebhookService{db: db}
}

// ListWebhookConfigs returns every webhook, or only those that would receive
// event when it is set.
func (s *WebhookService) ListWebhookConfigs(ctx context.Context, event string) ([]model.WebhookConfig, error) {
	configs, err := s.db.GetWebhookConfigs(ctx)
	if err != nil {
		return nil, err
	}
	if event == "" {
		return configs, nil
	}
	sample, err := sampleNotification(event)
	if err != nil {
		return nil, err
	}
	out := []model.WebhookConfig{}
	for _, cfg := range configs {
		if cfg.Accepts(sample) {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// PreviewWebhookConfig renders the request webhook id would receive for a
// sample notification of event. Nothing is sent.
func (s *WebhookService) PreviewWebhookConfig(ctx context.Context, id int, event string) (*model.WebhookPreview, error) {
	cfg, err := s.GetWebhookConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == "" {
		event = string(model.AlertTypeSLABreach)
	}
	sample, err := sampleNotification(event)
	if err != nil {
		return nil, err
	}
	return &model.WebhookPreview{
		WebhookID: cfg.ID,
		Event:     event,
		Accepted:  cfg.Accepts(sample),
		Method:    cfg.Method,
		URL:       cfg.URL,
		Headers:   cfg.Headers,
		Body:      tmpl.RenderNotification(cfg.Body, sample),
	}, nil
}

func (s *WebhookService) GetWebhookConfig(ctx context.Context, id int) (*model.WebhookConfig, error) {
	cfg, err := s.db.GetWebhookConfigByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "webhook", int64(id))
	}
	return cfg, nil
}

func (s *WebhookService) CreateWebhookConfig(ctx context.Context, req model.WebhookConfigRequest) (int, error) {
	cfg, err := webhookFromRequest(req)
	if err != nil {
		return 0, err
	}
	return s.db.CreateWebhookConfig(ctx, cfg)
}

func (s *WebhookService) UpdateWebhookConfig(ctx context.Context, id int, req model.WebhookConfigRequest) error {
	cfg, err := webhookFromRequest(req)
	if err != nil {
		return err
	}
	if err := s.db.UpdateWebhookConfig(ctx, id, cfg); err != nil {
		return notFound(err, "webhook", int64(id))
	}
	return nil
}

func (s *WebhookService) DeleteWebhookConfig(ctx context.Context, id int) error {
	if err := s.db.DeleteWebhookConfig(ctx, id); err != nil {
		return notFound(err, "webhook", int64(id))
	}
	return nil
}

func webhookFromRequest(req model.WebhookConfigRequest) (model.WebhookConfig, error) {
	if err := validateRequest(req); err != nil {
		return model.WebhookConfig{}, err
	}
	cfg := model.WebhookConfig{
		Name:    strings.TrimSpace(req.Name),
		URL:     req.URL,
		Method:  req.Method,
		Body:    req.Body,
		Headers: req.Headers,
		Events:  []string{},
		Enabled: true,
	}
	if cfg.Method == "" {
		cfg.Method = "POST"
	}
	if cfg.Headers == nil {
		cfg.Headers = []model.WebhookHeader{}
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	for _, ev := range req.Events {
		ev = strings.TrimSpace(ev)
		if ev != string(model.NotificationIncident) && !model.AlertType(ev).Valid() {
			return model.WebhookConfig{}, fmt.Errorf("%w: unknown webhook event %q", ErrInvalidInput, ev)
		}
		cfg.Events = append(cfg.Events, ev)
	}
	return cfg, nil
}

// sampleNotification builds a notification of event on a placeholder item.
func sampleNotification(event string) (model.Notification, error) {
	at := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	n := model.Notification{
		ID: "sample",
		Item: model.Item{
			ID:               1,
			Code:             "SAMPLE-01",
			Name:             "Sample item",
			Type:             model.ItemTypeProduct,
			State:            model.ItemStateApproved,
			OperationalState: model.OperationalActive,
		},
		Recipients: []string{},
		CreatedAt:  at,
	}
	incident := &model.Incident{
		ID:         1,
		ItemID:     1,
		Title:      "Sample incident",
		Type:       "critical",
		Severity:   "high",
		State:      model.IncidentOpen,
		OccurredAt: at,
		CreatedAt:  at,
	}

	switch {
	case event == string(model.NotificationIncident):
		n.Kind = model.NotificationIncident
		n.Incident = incident
	case model.AlertType(event).Valid():
		n.Kind = model.NotificationAlert
		n.Alert = &model.Alert{
			ID:               1,
			ItemID:           1,
			Type:             model.AlertType(event),
			Urgency:          model.UrgencyCritical,
			State:            model.AlertActive,
			Message:          "Sample " + event + " alert for SAMPLE-01",
			PendingIncidents: 3,
			CreatedAt:        at,
			PeriodYear:       at.Year(),
			PeriodMonth:      int(at.Month()),
		}
		if n.Alert.Type == model.AlertTypeManualCritical {
			n.Alert.IncidentID = &incident.ID
			n.Incident = incident
		}
	default:
		return model.Notification{}, fmt.Errorf("%w: unknown webhook event %q", ErrInvalidInput, event)
	}
	return n, nil
}
