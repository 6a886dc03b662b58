package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slatrack/backend/internal/model"
	tmpl "github.com/slatrack/backend/internal/template"
)

// webhookConfigReader - read side used by delivery
type webhookConfigReader interface {
	GetWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error)
}

// WebhookDeliveryService posts notifications to the user-configured webhooks.
// It is one of the dispatcher channels.
type WebhookDeliveryService struct {
	configDB   webhookConfigReader
	httpClient *http.Client
}

func NewWebhookDeliveryService(configDB webhookConfigReader) *WebhookDeliveryService {
	return &WebhookDeliveryService{
		configDB: configDB,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookDeliveryService) Name() string { return "webhook" }

// Send renders the body of every webhook that accepts n and posts it.
// A failing webhook is logged and does not stop the others; the returned
// error reports how many failed.
func (s *WebhookDeliveryService) Send(ctx context.Context, n model.Notification) error {
	configs, err := s.configDB.GetWebhookConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load webhook configs: %w", err)
	}

	failed := 0
	for _, cfg := range configs {
		if !cfg.Accepts(n) {
			continue
		}
		if cfg.URL == "" {
			slog.Warn("[WebhookDelivery] skipping config with empty URL", "config_id", cfg.ID)
			continue
		}

		rendered := tmpl.RenderNotification(cfg.Body, n)
		if err := s.sendHTTP(ctx, cfg, rendered); err != nil {
			failed++
			slog.Warn("[WebhookDelivery] delivery failed", "url", cfg.URL, "config_id", cfg.ID, "error", err)
			continue
		}
		slog.Debug("[WebhookDelivery] delivered", "url", cfg.URL, "config_id", cfg.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d webhook deliveries failed", failed)
	}
	return nil
}

// sendHTTP - one request per webhook config
func (s *WebhookDeliveryService) sendHTTP(ctx context.Context, cfg model.WebhookConfig, body string) error {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return err
	}

	// default Content-Type is application/json
	hasContentType := false
	for _, h := range cfg.Headers {
		if h.Key != "" {
			req.Header.Set(h.Key, h.Value)
		}
		if http.CanonicalHeaderKey(h.Key) == "Content-Type" {
			hasContentType = true
		}
	}
	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
