package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slatrack/backend/internal/model"
)

// EnsureWebhookSchema - notification_webhooks table
func (p *Postgres) EnsureWebhookSchema(ctx context.Context) error {
	_, err := p.conn().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notification_webhooks (
			id         SERIAL       PRIMARY KEY,
			name       TEXT         NOT NULL DEFAULT '',
			url        TEXT         NOT NULL DEFAULT '',
			method     TEXT         NOT NULL DEFAULT 'POST',
			headers    JSONB        NOT NULL DEFAULT '[]',
			body       TEXT         NOT NULL DEFAULT '',
			events     JSONB        NOT NULL DEFAULT '[]',
			enabled    BOOLEAN      NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create notification_webhooks table: %w", err)
	}
	return nil
}

func scanWebhook(row interface{ Scan(dest ...any) error }) (*model.WebhookConfig, error) {
	var (
		cfg         model.WebhookConfig
		headersJSON []byte
		eventsJSON  []byte
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.URL, &cfg.Method, &headersJSON, &cfg.Body, &eventsJSON, &cfg.Enabled, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(headersJSON, &cfg.Headers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &cfg.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	return &cfg, nil
}

// GetWebhookConfigs - every webhook, most recently updated first
func (p *Postgres) GetWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error) {
	rows, err := p.conn().Query(ctx, `
		SELECT id, name, url, method, headers, body, events, enabled, updated_at
		FROM notification_webhooks
		ORDER BY updated_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook configs: %w", err)
	}
	defer rows.Close()

	configs := []model.WebhookConfig{}
	for rows.Next() {
		cfg, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (p *Postgres) GetWebhookConfigByID(ctx context.Context, id int) (*model.WebhookConfig, error) {
	cfg, err := scanWebhook(p.conn().QueryRow(ctx, `
		SELECT id, name, url, method, headers, body, events, enabled, updated_at
		FROM notification_webhooks
		WHERE id = $1;
	`, id))
	if err != nil {
		return nil, fmt.Errorf("webhook config not found: %w", err)
	}
	return cfg, nil
}

func marshalWebhook(cfg model.WebhookConfig) ([]byte, []byte, error) {
	headersJSON, err := json.Marshal(cfg.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal headers: %w", err)
	}
	eventsJSON, err := json.Marshal(cfg.Events)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal events: %w", err)
	}
	return headersJSON, eventsJSON, nil
}

func (p *Postgres) CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error) {
	headersJSON, eventsJSON, err := marshalWebhook(cfg)
	if err != nil {
		return 0, err
	}

	var id int
	err = p.conn().QueryRow(ctx, `
		INSERT INTO notification_webhooks (name, url, method, headers, body, events, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id;
	`, cfg.Name, cfg.URL, cfg.Method, headersJSON, cfg.Body, eventsJSON, cfg.Enabled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert webhook config: %w", err)
	}
	return id, nil
}

func (p *Postgres) UpdateWebhookConfig(ctx context.Context, id int, cfg model.WebhookConfig) error {
	headersJSON, eventsJSON, err := marshalWebhook(cfg)
	if err != nil {
		return err
	}

	tag, err := p.conn().Exec(ctx, `
		UPDATE notification_webhooks
		SET name = $1, url = $2, method = $3, headers = $4, body = $5, events = $6, enabled = $7, updated_at = NOW()
		WHERE id = $8;
	`, cfg.Name, cfg.URL, cfg.Method, headersJSON, cfg.Body, eventsJSON, cfg.Enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update webhook config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook config not found: id=%d: %w", id, errNoRows)
	}
	return nil
}

func (p *Postgres) DeleteWebhookConfig(ctx context.Context, id int) error {
	tag, err := p.conn().Exec(ctx, `DELETE FROM notification_webhooks WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook config not found: id=%d: %w", id, errNoRows)
	}
	return nil
}
