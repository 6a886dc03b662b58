package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/slatrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWebhooks struct {
	configs map[int]model.WebhookConfig
	nextID  int
}

func newMemWebhooks(configs ...model.WebhookConfig) *memWebhooks {
	m := &memWebhooks{configs: map[int]model.WebhookConfig{}}
	for _, c := range configs {
		m.nextID++
		c.ID = m.nextID
		m.configs[c.ID] = c
	}
	return m
}

func (m *memWebhooks) GetWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error) {
	out := []model.WebhookConfig{}
	for id := 1; id <= m.nextID; id++ {
		if c, ok := m.configs[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memWebhooks) GetWebhookConfigByID(ctx context.Context, id int) (*model.WebhookConfig, error) {
	c, ok := m.configs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (m *memWebhooks) CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error) {
	m.nextID++
	cfg.ID = m.nextID
	m.configs[cfg.ID] = cfg
	return cfg.ID, nil
}

func (m *memWebhooks) UpdateWebhookConfig(ctx context.Context, id int, cfg model.WebhookConfig) error {
	if _, ok := m.configs[id]; !ok {
		return pgx.ErrNoRows
	}
	cfg.ID = id
	m.configs[id] = cfg
	return nil
}

func (m *memWebhooks) DeleteWebhookConfig(ctx context.Context, id int) error {
	if _, ok := m.configs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.configs, id)
	return nil
}

func TestWebhookServiceCRUD(t *testing.T) {
	repo := newMemWebhooks()
	svc := NewWebhookService(repo)
	ctx := context.Background()

	id, err := svc.CreateWebhookConfig(ctx, model.WebhookConfigRequest{
		Name:   " ops ",
		URL:    "https://hooks.example.com/sla",
		Events: []string{string(model.AlertTypeSLABreach), "incident"},
	})
	require.NoError(t, err)

	cfg, err := svc.GetWebhookConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.Name)
	assert.Equal(t, "POST", cfg.Method)
	assert.True(t, cfg.Enabled)
	assert.NotNil(t, cfg.Headers)

	disabled := false
	require.NoError(t, svc.UpdateWebhookConfig(ctx, id, model.WebhookConfigRequest{URL: "https://hooks.example.com/v2", Method: "PUT", Enabled: &disabled}))
	cfg, _ = svc.GetWebhookConfig(ctx, id)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "PUT", cfg.Method)

	_, err = svc.CreateWebhookConfig(ctx, model.WebhookConfigRequest{URL: "https://x.example", Events: []string{"server_down"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateWebhookConfig(ctx, model.WebhookConfigRequest{URL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateWebhookConfig(ctx, model.WebhookConfigRequest{URL: "https://x.example", Method: "GET"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.DeleteWebhookConfig(ctx, id))
	assert.ErrorIs(t, svc.DeleteWebhookConfig(ctx, id), ErrNotFound)
	_, err = svc.GetWebhookConfig(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.UpdateWebhookConfig(ctx, id, model.WebhookConfigRequest{URL: "https://x.example"}), ErrNotFound)
}

func TestWebhookDeliveryFiltersAndRenders(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]string{}
		ctypes = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies[r.URL.Path] = string(b)
		ctypes[r.URL.Path] = r.Header.Get("Content-Type")
		mu.Unlock()
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo := newMemWebhooks(
		model.WebhookConfig{URL: srv.URL + "/all", Body: `{"item":"{{item.code}}","type":"{{alert.type}}","pending":{{alert.pending}}}`, Enabled: true},
		model.WebhookConfig{URL: srv.URL + "/breach", Body: "{{alert.message}}", Events: []string{string(model.AlertTypeSLABreach)}, Enabled: true,
			Headers: []model.WebhookHeader{{Key: "content-type", Value: "text/plain"}}},
		model.WebhookConfig{URL: srv.URL + "/incidents", Body: "{{incident.title}}", Events: []string{"incident"}, Enabled: true},
		model.WebhookConfig{URL: srv.URL + "/disabled", Body: "x", Enabled: false},
	)
	svc := NewWebhookDeliveryService(repo)

	n := model.Notification{
		ID:    "n-1",
		Kind:  model.NotificationAlert,
		Item:  model.Item{ID: 7, Code: "P01"},
		Alert: &model.Alert{ID: 3, Type: model.AlertTypeSLABreach, Message: "SLA BREACH", PendingIncidents: 3},
	}
	require.NoError(t, svc.Send(context.Background(), n))

	assert.Equal(t, `{"item":"P01","type":"sobrepaso_sla","pending":3}`, bodies["/all"])
	assert.Equal(t, "application/json", ctypes["/all"])
	assert.Equal(t, "SLA BREACH", bodies["/breach"])
	assert.Equal(t, "text/plain", ctypes["/breach"])
	assert.NotContains(t, bodies, "/incidents")
	assert.NotContains(t, bodies, "/disabled")
}

func TestWebhookDeliveryReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewWebhookDeliveryService(newMemWebhooks(model.WebhookConfig{URL: srv.URL, Enabled: true}))
	err := svc.Send(context.Background(), model.Notification{Kind: model.NotificationIncident, Incident: &model.Incident{ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 webhook deliveries failed")
}

func TestWebhookServiceEventFilterAndPreview(t *testing.T) {
	ctx := context.Background()
	repo := newMemWebhooks(
		model.WebhookConfig{Name: "breach", URL: "https://hooks.example.com/breach", Method: "POST", Enabled: true,
			Body: `{"text":"{{item.code}} {{alert.type}} pending={{alert.pending}}"}`, Events: []string{string(model.AlertTypeSLABreach)}},
		model.WebhookConfig{Name: "all", URL: "https://hooks.example.com/all", Method: "PUT", Enabled: true,
			Body: `{{incident.title}}`, Events: []string{}},
		model.WebhookConfig{Name: "off", URL: "https://hooks.example.com/off", Method: "POST", Enabled: false},
	)
	svc := NewWebhookService(repo)

	all, err := svc.ListWebhookConfigs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	breach, err := svc.ListWebhookConfigs(ctx, string(model.AlertTypeSLABreach))
	require.NoError(t, err)
	names := []string{}
	for _, c := range breach {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"breach", "all"}, names)

	incident, err := svc.ListWebhookConfigs(ctx, "incident")
	require.NoError(t, err)
	require.Len(t, incident, 1)
	assert.Equal(t, "all", incident[0].Name)

	_, err = svc.ListWebhookConfigs(ctx, "server_down")
	assert.ErrorIs(t, err, ErrInvalidInput)

	preview, err := svc.PreviewWebhookConfig(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, string(model.AlertTypeSLABreach), preview.Event)
	assert.True(t, preview.Accepted)
	assert.Equal(t, `{"text":"SAMPLE-01 sobrepaso_sla pending=3"}`, preview.Body)

	preview, err = svc.PreviewWebhookConfig(ctx, 1, string(model.AlertTypeFirstRed))
	require.NoError(t, err)
	assert.False(t, preview.Accepted)

	preview, err = svc.PreviewWebhookConfig(ctx, 2, "incident")
	require.NoError(t, err)
	assert.True(t, preview.Accepted)
	assert.Equal(t, "PUT", preview.Method)
	assert.Equal(t, "Sample incident", preview.Body)

	_, err = svc.PreviewWebhookConfig(ctx, 9, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
