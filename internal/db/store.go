package db

import (
	"context"
	"time"

	"github.com/slatrack/backend/internal/model"
)

// Store is the transactional record store the compliance engine runs on.
// Lookups by id return pgx.ErrNoRows (see IsNoRows) when the row is missing.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	// LockItem holds the item row until the transaction ends.
	LockItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context) ([]model.Item, error)
	UpdateItem(ctx context.Context, item *model.Item) error
	InsertItemVersion(ctx context.Context, v *model.ItemVersion) error
	CountItemVersions(ctx context.Context, itemID int64) (int, error)
	GetSLA(ctx context.Context, itemID int64) (*model.SLA, error)
	UpsertSLA(ctx context.Context, sla *model.SLA) error

	CreateIncident(ctx context.Context, inc *model.Incident) error
	GetIncident(ctx context.Context, id int64) (*model.Incident, error)
	ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error)
	UpdateIncidentState(ctx context.Context, id int64, from, to model.IncidentState) (bool, error)
	MarkIncidentResolved(ctx context.Context, inc *model.Incident) (bool, error)
	CountIncidents(ctx context.Context, itemID int64, from, to time.Time, activeOnly bool) (int, error)

	GetMetric(ctx context.Context, itemID int64, year, month int) (*model.Metric, error)
	GetMetricByID(ctx context.Context, id int64) (*model.Metric, error)
	InsertMetric(ctx context.Context, m *model.Metric) error
	SaveMetric(ctx context.Context, m *model.Metric) error
	ListMetricHistory(ctx context.Context, itemID int64, year, month, limit int) ([]model.Metric, error)
	ListMetrics(ctx context.Context, filter model.MetricFilter) ([]model.Metric, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error)
	UpdateAlertCounters(ctx context.Context, a *model.Alert) error
	MarkAlertResolved(ctx context.Context, id int64, resolvedBy *int64, at time.Time) (bool, error)
	LinkAlertIncident(ctx context.Context, link model.AlertIncidentLink) (bool, error)
	ListLinkedIncidents(ctx context.Context, alertID int64) ([]model.Incident, error)

	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListNotificationEmails(ctx context.Context, roles []model.Role) ([]string, error)
}

var _ Store = (*Postgres)(nil)
