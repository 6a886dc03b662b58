package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/model"
)

// EnsureAlertSchema - alerts and the alert/incident resolution links
func (db *Postgres) EnsureAlertSchema(ctx context.Context) error {
	return db.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id),
			type TEXT NOT NULL,
			urgency TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'active',
			message TEXT NOT NULL DEFAULT '',
			incident_id BIGINT REFERENCES incidents(id),
			pending_incident_count INTEGER NOT NULL DEFAULT 0,
			resolved_incident_count INTEGER NOT NULL DEFAULT 0,
			created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ,
			resolved_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
			period_year INTEGER NOT NULL DEFAULT 0,
			period_month INTEGER NOT NULL DEFAULT 0
		)
		`,
		`ALTER TABLE alerts ADD COLUMN IF NOT EXISTS period_year INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE alerts ADD COLUMN IF NOT EXISTS period_month INTEGER NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS alerts_item_type_period_active_idx ON alerts(item_id, type, period_year, period_month) WHERE state = 'active'`,
		// at most one active breach alert per item
		`CREATE UNIQUE INDEX IF NOT EXISTS alerts_item_breach_active_uq ON alerts(item_id) WHERE state = 'active' AND type = 'sobrepaso_sla'`,
		`CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts(created_at DESC)`,
		`
		CREATE TABLE IF NOT EXISTS alert_incidents (
			alert_id BIGINT NOT NULL REFERENCES alerts(id),
			incident_id BIGINT NOT NULL REFERENCES incidents(id),
			resolved_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (alert_id, incident_id)
		)
		`,
	})
}

const alertColumns = `
	id, item_id, type, urgency, state, message, incident_id, pending_incident_count,
	resolved_incident_count, created_by, created_at, resolved_at, resolved_by,
	period_year, period_month
`

func scanAlert(row interface{ Scan(dest ...any) error }) (*model.Alert, error) {
	var a model.Alert
	err := row.Scan(
		&a.ID,
		&a.ItemID,
		&a.Type,
		&a.Urgency,
		&a.State,
		&a.Message,
		&a.IncidentID,
		&a.PendingIncidents,
		&a.ResolvedIncidents,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.ResolvedAt,
		&a.ResolvedBy,
		&a.PeriodYear,
		&a.PeriodMonth,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *Postgres) CreateAlert(ctx context.Context, a *model.Alert) error {
	query := `
		INSERT INTO alerts (
			item_id, type, urgency, state, message, incident_id,
			pending_incident_count, resolved_incident_count, created_by, created_at,
			period_year, period_month
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return db.conn().QueryRow(ctx, query,
		a.ItemID,
		a.Type,
		a.Urgency,
		a.State,
		a.Message,
		a.IncidentID,
		a.PendingIncidents,
		a.ResolvedIncidents,
		a.CreatedBy,
		a.CreatedAt,
		a.PeriodYear,
		a.PeriodMonth,
	).Scan(&a.ID)
}

func (db *Postgres) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	return scanAlert(db.conn().QueryRow(ctx, query, id))
}

func (db *Postgres) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		where = append(where, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		where = append(where, fmt.Sprintf("period_year = $%d", len(args)))
	}
	if filter.Month != 0 {
		args = append(args, filter.Month)
		where = append(where, fmt.Sprintf("period_month = $%d", len(args)))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (db *Postgres) UpdateAlertCounters(ctx context.Context, a *model.Alert) error {
	query := `
		UPDATE alerts
		SET pending_incident_count = $2, resolved_incident_count = $3
		WHERE id = $1
	`
	tag, err := db.conn().Exec(ctx, query, a.ID, a.PendingIncidents, a.ResolvedIncidents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no alert found with id: %d", a.ID)
	}
	return nil
}

// MarkAlertResolved resolves an active alert. false means it was already
// resolved (or does not exist).
func (db *Postgres) MarkAlertResolved(ctx context.Context, id int64, resolvedBy *int64, at time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET state = 'resolved', resolved_at = $3, resolved_by = $2
		WHERE id = $1 AND state = 'active'
	`
	tag, err := db.conn().Exec(ctx, query, id, resolvedBy, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LinkAlertIncident records the pair once; false means it was already linked.
func (db *Postgres) LinkAlertIncident(ctx context.Context, link model.AlertIncidentLink) (bool, error) {
	query := `
		INSERT INTO alert_incidents (alert_id, incident_id, resolved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (alert_id, incident_id) DO NOTHING
	`
	tag, err := db.conn().Exec(ctx, query, link.AlertID, link.IncidentID, link.ResolvedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
