package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/model"
)

func (db *Postgres) EnsureIncidentSchema(ctx context.Context) error {
	return db.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS incidents (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			affected_users INTEGER,
			state TEXT NOT NULL DEFAULT 'open',
			occurred_at TIMESTAMPTZ NOT NULL,
			reported_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
			resolved_at TIMESTAMPTZ,
			resolved_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
			resolution_minutes INTEGER,
			resolution_comment TEXT NOT NULL DEFAULT '',
			resolution_image TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS incidents_item_occurred_idx ON incidents(item_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS incidents_state_idx ON incidents(state)`,
	})
}

const incidentColumns = `
	id, item_id, title, description, type, severity, affected_users, state, occurred_at,
	reported_by, resolved_at, resolved_by, resolution_minutes, resolution_comment,
	resolution_image, created_at
`

func scanIncident(row interface{ Scan(dest ...any) error }) (*model.Incident, error) {
	var inc model.Incident
	err := row.Scan(
		&inc.ID,
		&inc.ItemID,
		&inc.Title,
		&inc.Description,
		&inc.Type,
		&inc.Severity,
		&inc.AffectedUsers,
		&inc.State,
		&inc.OccurredAt,
		&inc.ReportedBy,
		&inc.ResolvedAt,
		&inc.ResolvedBy,
		&inc.ResolutionMinutes,
		&inc.ResolutionComment,
		&inc.ResolutionImage,
		&inc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (db *Postgres) CreateIncident(ctx context.Context, inc *model.Incident) error {
	query := `
		INSERT INTO incidents (
			item_id, title, description, type, severity, affected_users,
			state, occurred_at, reported_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`
	return db.conn().QueryRow(ctx, query,
		inc.ItemID,
		inc.Title,
		inc.Description,
		inc.Type,
		inc.Severity,
		inc.AffectedUsers,
		inc.State,
		inc.OccurredAt,
		inc.ReportedBy,
	).Scan(&inc.ID, &inc.CreatedAt)
}

func (db *Postgres) GetIncident(ctx context.Context, id int64) (*model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	return scanIncident(db.conn().QueryRow(ctx, query, id))
}

func (db *Postgres) ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		where = append(where, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY occurred_at DESC, id DESC`

	return db.queryIncidents(ctx, query, args...)
}

// UpdateIncidentState moves an incident between states only when it is
// currently in from. false means the incident was not in that state.
func (db *Postgres) UpdateIncidentState(ctx context.Context, id int64, from, to model.IncidentState) (bool, error) {
	tag, err := db.conn().Exec(ctx, `UPDATE incidents SET state = $3 WHERE id = $1 AND state = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkIncidentResolved stamps the resolution fields. Already resolved
// incidents are left untouched and reported as false.
func (db *Postgres) MarkIncidentResolved(ctx context.Context, inc *model.Incident) (bool, error) {
	query := `
		UPDATE incidents
		SET state = 'resolved',
			resolved_at = $2,
			resolved_by = $3,
			resolution_minutes = $4,
			resolution_comment = $5,
			resolution_image = $6
		WHERE id = $1 AND state <> 'resolved'
	`
	tag, err := db.conn().Exec(ctx, query,
		inc.ID,
		inc.ResolvedAt,
		inc.ResolvedBy,
		inc.ResolutionMinutes,
		inc.ResolutionComment,
		inc.ResolutionImage,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountIncidents counts incidents of an item that occurred in [from, to).
func (db *Postgres) CountIncidents(ctx context.Context, itemID int64, from, to time.Time, activeOnly bool) (int, error) {
	query := `
		SELECT COUNT(*) FROM incidents
		WHERE item_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`
	if activeOnly {
		query += ` AND state <> 'resolved'`
	}
	var count int
	err := db.conn().QueryRow(ctx, query, itemID, from, to).Scan(&count)
	return count, err
}

func (db *Postgres) ListLinkedIncidents(ctx context.Context, alertID int64) ([]model.Incident, error) {
	query := `
		SELECT ` + prefixColumns("i", incidentColumns) + `
		FROM incidents i
		JOIN alert_incidents ai ON ai.incident_id = i.id
		WHERE ai.alert_id = $1
		ORDER BY ai.resolved_at, i.id
	`
	return db.queryIncidents(ctx, query, alertID)
}

func (db *Postgres) queryIncidents(ctx context.Context, query string, args ...any) ([]model.Incident, error) {
	rows, err := db.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inc)
	}
	return list, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
