package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/slatrack/backend/internal/model"
)

// EnsureMetricSchema - one metric row per (item, year, month)
func (db *Postgres) EnsureMetricSchema(ctx context.Context) error {
	return db.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS metrics (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id),
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			incidents INTEGER NOT NULL DEFAULT 0,
			compliance_pct DOUBLE PRECISION NOT NULL DEFAULT 100,
			semaphore TEXT NOT NULL DEFAULT 'green',
			formula TEXT NOT NULL DEFAULT 'recompute',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (item_id, year, month)
		)
		`,
		`CREATE INDEX IF NOT EXISTS metrics_period_idx ON metrics(year, month)`,
	})
}

const metricColumns = `
	id, item_id, year, month, incidents, compliance_pct, semaphore, formula, created_at, updated_at
`

func scanMetric(row interface{ Scan(dest ...any) error }) (*model.Metric, error) {
	var m model.Metric
	err := row.Scan(
		&m.ID,
		&m.ItemID,
		&m.Year,
		&m.Month,
		&m.Incidents,
		&m.CompliancePct,
		&m.Semaphore,
		&m.Formula,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *Postgres) GetMetric(ctx context.Context, itemID int64, year, month int) (*model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE item_id = $1 AND year = $2 AND month = $3`
	return scanMetric(db.conn().QueryRow(ctx, query, itemID, year, month))
}

func (db *Postgres) GetMetricByID(ctx context.Context, id int64) (*model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE id = $1`
	return scanMetric(db.conn().QueryRow(ctx, query, id))
}

// InsertMetric fails with a unique violation when the period already exists.
func (db *Postgres) InsertMetric(ctx context.Context, m *model.Metric) error {
	query := `
		INSERT INTO metrics (item_id, year, month, incidents, compliance_pct, semaphore, formula, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return db.conn().QueryRow(ctx, query,
		m.ItemID, m.Year, m.Month, m.Incidents, m.CompliancePct, m.Semaphore, m.Formula,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// SaveMetric creates the period row or updates it in place.
func (db *Postgres) SaveMetric(ctx context.Context, m *model.Metric) error {
	query := `
		INSERT INTO metrics (item_id, year, month, incidents, compliance_pct, semaphore, formula, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (item_id, year, month) DO UPDATE SET
			incidents = EXCLUDED.incidents,
			compliance_pct = EXCLUDED.compliance_pct,
			semaphore = EXCLUDED.semaphore,
			formula = EXCLUDED.formula,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return db.conn().QueryRow(ctx, query,
		m.ItemID, m.Year, m.Month, m.Incidents, m.CompliancePct, m.Semaphore, m.Formula,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// ListMetricHistory returns up to limit metrics strictly before the given
// period, newest first.
func (db *Postgres) ListMetricHistory(ctx context.Context, itemID int64, year, month, limit int) ([]model.Metric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM metrics
		WHERE item_id = $1 AND (year < $2 OR (year = $2 AND month < $3))
		ORDER BY year DESC, month DESC
		LIMIT $4
	`
	return db.queryMetrics(ctx, query, itemID, year, month, limit)
}

func (db *Postgres) ListMetrics(ctx context.Context, filter model.MetricFilter) ([]model.Metric, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		where = append(where, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		where = append(where, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Month != 0 {
		args = append(args, filter.Month)
		where = append(where, fmt.Sprintf("month = $%d", len(args)))
	}

	query := `SELECT ` + metricColumns + ` FROM metrics`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY year DESC, month DESC, item_id`

	return db.queryMetrics(ctx, query, args...)
}

func (db *Postgres) queryMetrics(ctx context.Context, query string, args ...any) ([]model.Metric, error) {
	rows, err := db.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Metric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}
