package db

import (
	"context"
	"time"

	"github.com/slatrack/backend/internal/model"
)

// EnsureItemSchema - items, slas, item_versions
//
// items_supersedes_uidx keeps the supersession graph from branching: an item
// can be the supersedes target of at most one other item.
func (db *Postgres) EnsureItemSchema(ctx context.Context) error {
	return db.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('product', 'service')),
			description TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'proposed',
			operational_state TEXT NOT NULL DEFAULT 'active',
			supersedes_id BIGINT REFERENCES items(id),
			replacement_reason TEXT NOT NULL DEFAULT '',
			replaced_at TIMESTAMPTZ,
			created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS items_supersedes_uidx ON items(supersedes_id) WHERE supersedes_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS items_state_idx ON items(state)`,
		`
		CREATE TABLE IF NOT EXISTS slas (
			item_id BIGINT PRIMARY KEY REFERENCES items(id),
			availability_pct DOUBLE PRECISION,
			latency_ms INTEGER,
			response_minutes INTEGER,
			resolution_minutes INTEGER,
			critical_allowed INTEGER,
			minor_allowed INTEGER,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS item_versions (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id),
			version INTEGER NOT NULL,
			action TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			actor_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (item_id, version)
		)
		`,
	})
}

const itemColumns = `
	id, code, name, type, description, state, operational_state,
	supersedes_id, replacement_reason, replaced_at, created_by, created_at, updated_at
`

func scanItem(row interface{ Scan(dest ...any) error }) (*model.Item, error) {
	var item model.Item
	err := row.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Type,
		&item.Description,
		&item.State,
		&item.OperationalState,
		&item.SupersedesID,
		&item.ReplacementReason,
		&item.ReplacedAt,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *Postgres) CreateItem(ctx context.Context, item *model.Item) error {
	query := `
		INSERT INTO items (
			code, name, type, description, state, operational_state,
			supersedes_id, replacement_reason, replaced_at, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return db.conn().QueryRow(ctx, query,
		item.Code,
		item.Name,
		item.Type,
		item.Description,
		item.State,
		item.OperationalState,
		item.SupersedesID,
		item.ReplacementReason,
		item.ReplacedAt,
		item.CreatedBy,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (db *Postgres) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return scanItem(db.conn().QueryRow(ctx, query, id))
}

func (db *Postgres) LockItem(ctx context.Context, id int64) error {
	var locked int64
	return db.conn().QueryRow(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
}

// ListItems returns every item; callers build the supersession graph from it.
func (db *Postgres) ListItems(ctx context.Context) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY code`

	rows, err := db.conn().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *item)
	}
	return list, rows.Err()
}

func (db *Postgres) UpdateItem(ctx context.Context, item *model.Item) error {
	query := `
		UPDATE items
		SET name = $2, description = $3, state = $4, operational_state = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return db.conn().QueryRow(ctx, query,
		item.ID,
		item.Name,
		item.Description,
		item.State,
		item.OperationalState,
	).Scan(&item.UpdatedAt)
}

// InsertItemVersion assigns the next version number for the item.
func (db *Postgres) InsertItemVersion(ctx context.Context, v *model.ItemVersion) error {
	query := `
		INSERT INTO item_versions (item_id, version, action, comment, actor_id, created_at)
		SELECT $1::bigint, COALESCE(MAX(version), 0) + 1, $2::text, $3::text, $4::bigint, NOW()
		FROM item_versions WHERE item_id = $1
		RETURNING id, version, created_at
	`
	return db.conn().QueryRow(ctx, query, v.ItemID, v.Action, v.Comment, v.ActorID).
		Scan(&v.ID, &v.Version, &v.CreatedAt)
}

func (db *Postgres) CountItemVersions(ctx context.Context, itemID int64) (int, error) {
	var count int
	err := db.conn().QueryRow(ctx, `SELECT COUNT(*) FROM item_versions WHERE item_id = $1`, itemID).Scan(&count)
	return count, err
}

// GetSLA returns nil, nil when the item has no SLA row.
func (db *Postgres) GetSLA(ctx context.Context, itemID int64) (*model.SLA, error) {
	query := `
		SELECT item_id, availability_pct, latency_ms, response_minutes, resolution_minutes,
			critical_allowed, minor_allowed, updated_at
		FROM slas
		WHERE item_id = $1
	`
	var sla model.SLA
	err := db.conn().QueryRow(ctx, query, itemID).Scan(
		&sla.ItemID,
		&sla.AvailabilityPct,
		&sla.LatencyMs,
		&sla.ResponseMinutes,
		&sla.ResolutionMinutes,
		&sla.CriticalAllowed,
		&sla.MinorAllowed,
		&sla.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sla, nil
}

func (db *Postgres) UpsertSLA(ctx context.Context, sla *model.SLA) error {
	query := `
		INSERT INTO slas (
			item_id, availability_pct, latency_ms, response_minutes, resolution_minutes,
			critical_allowed, minor_allowed, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (item_id) DO UPDATE SET
			availability_pct = EXCLUDED.availability_pct,
			latency_ms = EXCLUDED.latency_ms,
			response_minutes = EXCLUDED.response_minutes,
			resolution_minutes = EXCLUDED.resolution_minutes,
			critical_allowed = EXCLUDED.critical_allowed,
			minor_allowed = EXCLUDED.minor_allowed,
			updated_at = NOW()
		RETURNING updated_at
	`
	var updatedAt time.Time
	err := db.conn().QueryRow(ctx, query,
		sla.ItemID,
		sla.AvailabilityPct,
		sla.LatencyMs,
		sla.ResponseMinutes,
		sla.ResolutionMinutes,
		sla.CriticalAllowed,
		sla.MinorAllowed,
	).Scan(&updatedAt)
	if err != nil {
		return err
	}
	sla.UpdatedAt = updatedAt
	return nil
}
