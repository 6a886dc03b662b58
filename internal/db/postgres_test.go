package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slatrack/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PostgresConfig
		want    string
		wantErr bool
	}{
		{
			name: "database-url-wins",
			cfg:  config.PostgresConfig{DatabaseURL: "postgres://u@db/x", User: "ignored", Database: "ignored"},
			want: "postgres://u@db/x",
		},
		{
			name: "parts-with-password",
			cfg:  config.PostgresConfig{Host: "pg", Port: "6543", User: "sla", Password: "secret", Database: "slatrack", SSLMode: "require"},
			want: "postgres://sla:secret@pg:6543/slatrack?sslmode=require",
		},
		{
			name: "defaults",
			cfg:  config.PostgresConfig{User: "sla", Database: "slatrack"},
			want: "postgres://sla@localhost:5432/slatrack?sslmode=disable",
		},
		{
			name:    "missing-user",
			cfg:     config.PostgresConfig{Database: "slatrack"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPostgresURL(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.False(t, IsNoRows(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestPrefixColumns(t *testing.T) {
	assert.Equal(t, "i.id, i.item_id, i.title", prefixColumns("i", "\n\tid, item_id,\n\ttitle\n"))
}
