package db

import (
	"io/fs"
	"testing"

	"fitness-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudienceClause(t *testing.T) {
	tests := []struct {
		audience models.Audience
		want     string
	}{
		{models.AudienceAll, "TRUE"},
		{models.AudiencePaid, "is_paid"},
		{models.AudienceFree, "NOT is_paid"},
		{models.AudienceTestAdmins, "role = 'admin'"},
	}

	for _, tt := range tests {
		t.Run(string(tt.audience), func(t *testing.T) {
			got, err := audienceClause(tt.audience)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := audienceClause("vip")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_init.up.sql",
		"migrations/000001_init.down.sql",
	}, names)

	up, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"users", "workouts", "meals", "payments"} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
