package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://app:secret@db:5432/x?sslmode=disable", migrateURL("postgres://app:secret@db:5432/x?sslmode=disable"))
	assert.Equal(t, "pgx5://db/x", migrateURL("postgresql://db/x"))
	assert.Equal(t, "pgx5://db/x", migrateURL("pgx5://db/x"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
}
