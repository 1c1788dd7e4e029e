package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	t.Run("fresh database applies all migrations", func(t *testing.T) {
		path := t.TempDir() + "/test.db"
		conn, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		defer conn.Close()

		err = Migrate(conn)
		require.NoError(t, err)

		var count int
		err = conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, len(migrations), count)

		for _, table := range []string{"databases", "regions"} {
			var name string
			err = conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
			require.NoError(t, err, "table %s missing", table)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		path := t.TempDir() + "/test.db"
		conn, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, Migrate(conn))
		require.NoError(t, Migrate(conn))

		var count int
		err = conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, len(migrations), count)
	})

	t.Run("rejects unknown applied version", func(t *testing.T) {
		path := t.TempDir() + "/test.db"
		conn, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, Migrate(conn))
		_, err = conn.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (999, 'future', '2024-01-01T00:00:00Z')`)
		require.NoError(t, err)

		err = Migrate(conn)
		assert.EqualError(t, err, "unknown schema migration version 999")
	})

	t.Run("nil db", func(t *testing.T) {
		err := Migrate(nil)
		assert.EqualError(t, err, "db is nil")
	})
}
