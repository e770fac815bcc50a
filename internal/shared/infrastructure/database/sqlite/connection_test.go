package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/database"
)

func TestNewConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state", "ledger.db")

		conn, err := NewConnection(ctx, database.Config{URL: path})
		require.NoError(t, err)
		defer conn.Close()

		assert.NoError(t, conn.Ping(ctx))
		assert.Equal(t, database.DriverSQLite, conn.Driver())
		assert.FileExists(t, path)
	})

	t.Run("accepts sqlite scheme", func(t *testing.T) {
		conn, err := NewConnection(ctx, database.Config{URL: "sqlite://" + filepath.Join(t.TempDir(), "ledger.db")})
		require.NoError(t, err)
		defer conn.Close()
	})

	t.Run("registered with the factory", func(t *testing.T) {
		conn, err := database.NewConnection(ctx, database.Config{URL: filepath.Join(t.TempDir(), "ledger.sqlite")})
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, database.DriverSQLite, conn.Driver())
	})

	t.Run("requires a path", func(t *testing.T) {
		_, err := NewConnection(ctx, database.Config{})
		assert.Error(t, err)
	})
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()

	conn, err := NewConnection(ctx, database.Config{URL: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, text TEXT)`)
	require.NoError(t, err)

	affected, err := conn.Exec(ctx, `INSERT INTO items (id, text) VALUES (?, ?)`, "1", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = conn.Exec(ctx, `INSERT INTO items (id, text) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, "1", "again")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	var text string
	require.NoError(t, conn.QueryRow(ctx, `SELECT text FROM items WHERE id = ?`, "1").Scan(&text))
	assert.Equal(t, "hello", text)

	err = conn.QueryRow(ctx, `SELECT text FROM items WHERE id = ?`, "missing").Scan(&text)
	assert.True(t, database.IsNoRows(err))

	_, err = conn.Exec(ctx, `INSERT INTO items (id, text) VALUES (?, ?)`, "2", "world")
	require.NoError(t, err)

	rows, err := conn.Query(ctx, `SELECT id FROM items ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"1", "2"}, ids)
}
