package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLiteRunsMigrations(t *testing.T) {
	conn, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, table := range []string{"advertisements", "ad_analytics_events", "otp_records"} {
		var name string
		err := conn.Get(&name, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.NoError(t, Migrate(conn))
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect("mysql", "root@/motels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
