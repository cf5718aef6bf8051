package sqldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "root@/blood")
	assert.Error(t, err)
}

func TestPlaceholdersFollowDriver(t *testing.T) {
	pg := New(nil, DriverPostgres)
	query, _, err := pg.SqlBuilder.Select("id").From("blood_requests").Where("id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM blood_requests WHERE id = $1", query)
	assert.True(t, pg.SupportsRowLocks())

	lite := New(nil, DriverSQLite)
	query, _, err = lite.SqlBuilder.Select("id").From("blood_requests").Where("id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM blood_requests WHERE id = ?", query)
	assert.False(t, lite.SupportsRowLocks())
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(DriverSQLite, "file:"+filepath.Join(t.TempDir(), "t.db")+"?_foreign_keys=1")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Database.Ping())
	assert.Equal(t, 1, db.Database.Stats().MaxOpenConnections)
}
