package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pitchside/playbook/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGetSqliteDBStandalone_FileAndMigrate(t *testing.T) {
	db, err := GetSqliteDBStandalone(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&model.ProjectRecord{}))

	rec := model.ProjectRecord{
		ID:        "p1",
		Name:      "Kick chase",
		Document:  datatypes.JSON(`{"id":"p1"}`),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&rec).Error)

	var got model.ProjectRecord
	require.NoError(t, db.First(&got, "id = ?", "p1").Error)
	assert.Equal(t, "Kick chase", got.Name)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDBStandalone(filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	dst := filepath.Join(t.TempDir(), "dump.db")
	// an existing file is replaced
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0644))

	require.NoError(t, DumpMemoryDBToDisk(db, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(len("stale")))
	_, err = os.Stat(dst + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDumpMemoryDBToDisk_BadPath(t *testing.T) {
	db, err := GetSqliteDBStandalone(filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
	assert.Error(t, DumpMemoryDBToDisk(db, "it's.db"))
}

func TestManager_SetupRequiresConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Empty(t, m.Backend())
	assert.Error(t, m.Setup())
	assert.False(t, m.IsValid)
}

func TestManager_SqliteFallbackSetup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.SqliteFilePath = filepath.Join(t.TempDir(), "fallback.db")

	require.NoError(t, m.useSqlite())
	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, BackendSQLite, m.Backend())
	require.NotNil(t, m.SqlDB)

	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.ProjectRecord{}))

	require.NoError(t, m.DumpMemoryToDisk())
	_, err := os.Stat(m.SqliteFilePath)
	assert.NoError(t, err)
}
