package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pitchside/playbook/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memoryDSN is the shared in-memory SQLite database.
const memoryDSN = "file::memory:?cache=shared"

// Backend names reported by Manager.Backend.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Manager owns the project database connection. When Postgres cannot be
// reached it switches to an in-memory SQLite database that is dumped to
// SqliteFilePath instead.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Backend reports which database the manager ended up on, or "" before
// Connect.
func (m *Manager) Backend() string {
	switch {
	case m.DB == nil:
		return ""
	case m.ShouldSaveLocal:
		return BackendSQLite
	default:
		return BackendPostgres
	}
}

// Connect opens Postgres from the db.* config keys and falls back to SQLite
// when the open or the first ping fails.
func (m *Manager) Connect() error {
	m.IsValid = false
	if err := m.usePostgres(); err != nil {
		m.Logger.Warn().Err(err).Str("host", viper.GetString("db.host")).
			Msg("Postgres unavailable, projects will be kept in SQLite")
		if err := m.useSqlite(); err != nil {
			return err
		}
	}
	m.IsValid = true
	m.Logger.Info().Str("backend", m.Backend()).Msg("Project database connected")
	return nil
}

func (m *Manager) usePostgres() error {
	db, err := GetPostgresDBStandalone()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	m.DB, m.SqlDB = db, sqlDB
	return nil
}

func (m *Manager) useSqlite() error {
	db, err := GetSqliteDBStandalone("")
	if err != nil {
		return fmt.Errorf("open sqlite fallback: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("open sqlite fallback: %w", err)
	}
	m.DB, m.SqlDB = db, sqlDB
	m.ShouldSaveLocal = true
	m.Logger.Info().Str("dumpPath", m.SqliteFilePath).Msg("SQLite fallback is in memory, dumped on close")
	return nil
}

// Setup migrates the project schema. A failed migration leaves the manager
// invalid.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return errors.New("database not connected")
	}
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Debug().Str("backend", m.Backend()).Msg("Project schema migrated")
	return nil
}

// DumpMemoryToDisk snapshots the SQLite fallback to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Str("path", m.SqliteFilePath).Dur("duration", time.Since(start)).Msg("SQLite fallback dumped")
	return nil
}

const (
	maxOpenConns    = 10
	connMaxIdleTime = 5 * time.Minute
)

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// PostgresDSN builds the connection string from the db.* config keys.
func PostgresDSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}

// GetPostgresDBStandalone returns a connection to the Postgres database using viper config.
func GetPostgresDBStandalone() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// schemaVersion is stored in SQLite's user_version so dumped files can be
// told apart from other databases.
const schemaVersion = 1

// GetSqliteDBStandalone opens a SQLite database at path, or the shared
// in-memory database when path is empty. The in-memory database trades
// durability for speed since it is dumped to disk separately.
func GetSqliteDBStandalone(path string) (*gorm.DB, error) {
	dsn := memoryDSN
	pragmas := []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	}
	if path != "" {
		dsn = path
		pragmas = []string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = NORMAL;",
			"PRAGMA busy_timeout = 5000;",
		}
	}
	pragmas = append(pragmas,
		fmt.Sprintf("PRAGMA user_version = %d;", schemaVersion),
		"PRAGMA cache_size = -32000;",
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk writes a snapshot of db to path. The snapshot is built
// next to path and renamed over it, so a crash mid-dump keeps the old file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("sqlite dump path not set")
	}
	if strings.ContainsRune(path, '\'') {
		return fmt.Errorf("sqlite file path must not contain quotes: %s", path)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing stale snapshot: %w", err)
	}
	if err := db.Exec("VACUUM INTO 'file:" + tmp + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error replacing DB file: %w", err)
	}
	return nil
}
