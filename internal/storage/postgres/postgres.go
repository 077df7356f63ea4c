// Package postgres implements the storage.Backend interface on PostgreSQL.
// When Postgres cannot be reached the database manager falls back to an
// in-memory SQLite database, which is dumped to disk on close.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/pitchside/playbook/internal/database"
	gormstorage "github.com/pitchside/playbook/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
// With no DB, Init connects through Manager using the db.* config keys.
type Dependencies struct {
	DB       *gorm.DB
	Manager  *database.Manager
	Logger   *slog.Logger
	MaxBytes int
}

// Backend wraps the GORM backend with Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	b := &Backend{deps: deps}
	b.Backend = b.newGorm()
	return b
}

func (b *Backend) newGorm() *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		DB:       b.deps.DB,
		Logger:   b.deps.Logger,
		MaxBytes: b.deps.MaxBytes,
	})
}

// Init connects if needed, migrates the schema and creates Postgres indexes.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Manager == nil {
			b.deps.Manager = database.NewManager(zerolog.Nop())
		}
		if err := b.deps.Manager.Connect(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if b.deps.Manager.ShouldSaveLocal {
			b.deps.Logger.Warn("Postgres unreachable, storing projects in local SQLite",
				"dumpPath", b.deps.Manager.SqliteFilePath)
		}
		b.deps.DB = b.deps.Manager.DB
	}

	b.Backend = b.newGorm()
	if err := b.Backend.Init(); err != nil {
		return err
	}
	return b.setupIndexes()
}

// setupIndexes adds a GIN index over the document column so projects can be
// searched by content.
func (b *Backend) setupIndexes() error {
	db := b.deps.DB
	if db.Name() != "postgres" {
		return nil
	}
	err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_projects_document ON projects USING gin (document);`).Error
	if err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}
	b.deps.Logger.Info("Document index ready")
	return nil
}

// Local reports whether projects are held in the SQLite fallback.
func (b *Backend) Local() bool {
	return b.deps.Manager != nil && b.deps.Manager.ShouldSaveLocal
}

// Close dumps the SQLite fallback when one is in use and closes the connection.
func (b *Backend) Close() error {
	if b.Local() && b.deps.Manager.SqliteFilePath != "" {
		if err := b.deps.Manager.DumpMemoryToDisk(); err != nil {
			b.deps.Logger.Error("Failed to dump local database", "error", err)
		}
	}
	return b.Backend.Close()
}
