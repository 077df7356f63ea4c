// Package gormstorage implements storage.Backend over any GORM dialector.
// The SQLite and Postgres backends embed it and add only their connection
// handling.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pitchside/playbook/internal/database"
	"github.com/pitchside/playbook/internal/model"
	"github.com/pitchside/playbook/internal/model/convert"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	MaxBytes int
}

// Backend stores each project as one row in the projects table.
type Backend struct {
	deps    Dependencies
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true
	b.deps.Logger.Debug("Database schema ready", "dialect", b.deps.DB.Name())
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	b.dbReady = false
	return sqlDB.Close()
}

func (b *Backend) ready() error {
	if !b.dbReady {
		return fmt.Errorf("gorm backend: not initialized")
	}
	return nil
}

// Save upserts the project row.
func (b *Backend) Save(p *core.Project) (string, error) {
	if err := b.ready(); err != nil {
		return "", err
	}
	doc, err := storage.Encode(p, b.deps.MaxBytes)
	if err != nil {
		return "", err
	}

	rec := convert.ProjectToRecord(p, doc)
	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return "", fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}

	b.deps.Logger.Debug("Saved project", "projectId", p.ID, "bytes", rec.Bytes)
	return p.ID, nil
}

// Load returns the stored document.
func (b *Backend) Load(id string) ([]byte, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}

	var rec model.ProjectRecord
	err := b.deps.DB.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}

	raw := []byte(rec.Document)
	if err := storage.ValidateDocument(raw, b.deps.MaxBytes); err != nil {
		return nil, fmt.Errorf("stored project %s: %w", id, err)
	}
	return raw, nil
}

// Delete removes the project row.
func (b *Backend) Delete(id string) error {
	if err := b.ready(); err != nil {
		return err
	}

	res := b.deps.DB.Delete(&model.ProjectRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

// List returns every stored project, newest first, without loading documents.
func (b *Backend) List() ([]storage.Summary, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}

	var recs []model.ProjectRecord
	err := b.deps.DB.
		Select("id", "name", "sport", "frame_count", "entity_count", "bytes", "updated_at").
		Order("updated_at desc").Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	out := make([]storage.Summary, len(recs))
	for i, r := range recs {
		out[i] = convert.RecordToSummary(r)
	}
	return out, nil
}
