package main

import (
	"fmt"
	"log/slog"

	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/database"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/internal/storage/memory"
	pgstorage "github.com/pitchside/playbook/internal/storage/postgres"
	sqlitestorage "github.com/pitchside/playbook/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// createStorageBackend builds the backend named by storage.type. Unknown
// types fall back to memory.
func createStorageBackend(cfg config.StorageConfig, maxBytes int, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		manager := database.NewManager(dbLog)
		manager.SqliteFilePath = cfg.SQLite.DumpPath
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Manager:  manager,
			Logger:   logger,
			MaxBytes: maxBytes,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(cfg.SQLite, maxBytes, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "dumpPath", cfg.SQLite.DumpPath)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory, maxBytes), nil

	default:
		logger.Warn("Unknown storage type, using memory", "type", cfg.Type)
		return memory.New(cfg.Memory, maxBytes), nil
	}
}
