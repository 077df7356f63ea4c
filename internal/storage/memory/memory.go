// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
)

// record is one stored project document.
type record struct {
	summary storage.Summary
	doc     []byte
}

// Backend stores project documents in memory and optionally mirrors each
// save to a JSON file in OutputDir.
type Backend struct {
	cfg      config.MemoryConfig
	maxBytes int

	projects       map[string]record
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend. maxBytes of 0 disables the size check.
func New(cfg config.MemoryConfig, maxBytes int) *Backend {
	return &Backend{
		cfg:      cfg,
		maxBytes: maxBytes,
		projects: make(map[string]record),
	}
}

// Init creates the output directory when one is configured and indexes the
// documents already in it, so List includes earlier sessions.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexExports()
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Save stores the project under its own id, replacing any previous copy.
func (b *Backend) Save(p *core.Project) (string, error) {
	raw, err := storage.Encode(p, b.maxBytes)
	if err != nil {
		return "", err
	}
	if err := checkID(p.ID); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// the held copy only changes once the export has been written
	if b.cfg.OutputDir != "" {
		if err := b.exportJSON(p.ID, raw); err != nil {
			return "", err
		}
	}
	b.projects[p.ID] = record{summary: storage.SummaryOf(p, len(raw)), doc: raw}
	return p.ID, nil
}

// Load returns the stored document, reading it back from OutputDir when it
// is not held in memory.
func (b *Backend) Load(id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	b.mu.RLock()
	rec, ok := b.projects[id]
	b.mu.RUnlock()
	if ok {
		return append([]byte(nil), rec.doc...), nil
	}

	if b.cfg.OutputDir == "" {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	raw, err := b.readExport(id)
	if err != nil {
		return nil, err
	}
	if err := storage.ValidateDocument(raw, b.maxBytes); err != nil {
		return nil, fmt.Errorf("stored project %s: %w", id, err)
	}
	return raw, nil
}

// Delete removes a project from memory and from OutputDir.
func (b *Backend) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, found := b.projects[id]
	delete(b.projects, id)

	if b.cfg.OutputDir != "" {
		for _, path := range b.exportPaths(id) {
			err := os.Remove(path)
			if err == nil {
				found = true
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
	}

	if !found {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

// List returns the projects held in memory, newest first.
func (b *Backend) List() ([]storage.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]storage.Summary, 0, len(b.projects))
	for _, rec := range b.projects {
		out = append(out, rec.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// LastExportPath returns the file written by the most recent save, if any.
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// checkID rejects ids that would escape OutputDir.
func checkID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: bad project id %q", storage.ErrInvalidDocument, id)
	}
	return nil
}
