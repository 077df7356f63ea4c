// internal/storage/memory/export.go
package memory

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
)

func (b *Backend) exportPaths(id string) []string {
	return []string{
		filepath.Join(b.cfg.OutputDir, id+".json.gz"),
		filepath.Join(b.cfg.OutputDir, id+".json"),
	}
}

// exportJSON writes the document to OutputDir, gzipped when CompressOutput
// is set.
func (b *Backend) exportJSON(id string, raw []byte) error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := b.exportPaths(id)
	outputPath, stale := paths[1], paths[0]
	if b.cfg.CompressOutput {
		outputPath, stale = paths[0], paths[1]
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, raw)
	} else {
		err = writeJSON(outputPath, raw)
	}
	if err != nil {
		return err
	}
	// a copy in the other format would shadow this one on load
	if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale export: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}

// indexExports reads every export in OutputDir that is not already held.
// Files that do not decode to a project with a matching id are skipped.
func (b *Backend) indexExports() error {
	entries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := strings.CutSuffix(e.Name(), ".json.gz")
		if !ok {
			id, ok = strings.CutSuffix(e.Name(), ".json")
		}
		if !ok || checkID(id) != nil {
			continue
		}
		if _, held := b.projects[id]; held {
			continue
		}

		raw, err := b.readExport(id)
		if err != nil || storage.ValidateDocument(raw, b.maxBytes) != nil {
			continue
		}
		var p core.Project
		if err := json.Unmarshal(raw, &p); err != nil || p.ID != id {
			continue
		}
		b.projects[id] = record{summary: storage.SummaryOf(&p, len(raw)), doc: raw}
	}
	return nil
}

func (b *Backend) readExport(id string) ([]byte, error) {
	paths := b.exportPaths(id)

	gz, err := os.ReadFile(paths[0])
	if err == nil {
		zr, err := gzip.NewReader(bytes.NewReader(gz))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", paths[0], err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", paths[0], err)
		}
		return raw, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", paths[0], err)
	}

	raw, err := os.ReadFile(paths[1])
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", paths[1], err)
	}
	return raw, nil
}

func writeJSON(path string, raw []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(raw)
	return err
}

func writeGzipJSON(path string, raw []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if _, err := gzWriter.Write(raw); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
