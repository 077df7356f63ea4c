// Package convert maps between core projects and their database records.
package convert

import (
	"github.com/pitchside/playbook/internal/model"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
	"gorm.io/datatypes"
)

// ProjectToRecord builds the row for p. doc is p's encoded document.
func ProjectToRecord(p *core.Project, doc []byte) model.ProjectRecord {
	return model.ProjectRecord{
		ID:          p.ID,
		Name:        p.Name,
		Sport:       string(p.Sport),
		FrameCount:  len(p.Frames),
		EntityCount: p.EntityCount(),
		Bytes:       len(doc),
		Document:    datatypes.JSON(doc),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

// RecordToSummary converts a row to a listing entry. Document is not read.
func RecordToSummary(r model.ProjectRecord) storage.Summary {
	return storage.Summary{
		ID:          r.ID,
		Name:        r.Name,
		Sport:       r.Sport,
		FrameCount:  r.FrameCount,
		EntityCount: r.EntityCount,
		Bytes:       r.Bytes,
		UpdatedAt:   r.UpdatedAt,
	}
}
