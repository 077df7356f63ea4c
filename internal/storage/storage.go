// internal/storage/storage.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pitchside/playbook/pkg/core"
)

var (
	// ErrNotFound is returned when no project has the requested id.
	ErrNotFound = errors.New("project not found")
	// ErrPayloadTooLarge is returned when a document exceeds the size ceiling.
	ErrPayloadTooLarge = errors.New("project document too large")
	// ErrInvalidDocument is returned for documents that are not JSON objects.
	ErrInvalidDocument = errors.New("invalid project document")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Save stores the project and returns its identifier.
	Save(p *core.Project) (string, error)
	// Load returns the raw stored document for id.
	Load(id string) ([]byte, error)
	Delete(id string) error
	List() ([]Summary, error)
}

// Summary describes a stored project without its frames.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Sport       string    `json:"sport"`
	FrameCount  int       `json:"frameCount"`
	EntityCount int       `json:"entityCount"`
	Bytes       int       `json:"bytes"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SummaryOf builds the listing entry for a project serialized to size bytes.
func SummaryOf(p *core.Project, size int) Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Sport:       string(p.Sport),
		FrameCount:  len(p.Frames),
		EntityCount: p.EntityCount(),
		Bytes:       size,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Encode serializes a project and checks the result with ValidateDocument.
func Encode(p *core.Project, maxBytes int) ([]byte, error) {
	if p == nil || p.ID == "" {
		return nil, fmt.Errorf("%w: project has no id", ErrInvalidDocument)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding project %s: %w", p.ID, err)
	}
	if err := ValidateDocument(raw, maxBytes); err != nil {
		return nil, err
	}
	return raw, nil
}

// ValidateDocument checks that raw is a non-empty JSON object within
// maxBytes. A maxBytes of 0 disables the size check.
func ValidateDocument(raw []byte, maxBytes int) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidDocument)
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(raw), maxBytes)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}
