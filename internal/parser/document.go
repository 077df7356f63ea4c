package parser

import (
	"time"

	"github.com/pitchside/playbook/pkg/core"
)

// projectDoc is the saved project document as read from outside. Structural
// rules are struct tags; bounds are repaired later with warnings.
type projectDoc struct {
	ID        string         `json:"id" validate:"required"`
	Name      string         `json:"name"`
	Sport     string         `json:"sport"`
	Frames    []frameDoc     `json:"frames" validate:"required,min=1,dive"`
	Settings  *core.Settings `json:"settings"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type frameDoc struct {
	ID          string               `json:"id" validate:"required"`
	Index       int                  `json:"index"`
	Duration    int                  `json:"duration"`
	Entities    map[string]entityDoc `json:"entities" validate:"dive"`
	Annotations []annotationDoc      `json:"annotations" validate:"dive"`
}

type entityDoc struct {
	ID          string   `json:"id" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=player ball cone marker tackle-shield tackle-bag"`
	Team        string   `json:"team" validate:"omitempty,oneof=attack defense defence neutral"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Color       string   `json:"color"`
	Label       string   `json:"label"`
	ParentID    string   `json:"parentId"`
	Orientation *float64 `json:"orientation"`
}

type annotationDoc struct {
	ID           string    `json:"id" validate:"required"`
	Type         string    `json:"type" validate:"required,oneof=arrow line"`
	Points       []float64 `json:"points" validate:"required,min=4"`
	Color        string    `json:"color"`
	StartFrameID string    `json:"startFrameId"`
	EndFrameID   string    `json:"endFrameId"`
}
