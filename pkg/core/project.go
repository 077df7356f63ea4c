// pkg/core/project.go
package core

import (
	"strings"
	"time"
)

// Pitch bounds and frame timing limits.
const (
	MinCoordinate = 0.0
	MaxCoordinate = 2000.0

	MinFrameDuration     = 100
	MaxFrameDuration     = 10000
	DefaultFrameDuration = 2000

	MaxNameLength  = 100
	MaxLabelLength = 10

	DefaultProjectName = "Untitled Play"
	SharedProjectName  = "Shared Animation"
)

// Sport selects the pitch drawn under the entities.
type Sport string

const (
	SportRugbyUnion       Sport = "rugby-union"
	SportRugbyLeague      Sport = "rugby-league"
	SportSoccer           Sport = "soccer"
	SportAmericanFootball Sport = "american-football"

	DefaultSport = SportRugbyUnion
)

// ParseSport converts a wire string into a Sport.
func ParseSport(s string) (Sport, bool) {
	switch sp := Sport(strings.ToLower(strings.TrimSpace(s))); sp {
	case SportRugbyUnion, SportRugbyLeague, SportSoccer, SportAmericanFootball:
		return sp, true
	}
	return DefaultSport, false
}

// PitchLayout selects how much of the pitch is shown.
type PitchLayout string

const (
	PitchFull PitchLayout = "full"
	PitchHalf PitchLayout = "half"
)

// Resolution is an export size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Settings is per-project editor configuration.
type Settings struct {
	ShowGrid                  bool        `json:"showGrid"`
	GridSize                  int         `json:"gridSize"`
	SnapToGrid                bool        `json:"snapToGrid"`
	DefaultTransitionDuration int         `json:"defaultTransitionDuration"`
	ExportResolution          Resolution  `json:"exportResolution"`
	PitchLayout               PitchLayout `json:"pitchLayout"`
}

// DefaultSettings returns the settings of a new project.
func DefaultSettings() Settings {
	return Settings{
		ShowGrid:                  false,
		GridSize:                  50,
		SnapToGrid:                false,
		DefaultTransitionDuration: DefaultFrameDuration,
		ExportResolution:          Resolution{Width: 1920, Height: 1080},
		PitchLayout:               PitchFull,
	}
}

// AnnotationType is the drawing style of an annotation.
type AnnotationType string

const (
	AnnotationArrow AnnotationType = "arrow"
	AnnotationLine  AnnotationType = "line"
)

// Valid reports whether t is a known annotation type.
func (t AnnotationType) Valid() bool {
	return t == AnnotationArrow || t == AnnotationLine
}

// Annotation is an arrow or line visible over an inclusive range of frames.
type Annotation struct {
	ID           string         `json:"id"`
	Type         AnnotationType `json:"type"`
	Points       []float64      `json:"points"`
	Color        string         `json:"color"`
	StartFrameID string         `json:"startFrameId"`
	EndFrameID   string         `json:"endFrameId"`
}

// Clone returns a copy that does not share the points slice.
func (a Annotation) Clone() Annotation {
	c := a
	c.Points = append([]float64(nil), a.Points...)
	return c
}

// Frame is one keyframe. Index is derived from the frame's position in
// Project.Frames and is rebuilt whenever frames are inserted or removed.
type Frame struct {
	ID          string            `json:"id"`
	Index       int               `json:"index"`
	Duration    int               `json:"duration"`
	Entities    map[string]Entity `json:"entities"`
	Annotations []Annotation      `json:"annotations"`
}

// Clone returns a copy whose entity map and annotations are independent.
func (f Frame) Clone() Frame {
	c := f
	c.Entities = CloneEntities(f.Entities)
	c.Annotations = make([]Annotation, len(f.Annotations))
	for i, a := range f.Annotations {
		c.Annotations[i] = a.Clone()
	}
	return c
}

// SortedEntities returns the frame's entities ordered by ID.
func (f Frame) SortedEntities() []Entity {
	return SortedEntities(f.Entities)
}

// Project is a named animation document.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sport     Sport     `json:"sport"`
	Frames    []Frame   `json:"frames"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of p.
func (p Project) Clone() Project {
	c := p
	c.Frames = make([]Frame, len(p.Frames))
	for i, f := range p.Frames {
		c.Frames[i] = f.Clone()
	}
	return c
}

// Reindex rewrites every frame's Index to match its position.
func (p *Project) Reindex() {
	for i := range p.Frames {
		p.Frames[i].Index = i
	}
}

// FrameIndex returns the position of the frame with the given ID, or -1.
func (p Project) FrameIndex(id string) int {
	for i, f := range p.Frames {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// EntityCount returns the number of distinct entity IDs across all frames.
func (p Project) EntityCount() int {
	seen := make(map[string]struct{})
	for _, f := range p.Frames {
		for id := range f.Entities {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// VisibleAnnotations returns the annotations visible at frame index i, in
// frame order. An annotation is visible when i lies between the positions of
// its start and end frames. When either end cannot be resolved the annotation
// is shown only on the frame that owns it.
func (p Project) VisibleAnnotations(i int) []Annotation {
	out := make([]Annotation, 0)
	if i < 0 || i >= len(p.Frames) {
		return out
	}
	for owner, f := range p.Frames {
		for _, a := range f.Annotations {
			start := p.FrameIndex(a.StartFrameID)
			end := p.FrameIndex(a.EndFrameID)
			if start < 0 || end < 0 {
				if owner == i {
					out = append(out, a.Clone())
				}
				continue
			}
			if start <= i && i <= end {
				out = append(out, a.Clone())
			}
		}
	}
	return out
}

// TotalDuration is the sum of all frame durations in milliseconds.
func (p Project) TotalDuration() int {
	total := 0
	for _, f := range p.Frames {
		total += f.Duration
	}
	return total
}
