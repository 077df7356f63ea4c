package store

import (
	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/internal/util"
	"github.com/pitchside/playbook/pkg/core"
)

// AnnotationSpec describes an annotation to add to the current frame.
type AnnotationSpec struct {
	Type   core.AnnotationType `json:"type"`
	Points []float64           `json:"points"`
	Color  string              `json:"color,omitempty"`
}

// AnnotationUpdate lists the annotation fields to change. Nil fields are left
// alone.
type AnnotationUpdate struct {
	Type         *core.AnnotationType `json:"type,omitempty"`
	Points       []float64            `json:"points,omitempty"`
	Color        *string              `json:"color,omitempty"`
	StartFrameID *string              `json:"startFrameId,omitempty"`
	EndFrameID   *string              `json:"endFrameId,omitempty"`
}

// AddAnnotation draws an annotation on the current frame, visible on that
// frame only until its range is changed. Unusable points are refused and
// yield "".
func (s *Store) AddAnnotation(spec AnnotationSpec) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.currentFrameLocked()
	if !ok {
		return ""
	}
	t := spec.Type
	if t == "" {
		t = core.AnnotationArrow
	}
	if !t.Valid() {
		s.logger.Warn("unknown annotation type", "type", spec.Type)
		return ""
	}
	path, err := geo.ParseAnnotationPoints(spec.Points)
	if err != nil {
		s.logger.Warn("annotation refused", "error", err)
		return ""
	}

	a := core.Annotation{
		ID:           s.newID(),
		Type:         t,
		Points:       geo.FlatPoints(path),
		Color:        s.annotationColorLocked(spec.Color),
		StartFrameID: frame.ID,
		EndFrameID:   frame.ID,
	}
	frame.Annotations = append(frame.Annotations, a)
	s.logger.Debug("annotation added", "annotationId", a.ID, "length", path.Length())
	s.touchLocked("add_annotation")
	return a.ID
}

// UpdateAnnotation changes an annotation wherever it lives. Unknown frame
// references are ignored and an end before the start is moved to the start.
func (s *Store) UpdateAnnotation(id string, u AnnotationUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAnnotationLocked(id)
	if a == nil {
		return false
	}

	if u.Type != nil {
		if u.Type.Valid() {
			a.Type = *u.Type
		} else {
			s.logger.Warn("unknown annotation type", "annotationId", id, "type", *u.Type)
		}
	}
	if u.Points != nil {
		if path, err := geo.ParseAnnotationPoints(u.Points); err != nil {
			s.logger.Warn("annotation points refused", "annotationId", id, "error", err)
		} else {
			a.Points = geo.FlatPoints(path)
		}
	}
	if u.Color != nil {
		a.Color = s.annotationColorLocked(*u.Color)
	}
	if u.StartFrameID != nil {
		if s.project.FrameIndex(*u.StartFrameID) >= 0 {
			a.StartFrameID = *u.StartFrameID
		} else {
			s.logger.Warn("annotation start frame unknown", "annotationId", id, "frameId", *u.StartFrameID)
		}
	}
	if u.EndFrameID != nil {
		if s.project.FrameIndex(*u.EndFrameID) >= 0 {
			a.EndFrameID = *u.EndFrameID
		} else {
			s.logger.Warn("annotation end frame unknown", "annotationId", id, "frameId", *u.EndFrameID)
		}
	}
	start := s.project.FrameIndex(a.StartFrameID)
	if end := s.project.FrameIndex(a.EndFrameID); start >= 0 && end < start {
		a.EndFrameID = a.StartFrameID
	}

	s.touchLocked("update_annotation")
	return true
}

// RemoveAnnotation deletes an annotation from whichever frame holds it.
func (s *Store) RemoveAnnotation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.project.Frames {
		f := &s.project.Frames[i]
		for j, a := range f.Annotations {
			if a.ID == id {
				f.Annotations = append(f.Annotations[:j], f.Annotations[j+1:]...)
				s.touchLocked("remove_annotation")
				return true
			}
		}
	}
	return false
}

func (s *Store) findAnnotationLocked(id string) *core.Annotation {
	for i := range s.project.Frames {
		f := &s.project.Frames[i]
		for j := range f.Annotations {
			if f.Annotations[j].ID == id {
				return &f.Annotations[j]
			}
		}
	}
	return nil
}

func (s *Store) annotationColorLocked(c string) string {
	if util.IsBlank(c) {
		return core.DefaultAnnotationColor
	}
	if !util.IsValidHexColor(c) {
		s.logger.Warn("annotation colour is not a hex colour", "color", c)
	}
	return c
}
