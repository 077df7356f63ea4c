package store

import (
	"slices"

	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/pkg/core"
)

// FrameUpdate lists the frame fields to change. Nil fields are left alone.
type FrameUpdate struct {
	Duration *int `json:"duration,omitempty"`
}

// SetCurrentFrame selects a frame and stops playback. Out of range indices
// are ignored.
func (s *Store) SetCurrentFrame(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.project.Frames) {
		return false
	}
	s.current = index
	s.playing = false
	s.position = nil
	s.epoch++
	return true
}

// AddFrame inserts a frame after the current one, carrying the current
// frame's entities forward, and selects it. It returns the new frame id.
func (s *Store) AddFrame() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := map[string]core.Entity{}
	if cur, ok := s.currentFrameLocked(); ok {
		entities = core.CloneEntities(cur.Entities)
	}
	f := core.Frame{
		ID:          s.newID(),
		Duration:    geo.ClampDuration(s.project.Settings.DefaultTransitionDuration),
		Entities:    entities,
		Annotations: []core.Annotation{},
	}

	at := s.current + 1
	s.project.Frames = slices.Insert(s.project.Frames, at, f)
	s.project.Reindex()
	s.current = at
	s.position = nil
	s.epoch++
	s.touchLocked("add_frame")
	return f.ID
}

// RemoveFrame deletes a frame unless it is the only one. Annotation ranges
// that started or ended on it are moved to its neighbours.
func (s *Store) RemoveFrame(frameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.project.FrameIndex(frameID)
	if idx < 0 {
		return false
	}
	if len(s.project.Frames) <= 1 {
		s.logger.Debug("refusing to remove the only frame", "frameId", frameID)
		return false
	}

	wasLast := idx == len(s.project.Frames)-1
	s.project.Frames = slices.Delete(s.project.Frames, idx, idx+1)
	s.project.Reindex()

	switch {
	case idx < s.current:
		s.current--
	case idx == s.current && wasLast:
		s.current--
	}

	s.repointAnnotationsLocked(frameID, idx)
	s.position = nil
	s.epoch++
	s.touchLocked("remove_frame")
	return true
}

// repointAnnotationsLocked fixes annotation ranges after the frame removedID
// at position idx was deleted. A start moves to the frame that took its
// place, an end to the frame before it.
func (s *Store) repointAnnotationsLocked(removedID string, idx int) {
	frames := s.project.Frames
	startID := frames[min(idx, len(frames)-1)].ID
	endID := frames[max(idx-1, 0)].ID

	for i := range frames {
		for j := range frames[i].Annotations {
			a := &frames[i].Annotations[j]
			if a.StartFrameID == removedID {
				a.StartFrameID = startID
			}
			if a.EndFrameID == removedID {
				a.EndFrameID = endID
			}
			start := s.project.FrameIndex(a.StartFrameID)
			if end := s.project.FrameIndex(a.EndFrameID); start >= 0 && end >= 0 && end < start {
				a.EndFrameID = a.StartFrameID
			}
		}
	}
}

// DuplicateFrame inserts a copy of a frame right after it and returns the
// copy's id. Annotations are copied with new ids; range ends that pointed at
// the source frame point at the copy. The current index is unchanged.
func (s *Store) DuplicateFrame(frameID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.project.FrameIndex(frameID)
	if idx < 0 {
		return ""
	}

	dup := s.project.Frames[idx].Clone()
	dup.ID = s.newID()
	for i := range dup.Annotations {
		a := &dup.Annotations[i]
		a.ID = s.newID()
		if a.StartFrameID == frameID {
			a.StartFrameID = dup.ID
		}
		if a.EndFrameID == frameID {
			a.EndFrameID = dup.ID
		}
	}

	s.project.Frames = slices.Insert(s.project.Frames, idx+1, dup)
	s.project.Reindex()
	s.epoch++
	s.touchLocked("duplicate_frame")
	return dup.ID
}

// UpdateFrame changes a frame's fields. Durations are clamped.
func (s *Store) UpdateFrame(frameID string, u FrameUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.project.FrameIndex(frameID)
	if idx < 0 {
		return false
	}
	if u.Duration != nil {
		s.project.Frames[idx].Duration = geo.ClampDuration(*u.Duration)
	}
	s.touchLocked("update_frame")
	return true
}
