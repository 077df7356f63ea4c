package store

import (
	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/internal/util"
	"github.com/pitchside/playbook/pkg/core"
)

// EntitySpec describes an entity to add. Team, Color and Label may be left
// empty to take their defaults.
type EntitySpec struct {
	Type        core.EntityType `json:"type"`
	Team        core.Team       `json:"team,omitempty"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Color       string          `json:"color,omitempty"`
	Label       string          `json:"label,omitempty"`
	ParentID    string          `json:"parentId,omitempty"`
	Orientation *float64        `json:"orientation,omitempty"`
}

// EntityUpdate lists the entity fields to change. Nil fields are left alone.
// An empty ParentID clears the parent.
type EntityUpdate struct {
	X           *float64   `json:"x,omitempty"`
	Y           *float64   `json:"y,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Label       *string    `json:"label,omitempty"`
	Team        *core.Team `json:"team,omitempty"`
	ParentID    *string    `json:"parentId,omitempty"`
	Orientation *float64   `json:"orientation,omitempty"`
}

// AddEntity places a new entity on the current frame only and returns its id.
// An unknown type is refused and yields "".
func (s *Store) AddEntity(spec EntitySpec) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !spec.Type.Valid() {
		s.logger.Warn("unknown entity type", "type", spec.Type)
		return ""
	}
	frame, ok := s.currentFrameLocked()
	if !ok {
		return ""
	}

	team := s.teamLocked(string(spec.Team), spec.Type)
	e := core.Entity{
		ID:       s.newID(),
		Type:     spec.Type,
		Team:     team,
		Color:    core.ResolveColor(spec.Color, spec.Type, team),
		Label:    spec.Label,
		ParentID: spec.ParentID,
	}
	if !geo.InBounds(spec.X, spec.Y) {
		s.logger.Debug("entity position clamped to the pitch", "x", spec.X, "y", spec.Y)
	}
	e.X, e.Y = geo.ClampPosition(spec.X, spec.Y)
	if spec.Orientation != nil {
		o := *spec.Orientation
		e.Orientation = &o
	}
	s.checkCosmeticsLocked(e)

	frame.Entities[e.ID] = e
	s.touchLocked("add_entity")
	return e.ID
}

// UpdateEntity changes an entity on the current frame. Other frames keep
// their own copies.
func (s *Store) UpdateEntity(id string, u EntityUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.currentFrameLocked()
	if !ok {
		return false
	}
	e, ok := frame.Entities[id]
	if !ok {
		return false
	}

	if u.X != nil {
		e.X = geo.ClampCoordinate(*u.X)
	}
	if u.Y != nil {
		e.Y = geo.ClampCoordinate(*u.Y)
	}
	if u.Team != nil {
		e.Team = s.teamLocked(string(*u.Team), e.Type)
	}
	if u.Color != nil {
		e.Color = core.ResolveColor(*u.Color, e.Type, e.Team)
	}
	if u.Label != nil {
		e.Label = *u.Label
	}
	if u.ParentID != nil {
		e.ParentID = *u.ParentID
	}
	if u.Orientation != nil {
		o := *u.Orientation
		e.Orientation = &o
	}
	s.checkCosmeticsLocked(e)

	frame.Entities[id] = e
	s.touchLocked("update_entity")
	return true
}

// RemoveEntity deletes an entity from the current frame only.
func (s *Store) RemoveEntity(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.currentFrameLocked()
	if !ok {
		return false
	}
	if _, ok := frame.Entities[id]; !ok {
		return false
	}
	delete(frame.Entities, id)
	s.touchLocked("remove_entity")
	return true
}

// teamLocked normalizes a team. Players default to attack, everything else
// to neutral.
func (s *Store) teamLocked(raw string, t core.EntityType) core.Team {
	if util.IsBlank(raw) {
		if t == core.EntityPlayer {
			return core.TeamAttack
		}
		return core.TeamNeutral
	}
	team, ok := core.NormalizeTeam(raw)
	if !ok {
		s.logger.Warn("unknown team, using neutral", "team", raw)
	}
	return team
}

func (s *Store) checkCosmeticsLocked(e core.Entity) {
	if !util.IsValidHexColor(e.Color) {
		s.logger.Warn("entity colour is not a hex colour", "entityId", e.ID, "color", e.Color)
	}
	if !util.IsValidLabel(e.Label) {
		s.logger.Warn("entity label is invalid", "entityId", e.ID, "label", e.Label)
	}
}
