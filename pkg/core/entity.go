// pkg/core/entity.go
package core

import (
	"sort"
	"strings"
)

// EntityType identifies what an entity is. It is fixed at creation.
type EntityType string

const (
	EntityPlayer       EntityType = "player"
	EntityBall         EntityType = "ball"
	EntityCone         EntityType = "cone"
	EntityMarker       EntityType = "marker"
	EntityTackleShield EntityType = "tackle-shield"
	EntityTackleBag    EntityType = "tackle-bag"
)

// AllEntityTypes lists every entity type in declaration order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityPlayer,
		EntityBall,
		EntityCone,
		EntityMarker,
		EntityTackleShield,
		EntityTackleBag,
	}
}

// Valid reports whether t is one of the declared entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPlayer, EntityBall, EntityCone, EntityMarker, EntityTackleShield, EntityTackleBag:
		return true
	}
	return false
}

// ParseEntityType converts a wire string into an EntityType.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Team is the side an entity plays for.
type Team string

const (
	TeamAttack  Team = "attack"
	TeamDefense Team = "defense"
	TeamNeutral Team = "neutral"
)

// Valid reports whether t is a canonical team value.
func (t Team) Valid() bool {
	switch t {
	case TeamAttack, TeamDefense, TeamNeutral:
		return true
	}
	return false
}

// NormalizeTeam maps wire spellings onto a canonical Team.
// Blank input is neutral. "defence" is accepted for payloads written before
// the spelling was changed. Unknown values return neutral and false.
func NormalizeTeam(s string) (Team, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return TeamNeutral, true
	case "attack":
		return TeamAttack, true
	case "defense", "defence":
		return TeamDefense, true
	case "neutral":
		return TeamNeutral, true
	default:
		return TeamNeutral, false
	}
}

// Entity is a placeable token on the pitch. The same ID across frames is the
// same token; its position in each frame expresses movement.
type Entity struct {
	ID          string     `json:"id"`
	Type        EntityType `json:"type"`
	Team        Team       `json:"team"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Color       string     `json:"color"`
	Label       string     `json:"label"`
	ParentID    string     `json:"parentId,omitempty"`
	Orientation *float64   `json:"orientation,omitempty"`
}

// Clone returns a copy that shares no pointers with e.
func (e Entity) Clone() Entity {
	c := e
	if e.Orientation != nil {
		o := *e.Orientation
		c.Orientation = &o
	}
	return c
}

// CloneEntities copies an entity map. A nil map yields an empty map.
func CloneEntities(src map[string]Entity) map[string]Entity {
	dst := make(map[string]Entity, len(src))
	for id, e := range src {
		dst[id] = e.Clone()
	}
	return dst
}

// SortedEntities returns the entities of m ordered by ID.
func SortedEntities(m map[string]Entity) []Entity {
	out := make([]Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
