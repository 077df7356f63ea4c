// pkg/core/colors.go
package core

import "strings"

// Default colours per entity type. Players take their team colour.
const (
	ColorAttack       = "#2563eb"
	ColorDefense      = "#dc2626"
	ColorNeutral      = "#6b7280"
	ColorBall         = "#8b4513"
	ColorCone         = "#f97316"
	ColorMarker       = "#facc15"
	ColorTackleShield = "#1d4ed8"
	ColorTackleBag    = "#374151"

	// DefaultAnnotationColor is used for arrows and lines drawn without one.
	DefaultAnnotationColor = "#ffffff"
)

// DefaultColor resolves the colour an entity gets when none is set.
//
// Every EntityType must have a case here; TestDefaultColor_CoversAllTypes
// fails when a type is added to AllEntityTypes without one.
func DefaultColor(t EntityType, team Team) string {
	switch t {
	case EntityPlayer:
		return teamColor(team)
	case EntityBall:
		return ColorBall
	case EntityCone:
		return ColorCone
	case EntityMarker:
		return ColorMarker
	case EntityTackleShield:
		return ColorTackleShield
	case EntityTackleBag:
		return ColorTackleBag
	default:
		return ColorNeutral
	}
}

func teamColor(team Team) string {
	switch team {
	case TeamAttack:
		return ColorAttack
	case TeamDefense:
		return ColorDefense
	default:
		return ColorNeutral
	}
}

// ResolveColor returns color unless it is empty or whitespace, in which case
// the type/team default is used.
func ResolveColor(color string, t EntityType, team Team) string {
	if strings.TrimSpace(color) == "" {
		return DefaultColor(t, team)
	}
	return color
}
