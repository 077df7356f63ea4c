package geo

import (
	"math"

	"github.com/pitchside/playbook/pkg/core"
)

// PITCH BOUNDS
// Every stored coordinate lies in [core.MinCoordinate, core.MaxCoordinate] on
// both axes. Writes are clamped, never rejected.

// ClampCoordinate clamps v into the pitch bounds. NaN maps to the lower bound.
func ClampCoordinate(v float64) float64 {
	if math.IsNaN(v) {
		return core.MinCoordinate
	}
	return math.Max(core.MinCoordinate, math.Min(core.MaxCoordinate, v))
}

// ClampPosition clamps both axes of a position.
func ClampPosition(x, y float64) (float64, float64) {
	return ClampCoordinate(x), ClampCoordinate(y)
}

// InBounds reports whether a position needs no clamping.
func InBounds(x, y float64) bool {
	return ClampCoordinate(x) == x && ClampCoordinate(y) == y
}

// ClampDuration clamps a frame duration in milliseconds.
func ClampDuration(ms int) int {
	if ms < core.MinFrameDuration {
		return core.MinFrameDuration
	}
	if ms > core.MaxFrameDuration {
		return core.MaxFrameDuration
	}
	return ms
}

// DurationFromSeconds converts a timestamp delta in seconds into a clamped
// frame duration in milliseconds.
func DurationFromSeconds(delta float64) int {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return core.DefaultFrameDuration
	}
	ms := math.Round(delta * 1000)
	if ms > float64(core.MaxFrameDuration) {
		return core.MaxFrameDuration
	}
	return ClampDuration(int(ms))
}
