// Package interp computes render positions between two keyframes.
package interp

import "github.com/pitchside/playbook/pkg/core"

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Interpolate returns the render list for entities at the given playback
// position. Only x and y are blended; every other field comes from the "from"
// frame's copy of the entity.
//
// With no position or no frames the entities are returned as they are.
// An entity found only in the from frame holds its from position, one found
// only in the to frame snaps to its to position, and one found in neither
// passes through. The result never aliases the inputs.
func Interpolate(entities []core.Entity, pos *core.PlaybackPosition, frames []core.Frame) []core.Entity {
	out := make([]core.Entity, len(entities))
	for i, e := range entities {
		out[i] = e.Clone()
	}
	if pos == nil || len(frames) == 0 {
		return out
	}

	from, hasFrom := frameAt(frames, pos.FromFrameIndex)
	to, hasTo := frameAt(frames, pos.ToFrameIndex)

	for i, e := range out {
		var fe, te core.Entity
		inFrom, inTo := false, false
		if hasFrom {
			fe, inFrom = from.Entities[e.ID]
		}
		if hasTo {
			te, inTo = to.Entities[e.ID]
		}

		switch {
		case inFrom && inTo:
			blended := fe.Clone()
			blended.X = Lerp(fe.X, te.X, pos.Progress)
			blended.Y = Lerp(fe.Y, te.Y, pos.Progress)
			out[i] = blended
		case inFrom:
			out[i] = fe.Clone()
		case inTo:
			snapped := e
			snapped.X, snapped.Y = te.X, te.Y
			out[i] = snapped
		}
	}
	return out
}

func frameAt(frames []core.Frame, i int) (core.Frame, bool) {
	if i < 0 || i >= len(frames) {
		return core.Frame{}, false
	}
	return frames[i], true
}
