package hydrate

import (
	"github.com/pitchside/playbook/pkg/core"
)

// Dehydrate converts a project into a version 2 share payload.
//
// Timestamps are cumulative frame durations in seconds. Every entity present
// in a frame gets an update in that frame. The base entity list holds each
// entity as first seen, so an entity that only appears in a later frame is
// present from the first frame after a round trip, and the duration of the
// last frame is not carried.
func Dehydrate(p core.Project) PayloadV2 {
	out := PayloadV2{
		Version:  Version2,
		Name:     p.Name,
		Sport:    string(p.Sport),
		Canvas:   Canvas{Width: core.MaxCoordinate, Height: core.MaxCoordinate},
		Entities: make([]EntityV2, 0),
		Frames:   make([]FrameV2, 0, len(p.Frames)),
	}

	seen := make(map[string]bool)
	elapsed := 0
	for _, f := range p.Frames {
		entities := f.SortedEntities()

		frame := FrameV2{
			ID:      f.ID,
			T:       float64(elapsed) / 1000,
			Updates: make([]UpdateV2, 0, len(entities)),
		}
		for _, e := range entities {
			if !seen[e.ID] {
				seen[e.ID] = true
				out.Entities = append(out.Entities, EntityV2{
					ID:          e.ID,
					Type:        string(e.Type),
					Team:        string(e.Team),
					X:           e.X,
					Y:           e.Y,
					Color:       e.Color,
					Label:       e.Label,
					ParentID:    e.ParentID,
					Orientation: e.Clone().Orientation,
				})
			}
			frame.Updates = append(frame.Updates, UpdateV2{
				Update:      Update{ID: e.ID, X: e.X, Y: e.Y},
				Orientation: e.Clone().Orientation,
			})
		}
		for _, a := range f.Annotations {
			frame.Annotations = append(frame.Annotations, AnnotationV2{
				ID:           a.ID,
				Type:         string(a.Type),
				Points:       append([]float64(nil), a.Points...),
				Color:        a.Color,
				StartFrameID: a.StartFrameID,
				EndFrameID:   a.EndFrameID,
			})
		}

		out.Frames = append(out.Frames, frame)
		elapsed += f.Duration
	}
	return out
}
