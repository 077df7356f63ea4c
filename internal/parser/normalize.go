package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/internal/util"
	"github.com/pitchside/playbook/pkg/core"
)

// normalizer repairs out-of-range values in a structurally valid document,
// recording a warning for each repair.
type normalizer struct {
	now      func() time.Time
	warnings []string
}

func (n *normalizer) warnf(format string, args ...any) {
	n.warnings = append(n.warnings, fmt.Sprintf(format, args...))
}

func (n *normalizer) project(doc projectDoc) core.Project {
	p := core.Project{
		ID:        doc.ID,
		Name:      n.name(doc.Name),
		Sport:     n.sport(doc.Sport),
		Settings:  n.settings(doc.Settings),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Frames:    make([]core.Frame, len(doc.Frames)),
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = n.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	for i, fd := range doc.Frames {
		p.Frames[i] = n.frame(i, fd)
	}
	// ranges are checked once every frame id is known
	for i := range p.Frames {
		for j := range p.Frames[i].Annotations {
			n.repairRange(&p, i, &p.Frames[i].Annotations[j])
		}
	}
	return p
}

func (n *normalizer) name(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		n.warnf("name is empty, using %q", core.DefaultProjectName)
		return core.DefaultProjectName
	}
	if !util.IsValidName(name) {
		n.warnf("name truncated to %d characters", core.MaxNameLength)
		return util.TruncateRunes(name, core.MaxNameLength)
	}
	return name
}

func (n *normalizer) sport(raw string) core.Sport {
	sport, ok := core.ParseSport(raw)
	if !ok {
		n.warnf("unknown sport %q, using %s", raw, core.DefaultSport)
	}
	return sport
}

func (n *normalizer) settings(in *core.Settings) core.Settings {
	def := core.DefaultSettings()
	if in == nil {
		return def
	}
	s := *in
	if s.GridSize <= 0 {
		n.warnf("settings.gridSize %d is not positive, using %d", s.GridSize, def.GridSize)
		s.GridSize = def.GridSize
	}
	if d := geo.ClampDuration(s.DefaultTransitionDuration); d != s.DefaultTransitionDuration {
		n.warnf("settings.defaultTransitionDuration %d clamped to %d", s.DefaultTransitionDuration, d)
		s.DefaultTransitionDuration = d
	}
	if s.ExportResolution.Width <= 0 || s.ExportResolution.Height <= 0 {
		n.warnf("settings.exportResolution %dx%d is invalid, using default", s.ExportResolution.Width, s.ExportResolution.Height)
		s.ExportResolution = def.ExportResolution
	}
	if s.PitchLayout != core.PitchFull && s.PitchLayout != core.PitchHalf {
		n.warnf("settings.pitchLayout %q is invalid, using %s", s.PitchLayout, def.PitchLayout)
		s.PitchLayout = def.PitchLayout
	}
	return s
}

func (n *normalizer) frame(i int, fd frameDoc) core.Frame {
	f := core.Frame{
		ID:          fd.ID,
		Index:       i,
		Duration:    geo.ClampDuration(fd.Duration),
		Entities:    make(map[string]core.Entity, len(fd.Entities)),
		Annotations: make([]core.Annotation, 0, len(fd.Annotations)),
	}
	if fd.Index != i {
		n.warnf("frames[%d].index %d rebuilt", i, fd.Index)
	}
	switch {
	case fd.Duration == 0:
		n.warnf("frames[%d].duration missing, using %d", i, core.DefaultFrameDuration)
		f.Duration = core.DefaultFrameDuration
	case f.Duration != fd.Duration:
		n.warnf("frames[%d].duration %d clamped to %d", i, fd.Duration, f.Duration)
	}

	for key, ed := range fd.Entities {
		f.Entities[key] = n.entity(i, key, ed)
	}

	seen := make(map[string]bool, len(fd.Annotations))
	for j, ad := range fd.Annotations {
		if seen[ad.ID] {
			n.warnf("frames[%d].annotations[%d] duplicates id %q, dropped", i, j, ad.ID)
			continue
		}
		a, ok := n.annotation(i, j, ad)
		if !ok {
			continue
		}
		seen[ad.ID] = true
		f.Annotations = append(f.Annotations, a)
	}
	return f
}

func (n *normalizer) entity(frame int, key string, ed entityDoc) core.Entity {
	where := fmt.Sprintf("frames[%d].entities[%s]", frame, key)

	// validated by tag, so ParseEntityType cannot fail here
	et, _ := core.ParseEntityType(ed.Type)
	team, _ := core.NormalizeTeam(ed.Team)

	e := core.Entity{
		ID:       key,
		Type:     et,
		Team:     team,
		Color:    core.ResolveColor(ed.Color, et, team),
		Label:    ed.Label,
		ParentID: ed.ParentID,
	}
	if ed.ID != key {
		n.warnf("%s.id %q does not match its key", where, ed.ID)
	}
	if ed.Orientation != nil {
		o := *ed.Orientation
		e.Orientation = &o
	}

	e.X, e.Y = geo.ClampPosition(ed.X, ed.Y)
	if e.X != ed.X || e.Y != ed.Y {
		n.warnf("%s position (%g, %g) clamped to (%g, %g)", where, ed.X, ed.Y, e.X, e.Y)
	}
	if !util.IsValidHexColor(e.Color) {
		n.warnf("%s.color %q is not a hex colour", where, e.Color)
	}
	if !util.IsValidLabel(e.Label) {
		n.warnf("%s.label %q is not a valid label", where, e.Label)
	}
	return e
}

func (n *normalizer) annotation(frame, idx int, ad annotationDoc) (core.Annotation, bool) {
	where := fmt.Sprintf("frames[%d].annotations[%d]", frame, idx)

	path, err := geo.ParseAnnotationPoints(ad.Points)
	if err != nil {
		n.warnf("%s dropped: %v", where, err)
		return core.Annotation{}, false
	}

	a := core.Annotation{
		ID:           ad.ID,
		Type:         core.AnnotationType(ad.Type),
		Points:       geo.FlatPoints(path),
		Color:        ad.Color,
		StartFrameID: ad.StartFrameID,
		EndFrameID:   ad.EndFrameID,
	}
	if util.IsBlank(a.Color) {
		a.Color = core.DefaultAnnotationColor
	} else if !util.IsValidHexColor(a.Color) {
		n.warnf("%s.color %q is not a hex colour", where, a.Color)
	}
	for i, v := range a.Points {
		if v != ad.Points[i] {
			n.warnf("%s points clamped to the pitch", where)
			break
		}
	}
	return a, true
}

// repairRange points unresolvable frame references at the owning frame and
// moves an end that precedes its start up to the start.
func (n *normalizer) repairRange(p *core.Project, owner int, a *core.Annotation) {
	ownerID := p.Frames[owner].ID
	if p.FrameIndex(a.StartFrameID) < 0 {
		if a.StartFrameID != "" {
			n.warnf("annotation %q starts on unknown frame %q", a.ID, a.StartFrameID)
		}
		a.StartFrameID = ownerID
	}
	if p.FrameIndex(a.EndFrameID) < 0 {
		if a.EndFrameID != "" {
			n.warnf("annotation %q ends on unknown frame %q", a.ID, a.EndFrameID)
		}
		a.EndFrameID = ownerID
	}
	if p.FrameIndex(a.EndFrameID) < p.FrameIndex(a.StartFrameID) {
		n.warnf("annotation %q ends before it starts, end moved to start", a.ID)
		a.EndFrameID = a.StartFrameID
	}
}
