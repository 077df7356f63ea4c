package hydrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/internal/util"
	"github.com/pitchside/playbook/pkg/core"
)

// Option configures a hydration run.
type Option func(*hydrator)

// WithIDGenerator replaces the uuid generator used for frame, project and
// annotation ids.
func WithIDGenerator(f func() string) Option {
	return func(h *hydrator) { h.newID = f }
}

// WithNow replaces the clock used for CreatedAt/UpdatedAt.
func WithNow(f func() time.Time) Option {
	return func(h *hydrator) { h.now = f }
}

// WithWarnings receives a message for every value that was repaired or
// dropped while hydrating.
func WithWarnings(f func(string)) Option {
	return func(h *hydrator) { h.warn = f }
}

type hydrator struct {
	newID func() string
	now   func() time.Time
	warn  func(string)
}

func (h *hydrator) warnf(format string, args ...any) {
	if h.warn != nil {
		h.warn(fmt.Sprintf(format, args...))
	}
}

// seed is a base entity in a version-independent shape.
type seed struct {
	id, typ, team string
	color, label  string
	parentID      string
	x, y          float64
	orientation   *float64
}

type sourceFrame struct {
	id          string
	t           float64
	updates     []UpdateV2
	annotations []AnnotationV2
}

type source struct {
	name, sport string
	entities    []seed
	frames      []sourceFrame
}

func fromV1(p PayloadV1) source {
	src := source{
		entities: make([]seed, 0, len(p.Entities)),
		frames:   make([]sourceFrame, 0, len(p.Frames)),
	}
	for _, e := range p.Entities {
		src.entities = append(src.entities, seed{id: e.ID, typ: e.Type, team: e.Team, x: e.X, y: e.Y})
	}
	for _, f := range p.Frames {
		ups := make([]UpdateV2, len(f.Updates))
		for i, u := range f.Updates {
			ups[i] = UpdateV2{Update: u}
		}
		src.frames = append(src.frames, sourceFrame{t: f.T, updates: ups})
	}
	return src
}

func fromV2(p PayloadV2) source {
	src := source{
		name:     p.Name,
		sport:    p.Sport,
		entities: make([]seed, 0, len(p.Entities)),
		frames:   make([]sourceFrame, 0, len(p.Frames)),
	}
	for _, e := range p.Entities {
		src.entities = append(src.entities, seed{
			id: e.ID, typ: e.Type, team: e.Team,
			color: e.Color, label: e.Label, parentID: e.ParentID,
			x: e.X, y: e.Y, orientation: e.Orientation,
		})
	}
	for _, f := range p.Frames {
		src.frames = append(src.frames, sourceFrame{id: f.ID, t: f.T, updates: f.Updates, annotations: f.Annotations})
	}
	return src
}

// Hydrate builds a project from a share payload.
//
// The base entities seed a running state. Each payload frame applies its
// updates to that state and takes a full copy of it, so an entity keeps its
// last position until it is moved again. Updates for unknown ids are ignored.
// Frame durations come from the gap to the next timestamp; the last frame
// gets the default duration. A payload without frames yields a single frame
// holding the base entities.
//
// Coordinates and durations are clamped. Canvas size is not used for scaling.
func Hydrate(p SharePayload, opts ...Option) (core.Project, error) {
	h := &hydrator{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	var src source
	switch v := p.(type) {
	case PayloadV1:
		src = fromV1(v)
	case PayloadV2:
		src = fromV2(v)
	case *PayloadV1:
		src = fromV1(*v)
	case *PayloadV2:
		src = fromV2(*v)
	default:
		return core.Project{}, fmt.Errorf("%w: %T", ErrUnsupportedVersion, p)
	}
	return h.build(src), nil
}

func (h *hydrator) build(src source) core.Project {
	now := h.now()
	project := core.Project{
		ID:        h.newID(),
		Name:      h.name(src.name),
		Sport:     h.sport(src.sport),
		Settings:  core.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	state := h.seedEntities(src.entities)

	if len(src.frames) == 0 {
		project.Frames = []core.Frame{{
			ID:          h.newID(),
			Index:       0,
			Duration:    core.DefaultFrameDuration,
			Entities:    core.CloneEntities(state),
			Annotations: []core.Annotation{},
		}}
		return project
	}

	project.Frames = make([]core.Frame, 0, len(src.frames))
	usedIDs := make(map[string]bool, len(src.frames))
	for i, f := range src.frames {
		for _, u := range f.updates {
			e, ok := state[u.ID]
			if !ok {
				continue
			}
			e.X, e.Y = geo.ClampPosition(u.X, u.Y)
			if u.Orientation != nil {
				o := *u.Orientation
				e.Orientation = &o
			}
			state[u.ID] = e
		}

		duration := core.DefaultFrameDuration
		if i+1 < len(src.frames) {
			duration = geo.DurationFromSeconds(src.frames[i+1].t - f.t)
		}

		id := strings.TrimSpace(f.id)
		if id == "" || usedIDs[id] {
			if id != "" {
				h.warnf("frame %d reuses id %q, assigned a new one", i, id)
			}
			id = h.newID()
		}
		usedIDs[id] = true

		project.Frames = append(project.Frames, core.Frame{
			ID:          id,
			Index:       i,
			Duration:    duration,
			Entities:    core.CloneEntities(state),
			Annotations: []core.Annotation{},
		})
	}

	// Annotations go in after every frame exists so references to later
	// frames resolve.
	for i, f := range src.frames {
		for _, a := range f.annotations {
			if ann, ok := h.annotation(a, &project, i); ok {
				project.Frames[i].Annotations = append(project.Frames[i].Annotations, ann)
			}
		}
	}
	return project
}

func (h *hydrator) name(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return core.SharedProjectName
	}
	if !util.IsValidName(name) {
		h.warnf("name longer than %d characters was truncated", core.MaxNameLength)
		name = util.TruncateRunes(name, core.MaxNameLength)
	}
	return name
}

func (h *hydrator) sport(raw string) core.Sport {
	if util.IsBlank(raw) {
		return core.DefaultSport
	}
	sport, ok := core.ParseSport(raw)
	if !ok {
		h.warnf("unknown sport %q, using %s", raw, core.DefaultSport)
	}
	return sport
}

func (h *hydrator) seedEntities(seeds []seed) map[string]core.Entity {
	state := make(map[string]core.Entity, len(seeds))
	for i, s := range seeds {
		if util.IsBlank(s.id) {
			h.warnf("entity %d has no id, skipped", i)
			continue
		}
		if _, dup := state[s.id]; dup {
			h.warnf("duplicate entity id %q, keeping the first", s.id)
			continue
		}
		et, ok := core.ParseEntityType(s.typ)
		if !ok {
			h.warnf("entity %q has unknown type %q, skipped", s.id, s.typ)
			continue
		}
		team, ok := core.NormalizeTeam(s.team)
		if !ok {
			h.warnf("entity %q has unknown team %q, using neutral", s.id, s.team)
		}

		color := core.ResolveColor(s.color, et, team)
		if !util.IsValidHexColor(color) {
			h.warnf("entity %q has invalid colour %q", s.id, color)
		}
		if !util.IsValidLabel(s.label) {
			h.warnf("entity %q has invalid label %q", s.id, s.label)
		}

		e := core.Entity{
			ID:       s.id,
			Type:     et,
			Team:     team,
			Color:    color,
			Label:    s.label,
			ParentID: s.parentID,
		}
		e.X, e.Y = geo.ClampPosition(s.x, s.y)
		if s.orientation != nil {
			o := *s.orientation
			e.Orientation = &o
		}
		state[s.id] = e
	}
	return state
}

// annotation converts a payload annotation owned by frame owner. Missing or
// unknown frame references default to the owner, and an end before the start
// is moved up to the start.
func (h *hydrator) annotation(a AnnotationV2, p *core.Project, owner int) (core.Annotation, bool) {
	ownerID := p.Frames[owner].ID

	at, ok := parseAnnotationType(a.Type)
	if !ok {
		h.warnf("annotation %q on frame %d has unknown type %q, skipped", a.ID, owner, a.Type)
		return core.Annotation{}, false
	}
	path, err := geo.ParseAnnotationPoints(a.Points)
	if err != nil {
		h.warnf("annotation %q on frame %d skipped: %v", a.ID, owner, err)
		return core.Annotation{}, false
	}

	id := a.ID
	if util.IsBlank(id) {
		id = h.newID()
	}
	color := a.Color
	if util.IsBlank(color) {
		color = core.DefaultAnnotationColor
	} else if !util.IsValidHexColor(color) {
		h.warnf("annotation %q has invalid colour %q", id, color)
	}

	start := h.frameRef(a.StartFrameID, ownerID, p)
	end := h.frameRef(a.EndFrameID, ownerID, p)
	if p.FrameIndex(end) < p.FrameIndex(start) {
		h.warnf("annotation %q ends before it starts, end moved to start", id)
		end = start
	}

	return core.Annotation{
		ID:           id,
		Type:         at,
		Points:       geo.FlatPoints(path),
		Color:        color,
		StartFrameID: start,
		EndFrameID:   end,
	}, true
}

func (h *hydrator) frameRef(ref, ownerID string, p *core.Project) string {
	if util.IsBlank(ref) {
		return ownerID
	}
	if p.FrameIndex(ref) < 0 {
		h.warnf("annotation refers to unknown frame %q, using its own frame", ref)
		return ownerID
	}
	return ref
}

func parseAnnotationType(s string) (core.AnnotationType, bool) {
	t := core.AnnotationType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return core.AnnotationArrow, true
	}
	return t, t.Valid()
}
