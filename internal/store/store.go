// Package store holds the editor's single authoritative project and the
// transient playback state around it.
//
// Every mutation goes through a Store method. Bad input never produces an
// error: coordinates and durations are clamped, unknown ids are ignored and
// cosmetic problems (colours, labels) are logged and written anyway.
package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/playbook/internal/geo"
	"github.com/pitchside/playbook/internal/interp"
	"github.com/pitchside/playbook/internal/parser"
	"github.com/pitchside/playbook/internal/util"
	"github.com/pitchside/playbook/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for soft validation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow replaces the clock used for timestamps.
func WithNow(f func() time.Time) Option {
	return func(s *Store) { s.now = f }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithParser sets the service used by LoadProject.
func WithParser(p *parser.Service) Option {
	return func(s *Store) { s.parser = p }
}

// WithDefaults sets the sport and settings given to new projects.
func WithDefaults(sport core.Sport, settings core.Settings) Option {
	return func(s *Store) {
		s.defaultSport = sport
		s.defaultSettings = settings
	}
}

// State is the transient editor state outside the project itself.
type State struct {
	ProjectID         string                 `json:"projectId"`
	FrameCount        int                    `json:"frameCount"`
	CurrentFrameIndex int                    `json:"currentFrameIndex"`
	IsPlaying         bool                   `json:"isPlaying"`
	PlaybackSpeed     core.PlaybackSpeed     `json:"playbackSpeed"`
	LoopPlayback      bool                   `json:"loopPlayback"`
	IsDirty           bool                   `json:"isDirty"`
	PlaybackPosition  *core.PlaybackPosition `json:"playbackPosition,omitempty"`
}

// Store is the editor state container. It is safe for concurrent use; calls
// are applied in the order they acquire the lock.
type Store struct {
	logger          *slog.Logger
	parser          *parser.Service
	now             func() time.Time
	newID           func() string
	defaultSport    core.Sport
	defaultSettings core.Settings
	mutations       metric.Int64Counter

	mu       sync.RWMutex
	project  core.Project
	current  int
	playing  bool
	speed    core.PlaybackSpeed
	loop     bool
	dirty    bool
	position *core.PlaybackPosition
	// epoch changes whenever playback state is changed by anything but a
	// clock tick, invalidating ticks computed against the old state.
	epoch uint64
}

// New creates a Store holding a fresh project.
func New(opts ...Option) *Store {
	s := &Store{
		logger:          slog.Default(),
		now:             time.Now,
		newID:           func() string { return uuid.New().String() },
		defaultSport:    core.DefaultSport,
		defaultSettings: core.DefaultSettings(),
		speed:           core.SpeedNormal,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = parser.NewService(s.logger, parser.WithIDGenerator(s.newID), parser.WithNow(s.now))
	}

	var err error
	if s.mutations, err = meter().Int64Counter("store.mutations",
		metric.WithDescription("Structural project mutations")); err != nil {
		s.logger.Warn("creating mutation counter", "error", err)
	}

	s.NewProject()
	return s
}

// NewProject replaces the project with an empty one holding a single frame,
// resets playback and clears the dirty flag.
func (s *Store) NewProject() core.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	settings := s.defaultSettings
	settings.DefaultTransitionDuration = geo.ClampDuration(settings.DefaultTransitionDuration)
	p := core.Project{
		ID:       s.newID(),
		Name:     core.DefaultProjectName,
		Sport:    s.defaultSport,
		Settings: settings,
		Frames: []core.Frame{{
			ID:          s.newID(),
			Index:       0,
			Duration:    settings.DefaultTransitionDuration,
			Entities:    map[string]core.Entity{},
			Annotations: []core.Annotation{},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.installLocked(p)
	s.logger.Debug("new project", "projectId", p.ID)
	return p.Clone()
}

// LoadProject parses raw and installs the result. On failure the current
// project is left untouched.
func (s *Store) LoadProject(raw []byte) parser.Result {
	res := s.parser.Parse(raw)
	if !res.Success {
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(*res.Project)
	s.logger.Info("project loaded", "projectId", res.Project.ID, "frames", len(res.Project.Frames), "warnings", len(res.Warnings))
	return res
}

// InstallProject replaces the project with p as a successful load would.
func (s *Store) InstallProject(p core.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(p)
}

func (s *Store) installLocked(p core.Project) {
	p = p.Clone()
	if len(p.Frames) == 0 {
		p.Frames = []core.Frame{{ID: s.newID(), Duration: core.DefaultFrameDuration}}
	}
	for i := range p.Frames {
		if p.Frames[i].Entities == nil {
			p.Frames[i].Entities = map[string]core.Entity{}
		}
		if p.Frames[i].Annotations == nil {
			p.Frames[i].Annotations = []core.Annotation{}
		}
	}
	p.Reindex()

	s.project = p
	s.current = 0
	s.playing = false
	s.speed = core.SpeedNormal
	s.loop = false
	s.position = nil
	s.dirty = false
	s.epoch++
}

// Project returns a deep copy of the current project.
func (s *Store) Project() core.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.Clone()
}

// State returns the transient editor state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		ProjectID:         s.project.ID,
		FrameCount:        len(s.project.Frames),
		CurrentFrameIndex: s.current,
		IsPlaying:         s.playing,
		PlaybackSpeed:     s.speed,
		LoopPlayback:      s.loop,
		IsDirty:           s.dirty,
	}
	if s.position != nil {
		pos := *s.position
		st.PlaybackPosition = &pos
	}
	return st
}

// CurrentFrame returns a copy of the selected frame.
func (s *Store) CurrentFrame() (core.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.currentFrameLocked()
	if !ok {
		return core.Frame{}, false
	}
	return f.Clone(), true
}

// RenderEntities returns the current frame's entities positioned for the
// current playback position.
func (s *Store) RenderEntities() []core.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.currentFrameLocked()
	if !ok {
		return []core.Entity{}
	}
	return interp.Interpolate(f.SortedEntities(), s.position, s.project.Frames)
}

// VisibleAnnotations returns the annotations shown on the current frame.
func (s *Store) VisibleAnnotations() []core.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.VisibleAnnotations(s.current)
}

// MarkSaved clears the dirty flag if the project has not changed since the
// saved copy was taken. It reports whether the flag was cleared.
func (s *Store) MarkSaved(updatedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.project.UpdatedAt.Equal(updatedAt) {
		return false
	}
	s.dirty = false
	return true
}

// Rename sets the project name. Names outside 1..100 characters are refused.
func (s *Store) Rename(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !util.IsValidName(name) {
		s.logger.Warn("project name refused", "name", name)
		return false
	}
	s.project.Name = strings.TrimSpace(name)
	s.touchLocked("rename")
	return true
}

// SetSport changes the pitch the project is drawn on.
func (s *Store) SetSport(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sport, ok := core.ParseSport(raw)
	if !ok {
		s.logger.Warn("unknown sport", "sport", raw)
		return false
	}
	s.project.Sport = sport
	s.touchLocked("set_sport")
	return true
}

// UpdateSettings replaces the project settings. The default transition
// duration is clamped; a non-positive grid size, an empty export resolution
// or an unknown pitch layout refuses the update.
func (s *Store) UpdateSettings(settings core.Settings) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.GridSize <= 0 ||
		settings.ExportResolution.Width <= 0 || settings.ExportResolution.Height <= 0 ||
		(settings.PitchLayout != core.PitchFull && settings.PitchLayout != core.PitchHalf) {
		s.logger.Warn("settings refused", "settings", settings)
		return false
	}
	settings.DefaultTransitionDuration = geo.ClampDuration(settings.DefaultTransitionDuration)
	s.project.Settings = settings
	s.touchLocked("update_settings")
	return true
}

func (s *Store) currentFrameLocked() (*core.Frame, bool) {
	if s.current < 0 || s.current >= len(s.project.Frames) {
		return nil, false
	}
	return &s.project.Frames[s.current], true
}

// touchLocked records a structural mutation.
func (s *Store) touchLocked(op string) {
	s.project.UpdatedAt = s.now()
	s.dirty = true
	if s.mutations != nil {
		s.mutations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
	}
}
