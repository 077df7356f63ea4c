// Package handlers binds host commands to store operations.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pitchside/playbook/internal/dispatcher"
	"github.com/pitchside/playbook/internal/hydrate"
	"github.com/pitchside/playbook/internal/parser"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/internal/store"
	"github.com/pitchside/playbook/pkg/core"
)

// Command names.
const (
	CmdProjectNew      = ":PROJECT:NEW:"
	CmdProjectLoad     = ":PROJECT:LOAD:"
	CmdProjectSave     = ":PROJECT:SAVE:"
	CmdProjectOpen     = ":PROJECT:OPEN:"
	CmdProjectList     = ":PROJECT:LIST:"
	CmdProjectShare    = ":PROJECT:SHARE:"
	CmdProjectRename   = ":PROJECT:RENAME:"
	CmdProjectSport    = ":PROJECT:SPORT:"
	CmdProjectSettings = ":PROJECT:SETTINGS:"
	CmdProjectGet      = ":PROJECT:GET:"

	CmdFrameAdd       = ":FRAME:ADD:"
	CmdFrameRemove    = ":FRAME:REMOVE:"
	CmdFrameDuplicate = ":FRAME:DUPLICATE:"
	CmdFrameUpdate    = ":FRAME:UPDATE:"
	CmdFrameSelect    = ":FRAME:SELECT:"

	CmdEntityAdd    = ":ENTITY:ADD:"
	CmdEntityUpdate = ":ENTITY:UPDATE:"
	CmdEntityRemove = ":ENTITY:REMOVE:"

	CmdAnnotationAdd    = ":ANNOTATION:ADD:"
	CmdAnnotationUpdate = ":ANNOTATION:UPDATE:"
	CmdAnnotationRemove = ":ANNOTATION:REMOVE:"

	CmdPlaybackPlay  = ":PLAYBACK:PLAY:"
	CmdPlaybackPause = ":PLAYBACK:PAUSE:"
	CmdPlaybackReset = ":PLAYBACK:RESET:"
	CmdPlaybackSpeed = ":PLAYBACK:SPEED:"
	CmdPlaybackLoop  = ":PLAYBACK:LOOP:"

	CmdState  = ":STATE:"
	CmdRender = ":RENDER:"
)

var (
	// ErrRejected is returned when the store refused a command's input.
	ErrRejected = errors.New("command rejected")
	// ErrNoBackend is returned by persistence commands when no storage
	// backend is configured.
	ErrNoBackend = errors.New("no storage backend configured")
	// ErrLoadFailed is returned when a document could not be loaded.
	ErrLoadFailed = errors.New("project could not be loaded")
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Store   *store.Store
	Backend storage.Backend
	Logger  *slog.Logger
}

// Service provides the command handlers.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// SetBackend sets the storage backend used by save, open and list.
func (s *Service) SetBackend(b storage.Backend) {
	s.deps.Backend = b
}

// Register adds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	handlers := map[string]dispatcher.HandlerFunc{
		CmdProjectNew:      s.newProject,
		CmdProjectLoad:     s.loadProject,
		CmdProjectSave:     s.saveProject,
		CmdProjectOpen:     s.openProject,
		CmdProjectList:     s.listProjects,
		CmdProjectShare:    s.shareProject,
		CmdProjectRename:   s.renameProject,
		CmdProjectSport:    s.setSport,
		CmdProjectSettings: s.updateSettings,
		CmdProjectGet:      s.getProject,

		CmdFrameAdd:       s.addFrame,
		CmdFrameRemove:    s.removeFrame,
		CmdFrameDuplicate: s.duplicateFrame,
		CmdFrameUpdate:    s.updateFrame,
		CmdFrameSelect:    s.selectFrame,

		CmdEntityAdd:    s.addEntity,
		CmdEntityUpdate: s.updateEntity,
		CmdEntityRemove: s.removeEntity,

		CmdAnnotationAdd:    s.addAnnotation,
		CmdAnnotationUpdate: s.updateAnnotation,
		CmdAnnotationRemove: s.removeAnnotation,

		CmdPlaybackPlay:  s.play,
		CmdPlaybackPause: s.pause,
		CmdPlaybackReset: s.reset,
		CmdPlaybackSpeed: s.setSpeed,
		CmdPlaybackLoop:  s.toggleLoop,

		CmdState:  s.state,
		CmdRender: s.render,
	}
	for cmd, h := range handlers {
		d.Register(cmd, h, dispatcher.Logged())
	}
}

// IDResult reports the id of a created object.
type IDResult struct {
	ID string `json:"id"`
}

// OKResult reports whether a command changed anything.
type OKResult struct {
	OK bool `json:"ok"`
}

// RenderResult is what the host draws for the current frame.
type RenderResult struct {
	State       store.State       `json:"state"`
	Entities    []core.Entity     `json:"entities"`
	Annotations []core.Annotation `json:"annotations"`
}

type idArgs struct {
	ID string `json:"id"`
}

func created(cmd, id string) (any, error) {
	if id == "" {
		return IDResult{}, fmt.Errorf("%s: %w", cmd, ErrRejected)
	}
	return IDResult{ID: id}, nil
}

////////////////////////
// PROJECT
////////////////////////

func (s *Service) newProject(e dispatcher.Event) (any, error) {
	return s.deps.Store.NewProject(), nil
}

func (s *Service) getProject(e dispatcher.Event) (any, error) {
	return s.deps.Store.Project(), nil
}

// loadProject accepts either {"document": {...}} or the document itself.
func (s *Service) loadProject(e dispatcher.Event) (any, error) {
	var args struct {
		Document json.RawMessage `json:"document"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	raw := args.Document
	if len(raw) == 0 {
		raw = e.Args
	}
	return s.load(raw)
}

func (s *Service) load(raw []byte) (parser.Result, error) {
	res := s.deps.Store.LoadProject(raw)
	for _, w := range res.Warnings {
		s.deps.Logger.Warn("load repaired value", "warning", w)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrLoadFailed, strings.Join(res.Errors, "; "))
	}
	return res, nil
}

func (s *Service) saveProject(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	p := s.deps.Store.Project()
	id, err := s.deps.Backend.Save(&p)
	if err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	if !s.deps.Store.MarkSaved(p.UpdatedAt) {
		s.deps.Logger.Debug("project changed while saving, still dirty", "projectId", id)
	}
	return IDResult{ID: id}, nil
}

func (s *Service) openProject(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	var args idArgs
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	raw, err := s.deps.Backend.Load(args.ID)
	if err != nil {
		return nil, fmt.Errorf("opening project: %w", err)
	}
	return s.load(raw)
}

func (s *Service) listProjects(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	return s.deps.Backend.List()
}

// shareProject returns the project as a version 2 share payload.
func (s *Service) shareProject(e dispatcher.Event) (any, error) {
	payload := hydrate.Dehydrate(s.deps.Store.Project())
	raw, err := hydrate.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("sharing project: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (s *Service) renameProject(e dispatcher.Event) (any, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.Rename(args.Name)}, nil
}

func (s *Service) setSport(e dispatcher.Event) (any, error) {
	var args struct {
		Sport string `json:"sport"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.SetSport(args.Sport)}, nil
}

func (s *Service) updateSettings(e dispatcher.Event) (any, error) {
	// start from the current settings so partial updates keep the rest
	settings := s.deps.Store.Project().Settings
	if err := e.Bind(&settings); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.UpdateSettings(settings)}, nil
}

////////////////////////
// FRAMES
////////////////////////

func (s *Service) addFrame(e dispatcher.Event) (any, error) {
	return created(e.Command, s.deps.Store.AddFrame())
}

func (s *Service) removeFrame(e dispatcher.Event) (any, error) {
	var args idArgs
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.RemoveFrame(args.ID)}, nil
}

func (s *Service) duplicateFrame(e dispatcher.Event) (any, error) {
	var args idArgs
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return created(e.Command, s.deps.Store.DuplicateFrame(args.ID))
}

func (s *Service) updateFrame(e dispatcher.Event) (any, error) {
	var args struct {
		ID string `json:"id"`
		store.FrameUpdate
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.UpdateFrame(args.ID, args.FrameUpdate)}, nil
}

func (s *Service) selectFrame(e dispatcher.Event) (any, error) {
	var args struct {
		Index *int `json:"index"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	if args.Index == nil {
		return nil, fmt.Errorf("%s: index is required: %w", e.Command, ErrRejected)
	}
	return OKResult{OK: s.deps.Store.SetCurrentFrame(*args.Index)}, nil
}

////////////////////////
// ENTITIES
////////////////////////

func (s *Service) addEntity(e dispatcher.Event) (any, error) {
	var spec store.EntitySpec
	if err := e.Bind(&spec); err != nil {
		return nil, err
	}
	return created(e.Command, s.deps.Store.AddEntity(spec))
}

func (s *Service) updateEntity(e dispatcher.Event) (any, error) {
	var args struct {
		ID string `json:"id"`
		store.EntityUpdate
		// Parent shadows EntityUpdate.ParentID so an explicit null can be
		// told apart from a missing key. Null clears the parent.
		Parent json.RawMessage `json:"parentId"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	if args.Parent != nil {
		parent := ""
		if string(args.Parent) != "null" {
			if err := json.Unmarshal(args.Parent, &parent); err != nil {
				return nil, fmt.Errorf("%s: bad parentId: %w", e.Command, err)
			}
		}
		args.ParentID = &parent
	}
	return OKResult{OK: s.deps.Store.UpdateEntity(args.ID, args.EntityUpdate)}, nil
}

func (s *Service) removeEntity(e dispatcher.Event) (any, error) {
	var args idArgs
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.RemoveEntity(args.ID)}, nil
}

////////////////////////
// ANNOTATIONS
////////////////////////

func (s *Service) addAnnotation(e dispatcher.Event) (any, error) {
	var spec store.AnnotationSpec
	if err := e.Bind(&spec); err != nil {
		return nil, err
	}
	return created(e.Command, s.deps.Store.AddAnnotation(spec))
}

func (s *Service) updateAnnotation(e dispatcher.Event) (any, error) {
	var args struct {
		ID string `json:"id"`
		store.AnnotationUpdate
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.UpdateAnnotation(args.ID, args.AnnotationUpdate)}, nil
}

func (s *Service) removeAnnotation(e dispatcher.Event) (any, error) {
	var args idArgs
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.RemoveAnnotation(args.ID)}, nil
}

////////////////////////
// PLAYBACK
////////////////////////

func (s *Service) play(e dispatcher.Event) (any, error) {
	s.deps.Store.Play()
	return s.deps.Store.State(), nil
}

func (s *Service) pause(e dispatcher.Event) (any, error) {
	s.deps.Store.Pause()
	return s.deps.Store.State(), nil
}

func (s *Service) reset(e dispatcher.Event) (any, error) {
	s.deps.Store.Reset()
	return s.deps.Store.State(), nil
}

func (s *Service) setSpeed(e dispatcher.Event) (any, error) {
	var args struct {
		Speed float64 `json:"speed"`
	}
	if err := e.Bind(&args); err != nil {
		return nil, err
	}
	return OKResult{OK: s.deps.Store.SetPlaybackSpeed(core.PlaybackSpeed(args.Speed))}, nil
}

func (s *Service) toggleLoop(e dispatcher.Event) (any, error) {
	s.deps.Store.ToggleLoop()
	return s.deps.Store.State(), nil
}

////////////////////////
// VIEW
////////////////////////

func (s *Service) state(e dispatcher.Event) (any, error) {
	return s.deps.Store.State(), nil
}

func (s *Service) render(e dispatcher.Event) (any, error) {
	return RenderResult{
		State:       s.deps.Store.State(),
		Entities:    s.deps.Store.RenderEntities(),
		Annotations: s.deps.Store.VisibleAnnotations(),
	}, nil
}
