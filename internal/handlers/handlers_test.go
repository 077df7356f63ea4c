package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/dispatcher"
	"github.com/pitchside/playbook/internal/hydrate"
	"github.com/pitchside/playbook/internal/parser"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/internal/storage/memory"
	"github.com/pitchside/playbook/internal/store"
	"github.com/pitchside/playbook/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBackend implements storage.Backend and fails every write.
type failingBackend struct{}

func (failingBackend) Init() error                            { return nil }
func (failingBackend) Close() error                           { return nil }
func (failingBackend) Save(p *core.Project) (string, error)   { return "", errors.New("disk full") }
func (failingBackend) Load(id string) ([]byte, error)         { return nil, storage.ErrNotFound }
func (failingBackend) Delete(id string) error                 { return storage.ErrNotFound }
func (failingBackend) List() ([]storage.Summary, error)       { return nil, nil }

var _ storage.Backend = failingBackend{}

type harness struct {
	store *store.Store
	d     *dispatcher.Dispatcher
	svc   *Service
}

func newHarness(t *testing.T, backend storage.Backend) *harness {
	t.Helper()
	n := 0
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := store.New(
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		store.WithNow(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)

	d, err := dispatcher.New(nil)
	require.NoError(t, err)

	svc := NewService(Dependencies{Store: s, Backend: backend})
	svc.Register(d)
	return &harness{store: s, d: d, svc: svc}
}

func (h *harness) call(t *testing.T, cmd string, args any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		require.NoError(t, err)
		raw = b
	}
	return h.d.Dispatch(dispatcher.Event{Command: cmd, Args: raw})
}

func (h *harness) mustCall(t *testing.T, cmd string, args any) any {
	t.Helper()
	res, err := h.call(t, cmd, args)
	require.NoError(t, err, cmd)
	return res
}

func TestRegister_AllCommands(t *testing.T) {
	h := newHarness(t, nil)
	for _, cmd := range []string{
		CmdProjectNew, CmdProjectLoad, CmdProjectSave, CmdProjectOpen, CmdProjectList,
		CmdProjectShare, CmdProjectRename, CmdProjectSport, CmdProjectSettings, CmdProjectGet,
		CmdFrameAdd, CmdFrameRemove, CmdFrameDuplicate, CmdFrameUpdate, CmdFrameSelect,
		CmdEntityAdd, CmdEntityUpdate, CmdEntityRemove,
		CmdAnnotationAdd, CmdAnnotationUpdate, CmdAnnotationRemove,
		CmdPlaybackPlay, CmdPlaybackPause, CmdPlaybackReset, CmdPlaybackSpeed, CmdPlaybackLoop,
		CmdState, CmdRender,
	} {
		assert.True(t, h.d.HasHandler(cmd), cmd)
	}
	assert.Len(t, h.d.Commands(), 28)
}

func TestFrameAndEntityCommands(t *testing.T) {
	h := newHarness(t, nil)

	added := h.mustCall(t, CmdEntityAdd, map[string]any{"type": "player", "x": 100, "y": 200}).(IDResult)
	require.NotEmpty(t, added.ID)

	frame := h.mustCall(t, CmdFrameAdd, nil).(IDResult)
	assert.NotEmpty(t, frame.ID)
	assert.Equal(t, 1, h.store.State().CurrentFrameIndex)

	ok := h.mustCall(t, CmdEntityUpdate, map[string]any{"id": added.ID, "x": 5000}).(OKResult)
	assert.True(t, ok.OK)
	cur, _ := h.store.CurrentFrame()
	assert.Equal(t, core.MaxCoordinate, cur.Entities[added.ID].X)

	ok = h.mustCall(t, CmdFrameUpdate, map[string]any{"id": frame.ID, "duration": 50}).(OKResult)
	assert.True(t, ok.OK)
	assert.Equal(t, core.MinFrameDuration, h.store.Project().Frames[1].Duration)

	ok = h.mustCall(t, CmdFrameSelect, map[string]any{"index": 0}).(OKResult)
	assert.True(t, ok.OK)
	_, err := h.call(t, CmdFrameSelect, map[string]any{})
	assert.ErrorIs(t, err, ErrRejected)

	dup := h.mustCall(t, CmdFrameDuplicate, map[string]any{"id": frame.ID}).(IDResult)
	assert.NotEmpty(t, dup.ID)
	assert.Len(t, h.store.Project().Frames, 3)

	ok = h.mustCall(t, CmdFrameRemove, map[string]any{"id": dup.ID}).(OKResult)
	assert.True(t, ok.OK)

	ok = h.mustCall(t, CmdEntityRemove, map[string]any{"id": added.ID}).(OKResult)
	assert.True(t, ok.OK)
	ok = h.mustCall(t, CmdEntityRemove, map[string]any{"id": added.ID}).(OKResult)
	assert.False(t, ok.OK)
}

func TestEntityUpdate_ParentID(t *testing.T) {
	h := newHarness(t, nil)
	player := h.mustCall(t, CmdEntityAdd, map[string]any{"type": "player"}).(IDResult)
	ball := h.mustCall(t, CmdEntityAdd, map[string]any{"type": "ball", "parentId": player.ID}).(IDResult)

	parentOf := func() string {
		cur, _ := h.store.CurrentFrame()
		return cur.Entities[ball.ID].ParentID
	}
	update := func(args string) {
		t.Helper()
		res, err := h.d.Dispatch(dispatcher.Event{Command: CmdEntityUpdate, Args: json.RawMessage(args)})
		require.NoError(t, err)
		assert.True(t, res.(OKResult).OK)
	}
	require.Equal(t, player.ID, parentOf())

	update(fmt.Sprintf(`{"id":%q,"x":300}`, ball.ID))
	assert.Equal(t, player.ID, parentOf(), "a missing key keeps the parent")

	update(fmt.Sprintf(`{"id":%q,"parentId":null}`, ball.ID))
	assert.Empty(t, parentOf(), "null clears the parent")

	update(fmt.Sprintf(`{"id":%q,"parentId":%q}`, ball.ID, player.ID))
	assert.Equal(t, player.ID, parentOf())

	_, err := h.d.Dispatch(dispatcher.Event{Command: CmdEntityUpdate, Args: json.RawMessage(fmt.Sprintf(`{"id":%q,"parentId":7}`, ball.ID))})
	assert.Error(t, err)
}

func TestEntityAdd_RejectsUnknownType(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.call(t, CmdEntityAdd, map[string]any{"type": "goalpost"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestBadArguments(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.d.Dispatch(dispatcher.Event{Command: CmdFrameRemove, Args: json.RawMessage(`"nope"`)})
	assert.Error(t, err)
}

func TestAnnotationCommands(t *testing.T) {
	h := newHarness(t, nil)

	a := h.mustCall(t, CmdAnnotationAdd, map[string]any{"points": []float64{0, 0, 100, 100}}).(IDResult)
	require.NotEmpty(t, a.ID)

	ok := h.mustCall(t, CmdAnnotationUpdate, map[string]any{"id": a.ID, "color": "#123456"}).(OKResult)
	assert.True(t, ok.OK)

	render := h.mustCall(t, CmdRender, nil).(RenderResult)
	require.Len(t, render.Annotations, 1)
	assert.Equal(t, "#123456", render.Annotations[0].Color)

	ok = h.mustCall(t, CmdAnnotationRemove, map[string]any{"id": a.ID}).(OKResult)
	assert.True(t, ok.OK)

	_, err := h.call(t, CmdAnnotationAdd, map[string]any{"points": []float64{1}})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestPlaybackCommands(t *testing.T) {
	h := newHarness(t, nil)

	st := h.mustCall(t, CmdPlaybackPlay, nil).(store.State)
	assert.True(t, st.IsPlaying)

	ok := h.mustCall(t, CmdPlaybackSpeed, map[string]any{"speed": 2}).(OKResult)
	assert.True(t, ok.OK)
	ok = h.mustCall(t, CmdPlaybackSpeed, map[string]any{"speed": 3}).(OKResult)
	assert.False(t, ok.OK)
	assert.Equal(t, core.SpeedDouble, h.store.State().PlaybackSpeed)

	st = h.mustCall(t, CmdPlaybackLoop, nil).(store.State)
	assert.True(t, st.LoopPlayback)

	st = h.mustCall(t, CmdPlaybackPause, nil).(store.State)
	assert.False(t, st.IsPlaying)

	st = h.mustCall(t, CmdPlaybackReset, nil).(store.State)
	assert.Equal(t, 0, st.CurrentFrameIndex)
}

func TestProjectMetadataCommands(t *testing.T) {
	h := newHarness(t, nil)

	ok := h.mustCall(t, CmdProjectRename, map[string]any{"name": "Blindside move"}).(OKResult)
	assert.True(t, ok.OK)
	ok = h.mustCall(t, CmdProjectRename, map[string]any{"name": "  "}).(OKResult)
	assert.False(t, ok.OK)

	ok = h.mustCall(t, CmdProjectSport, map[string]any{"sport": "soccer"}).(OKResult)
	assert.True(t, ok.OK)

	ok = h.mustCall(t, CmdProjectSettings, map[string]any{"showGrid": true}).(OKResult)
	assert.True(t, ok.OK)

	p := h.mustCall(t, CmdProjectGet, nil).(core.Project)
	assert.Equal(t, "Blindside move", p.Name)
	assert.Equal(t, core.SportSoccer, p.Sport)
	assert.True(t, p.Settings.ShowGrid)
	assert.Equal(t, core.DefaultSettings().GridSize, p.Settings.GridSize)
}

func TestLoadCommand(t *testing.T) {
	h := newHarness(t, nil)
	before := h.store.Project().ID

	_, err := h.call(t, CmdProjectLoad, map[string]any{"document": map[string]any{"id": "x"}})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, before, h.store.Project().ID, "failed load must keep the current project")

	share := hydrate.PayloadV1{
		Version: hydrate.Version1,
		Canvas:  hydrate.Canvas{Width: 2000, Height: 2000},
		Entities: []hydrate.EntityV1{
			{ID: "p1", Type: "player", Team: "attack", X: 10, Y: 20},
		},
		Frames: []hydrate.FrameV1{{T: 0, Updates: []hydrate.Update{}}},
	}
	res, err := h.call(t, CmdProjectLoad, share)
	require.NoError(t, err)
	assert.True(t, res.(parser.Result).Success)
	assert.Equal(t, core.SharedProjectName, h.store.Project().Name)
}

func TestShareCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.mustCall(t, CmdEntityAdd, map[string]any{"type": "ball", "x": 1000, "y": 1000})

	raw := h.mustCall(t, CmdProjectShare, nil).(json.RawMessage)
	payload, err := hydrate.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, hydrate.Version2, payload.PayloadVersion())
}

func TestPersistenceCommands(t *testing.T) {
	backend := memory.New(config.MemoryConfig{}, 0)
	require.NoError(t, backend.Init())
	h := newHarness(t, backend)

	h.mustCall(t, CmdEntityAdd, map[string]any{"type": "cone", "x": 1, "y": 2})
	require.True(t, h.store.State().IsDirty)

	saved := h.mustCall(t, CmdProjectSave, nil).(IDResult)
	assert.Equal(t, h.store.Project().ID, saved.ID)
	assert.False(t, h.store.State().IsDirty)

	list := h.mustCall(t, CmdProjectList, nil).([]storage.Summary)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	h.mustCall(t, CmdProjectNew, nil)
	assert.NotEqual(t, saved.ID, h.store.Project().ID)

	res := h.mustCall(t, CmdProjectOpen, map[string]any{"id": saved.ID}).(parser.Result)
	assert.True(t, res.Success)
	assert.Equal(t, saved.ID, h.store.Project().ID)
	assert.Equal(t, 1, h.store.Project().EntityCount())

	_, err := h.call(t, CmdProjectOpen, map[string]any{"id": "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPersistenceCommands_Errors(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.call(t, CmdProjectSave, nil)
	assert.ErrorIs(t, err, ErrNoBackend)
	_, err = h.call(t, CmdProjectList, nil)
	assert.ErrorIs(t, err, ErrNoBackend)

	h.svc.SetBackend(failingBackend{})
	h.mustCall(t, CmdFrameAdd, nil)
	_, err = h.call(t, CmdProjectSave, nil)
	assert.Error(t, err)
	assert.True(t, h.store.State().IsDirty, "failed save must leave the project dirty")
}
