package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pitchside/playbook/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(opts ...Option) *Service {
	n := 0
	base := []Option{
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		}),
		WithNow(func() time.Time { return fixedNow }),
	}
	return NewService(slog.Default(), append(base, opts...)...)
}

const validProject = `{
  "id": "proj-1",
  "name": "Crash Ball",
  "sport": "rugby-union",
  "frames": [
    {"id": "f0", "index": 0, "duration": 1500,
     "entities": {"p1": {"id": "p1", "type": "player", "team": "attack", "x": 100, "y": 200, "color": "#2563eb", "label": "9"}},
     "annotations": [{"id": "a1", "type": "arrow", "points": [0, 0, 50, 50], "color": "#ffffff", "startFrameId": "f0", "endFrameId": "f1"}]},
    {"id": "f1", "index": 1, "duration": 2000,
     "entities": {"p1": {"id": "p1", "type": "player", "team": "attack", "x": 300, "y": 200, "color": "#2563eb", "label": "9"}},
     "annotations": []}
  ],
  "settings": {"showGrid": true, "gridSize": 25, "snapToGrid": false, "defaultTransitionDuration": 1000,
               "exportResolution": {"width": 1280, "height": 720}, "pitchLayout": "half"},
  "createdAt": "2024-01-01T00:00:00Z",
  "updatedAt": "2024-01-02T00:00:00Z"
}`

func TestParse_ValidProject(t *testing.T) {
	res := newTestService().Parse([]byte(validProject))

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)

	p := res.Project
	require.NotNil(t, p)
	assert.Equal(t, "proj-1", p.ID)
	assert.Equal(t, "Crash Ball", p.Name)
	require.Len(t, p.Frames, 2)
	assert.Equal(t, 1500, p.Frames[0].Duration)
	assert.Equal(t, 300.0, p.Frames[1].Entities["p1"].X)
	assert.Equal(t, 25, p.Settings.GridSize)
	assert.Equal(t, core.PitchHalf, p.Settings.PitchLayout)
	assert.Equal(t, "f1", p.Frames[0].Annotations[0].EndFrameID)
}

func TestParse_RoundTripsMarshalledProject(t *testing.T) {
	first := newTestService().Parse([]byte(validProject))
	require.True(t, first.Success)

	raw, err := json.Marshal(first.Project)
	require.NoError(t, err)

	second := newTestService().Parse(raw)
	require.True(t, second.Success, "errors: %v", second.Errors)
	assert.Equal(t, *first.Project, *second.Project)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		errPart string
	}{
		{"empty", "   ", "empty"},
		{"not json", "{nope", "not a JSON object"},
		{"array", "[1,2]", "not a JSON object"},
		{"no frames", `{"id":"p","name":"x","frames":[]}`, "frames"},
		{"missing frame id", `{"id":"p","frames":[{"duration":2000}]}`, "frames[0].id"},
		{"bad entity type", `{"id":"p","frames":[{"id":"f","entities":{"e":{"id":"e","type":"goalpost"}}}]}`, "goalpost"},
		{"bad team", `{"id":"p","frames":[{"id":"f","entities":{"e":{"id":"e","type":"player","team":"referee"}}}]}`, "team"},
		{"duplicate frames", `{"id":"p","frames":[{"id":"f"},{"id":"f"}]}`, "duplicate"},
		{"short annotation", `{"id":"p","frames":[{"id":"f","annotations":[{"id":"a","type":"arrow","points":[1,2]}]}]}`, "points"},
		{"unsupported share", `{"version":9}`, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestService().Parse([]byte(tt.raw))
			assert.False(t, res.Success)
			assert.Nil(t, res.Project)
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, strings.Join(res.Errors, "\n"), tt.errPart)
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	res := newTestService(WithMaxBytes(64)).Parse([]byte(validProject))
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "limit")
}

func TestParse_RepairsWithWarnings(t *testing.T) {
	raw := `{
	  "id": "p",
	  "name": "",
	  "sport": "curling",
	  "frames": [
	    {"id": "f0", "index": 4, "duration": 50,
	     "entities": {"d": {"id": "d", "type": "player", "team": "defence", "x": -10, "y": 2500, "label": "toolonglabel"}},
	     "annotations": [{"id": "a", "type": "line", "points": [0,0,10,10], "startFrameId": "f1", "endFrameId": "f0"}]},
	    {"id": "f1", "duration": 99999}
	  ]
	}`
	res := newTestService().Parse([]byte(raw))
	require.True(t, res.Success, "errors: %v", res.Errors)

	p := res.Project
	assert.Equal(t, core.DefaultProjectName, p.Name)
	assert.Equal(t, core.DefaultSport, p.Sport)
	assert.Equal(t, 0, p.Frames[0].Index)
	assert.Equal(t, core.MinFrameDuration, p.Frames[0].Duration)
	assert.Equal(t, core.MaxFrameDuration, p.Frames[1].Duration)
	assert.NotNil(t, p.Frames[1].Entities)

	d := p.Frames[0].Entities["d"]
	assert.Equal(t, core.TeamDefense, d.Team)
	assert.Equal(t, core.ColorDefense, d.Color)
	assert.Equal(t, 0.0, d.X)
	assert.Equal(t, 2000.0, d.Y)
	assert.Equal(t, "toolonglabel", d.Label)

	a := p.Frames[0].Annotations[0]
	assert.Equal(t, "f1", a.StartFrameID)
	assert.Equal(t, "f1", a.EndFrameID)
	assert.Equal(t, core.DefaultAnnotationColor, a.Color)

	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, core.DefaultSettings(), p.Settings)

	joined := strings.Join(res.Warnings, "\n")
	for _, part := range []string{"name", "curling", "index", "clamped", "label", "ends before"} {
		assert.Contains(t, joined, part)
	}
}

func TestParse_SharePayload(t *testing.T) {
	raw := `{"version":1,"canvas":{"width":2000,"height":2000},
	 "entities":[{"id":"p1","type":"player","team":"defence","x":100,"y":100}],
	 "frames":[{"t":0,"updates":[]},{"t":2,"updates":[{"id":"p1","x":150,"y":150}]}]}`

	res := newTestService().Parse([]byte(raw))
	require.True(t, res.Success, "errors: %v", res.Errors)

	p := res.Project
	assert.Equal(t, "gen-1", p.ID)
	assert.Equal(t, core.SharedProjectName, p.Name)
	require.Len(t, p.Frames, 2)
	assert.Equal(t, core.TeamDefense, p.Frames[1].Entities["p1"].Team)
	assert.Equal(t, 150.0, p.Frames[1].Entities["p1"].X)
}

func TestParse_ShareTooLarge(t *testing.T) {
	raw := `{"version":1,"entities":[],"frames":[],"pad":"` + strings.Repeat("x", 101*1024) + `"}`
	res := newTestService().Parse([]byte(raw))
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "too large")
}
