package playback

import "github.com/pitchside/playbook/pkg/core"

// Snapshot is the state a tick reads. Epoch changes whenever playback state is
// changed by anything other than the clock (play, pause, scrub, frame edits).
type Snapshot struct {
	Epoch         uint64
	Playing       bool
	FrameIndex    int
	FrameCount    int
	FrameDuration int // ms; 0 when FrameIndex does not exist
	Speed         core.PlaybackSpeed
	Loop          bool
}

// StepKind says what a tick wants to do to the source.
type StepKind int

const (
	// StepPublish updates the transient playback position.
	StepPublish StepKind = iota
	// StepAdvance moves playback to FrameIndex and keeps playing.
	StepAdvance
	// StepStop ends playback.
	StepStop
)

func (k StepKind) String() string {
	switch k {
	case StepPublish:
		return "publish"
	case StepAdvance:
		return "advance"
	case StepStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Step is the outcome of one tick.
type Step struct {
	Kind       StepKind
	FrameIndex int
	Position   core.PlaybackPosition
}

// Source is what the clock drives. ApplyTick must only apply the step when
// epoch still matches the source's current epoch, and reports whether it did.
type Source interface {
	PlaybackSnapshot() Snapshot
	ApplyTick(epoch uint64, step Step) bool
}
