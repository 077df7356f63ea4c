// pkg/core/playback.go
package core

// PlaybackSpeed is a playback rate multiplier.
type PlaybackSpeed float64

const (
	SpeedHalf   PlaybackSpeed = 0.5
	SpeedNormal PlaybackSpeed = 1
	SpeedDouble PlaybackSpeed = 2
)

// PlaybackSpeeds lists the supported rates.
func PlaybackSpeeds() []PlaybackSpeed {
	return []PlaybackSpeed{SpeedHalf, SpeedNormal, SpeedDouble}
}

// Valid reports whether s is one of the supported rates.
func (s PlaybackSpeed) Valid() bool {
	switch s {
	case SpeedHalf, SpeedNormal, SpeedDouble:
		return true
	}
	return false
}

// ParsePlaybackSpeed converts a raw multiplier into a supported rate.
func ParsePlaybackSpeed(f float64) (PlaybackSpeed, bool) {
	s := PlaybackSpeed(f)
	return s, s.Valid()
}

// PlaybackPosition is where playback is between two frames. It is recomputed
// on every clock tick and never persisted. Progress is in [0, 1).
type PlaybackPosition struct {
	FromFrameIndex int     `json:"fromFrameIndex"`
	ToFrameIndex   int     `json:"toFrameIndex"`
	Progress       float64 `json:"progress"`
}
