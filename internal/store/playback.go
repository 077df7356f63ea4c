package store

import (
	"math"

	"github.com/pitchside/playbook/internal/playback"
	"github.com/pitchside/playbook/pkg/core"
)

// Play starts playback from the current frame.
func (s *Store) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.epoch++
}

// Pause stops playback on the current frame.
func (s *Store) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.position = nil
	s.epoch++
}

// Reset stops playback and selects the first frame.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.current = 0
	s.position = nil
	s.epoch++
}

// SetPlaybackSpeed sets the rate. Unsupported rates are ignored.
func (s *Store) SetPlaybackSpeed(speed core.PlaybackSpeed) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !speed.Valid() {
		s.logger.Warn("unsupported playback speed", "speed", float64(speed))
		return false
	}
	s.speed = speed
	return true
}

// ToggleLoop flips looping and returns the new value.
func (s *Store) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = !s.loop
	return s.loop
}

// SetPlaybackPosition sets the transient position used for rendering. Nil
// clears it. Progress is kept within [0, 1).
func (s *Store) SetPlaybackPosition(pos *core.PlaybackPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPositionLocked(pos)
}

func (s *Store) setPositionLocked(pos *core.PlaybackPosition) {
	if pos == nil {
		s.position = nil
		return
	}
	p := *pos
	if math.IsNaN(p.Progress) || p.Progress < 0 {
		p.Progress = 0
	}
	if p.Progress >= 1 {
		p.Progress = math.Nextafter(1, 0)
	}
	s.position = &p
}

// PlaybackSnapshot implements playback.Source.
func (s *Store) PlaybackSnapshot() playback.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := playback.Snapshot{
		Epoch:      s.epoch,
		Playing:    s.playing,
		FrameIndex: s.current,
		FrameCount: len(s.project.Frames),
		Speed:      s.speed,
		Loop:       s.loop,
	}
	if f, ok := s.currentFrameLocked(); ok {
		snap.FrameDuration = f.Duration
	}
	return snap
}

// ApplyTick implements playback.Source. The step is applied only while
// playing and only if nothing else changed playback since epoch was read.
func (s *Store) ApplyTick(epoch uint64, step playback.Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.playing {
		return false
	}

	switch step.Kind {
	case playback.StepPublish:
		pos := step.Position
		s.setPositionLocked(&pos)
	case playback.StepAdvance:
		if step.FrameIndex < 0 || step.FrameIndex >= len(s.project.Frames) {
			return false
		}
		s.current = step.FrameIndex
		s.position = nil
	case playback.StepStop:
		s.playing = false
		s.position = nil
	default:
		return false
	}
	return true
}
