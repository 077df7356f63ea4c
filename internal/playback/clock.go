// Package playback turns elapsed wall time into frame advancement and
// sub-frame progress.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pitchside/playbook/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultInterval is the tick period used by Start, roughly one display frame.
const DefaultInterval = 16 * time.Millisecond

// Option configures a Clock.
type Option func(*Clock)

// WithInterval sets the tick period used by Start.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Clock) {
		if l != nil {
			c.logger = l
		}
	}
}

// Clock is the playback loop. Tick may be driven by the host's own frame
// callback, or Start runs it from a ticker goroutine.
//
// The accumulator is reset whenever the source reports a new epoch, so a
// scrub or pause always restarts timing from the next tick.
type Clock struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	onTick  func(core.PlaybackPosition)
	gen     uint64
	cancel  context.CancelFunc
	running bool

	epoch    uint64
	anchored bool
	last     time.Time
	elapsed  float64 // ms of playback time on the current frame

	ticks    metric.Int64Counter
	advances metric.Int64Counter
}

// New creates a Clock reading from and writing to src.
func New(src Source, opts ...Option) *Clock {
	c := &Clock{
		src:      src,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	m := meter()
	var err error
	if c.ticks, err = m.Int64Counter("playback.ticks",
		metric.WithDescription("Clock ticks evaluated")); err != nil {
		c.logger.Warn("creating tick counter", "error", err)
	}
	if c.advances, err = m.Int64Counter("playback.frame_advances",
		metric.WithDescription("Frame transitions applied by the clock")); err != nil {
		c.logger.Warn("creating advance counter", "error", err)
	}
	return c
}

// Start begins ticking on a background goroutine. onTick receives every
// published position. Calling Start while running only replaces onTick.
// The loop ends on its own once the source stops playing.
func (c *Clock) Start(onTick func(core.PlaybackPosition)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onTick = onTick
	if c.running {
		return
	}

	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.resetLocked()

	go c.run(ctx, c.gen)
}

// Stop cancels scheduling. Once Stop returns no pending tick writes state.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether the background loop is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tick evaluates one clock step at time now and reports whether playback is
// still going. It is safe to call without Start.
func (c *Clock) Tick(now time.Time) bool {
	c.mu.Lock()
	pos, publish, more := c.tickLocked(now)
	cb := c.onTick
	c.mu.Unlock()

	if publish && cb != nil {
		cb(pos)
	}
	return more
}

func (c *Clock) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			pos, publish, more := c.tickLocked(now)
			cb := c.onTick
			if !more {
				c.stopLocked()
			}
			c.mu.Unlock()

			if publish && cb != nil {
				cb(pos)
			}
			if !more {
				return
			}
		}
	}
}

func (c *Clock) tickLocked(now time.Time) (core.PlaybackPosition, bool, bool) {
	snap := c.src.PlaybackSnapshot()
	c.count(c.ticks)

	if !snap.Playing {
		c.resetLocked()
		return core.PlaybackPosition{}, false, false
	}

	if !c.anchored || snap.Epoch != c.epoch {
		c.epoch = snap.Epoch
		c.anchored = true
		c.last = now
		c.elapsed = 0
		return core.PlaybackPosition{}, false, true
	}

	delta := now.Sub(c.last)
	c.last = now
	if delta < 0 {
		delta = 0
	}
	speed := snap.Speed
	if !speed.Valid() {
		speed = core.SpeedNormal
	}
	c.elapsed += float64(delta) / float64(time.Millisecond) * float64(speed)

	if snap.FrameIndex < 0 || snap.FrameIndex >= snap.FrameCount || snap.FrameDuration <= 0 {
		c.logger.Warn("current frame missing, stopping playback", "frameIndex", snap.FrameIndex, "frameCount", snap.FrameCount)
		c.src.ApplyTick(c.epoch, Step{Kind: StepStop, FrameIndex: snap.FrameIndex})
		c.resetLocked()
		return core.PlaybackPosition{}, false, false
	}

	isLast := snap.FrameIndex == snap.FrameCount-1
	progress := c.elapsed / float64(snap.FrameDuration)

	if progress >= 1 {
		c.elapsed = 0
		step := Step{Kind: StepAdvance, FrameIndex: snap.FrameIndex + 1}
		if isLast {
			if snap.Loop {
				step.FrameIndex = 0
			} else {
				step = Step{Kind: StepStop, FrameIndex: snap.FrameIndex}
			}
		}

		if !c.src.ApplyTick(c.epoch, step) {
			c.anchored = false
			return core.PlaybackPosition{}, false, true
		}
		if step.Kind == StepStop {
			c.logger.Debug("playback reached the last frame", "frameIndex", snap.FrameIndex)
			c.resetLocked()
			return core.PlaybackPosition{}, false, false
		}
		if c.advances != nil {
			c.advances.Add(context.Background(), 1,
				metric.WithAttributes(attribute.Bool("loop", isLast)))
		}
		return core.PlaybackPosition{}, false, true
	}

	next := snap.FrameIndex + 1
	if isLast {
		if snap.Loop {
			next = 0
		} else {
			next = snap.FrameIndex
		}
	}
	pos := core.PlaybackPosition{
		FromFrameIndex: snap.FrameIndex,
		ToFrameIndex:   next,
		Progress:       progress,
	}
	if !c.src.ApplyTick(c.epoch, Step{Kind: StepPublish, FrameIndex: snap.FrameIndex, Position: pos}) {
		c.anchored = false
		return core.PlaybackPosition{}, false, true
	}
	return pos, true, true
}

func (c *Clock) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.resetLocked()
}

func (c *Clock) resetLocked() {
	c.anchored = false
	c.elapsed = 0
	c.last = time.Time{}
}

func (c *Clock) count(counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(context.Background(), 1)
	}
}
