// Package clock abstracts the audio playback clock the engine ticks
// against. The engine only ever asks "what is the current playback
// position"; everything else (device, buffering, drift) belongs to the
// audio subsystem.
package clock

import (
	"math"
	"sync/atomic"
	"time"
)

// IdleMs is the position reported when no audio is playing.
const IdleMs = 0

// Clock reports the current playback position in milliseconds since the
// start of the current utterance. Implementations may be advanced from
// another goroutine; reads must be atomic and must not assume the value
// strictly increases between calls.
type Clock interface {
	NowMs() float64
	Playing() bool
}

// WallClock derives playback position from the wall clock and an atomic
// anchor set at Start. Seek and restart rewrite the anchor; readers
// observe either the old or the new position, never a torn one.
type WallClock struct {
	// anchor is the wall time (UnixNano) corresponding to position 0,
	// or 0 when stopped.
	anchor atomic.Int64
	// pausedAt holds the frozen position (ms bits) while paused.
	pausedAt atomic.Uint64
	playing  atomic.Bool
}

// NewWallClock returns a stopped clock at position 0.
func NewWallClock() *WallClock {
	return &WallClock{}
}

// Start begins playback from offsetMs.
func (c *WallClock) Start(offsetMs float64) {
	c.anchor.Store(time.Now().Add(-time.Duration(offsetMs * float64(time.Millisecond))).UnixNano())
	c.playing.Store(true)
}

// Pause freezes the position.
func (c *WallClock) Pause() {
	pos := c.NowMs()
	c.pausedAt.Store(math.Float64bits(pos))
	c.playing.Store(false)
}

// Resume continues from the paused position.
func (c *WallClock) Resume() {
	c.Start(math.Float64frombits(c.pausedAt.Load()))
}

// Seek jumps to offsetMs, preserving the play/pause state.
func (c *WallClock) Seek(offsetMs float64) {
	if c.playing.Load() {
		c.Start(offsetMs)
		return
	}
	c.pausedAt.Store(math.Float64bits(offsetMs))
}

// Stop halts playback and resets to the idle position.
func (c *WallClock) Stop() {
	c.playing.Store(false)
	c.pausedAt.Store(math.Float64bits(float64(IdleMs)))
	c.anchor.Store(0)
}

// NowMs returns the current playback position.
func (c *WallClock) NowMs() float64 {
	if !c.playing.Load() {
		return math.Float64frombits(c.pausedAt.Load())
	}
	a := c.anchor.Load()
	if a == 0 {
		return IdleMs
	}
	return float64(time.Now().UnixNano()-a) / float64(time.Millisecond)
}

// Playing reports whether the clock is advancing.
func (c *WallClock) Playing() bool {
	return c.playing.Load()
}

// ManualClock is a test clock advanced explicitly.
type ManualClock struct {
	pos     atomic.Uint64
	playing atomic.Bool
}

// NewManualClock returns a manual clock at startMs, playing.
func NewManualClock(startMs float64) *ManualClock {
	c := &ManualClock{}
	c.pos.Store(math.Float64bits(startMs))
	c.playing.Store(true)
	return c
}

// Set moves the clock to an absolute position.
func (c *ManualClock) Set(ms float64) {
	c.pos.Store(math.Float64bits(ms))
}

// Start begins playback from offsetMs.
func (c *ManualClock) Start(offsetMs float64) {
	c.Set(offsetMs)
	c.playing.Store(true)
}

// Stop halts playback and resets to the idle position.
func (c *ManualClock) Stop() {
	c.playing.Store(false)
	c.Set(IdleMs)
}

// Advance moves the clock forward by delta.
func (c *ManualClock) Advance(deltaMs float64) {
	c.Set(c.NowMs() + deltaMs)
}

// SetPlaying toggles the playing flag.
func (c *ManualClock) SetPlaying(playing bool) {
	c.playing.Store(playing)
}

// NowMs returns the current position.
func (c *ManualClock) NowMs() float64 {
	return math.Float64frombits(c.pos.Load())
}

// Playing reports whether the clock is nominally advancing.
func (c *ManualClock) Playing() bool {
	return c.playing.Load()
}
