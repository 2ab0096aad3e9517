// Package engine implements the per-tick lip-sync synchronization core:
// locating the active timeline event against the playback clock, running
// the viseme cross-fade state machine, applying coarticulation and
// emotional bias, and emitting a smoothed weight vector.
package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/normanking/visemesync/internal/clock"
	"github.com/normanking/visemesync/internal/emotion"
	"github.com/normanking/visemesync/internal/perf"
	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// Config holds the engine's tunables. All of it is plain data.
type Config struct {
	VisemeCount int
	Neutral     viseme.ID

	LookaheadMs     float64 // pre-shaping window for upcoming events
	BlendDurationMs float64 // base cross-fade duration

	// SmoothingRate is the low-pass rate (per second) pulling each output
	// slot toward its computed target. Zero or negative disables smoothing.
	SmoothingRate float64

	// Low-confidence timing data gets smoother, less committal blending:
	// transitions driven by an event below ConfidenceThreshold have their
	// duration multiplied by LowConfidenceStretch. The stretch applies to
	// the single transition only, never to shared configuration.
	ConfidenceThreshold  float64
	LowConfidenceStretch float64

	// Capability flags; both engine variants of the old implementation
	// collapse into these.
	Coarticulation bool
	EmotionBias    bool
}

// DefaultConfig returns the standard engine tuning for the default
// 14-category viseme set.
func DefaultConfig() Config {
	return Config{
		VisemeCount:          viseme.DefaultCount,
		Neutral:              viseme.Silence,
		LookaheadMs:          60,
		BlendDurationMs:      120,
		SmoothingRate:        12,
		ConfidenceThreshold:  0.5,
		LowConfidenceStretch: 1.5,
		Coarticulation:       true,
		EmotionBias:          true,
	}
}

// Validate fails fast on configuration errors.
func (c Config) Validate() error {
	if c.VisemeCount <= 0 {
		return fmt.Errorf("engine config: viseme count must be positive, got %d", c.VisemeCount)
	}
	if c.Neutral < 0 || int(c.Neutral) >= c.VisemeCount {
		return fmt.Errorf("engine config: neutral category %d outside [0,%d)", c.Neutral, c.VisemeCount)
	}
	if c.BlendDurationMs <= 0 {
		return fmt.Errorf("engine config: blend duration must be positive")
	}
	if c.LowConfidenceStretch < 1 {
		return fmt.Errorf("engine config: low-confidence stretch must be >= 1")
	}
	return nil
}

// transition is the cross-fade state machine's only state: blending from
// one category toward another, started at a fixed clock time.
type transition struct {
	from        viseme.ID
	to          viseme.ID
	startedAtMs float64
	durationMs  float64
}

// progress returns the raw blend progress in [0,1]. A clock that jumped
// behind the start clamps to 0 rather than going negative.
func (t *transition) progress(nowMs float64) float64 {
	if t.durationMs <= 0 {
		return 1
	}
	return clamp((nowMs-t.startedAtMs)/t.durationMs, 0, 1)
}

// Engine is a single lip-sync synchronization session. It is
// single-threaded by contract: Tick, Load, Unload, and Stop must all be
// called from the same goroutine (the render loop); only the clock and
// the emotion modulator may be touched concurrently.
type Engine struct {
	cfg Config
	log zerolog.Logger

	clk  clock.Clock
	mod  *emotion.Modulator
	perf *perf.Controller

	tl     *timeline.Timeline
	cursor *timeline.Cursor

	target    viseme.ID
	trans     transition
	weights   Weights
	lastMs    float64
	hasTicked bool
}

// New creates an engine. The emotion modulator and perf controller are
// optional; pass nil to run without emotional bias or adaptive tuning.
func New(cfg Config, clk clock.Clock, mod *emotion.Modulator, pc *perf.Controller, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		return nil, fmt.Errorf("engine: nil clock")
	}

	e := &Engine{
		cfg:  cfg,
		log:  logger.With().Str("component", "engine").Logger(),
		clk:  clk,
		mod:  mod,
		perf: pc,
	}
	e.resetToNeutral()
	return e, nil
}

// Load installs a new utterance timeline, replacing any previous one.
// Must not race with Tick; timeline swaps happen between ticks.
func (e *Engine) Load(tl *timeline.Timeline) error {
	if tl == nil || len(tl.Events) == 0 {
		return timeline.ErrEmptyTimeline
	}
	e.tl = tl
	e.cursor = timeline.NewCursor(tl)
	e.hasTicked = false
	e.log.Debug().Int("events", len(tl.Events)).Float64("endMs", tl.EndMs()).Msg("Timeline loaded")
	return nil
}

// Unload drops the current timeline and forces the neutral rest state.
func (e *Engine) Unload() {
	e.tl = nil
	e.cursor = nil
	e.Stop()
}

// Stop forces an immediate, unconditional transition to neutral. On stop
// no further ticks are guaranteed, so a gradual fade is not an option:
// all non-neutral weight clears now.
func (e *Engine) Stop() {
	e.resetToNeutral()
	if e.cursor != nil {
		e.cursor.Reset()
	}
}

func (e *Engine) resetToNeutral() {
	e.target = e.cfg.Neutral
	e.trans = transition{from: e.cfg.Neutral, to: e.cfg.Neutral}
	e.weights = NewWeights(e.cfg.VisemeCount)
	e.weights[e.cfg.Neutral] = 1
	e.hasTicked = false
}

// Timeline returns the loaded timeline, or nil.
func (e *Engine) Timeline() *timeline.Timeline {
	return e.tl
}

// Weights returns the current output vector without ticking.
func (e *Engine) Weights() Weights {
	return e.weights.Clone()
}

// Tick advances the engine against the playback clock and returns the
// new weight vector. It never fails: malformed state degrades to the
// neutral vector, not to an error.
func (e *Engine) Tick() Weights {
	// No playback or no timeline: the rest state applies immediately, not
	// via the normal blend. A stopping session may never tick again to
	// finish a gradual fade.
	if !e.clk.Playing() || e.tl == nil {
		if e.target != e.cfg.Neutral || e.weights[e.cfg.Neutral] != 1 {
			e.resetToNeutral()
		}
		return e.weights.Clone()
	}

	now := e.clk.NowMs()

	if e.mod != nil && e.mod.MaybeExpire(now) {
		e.log.Debug().Float64("atMs", now).Msg("Emotion expired, reverting to neutral")
	}

	target, driving := e.resolveTarget(now)
	if target != e.target {
		e.beginTransition(target, driving, now)
	}

	eased := easeInOutCubic(e.trans.progress(now))
	frame := BaseVector(e.trans.from, e.trans.to, eased, e.cfg.VisemeCount)

	// Coarticulation: neighboring sounds leak some of their shape into
	// the active one, clamped so no slot exceeds full weight.
	if e.cfg.Coarticulation && driving != nil {
		for _, inf := range driving.Influences {
			if int(inf.Category) >= len(frame) {
				continue
			}
			frame[inf.Category] = clamp(frame[inf.Category]+inf.Weight, 0, 1)
		}
	}

	// Emotional bias: modulate each active slot, then re-blend against
	// the unmodulated value so emotion biases speech rather than driving
	// the mouth on its own.
	if e.cfg.EmotionBias && e.mod != nil {
		infl := e.mod.Influence()
		for i, w := range frame {
			if w == 0 {
				continue
			}
			modulated := clamp(w*e.mod.Factor(viseme.ID(i)), 0, 1)
			frame[i] = clamp(w+(modulated-w)*infl, 0, 1)
		}
	}

	e.smooth(frame, now)
	e.lastMs = now
	e.hasTicked = true

	return e.weights.Clone()
}

// resolveTarget picks the category to blend toward: the active event,
// else an upcoming event inside the look-ahead window (pre-shaping),
// else neutral. The driving event, when any, is returned for
// coarticulation and confidence handling.
func (e *Engine) resolveTarget(nowMs float64) (viseme.ID, *timeline.TimedEvent) {
	if e.cursor == nil {
		return e.cfg.Neutral, nil
	}
	if ev := e.cursor.EventAt(nowMs); ev != nil {
		return ev.Category, ev
	}
	if next := e.cursor.EventAfter(nowMs, e.cfg.LookaheadMs); next != nil {
		return next.Category, next
	}
	return e.cfg.Neutral, nil
}

func (e *Engine) beginTransition(target viseme.ID, driving *timeline.TimedEvent, nowMs float64) {
	dur := e.blendDurationMs()
	if driving != nil && driving.Confidence < e.cfg.ConfidenceThreshold {
		// Scoped to this transition only.
		dur *= e.cfg.LowConfidenceStretch
	}
	e.trans = transition{
		from:        e.target,
		to:          target,
		startedAtMs: nowMs,
		durationMs:  dur,
	}
	e.target = target
}

func (e *Engine) blendDurationMs() float64 {
	if e.perf != nil {
		return e.perf.Params().BlendDurationMs
	}
	return e.cfg.BlendDurationMs
}

// smooth low-pass filters the persisted output toward the freshly
// computed frame, absorbing tick-rate irregularity. dt comes from the
// playback clock; a stalled or backward clock falls back to the nominal
// update interval.
func (e *Engine) smooth(frame Weights, nowMs float64) {
	if e.cfg.SmoothingRate <= 0 {
		copy(e.weights, frame)
		return
	}

	dtMs := nowMs - e.lastMs
	if !e.hasTicked || dtMs <= 0 || dtMs > 250 {
		dtMs = e.updateIntervalMs()
	}

	alpha := 1 - math.Exp(-e.cfg.SmoothingRate*dtMs/1000.0)
	for i := range e.weights {
		e.weights[i] += (frame[i] - e.weights[i]) * alpha
	}
}

func (e *Engine) updateIntervalMs() float64 {
	if e.perf != nil {
		return e.perf.Params().UpdateIntervalMs
	}
	return 16
}

// easeInOutCubic is the symmetric slow-fast-slow curve applied to blend
// progress; linear progress snaps visibly at transition boundaries.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
