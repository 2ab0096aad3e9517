// Package perf observes tick cadence and tunes the engine's timing
// constants to preserve responsiveness under load. It only adjusts
// smoothness knobs; correctness never depends on it.
package perf

import (
	"sync"

	"github.com/rs/zerolog"
)

// Profile selects a set of timing constants.
type Profile int

const (
	// ProfileQuality favors smoothness: short update interval, full
	// cross-fades.
	ProfileQuality Profile = iota
	// ProfilePerformance favors responsiveness under load: longer update
	// interval, shorter cross-fades.
	ProfilePerformance
)

func (p Profile) String() string {
	if p == ProfilePerformance {
		return "performance"
	}
	return "quality"
}

// Params are the tunables consumed by the synchronization engine.
type Params struct {
	UpdateIntervalMs float64
	BlendDurationMs  float64
}

// Config holds controller thresholds. Switches are hysteretic: the rate
// must sit past a threshold for StreakLen consecutive samples before a
// profile change, and the enter/leave thresholds differ, so a rate
// hovering near one boundary cannot oscillate.
type Config struct {
	LowWaterTPS  float64 // enter performance below this rate
	HighWaterTPS float64 // return to quality above this rate
	StreakLen    int     // consecutive samples required to switch

	Quality     Params
	Performance Params
}

// DefaultConfig returns the standard thresholds: 60fps-class quality,
// degrade below 30 ticks/sec, recover above 55.
func DefaultConfig() Config {
	return Config{
		LowWaterTPS:  30,
		HighWaterTPS: 55,
		StreakLen:    5,
		Quality: Params{
			UpdateIntervalMs: 16,
			BlendDurationMs:  120,
		},
		Performance: Params{
			UpdateIntervalMs: 33,
			BlendDurationMs:  80,
		},
	}
}

// Validate fails fast on nonsensical thresholds.
func (c Config) Validate() error {
	if c.LowWaterTPS <= 0 || c.HighWaterTPS <= c.LowWaterTPS {
		return errThresholds
	}
	if c.Quality.UpdateIntervalMs <= 0 || c.Performance.UpdateIntervalMs <= 0 {
		return errIntervals
	}
	return nil
}

// Controller derives an effective tick rate from recorded samples and
// switches profiles hysteretically.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	profile    Profile
	rate       float64 // smoothed ticks per second
	lowStreak  int
	highStreak int

	onSwitch func(Profile)
}

// NewController creates a controller starting in the quality profile.
func NewController(cfg Config, logger zerolog.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		log:     logger.With().Str("component", "perf").Logger(),
		profile: ProfileQuality,
	}
}

// SetOnSwitch registers a callback invoked (under no lock) after each
// profile change.
func (c *Controller) SetOnSwitch(fn func(Profile)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSwitch = fn
}

// RecordTick feeds one sample: how long tick processing took and how much
// wall time elapsed since the previous tick.
func (c *Controller) RecordTick(processingMs, wallDeltaMs float64) {
	if wallDeltaMs <= 0 {
		return
	}

	instant := 1000.0 / wallDeltaMs

	c.mu.Lock()
	// Exponential moving average keeps single hiccups from flapping the
	// profile; the streak counters handle the rest.
	if c.rate == 0 {
		c.rate = instant
	} else {
		c.rate = c.rate*0.8 + instant*0.2
	}

	var switched Profile
	var fire bool

	switch c.profile {
	case ProfileQuality:
		c.highStreak = 0
		if c.rate < c.cfg.LowWaterTPS {
			c.lowStreak++
			if c.lowStreak >= c.cfg.StreakLen {
				c.profile = ProfilePerformance
				c.lowStreak = 0
				switched, fire = c.profile, true
			}
		} else {
			c.lowStreak = 0
		}
	case ProfilePerformance:
		c.lowStreak = 0
		if c.rate > c.cfg.HighWaterTPS {
			c.highStreak++
			if c.highStreak >= c.cfg.StreakLen {
				c.profile = ProfileQuality
				c.highStreak = 0
				switched, fire = c.profile, true
			}
		} else {
			c.highStreak = 0
		}
	}
	rate := c.rate
	fn := c.onSwitch
	c.mu.Unlock()

	if fire {
		c.log.Info().
			Str("profile", switched.String()).
			Float64("tickRate", rate).
			Float64("processingMs", processingMs).
			Msg("Performance profile switched")
		if fn != nil {
			fn(switched)
		}
	}
}

// TickRate returns the smoothed effective tick rate.
func (c *Controller) TickRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Profile returns the active profile.
func (c *Controller) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Params returns the timing constants for the active profile.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == ProfilePerformance {
		return c.cfg.Performance
	}
	return c.cfg.Quality
}
