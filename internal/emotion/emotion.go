// Package emotion holds the avatar's current emotional state and supplies
// per-category multiplicative adjustments that bias mouth-shape weights.
package emotion

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/visemesync/internal/viseme"
)

// Label identifies a supported emotion.
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Surprised Label = "surprised"
	Excited   Label = "excited"
	Confused  Label = "confused"
	Thinking  Label = "thinking"
)

// Factors are the multiplicative adjustments for one emotion at full
// intensity. Openness applies to open-tagged categories, roundness to
// rounded-tagged categories, and intensity to everything.
type Factors struct {
	Openness  float64
	Roundness float64
	Intensity float64
}

// neutralFactors leave weights untouched.
var neutralFactors = Factors{Openness: 1, Roundness: 1, Intensity: 1}

// factorTable defines the shape bias per emotion. Values are calibrated
// against the expression presets the renderer uses for the same labels.
var factorTable = map[Label]Factors{
	Neutral:   neutralFactors,
	Happy:     {Openness: 1.10, Roundness: 0.90, Intensity: 1.10},
	Sad:       {Openness: 0.85, Roundness: 0.95, Intensity: 0.80},
	Surprised: {Openness: 1.35, Roundness: 1.10, Intensity: 1.20},
	Excited:   {Openness: 1.25, Roundness: 1.05, Intensity: 1.20},
	Confused:  {Openness: 0.95, Roundness: 1.00, Intensity: 0.90},
	Thinking:  {Openness: 0.90, Roundness: 1.00, Intensity: 0.85},
}

// State is the externally settable emotion. Intensity is 0..1.
// ExpiresAtMs, when positive, is the playback-clock time after which the
// state reverts to neutral; expiry is checked synchronously by the caller
// each tick, never by a timer.
type State struct {
	Label       Label   `json:"label"`
	Intensity   float64 `json:"intensity"`
	ExpiresAtMs float64 `json:"expiresAtMs,omitempty"`
}

// Modulator supplies emotion-derived weight adjustments. It has no
// temporal behavior of its own; decay is the caller's concern.
type Modulator struct {
	mu     sync.RWMutex
	state  State
	vmap   *viseme.Map
	logger zerolog.Logger

	// Influence is how far modulated weights pull away from the
	// unmodulated ones, 0..1. Bias, not replacement.
	influence float64

	warned map[Label]bool
}

// NewModulator creates a modulator in the neutral state.
func NewModulator(vmap *viseme.Map, influence float64, logger zerolog.Logger) *Modulator {
	if influence < 0 {
		influence = 0
	}
	if influence > 1 {
		influence = 1
	}
	return &Modulator{
		state:     State{Label: Neutral, Intensity: 0},
		vmap:      vmap,
		influence: influence,
		logger:    logger.With().Str("component", "emotion").Logger(),
		warned:    make(map[Label]bool),
	}
}

// SetEmotion replaces the current state. Unsupported labels fall back to
// neutral with a diagnostic; they must never block ticking.
func (m *Modulator) SetEmotion(label Label, intensity float64) {
	m.SetEmotionUntil(label, intensity, 0)
}

// SetEmotionUntil replaces the current state with an expiry timestamp on
// the playback clock. expiresAtMs <= 0 means no expiry.
func (m *Modulator) SetEmotionUntil(label Label, intensity float64, expiresAtMs float64) {
	label = Label(strings.ToLower(string(label)))
	if _, ok := factorTable[label]; !ok {
		m.mu.Lock()
		if !m.warned[label] {
			m.warned[label] = true
			m.logger.Warn().Str("label", string(label)).Msg("Unsupported emotion label, using neutral factors")
		}
		m.mu.Unlock()
		label = Neutral
	}

	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	m.mu.Lock()
	m.state = State{Label: label, Intensity: intensity, ExpiresAtMs: expiresAtMs}
	m.mu.Unlock()
}

// State returns the current emotion state.
func (m *Modulator) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// MaybeExpire reverts to neutral when the state's expiry has passed.
// Called by the engine at the top of each tick with the current playback
// time. Returns true when a revert happened.
func (m *Modulator) MaybeExpire(nowMs float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.ExpiresAtMs > 0 && nowMs >= m.state.ExpiresAtMs {
		m.state = State{Label: Neutral, Intensity: 0}
		return true
	}
	return false
}

// Influence returns the modulation blend fraction.
func (m *Modulator) Influence() float64 {
	return m.influence
}

// Factor returns the effective multiplier for one category under the
// current state. Intensity scales each factor toward 1, so a zero
// intensity emotion is a no-op.
func (m *Modulator) Factor(category viseme.ID) float64 {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()

	f, ok := factorTable[st.Label]
	if !ok {
		f = neutralFactors
	}

	factor := scaleToward(f.Intensity, st.Intensity)
	if m.vmap.IsOpen(category) {
		factor *= scaleToward(f.Openness, st.Intensity)
	}
	if m.vmap.IsRounded(category) {
		factor *= scaleToward(f.Roundness, st.Intensity)
	}
	return factor
}

// scaleToward interpolates a factor between 1 (no effect) and its full
// value by intensity.
func scaleToward(factor, intensity float64) float64 {
	return 1 + (factor-1)*intensity
}
