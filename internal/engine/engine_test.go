package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/visemesync/internal/clock"
	"github.com/normanking/visemesync/internal/emotion"
	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// snapConfig disables smoothing, coarticulation, and emotion so ticks
// reflect the raw cross-fade state machine.
func snapConfig() Config {
	cfg := DefaultConfig()
	cfg.SmoothingRate = 0
	cfg.Coarticulation = false
	cfg.EmotionBias = false
	return cfg
}

func buildTimeline(t *testing.T, raw []timeline.RawEvent, coart bool) *timeline.Timeline {
	t.Helper()
	opts := timeline.DefaultOptions()
	opts.Coarticulation = coart
	tl, err := timeline.Build(raw, viseme.DefaultMap(), opts)
	require.NoError(t, err)
	return tl
}

// utterance is the canonical three-event test input: lips together, jaw
// open, silence.
func utterance(t *testing.T) *timeline.Timeline {
	return buildTimeline(t, []timeline.RawEvent{
		{Symbol: "B", StartMs: 0, EndMs: 80},
		{Symbol: "AH", StartMs: 80, EndMs: 220},
		{Symbol: "SIL", StartMs: 220, EndMs: 300},
	}, false)
}

func newTestEngine(t *testing.T, cfg Config, clk clock.Clock, mod *emotion.Modulator) *Engine {
	t.Helper()
	e, err := New(cfg, clk, mod, nil, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	t.Run("rejects nil clock", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil, nil, nil, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("rejects bad config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.VisemeCount = 0
		_, err := New(cfg, clock.NewManualClock(0), nil, nil, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("starts at neutral", func(t *testing.T) {
		e := newTestEngine(t, snapConfig(), clock.NewManualClock(0), nil)
		w := e.Weights()
		assert.Equal(t, 1.0, w[viseme.Silence])
		assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	})
}

func TestEngineCrossFade(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(utterance(t)))

	// t=0: the blend toward lips-together has just started.
	w := e.Tick()
	assert.Equal(t, 1.0, w[viseme.Silence])

	// t=60: halfway through the 120ms blend.
	clk.Set(60)
	w = e.Tick()
	assert.InDelta(t, 0.5, w[viseme.Bilabial], 1e-9)
	assert.InDelta(t, 0.5, w[viseme.Silence], 1e-9)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)

	// t=120: inside the open-vowel event, so a new blend starts from
	// lips-together toward open.
	clk.Set(120)
	w = e.Tick()
	assert.Equal(t, 1.0, w[viseme.Bilabial])

	// t=180: halfway through that blend.
	clk.Set(180)
	w = e.Tick()
	assert.InDelta(t, 0.5, w[viseme.OpenVowel], 1e-9)
	assert.InDelta(t, 0.5, w[viseme.Bilabial], 1e-9)

	// t=240: the silence event took over as target at this tick.
	clk.Set(240)
	w = e.Tick()
	assert.Equal(t, 1.0, w[viseme.OpenVowel])

	// t=300: past the last event; the blend back to neutral continues.
	clk.Set(300)
	w = e.Tick()
	assert.InDelta(t, 0.5, w[viseme.Silence], 1e-9)

	// t=360: settled at rest.
	clk.Set(360)
	w = e.Tick()
	assert.Equal(t, 1.0, w[viseme.Silence])
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}

func TestEngineDominantCategoryTracksUtterance(t *testing.T) {
	clk := clock.NewManualClock(0)
	cfg := snapConfig()
	cfg.BlendDurationMs = 60
	e := newTestEngine(t, cfg, clk, nil)
	require.NoError(t, e.Load(utterance(t)))

	steps := []struct {
		ms   float64
		want viseme.ID
	}{
		{0, viseme.Silence},  // blend toward lips-together just started
		{40, viseme.Bilabial},
		{80, viseme.Bilabial}, // vowel transition starts here
		{150, viseme.OpenVowel},
		{220, viseme.OpenVowel}, // silence transition starts here
		{260, viseme.Silence},
	}
	for _, s := range steps {
		clk.Set(s.ms)
		w := e.Tick()
		got, _ := w.Dominant()
		assert.Equal(t, s.want, got, "t=%v", s.ms)
	}
}

func TestEngineBlendIsMonotone(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
		{Symbol: "AH", StartMs: 0, EndMs: 500},
	}, false)))

	prev := -1.0
	for ms := 0.0; ms <= 130; ms += 10 {
		clk.Set(ms)
		w := e.Tick()
		assert.GreaterOrEqual(t, w[viseme.OpenVowel], prev, "t=%v", ms)
		assert.InDelta(t, 1.0, w.Sum(), 1e-9, "t=%v", ms)
		prev = w[viseme.OpenVowel]
	}
	assert.Equal(t, 1.0, prev)
}

func TestEngineLookahead(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
		{Symbol: "AH", StartMs: 200, EndMs: 300},
	}, false)))

	// Outside the 60ms look-ahead window: still at rest.
	clk.Set(130)
	w := e.Tick()
	assert.Equal(t, 1.0, w[viseme.Silence])

	// Inside the window: pre-shaping toward the upcoming vowel begins.
	clk.Set(150)
	e.Tick()
	clk.Set(210)
	w = e.Tick()
	assert.InDelta(t, 0.5, w[viseme.OpenVowel], 1e-9)
}

func TestEngineStop(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(utterance(t)))

	clk.Set(120)
	w := e.Tick()
	require.Greater(t, w[viseme.Bilabial], 0.0)

	// Stop clears all non-neutral weight immediately; no gradual fade.
	e.Stop()
	w = e.Weights()
	assert.Equal(t, 1.0, w[viseme.Silence])
	assert.Equal(t, 0.0, w[viseme.Bilabial])
}

func TestEngineIdleClock(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(utterance(t)))

	clk.Set(120)
	require.Greater(t, e.Tick()[viseme.Bilabial], 0.0)

	// Pausing the clock snaps the output to rest on the next tick.
	clk.SetPlaying(false)
	w := e.Tick()
	assert.Equal(t, 1.0, w[viseme.Silence])
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}

func TestEngineUnload(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(t, snapConfig(), clk, nil)
	require.NoError(t, e.Load(utterance(t)))
	require.NotNil(t, e.Timeline())

	e.Unload()
	assert.Nil(t, e.Timeline())
	assert.Equal(t, 1.0, e.Tick()[viseme.Silence])
}

func TestEngineLoadRejectsEmpty(t *testing.T) {
	e := newTestEngine(t, snapConfig(), clock.NewManualClock(0), nil)
	assert.ErrorIs(t, e.Load(nil), timeline.ErrEmptyTimeline)
	assert.ErrorIs(t, e.Load(&timeline.Timeline{}), timeline.ErrEmptyTimeline)
}

func TestEngineLowConfidenceStretch(t *testing.T) {
	tick := func(conf float64) float64 {
		clk := clock.NewManualClock(0)
		e := newTestEngine(t, snapConfig(), clk, nil)
		tl := buildTimeline(t, []timeline.RawEvent{
			{Symbol: "AH", StartMs: 0, EndMs: 500, Confidence: conf},
		}, false)
		require.NoError(t, e.Load(tl))

		e.Tick() // blend starts here
		clk.Set(90)
		return e.Tick()[viseme.OpenVowel]
	}

	confident := tick(0.9)
	shaky := tick(0.3)

	// The shaky event blends over 180ms instead of 120ms, so at 90ms it
	// sits exactly halfway while the confident one is nearly done.
	assert.InDelta(t, 0.5, shaky, 1e-9)
	assert.Greater(t, confident, shaky)
}

func TestEngineCoarticulation(t *testing.T) {
	clk := clock.NewManualClock(0)
	cfg := snapConfig()
	cfg.Coarticulation = true
	e := newTestEngine(t, cfg, clk, nil)

	require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
		{Symbol: "B", StartMs: 0, EndMs: 100},
		{Symbol: "AH", StartMs: 100, EndMs: 200},
		{Symbol: "S", StartMs: 200, EndMs: 300},
	}, true)))

	// Mid-vowel, the flanking consonants leak into the frame.
	clk.Set(150)
	w := e.Tick()
	assert.Greater(t, w[viseme.Bilabial], 0.0)
	assert.Greater(t, w[viseme.Sibilant], 0.0)

	for _, v := range w {
		assert.LessOrEqual(t, v, 1.0)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestEngineEmotionBias(t *testing.T) {
	run := func(label emotion.Label, intensity float64) Weights {
		clk := clock.NewManualClock(0)
		mod := emotion.NewModulator(viseme.DefaultMap(), 0.6, zerolog.Nop())
		mod.SetEmotion(label, intensity)

		cfg := snapConfig()
		cfg.EmotionBias = true
		e := newTestEngine(t, cfg, clk, mod)
		require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
			{Symbol: "AH", StartMs: 0, EndMs: 500},
		}, false)))

		e.Tick()
		clk.Set(60) // mid-blend, base open weight 0.5
		return e.Tick()
	}

	baseline := run(emotion.Neutral, 0)
	surprised := run(emotion.Surprised, 1.0)
	sad := run(emotion.Sad, 1.0)

	assert.InDelta(t, 0.5, baseline[viseme.OpenVowel], 1e-9)
	assert.Greater(t, surprised[viseme.OpenVowel], baseline[viseme.OpenVowel])
	assert.Less(t, sad[viseme.OpenVowel], baseline[viseme.OpenVowel])

	// Bias never pushes a slot past full weight.
	for _, v := range surprised {
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestEngineEmotionExpiry(t *testing.T) {
	clk := clock.NewManualClock(0)
	mod := emotion.NewModulator(viseme.DefaultMap(), 0.6, zerolog.Nop())
	mod.SetEmotionUntil(emotion.Surprised, 1.0, 100)

	cfg := snapConfig()
	cfg.EmotionBias = true
	e := newTestEngine(t, cfg, clk, mod)
	require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
		{Symbol: "AH", StartMs: 0, EndMs: 500},
	}, false)))

	e.Tick()
	require.Equal(t, emotion.Surprised, mod.State().Label)

	// The tick crossing the expiry reverts the modulator.
	clk.Set(150)
	e.Tick()
	assert.Equal(t, emotion.Neutral, mod.State().Label)
}

func TestEngineSmoothing(t *testing.T) {
	clk := clock.NewManualClock(0)
	cfg := snapConfig()
	cfg.SmoothingRate = 12
	e := newTestEngine(t, cfg, clk, nil)
	require.NoError(t, e.Load(buildTimeline(t, []timeline.RawEvent{
		{Symbol: "AH", StartMs: 0, EndMs: 2000},
	}, false)))

	e.Tick()

	// A big clock jump lands on a finished blend, but the low-pass output
	// only moves partway toward it.
	clk.Set(500)
	w := e.Tick()
	assert.Greater(t, w[viseme.OpenVowel], 0.0)
	assert.Less(t, w[viseme.OpenVowel], 1.0)

	// Steady ticking converges on the target.
	for i := 0; i < 60; i++ {
		clk.Advance(16)
		w = e.Tick()
	}
	assert.Greater(t, w[viseme.OpenVowel], 0.95)
}
