package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/visemesync/internal/viseme"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, viseme.DefaultCount, cfg.Viseme.Count)
	assert.Equal(t, int(viseme.Silence), cfg.Viseme.Neutral)
	assert.Equal(t, 120.0, cfg.Sync.BlendDurationMs)
	assert.Equal(t, "http://localhost:5000", cfg.Synth.ServerURL)
	assert.Equal(t, "localhost:7717", cfg.Server.Addr)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero viseme count", func(c *Config) { c.Viseme.Count = 0 }},
		{"neutral out of range", func(c *Config) { c.Viseme.Neutral = 14 }},
		{"influence out of range", func(c *Config) { c.Emotion.Influence = 1.5 }},
		{"zero blend duration", func(c *Config) { c.Sync.BlendDurationMs = 0 }},
		{"inverted perf thresholds", func(c *Config) { c.Perf.HighWaterTPS = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled perf skips threshold validation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Perf.Enabled = false
		cfg.Perf.HighWaterTPS = 10
		assert.NoError(t, cfg.Validate())
	})
}

func TestEngineConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.LookaheadMs = 90
	cfg.Emotion.Enabled = false

	ec := cfg.EngineConfig()
	require.NoError(t, ec.Validate())
	assert.Equal(t, 90.0, ec.LookaheadMs)
	assert.Equal(t, viseme.Silence, ec.Neutral)
	assert.False(t, ec.EmotionBias)
}

func TestTimelineOptionsConversion(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.TimelineOptions()
	assert.Equal(t, 50.0, opts.MinDurationMs)
	assert.Equal(t, 3, opts.CoartWindow)
	assert.True(t, opts.Coarticulation)
}

func TestPerfConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.PerfConfig()
	require.NoError(t, pc.Validate())
	assert.Equal(t, 16.0, pc.Quality.UpdateIntervalMs)
	assert.Equal(t, 33.0, pc.Performance.UpdateIntervalMs)
	assert.Equal(t, 80.0, pc.Performance.BlendDurationMs)
}

func TestLoadVisemeMap(t *testing.T) {
	t.Run("built-in default", func(t *testing.T) {
		cfg := DefaultConfig()
		m, err := cfg.LoadVisemeMap()
		require.NoError(t, err)
		assert.Equal(t, viseme.DefaultCount, m.Count)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Viseme.MapPath = "/nonexistent/map.json"
		_, err := cfg.LoadVisemeMap()
		assert.Error(t, err)
	})
}
