// Package config provides configuration management for visemesync
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/normanking/visemesync/internal/engine"
	"github.com/normanking/visemesync/internal/perf"
	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// Config holds all application configuration
type Config struct {
	Viseme  VisemeConfig  `mapstructure:"viseme"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Emotion EmotionConfig `mapstructure:"emotion"`
	Perf    PerfConfig    `mapstructure:"perf"`
	Synth   SynthConfig   `mapstructure:"synth"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// VisemeConfig configures the category set and phoneme map
type VisemeConfig struct {
	Count   int    `mapstructure:"count"`
	Neutral int    `mapstructure:"neutral"`
	MapPath string `mapstructure:"map_path"` // JSON phoneme map; empty uses the built-in table
	Watch   bool   `mapstructure:"watch"`    // hot-reload the map file on change
}

// SyncConfig configures the synchronization engine
type SyncConfig struct {
	LookaheadMs          float64 `mapstructure:"lookahead_ms"`
	BlendDurationMs      float64 `mapstructure:"blend_duration_ms"`
	MinEventDurationMs   float64 `mapstructure:"min_event_duration_ms"`
	SmoothingRate        float64 `mapstructure:"smoothing_rate"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"`
	LowConfidenceStretch float64 `mapstructure:"low_confidence_stretch"`
	Coarticulation       bool    `mapstructure:"coarticulation"`
	CoartWindow          int     `mapstructure:"coart_window"`
	CoartDecayMs         float64 `mapstructure:"coart_decay_ms"`
	CoartStrength        float64 `mapstructure:"coart_strength"`
}

// EmotionConfig configures the emotion modulator
type EmotionConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Influence float64 `mapstructure:"influence"` // 0-1, how far modulation pulls weights
}

// PerfConfig configures the adaptive performance controller
type PerfConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	LowWaterTPS      float64 `mapstructure:"low_water_tps"`
	HighWaterTPS     float64 `mapstructure:"high_water_tps"`
	StreakLen        int     `mapstructure:"streak_len"`
	QualityIntervalMs float64 `mapstructure:"quality_interval_ms"`
	QualityBlendMs    float64 `mapstructure:"quality_blend_ms"`
	PerfIntervalMs    float64 `mapstructure:"perf_interval_ms"`
	PerfBlendMs       float64 `mapstructure:"perf_blend_ms"`
}

// SynthConfig configures the upstream TTS server client
type SynthConfig struct {
	ServerURL string  `mapstructure:"server_url"`
	Speed     float64 `mapstructure:"speed"`
	TimeoutS  int     `mapstructure:"timeout_s"`
}

// ServerConfig configures the renderer-facing output server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Viseme: VisemeConfig{
			Count:   viseme.DefaultCount,
			Neutral: int(viseme.Silence),
			MapPath: "",
			Watch:   false,
		},
		Sync: SyncConfig{
			LookaheadMs:          60,
			BlendDurationMs:      120,
			MinEventDurationMs:   50,
			SmoothingRate:        12,
			ConfidenceThreshold:  0.5,
			LowConfidenceStretch: 1.5,
			Coarticulation:       true,
			CoartWindow:          3,
			CoartDecayMs:         120,
			CoartStrength:        0.3,
		},
		Emotion: EmotionConfig{
			Enabled:   true,
			Influence: 0.6,
		},
		Perf: PerfConfig{
			Enabled:           true,
			LowWaterTPS:       30,
			HighWaterTPS:      55,
			StreakLen:         5,
			QualityIntervalMs: 16,
			QualityBlendMs:    120,
			PerfIntervalMs:    33,
			PerfBlendMs:       80,
		},
		Synth: SynthConfig{
			ServerURL: "http://localhost:5000",
			Speed:     1.0,
			TimeoutS:  30,
		},
		Server: ServerConfig{
			Addr: "localhost:7717",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".visemesync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("VISEMESYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".visemesync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("viseme", cfg.Viseme)
	viper.Set("sync", cfg.Sync)
	viper.Set("emotion", cfg.Emotion)
	viper.Set("perf", cfg.Perf)
	viper.Set("synth", cfg.Synth)
	viper.Set("server", cfg.Server)
	viper.Set("logging", cfg.Logging)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// Validate fails fast on configuration errors; these are programming or
// deployment mistakes and must never surface at tick time.
func (c *Config) Validate() error {
	if c.Viseme.Count <= 0 {
		return fmt.Errorf("config: viseme.count must be positive")
	}
	if c.Viseme.Neutral < 0 || c.Viseme.Neutral >= c.Viseme.Count {
		return fmt.Errorf("config: viseme.neutral %d outside [0,%d)", c.Viseme.Neutral, c.Viseme.Count)
	}
	if c.Emotion.Influence < 0 || c.Emotion.Influence > 1 {
		return fmt.Errorf("config: emotion.influence must be in [0,1]")
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	if c.Perf.Enabled {
		if err := c.PerfConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EngineConfig converts the sync section to an engine configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		VisemeCount:          c.Viseme.Count,
		Neutral:              viseme.ID(c.Viseme.Neutral),
		LookaheadMs:          c.Sync.LookaheadMs,
		BlendDurationMs:      c.Sync.BlendDurationMs,
		SmoothingRate:        c.Sync.SmoothingRate,
		ConfidenceThreshold:  c.Sync.ConfidenceThreshold,
		LowConfidenceStretch: c.Sync.LowConfidenceStretch,
		Coarticulation:       c.Sync.Coarticulation,
		EmotionBias:          c.Emotion.Enabled,
	}
}

// TimelineOptions converts the sync section to timeline build options.
func (c *Config) TimelineOptions() timeline.Options {
	return timeline.Options{
		MinDurationMs:  c.Sync.MinEventDurationMs,
		CoartWindow:    c.Sync.CoartWindow,
		CoartDecayMs:   c.Sync.CoartDecayMs,
		CoartStrength:  c.Sync.CoartStrength,
		Coarticulation: c.Sync.Coarticulation,
	}
}

// PerfConfig converts the perf section to a controller configuration.
func (c *Config) PerfConfig() perf.Config {
	return perf.Config{
		LowWaterTPS:  c.Perf.LowWaterTPS,
		HighWaterTPS: c.Perf.HighWaterTPS,
		StreakLen:    c.Perf.StreakLen,
		Quality: perf.Params{
			UpdateIntervalMs: c.Perf.QualityIntervalMs,
			BlendDurationMs:  c.Perf.QualityBlendMs,
		},
		Performance: perf.Params{
			UpdateIntervalMs: c.Perf.PerfIntervalMs,
			BlendDurationMs:  c.Perf.PerfBlendMs,
		},
	}
}

// LoadVisemeMap resolves the configured viseme map: the built-in default
// table or a JSON file.
func (c *Config) LoadVisemeMap() (*viseme.Map, error) {
	if c.Viseme.MapPath == "" {
		m := viseme.DefaultMap()
		m.Count = c.Viseme.Count
		m.Neutral = viseme.ID(c.Viseme.Neutral)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	}
	m, err := viseme.LoadMap(c.Viseme.MapPath)
	if err != nil {
		return nil, err
	}
	if m.Count != c.Viseme.Count {
		return nil, fmt.Errorf("config: viseme map %s has %d categories, renderer expects %d",
			c.Viseme.MapPath, m.Count, c.Viseme.Count)
	}
	return m, nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".visemesync"), nil
}
