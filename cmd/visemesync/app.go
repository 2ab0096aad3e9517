package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/visemesync/internal/bus"
	"github.com/normanking/visemesync/internal/clock"
	"github.com/normanking/visemesync/internal/config"
	"github.com/normanking/visemesync/internal/emotion"
	"github.com/normanking/visemesync/internal/engine"
	"github.com/normanking/visemesync/internal/logging"
	"github.com/normanking/visemesync/internal/perf"
	"github.com/normanking/visemesync/internal/synth"
	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// app bundles the wired components shared by the serve and speak commands.
type app struct {
	cfg *config.Config
	log *logging.Logger

	vmap *viseme.Map
	mod  *emotion.Modulator
	perf *perf.Controller
	clk  *clock.WallClock
	eng  *engine.Engine
	bus  *bus.EventBus
}

// newApp loads configuration and builds the synchronization stack.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Logging.Level)
	logCfg.Console = cfg.Logging.Console
	if noFile, _ := cmd.Flags().GetBool("no-log-file"); noFile {
		logCfg.NoFile = true
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	vmap, err := cfg.LoadVisemeMap()
	if err != nil {
		logger.Close()
		return nil, err
	}

	var mod *emotion.Modulator
	if cfg.Emotion.Enabled {
		mod = emotion.NewModulator(vmap, cfg.Emotion.Influence, logger.Zerolog())
	}

	var pc *perf.Controller
	if cfg.Perf.Enabled {
		pc = perf.NewController(cfg.PerfConfig(), logger.Zerolog())
	}

	clk := clock.NewWallClock()
	eng, err := engine.New(cfg.EngineConfig(), clk, mod, pc, logger.Zerolog())
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &app{
		cfg:  cfg,
		log:  logger,
		vmap: vmap,
		mod:  mod,
		perf: pc,
		clk:  clk,
		eng:  eng,
		bus:  bus.NewEventBus(),
	}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}

// synthClient builds the TTS client from config.
func (a *app) synthClient() *synth.Client {
	return synth.NewClient(
		a.cfg.Synth.ServerURL,
		a.cfg.Synth.Speed,
		time.Duration(a.cfg.Synth.TimeoutS)*time.Second,
		a.log.Zerolog(),
	)
}

// loadTimelineFile reads a JSON array of phoneme intervals and builds a
// timeline against the app's viseme map.
func (a *app) loadTimelineFile(path string) (*timeline.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline %s: %w", path, err)
	}
	var raw []timeline.RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse timeline %s: %w", path, err)
	}
	return timeline.Build(raw, a.vmap, a.cfg.TimelineOptions())
}
