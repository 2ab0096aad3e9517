package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/normanking/visemesync/internal/clock"
	"github.com/normanking/visemesync/internal/engine"
)

// previewCmd runs a timeline offline against a manual clock and prints
// the dominant category per step. No server, no TTS, no wall time.
var previewCmd = &cobra.Command{
	Use:   "preview <timeline.json>",
	Short: "Step through a timeline file and print the weight trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		stepMs, _ := cmd.Flags().GetFloat64("step")
		if stepMs <= 0 {
			stepMs = 16
		}

		tl, err := a.loadTimelineFile(args[0])
		if err != nil {
			return err
		}

		clk := clock.NewManualClock(tl.StartMs())
		eng, err := engine.New(a.cfg.EngineConfig(), clk, a.mod, nil, a.log.Zerolog())
		if err != nil {
			return err
		}
		if err := eng.Load(tl); err != nil {
			return err
		}

		fmt.Printf("%8s  %-4s  %-8s  %s\n", "t(ms)", "cat", "weight", "vector")
		for t := tl.StartMs(); t <= tl.EndMs()+200; t += stepMs {
			clk.Set(t)
			w := eng.Tick()
			id, weight := w.Dominant()
			fmt.Printf("%8.0f  %-4d  %-8.3f  %s\n", t, id, weight, sparkline(w))
		}
		return nil
	},
}

// sparkline renders a weight vector as one glyph per category.
func sparkline(w engine.Weights) string {
	glyphs := []rune(" .:-=+*#%@")
	out := make([]rune, len(w))
	for i, v := range w {
		idx := int(v * float64(len(glyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(glyphs) {
			idx = len(glyphs) - 1
		}
		out[i] = glyphs[idx]
	}
	return string(out)
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().Float64("step", 16, "Tick step in milliseconds")
}
