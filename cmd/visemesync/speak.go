package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/visemesync/internal/bus"
	"github.com/normanking/visemesync/internal/emotion"
	"github.com/normanking/visemesync/internal/metrics"
	"github.com/normanking/visemesync/internal/session"
	"github.com/normanking/visemesync/internal/sink"
	"github.com/normanking/visemesync/internal/timeline"
)

const shutdownTimeout = 3 * time.Second

// speakCmd synthesizes one utterance and plays it through a session,
// exiting when playback ends.
var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Synthesize text and play it as one lip-sync session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		text := strings.Join(args, " ")
		emotionLabel, _ := cmd.Flags().GetString("emotion")
		intensity, _ := cmd.Flags().GetFloat64("intensity")
		audioOut, _ := cmd.Flags().GetString("audio-out")

		log := a.log.Component("speak")

		client := a.synthClient()
		if err := client.Health(cmd.Context()); err != nil {
			return fmt.Errorf("TTS server not ready: %w", err)
		}

		result, err := client.Synthesize(cmd.Context(), text)
		if err != nil {
			return err
		}
		if audioOut != "" {
			if err := os.WriteFile(audioOut, result.Audio, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			log.Info().Str("path", audioOut).Int("bytes", len(result.Audio)).Msg("Audio written")
		}

		tl, err := timeline.Build(result.Timings, a.vmap, a.cfg.TimelineOptions())
		if err != nil {
			return err
		}

		if a.mod != nil && emotionLabel != "" {
			a.mod.SetEmotion(emotion.Label(emotionLabel), intensity)
		}

		met := metrics.New()
		ws := sink.NewWSServer(a.cfg.Server.Addr, met.Handler(), a.log.Zerolog())

		sess, err := session.New(a.eng, a.clk, ws, a.perf, met, a.bus, a.log.Zerolog())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ended := make(chan struct{}, 1)
		a.bus.Subscribe(bus.EventTypePlaybackEnded, func(bus.Event) {
			ended <- struct{}{}
		})

		go func() { _ = ws.Start() }()
		go func() { _ = sess.Run(ctx) }()

		sess.Play(tl)
		log.Info().
			Int("phonemes", len(result.Timings)).
			Float64("durationMs", result.DurationMs).
			Msg("Playback started")

		select {
		case <-ended:
			log.Info().Msg("Playback finished")
		case <-ctx.Done():
			log.Info().Msg("Interrupted")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return ws.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(speakCmd)
	speakCmd.Flags().String("emotion", "", "Emotion label applied during playback")
	speakCmd.Flags().Float64("intensity", 0.7, "Emotion intensity, 0..1")
	speakCmd.Flags().String("audio-out", "", "Write synthesized audio to this file")
}
