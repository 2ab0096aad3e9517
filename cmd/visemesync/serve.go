package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/normanking/visemesync/internal/bus"
	"github.com/normanking/visemesync/internal/metrics"
	"github.com/normanking/visemesync/internal/session"
	"github.com/normanking/visemesync/internal/sink"
	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// serveCmd runs the synchronization session and streams weight frames to
// websocket clients until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and stream weight frames over websocket",
	Long: `Starts the output server and the synchronization session. Renderer
clients connect to /ws and receive one weight vector per tick. An initial
utterance can be supplied as a timeline file or as text for the TTS server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		timelinePath, _ := cmd.Flags().GetString("timeline")
		text, _ := cmd.Flags().GetString("text")
		loop, _ := cmd.Flags().GetBool("loop")

		log := a.log.Component("serve")

		tl, err := initialTimeline(cmd, a, timelinePath, text)
		if err != nil {
			return err
		}

		if a.cfg.Viseme.Watch && a.cfg.Viseme.MapPath != "" {
			watcher, err := viseme.NewWatcher(a.cfg.Viseme.MapPath, a.log.Zerolog())
			if err != nil {
				return err
			}
			defer watcher.Close()
			watcher.SetOnReload(func(m *viseme.Map) { a.vmap = m })
		}

		met := metrics.New()
		ws := sink.NewWSServer(addr, met.Handler(), a.log.Zerolog())

		sess, err := session.New(a.eng, a.clk, ws, a.perf, met, a.bus, a.log.Zerolog())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- ws.Start() }()
		go func() { _ = sess.Run(ctx) }()

		if tl != nil {
			if loop {
				a.bus.Subscribe(bus.EventTypePlaybackEnded, func(bus.Event) {
					sess.Play(tl)
				})
			}
			sess.Play(tl)
		}

		log.Info().Str("addr", addr).Msg("Serving; press Ctrl+C to stop")

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("output server: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return ws.Shutdown(shutdownCtx)
	},
}

func initialTimeline(cmd *cobra.Command, a *app, timelinePath, text string) (*timeline.Timeline, error) {
	switch {
	case timelinePath != "":
		return a.loadTimelineFile(timelinePath)
	case text != "":
		result, err := a.synthClient().Synthesize(cmd.Context(), text)
		if err != nil {
			return nil, err
		}
		return timeline.Build(result.Timings, a.vmap, a.cfg.TimelineOptions())
	default:
		return nil, nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().String("timeline", "", "JSON timeline file to play on start")
	serveCmd.Flags().String("text", "", "Text to synthesize and play on start")
	serveCmd.Flags().Bool("loop", false, "Replay the utterance when it ends")
}
