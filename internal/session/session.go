// Package session runs the tick loop: clock in, engine tick, frames out,
// with adaptive cadence and lifecycle events on the bus. Timeline loads
// and stops are applied between ticks, never mid-tick.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/visemesync/internal/bus"
	"github.com/normanking/visemesync/internal/clock"
	"github.com/normanking/visemesync/internal/engine"
	"github.com/normanking/visemesync/internal/metrics"
	"github.com/normanking/visemesync/internal/perf"
	"github.com/normanking/visemesync/internal/sink"
	"github.com/normanking/visemesync/internal/timeline"
)

// endLingerMs keeps the session ticking past the last event so the final
// cross-fade to neutral can settle before playback.ended fires.
const endLingerMs = 250

// PlaybackClock is the controllable side of the audio clock the session
// drives. The engine itself only ever reads it.
type PlaybackClock interface {
	clock.Clock
	Start(offsetMs float64)
	Stop()
}

// Session owns one synchronization run: an engine, its clock, and the
// output sink. All engine access happens on the Run goroutine.
type Session struct {
	eng  *engine.Engine
	clk  PlaybackClock
	out  sink.Sink
	perf *perf.Controller
	met  *metrics.Metrics
	bus  *bus.EventBus
	log  zerolog.Logger

	ctrl chan func()
	seq  uint64
}

// New creates a session. perf controller, metrics, and bus are optional.
func New(eng *engine.Engine, clk PlaybackClock, out sink.Sink, pc *perf.Controller, met *metrics.Metrics, eb *bus.EventBus, logger zerolog.Logger) (*Session, error) {
	if eng == nil || clk == nil || out == nil {
		return nil, fmt.Errorf("session: engine, clock, and sink are required")
	}
	return &Session{
		eng:  eng,
		clk:  clk,
		out:  out,
		perf: pc,
		met:  met,
		bus:  eb,
		log:  logger.With().Str("component", "session").Logger(),
		ctrl: make(chan func(), 8),
	}, nil
}

// Play loads a timeline and starts the clock at the next tick boundary.
func (s *Session) Play(tl *timeline.Timeline) {
	s.ctrl <- func() {
		if err := s.eng.Load(tl); err != nil {
			s.log.Error().Err(err).Msg("Timeline load rejected")
			return
		}
		s.clk.Start(0)
		if s.met != nil {
			s.met.TimelineLoads.Inc()
		}
		s.publish(bus.EventTypeTimelineLoaded, map[string]any{
			"events": len(tl.Events),
			"endMs":  tl.EndMs(),
		})
		s.publish(bus.EventTypePlaybackStarted, nil)
	}
}

// Stop halts playback and forces the neutral vector on the next tick.
func (s *Session) Stop() {
	s.ctrl <- func() {
		s.stopPlayback(bus.EventTypePlaybackStopped)
	}
}

// Unload stops playback and drops the timeline.
func (s *Session) Unload() {
	s.ctrl <- func() {
		s.clk.Stop()
		s.eng.Unload()
		s.emitFrame()
		s.publish(bus.EventTypeTimelineCleared, nil)
	}
}

// Run ticks until the context is canceled. It re-arms its ticker when
// the performance profile changes the update interval.
func (s *Session) Run(ctx context.Context) error {
	interval := s.updateInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProfile := s.currentProfile()
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.stopPlayback(bus.EventTypePlaybackStopped)
			return ctx.Err()

		case cmd := <-s.ctrl:
			cmd()

		case now := <-ticker.C:
			start := time.Now()
			s.tickOnce()
			processing := time.Since(start)
			wallDelta := now.Sub(lastTick)
			lastTick = now

			if s.perf != nil {
				s.perf.RecordTick(
					float64(processing)/float64(time.Millisecond),
					float64(wallDelta)/float64(time.Millisecond),
				)
				if s.met != nil {
					s.met.TickRate.Set(s.perf.TickRate())
				}
				if p := s.perf.Profile(); p != lastProfile {
					lastProfile = p
					ni := s.updateInterval()
					ticker.Reset(ni)
					if s.met != nil {
						s.met.Profile.Set(float64(p))
					}
					s.publish(bus.EventTypeProfileChanged, map[string]any{
						"profile":    p.String(),
						"intervalMs": float64(ni) / float64(time.Millisecond),
					})
				}
			}
			if s.met != nil {
				s.met.TickDuration.Observe(processing.Seconds())
			}
		}
	}
}

func (s *Session) tickOnce() {
	tl := s.eng.Timeline()

	s.emitFrame()

	// End of playback: the clock ran past the last event. Emit an
	// explicit terminal event instead of holding a completion callback.
	if tl != nil && s.clk.Playing() && s.clk.NowMs() > tl.EndMs()+endLingerMs {
		s.stopPlayback(bus.EventTypePlaybackEnded)
	}
}

func (s *Session) emitFrame() {
	weights := s.eng.Tick()
	s.seq++
	s.out.Consume(sink.Frame{
		Seq:     s.seq,
		TimeMs:  s.clk.NowMs(),
		Weights: weights,
	})
	if s.met != nil {
		s.met.FramesSent.Inc()
	}
}

func (s *Session) stopPlayback(event bus.EventType) {
	wasPlaying := s.clk.Playing()
	s.clk.Stop()
	s.eng.Stop()
	s.emitFrame()
	if wasPlaying {
		s.publish(event, nil)
	}
}

func (s *Session) updateInterval() time.Duration {
	ms := 16.0
	if s.perf != nil {
		ms = s.perf.Params().UpdateIntervalMs
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func (s *Session) currentProfile() perf.Profile {
	if s.perf != nil {
		return s.perf.Profile()
	}
	return perf.ProfileQuality
}

func (s *Session) publish(t bus.EventType, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Type: t, Data: data})
}
