// Package timeline normalizes raw phoneme timing data into a validated,
// sorted sequence of timed viseme events and answers "what is playing now"
// queries against a live playback clock.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/normanking/visemesync/internal/viseme"
)

// Common errors
var (
	ErrEmptyTimeline = errors.New("timeline: no events")
	ErrNilMap        = errors.New("timeline: nil viseme map")
)

// RawEvent is a phoneme interval as delivered by the speech synthesizer.
// Timing is milliseconds from utterance start. Confidence is optional;
// zero means "not reported" and is treated as full confidence.
type RawEvent struct {
	Symbol     string  `json:"phoneme"`
	StartMs    float64 `json:"start_ms"`
	EndMs      float64 `json:"end_ms"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Influence is a precomputed coarticulation contribution from a
// temporally nearby event.
type Influence struct {
	Category viseme.ID
	Weight   float64
}

// TimedEvent is a validated, repaired timeline entry.
type TimedEvent struct {
	Symbol     string
	Category   viseme.ID
	StartMs    float64
	EndMs      float64
	DurationMs float64
	Confidence float64

	// Influences from neighboring events, computed once at build time.
	Influences []Influence
}

func (e *TimedEvent) contains(t float64) bool {
	return t >= e.StartMs && t < e.EndMs
}

func (e *TimedEvent) midpoint() float64 {
	return (e.StartMs + e.EndMs) / 2
}

// Options tune timeline construction. Zero values select the defaults.
type Options struct {
	MinDurationMs  float64 // floor applied to degenerate events (default 50)
	CoartWindow    int     // neighbor events considered on each side (default 3)
	CoartDecayMs   float64 // exponential decay constant (default 120)
	CoartStrength  float64 // base influence strength (default 0.3)
	Coarticulation bool    // compute neighbor influences
}

// DefaultOptions returns the standard construction options.
func DefaultOptions() Options {
	return Options{
		MinDurationMs:  50,
		CoartWindow:    3,
		CoartDecayMs:   120,
		CoartStrength:  0.3,
		Coarticulation: true,
	}
}

func (o *Options) fill() {
	if o.MinDurationMs <= 0 {
		o.MinDurationMs = 50
	}
	if o.CoartWindow <= 0 {
		o.CoartWindow = 3
	}
	if o.CoartDecayMs <= 0 {
		o.CoartDecayMs = 120
	}
	if o.CoartStrength <= 0 {
		o.CoartStrength = 0.3
	}
}

// Timeline is an immutable, sorted, validated sequence of timed viseme
// events for one utterance. Build it once per utterance and discard it
// when the utterance ends.
type Timeline struct {
	Events []TimedEvent
}

// Build maps raw phoneme intervals through the viseme map, repairs
// per-event anomalies, sorts by start time, and precomputes
// coarticulation influences. Upstream timing is inherently noisy, so
// individual anomalies are corrected rather than rejected; only
// structurally unusable input fails.
func Build(raw []RawEvent, vmap *viseme.Map, opts Options) (*Timeline, error) {
	if vmap == nil {
		return nil, ErrNilMap
	}
	if len(raw) == 0 {
		return nil, ErrEmptyTimeline
	}
	opts.fill()

	events := make([]TimedEvent, 0, len(raw))
	for _, r := range raw {
		start := r.StartMs
		end := r.EndMs
		if math.IsNaN(start) || math.IsInf(start, 0) {
			start = 0
		}
		if start < 0 {
			start = 0
		}
		// Degenerate or inverted intervals get a minimum-duration window
		// anchored at the original start.
		if math.IsNaN(end) || math.IsInf(end, 0) {
			end = start
		}
		if !(end > start) || end-start < opts.MinDurationMs {
			end = start + opts.MinDurationMs
		}

		conf := r.Confidence
		if conf <= 0 || conf > 1 {
			conf = 1
		}

		events = append(events, TimedEvent{
			Symbol:     r.Symbol,
			Category:   vmap.Lookup(r.Symbol),
			StartMs:    start,
			EndMs:      end,
			DurationMs: end - start,
			Confidence: conf,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartMs < events[j].StartMs
	})

	tl := &Timeline{Events: events}
	if opts.Coarticulation {
		tl.computeInfluences(opts)
	}
	return tl, nil
}

// computeInfluences derives neighbor-influence weights once per build.
// weight = strength * exp(-|dt| / decay), dt measured between event
// midpoints. Silence neighbors contribute nothing; there is no mouth
// shape to leak.
func (tl *Timeline) computeInfluences(opts Options) {
	for i := range tl.Events {
		ev := &tl.Events[i]
		lo := i - opts.CoartWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + opts.CoartWindow
		if hi > len(tl.Events)-1 {
			hi = len(tl.Events) - 1
		}

		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			n := &tl.Events[j]
			if n.Category == ev.Category {
				continue
			}
			dt := math.Abs(n.midpoint() - ev.midpoint())
			w := opts.CoartStrength * math.Exp(-dt/opts.CoartDecayMs)
			if w <= 0 {
				continue
			}
			ev.Influences = append(ev.Influences, Influence{Category: n.Category, Weight: w})
		}
	}
}

// StartMs returns the start of the first event.
func (tl *Timeline) StartMs() float64 {
	if len(tl.Events) == 0 {
		return 0
	}
	return tl.Events[0].StartMs
}

// EndMs returns the end of the last event.
func (tl *Timeline) EndMs() float64 {
	end := 0.0
	for i := range tl.Events {
		if tl.Events[i].EndMs > end {
			end = tl.Events[i].EndMs
		}
	}
	return end
}

// String summarizes the timeline for diagnostics.
func (tl *Timeline) String() string {
	return fmt.Sprintf("timeline[%d events, %.0f..%.0fms]", len(tl.Events), tl.StartMs(), tl.EndMs())
}
