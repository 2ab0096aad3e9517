// Package sink defines the renderer-facing output contract: an ordered
// vector of weights in [0,1], one slot per viseme category, refreshed
// every tick with latest-value-wins semantics.
package sink

import "github.com/normanking/visemesync/internal/engine"

// Frame is one tick's output.
type Frame struct {
	Seq     uint64         `json:"seq"`
	TimeMs  float64        `json:"t"`
	Weights engine.Weights `json:"weights"`
}

// Sink consumes weight frames. Implementations must not block the tick
// loop; a slow consumer drops frames rather than buffering them.
type Sink interface {
	Consume(Frame)
}

// FuncSink adapts a function to the Sink interface.
type FuncSink func(Frame)

// Consume implements Sink.
func (f FuncSink) Consume(frame Frame) { f(frame) }

// Multi fans one frame out to several sinks.
type Multi []Sink

// Consume implements Sink.
func (m Multi) Consume(frame Frame) {
	for _, s := range m {
		s.Consume(frame)
	}
}
