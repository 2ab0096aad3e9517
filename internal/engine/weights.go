package engine

import "github.com/normanking/visemesync/internal/viseme"

// Weights is the renderer-facing output: one slot per viseme category,
// each in [0,1]. Slot order matches the category indices of the
// configured viseme map.
type Weights []float64

// NewWeights returns an all-zero vector of the given length.
func NewWeights(count int) Weights {
	return make(Weights, count)
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	copy(out, w)
	return out
}

// Dominant returns the category with the highest weight and that weight.
func (w Weights) Dominant() (viseme.ID, float64) {
	best := 0
	for i := 1; i < len(w); i++ {
		if w[i] > w[best] {
			best = i
		}
	}
	if len(w) == 0 {
		return 0, 0
	}
	return viseme.ID(best), w[best]
}

// Sum returns the total weight across all slots.
func (w Weights) Sum() float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

// BaseVector builds the pre-coarticulation blend vector for a transition:
// zero everywhere except from (1-eased) and to (eased). When the
// transition has finished only the target slot carries weight.
func BaseVector(from, to viseme.ID, eased float64, count int) Weights {
	w := NewWeights(count)
	if eased >= 1 || from == to {
		w[to] = 1
		return w
	}
	w[from] = 1 - eased
	w[to] = eased
	return w
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
