package statemachine

import "math/rand"

// Rand is the uniform sampler consumed by the scheduler. Each actor owns one
// seeded instance, which is what makes runs reproducible.
type Rand interface {
	// Float64 returns a uniform sample in [0.0, 1.0).
	Float64() float64
}

// NewRand creates a seeded uniform sampler.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // Reproducible simulation sampling, not security
}

// weightedIndex samples one index from transitions proportionally to weight.
// Transitions with weight 0 are never picked here; callers must handle the
// single-enabled case (where weight is ignored) before sampling. Returns -1
// when no transition carries positive weight.
func weightedIndex(rng Rand, transitions []*Transition) int {
	var total float64

	for _, tr := range transitions {
		total += tr.weight
	}

	if total <= 0 {
		return -1
	}

	sample := rng.Float64() * total

	for i, tr := range transitions {
		if tr.weight <= 0 {
			continue
		}

		sample -= tr.weight
		if sample < 0 {
			return i
		}
	}

	// Floating point slack: fall back to the last positively weighted entry.
	for i := len(transitions) - 1; i >= 0; i-- {
		if transitions[i].weight > 0 {
			return i
		}
	}

	return -1
}
