package spaced_repetition

import (
	"fmt"
	"math"
)

// NumWeights is the number of FSRS model parameters.
const NumWeights = 17

// Weights are the FSRS model parameters w[0..16].
//
//	w[0..3]   initial stability per first rating (Again..Easy)
//	w[4..5]   initial difficulty and its per-rating step
//	w[6]      difficulty step on later reviews
//	w[7]      unused by this model, kept for parameter-set compatibility
//	w[8..10]  stability growth after a successful recall
//	w[11..13] stability after a lapse
//	w[14]     unused by this model, kept for parameter-set compatibility
//	w[15]     Hard penalty, w[16] Easy bonus
type Weights [NumWeights]float64

// DefaultWeights are the validated FSRS-4 default parameters.
var DefaultWeights = Weights{
	0.4, 0.6, 2.4, 5.8, // w[0..3]
	4.93, 0.94, 0.86, 0.01, // w[4..7]
	1.49, 0.14, 0.94, // w[8..10]
	2.18, 0.05, 0.34, 1.26, // w[11..14]
	0.29, 2.61, // w[15..16]
}

// LowerBounds defines the minimum allowed value for each weight.
var LowerBounds = Weights{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.0,
	0.0, 0.0, 0.001,
	0.001, 0.001, 0.001, 0.0,
	0.0, 1.0,
}

// UpperBounds defines the maximum allowed value for each weight.
var UpperBounds = Weights{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5,
	5.0, 0.25, 0.9, 4.0,
	1.0, 6.0,
}

// ValidateWeights checks that every weight is finite and within [LowerBounds, UpperBounds].
func ValidateWeights(w Weights) error {
	for i := 0; i < NumWeights; i++ {
		if math.IsNaN(w[i]) || w[i] < LowerBounds[i] || w[i] > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidWeights, i, w[i], LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// WeightsFromSlice converts a configured list of exactly 17 values into Weights.
func WeightsFromSlice(values []float64) (Weights, error) {
	var w Weights
	if len(values) != NumWeights {
		return w, fmt.Errorf("%w: got %d values, want %d", ErrInvalidWeights, len(values), NumWeights)
	}
	copy(w[:], values)
	return w, ValidateWeights(w)
}
