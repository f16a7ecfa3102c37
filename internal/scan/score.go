package scan

import (
	"context"
	"math"
)

// Scorer computes a raw maliciousness score for a fixed-length token window.
// Implementations must be stateless from the engine's perspective and safe
// for unlimited concurrent calls. The engine, not the scorer, turns the raw
// score into a probability.
type Scorer interface {
	Name() string
	Score(ctx context.Context, tokens []int) (float64, error)
}

// MinTemperature is the floor applied before the logistic transform so a
// zero or negative configured temperature cannot divide by zero.
const MinTemperature = 1e-6

// Probability applies temperature scaling and the logistic transform to a
// raw score. Temperatures below 1 sharpen confidence, above 1 soften it.
func Probability(raw, temperature float64) float64 {
	if temperature < MinTemperature {
		temperature = MinTemperature
	}
	return 1 / (1 + math.Exp(-raw/temperature))
}
