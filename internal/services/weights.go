package services

import (
	"fmt"
	"math"

	"flood-risk-aggregator/internal/models"
)

const weightTolerance = 0.001

// Weights are the base contribution of each provider before renormalization.
type Weights map[models.ProviderKind]float64

func DefaultWeights() Weights {
	return Weights{
		models.Weather:            0.3,
		models.Elevation:          0.3,
		models.Infrastructure:     0.2,
		models.GovernmentRegistry: 0.2,
	}
}

// Validate requires a non-negative weight for every provider kind, summing to 1.
func (w Weights) Validate() error {
	sum := 0.0
	for _, kind := range models.ProviderKinds() {
		v, ok := w[kind]
		if !ok {
			return fmt.Errorf("weights: missing weight for %s", kind)
		}
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("weights: %s weight %v is negative", kind, v)
		}
		sum += v
	}
	for kind := range w {
		if !kind.Valid() {
			return fmt.Errorf("weights: unknown provider %s", kind)
		}
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights: sum to %v, want 1", sum)
	}
	return nil
}

// Renormalize scales the weights of the available kinds so they sum to 1 and
// returns them with the base weight they covered. Kinds whose base weights are
// all zero share equally.
func (w Weights) Renormalize(available []models.ProviderKind) (map[models.ProviderKind]float64, float64) {
	out := make(map[models.ProviderKind]float64, len(available))
	if len(available) == 0 {
		return out, 0
	}

	coverage := 0.0
	for _, kind := range available {
		coverage += w[kind]
	}
	for _, kind := range available {
		if coverage > 0 {
			out[kind] = w[kind] / coverage
		} else {
			out[kind] = 1 / float64(len(available))
		}
	}
	return out, coverage
}
