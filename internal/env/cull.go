package env

import (
	"math/rand"

	"blobsim/internal/blob"
)

// CullPolicy trims an over-capacity population down to the limit. The
// removal must be an explicit draw on the trial's rng so replay stays
// deterministic and no trait is silently favored by slice order.
type CullPolicy interface {
	Name() string
	Cull(rng *rand.Rand, population []blob.Blob, capacity int) []blob.Blob
}

// UniformCull removes individuals uniformly at random without
// replacement until the population fits. This is the default policy.
type UniformCull struct{}

func (UniformCull) Name() string {
	return "uniform"
}

func (UniformCull) Cull(rng *rand.Rand, population []blob.Blob, capacity int) []blob.Blob {
	if capacity <= 0 {
		return population[:0]
	}
	if len(population) <= capacity {
		return population
	}
	// Partial Fisher-Yates: the first `capacity` slots end up holding a
	// uniform sample without replacement.
	for i := 0; i < capacity; i++ {
		j := i + rng.Intn(len(population)-i)
		population[i], population[j] = population[j], population[i]
	}
	return population[:capacity]
}

// SurvivalWeightedCull removes individuals with probability proportional
// to their frailty (one minus effective survival probability), so hardier
// traits are likelier to persist through an overflow. Provided as the
// trait-weighted alternative to UniformCull.
type SurvivalWeightedCull struct{}

func (SurvivalWeightedCull) Name() string {
	return "survival_weighted"
}

func (SurvivalWeightedCull) Cull(rng *rand.Rand, population []blob.Blob, capacity int) []blob.Blob {
	if capacity <= 0 {
		return population[:0]
	}
	for len(population) > capacity {
		total := 0.0
		for _, b := range population {
			total += frailty(b)
		}
		pick := rng.Float64() * total
		victim := len(population) - 1
		acc := 0.0
		for i, b := range population {
			acc += frailty(b)
			if pick < acc {
				victim = i
				break
			}
		}
		population[victim] = population[len(population)-1]
		population = population[:len(population)-1]
	}
	return population
}

// frailty keeps a small floor so perfect survivors remain cullable.
func frailty(b blob.Blob) float64 {
	return 1 - b.SurvivalProb + 1e-9
}
