package blob

import (
	"fmt"
	"math"
	"math/rand"
)

// Distribution samples a non-negative offspring count for one successful
// reproduction event.
type Distribution interface {
	Name() string
	Sample(rng *rand.Rand) int
	Validate() error
}

// Fixed always produces the same offspring count. It consumes no draws.
type Fixed struct {
	Count int
}

func (Fixed) Name() string {
	return "fixed"
}

func (d Fixed) Sample(_ *rand.Rand) int {
	return d.Count
}

func (d Fixed) Validate() error {
	if d.Count < 0 {
		return fmt.Errorf("fixed offspring count must be >= 0, got %d", d.Count)
	}
	return nil
}

// Poisson samples offspring counts from Poisson(Lambda) using Knuth's
// method. The number of draws consumed varies with the sampled value,
// which keeps replay deterministic for a fixed rng stream.
type Poisson struct {
	Lambda float64
}

func (Poisson) Name() string {
	return "poisson"
}

func (d Poisson) Sample(rng *rand.Rand) int {
	if d.Lambda <= 0 {
		return 0
	}
	limit := math.Exp(-d.Lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func (d Poisson) Validate() error {
	if d.Lambda < 0 || math.IsNaN(d.Lambda) || math.IsInf(d.Lambda, 0) {
		return fmt.Errorf("poisson lambda must be a finite value >= 0, got %v", d.Lambda)
	}
	return nil
}

// NewDistribution builds a distribution from its persisted form.
func NewDistribution(kind string, count int, lambda float64) (Distribution, error) {
	switch kind {
	case "", "fixed":
		if count == 0 && kind == "" {
			count = 1
		}
		d := Fixed{Count: count}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	case "poisson":
		d := Poisson{Lambda: lambda}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported offspring distribution: %s", kind)
	}
}
