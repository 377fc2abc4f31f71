package blob

import (
	"fmt"
	"math/rand"
)

// Blob is an immutable trait bundle for one simulated individual. Copies
// are cheap and blobs share no mutable state, so a population is a plain
// slice of values.
type Blob struct {
	Type             string
	SurvivalProb     float64
	ReproductionProb float64
	Offspring        Distribution
}

// Adjustment scales and shifts a trait probability before sampling. The
// adjusted value is clamped to [0,1]. Identity leaves it untouched.
type Adjustment struct {
	Scale  float64
	Offset float64
}

func Identity() Adjustment {
	return Adjustment{Scale: 1}
}

func (a Adjustment) Apply(p float64) float64 {
	return Clamp01(p*a.Scale + a.Offset)
}

// Pressure bundles the per-trait adjustments an environment applies to a
// blob before each draw.
type Pressure struct {
	Survival     Adjustment
	Reproduction Adjustment
}

func NoPressure() Pressure {
	return Pressure{Survival: Identity(), Reproduction: Identity()}
}

// DrawsSurvival reports whether the blob survives one mortality event.
// It consumes exactly one draw from rng.
func (b Blob) DrawsSurvival(rng *rand.Rand, pressure Pressure) bool {
	return rng.Float64() < pressure.Survival.Apply(b.SurvivalProb)
}

// AttemptReproduction rolls the reproduction event and, on success, samples
// the offspring count from the blob's distribution. It consumes one draw
// for the event itself; a successful event additionally consumes the
// distribution's draws and, per offspring, the mutator's draws. Offspring
// inherit the parent's traits exactly unless a mutator is supplied.
func (b Blob) AttemptReproduction(rng *rand.Rand, pressure Pressure, mutator Mutator) []Blob {
	if rng.Float64() >= pressure.Reproduction.Apply(b.ReproductionProb) {
		return nil
	}
	count := b.offspring().Sample(rng)
	if count <= 0 {
		return nil
	}
	children := make([]Blob, 0, count)
	for i := 0; i < count; i++ {
		child := b
		if mutator != nil {
			child = mutator.Mutate(rng, child)
		}
		children = append(children, child)
	}
	return children
}

func (b Blob) offspring() Distribution {
	if b.Offspring == nil {
		return Fixed{Count: 1}
	}
	return b.Offspring
}

func (b Blob) Validate() error {
	if b.SurvivalProb < 0 || b.SurvivalProb > 1 {
		return fmt.Errorf("survival probability out of range [0,1]: %v", b.SurvivalProb)
	}
	if b.ReproductionProb < 0 || b.ReproductionProb > 1 {
		return fmt.Errorf("reproduction probability out of range [0,1]: %v", b.ReproductionProb)
	}
	if b.Offspring != nil {
		if err := b.Offspring.Validate(); err != nil {
			return fmt.Errorf("offspring distribution: %w", err)
		}
	}
	return nil
}

func (b Blob) String() string {
	return fmt.Sprintf("%s(s=%v,r=%v)", b.Type, b.SurvivalProb, b.ReproductionProb)
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
