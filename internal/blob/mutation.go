package blob

import (
	"fmt"
	"math/rand"
)

// Mutator perturbs the traits a child inherits from its parent. Mutation
// is an optional hook: a nil mutator means offspring are exact copies.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, child Blob) Blob
}

// JitterMutator perturbs each probability trait independently with
// Gaussian noise and clamps the result to [0,1]. Consumes two draws per
// offspring.
type JitterMutator struct {
	StdDev float64
}

func (JitterMutator) Name() string {
	return "jitter"
}

func (m JitterMutator) Mutate(rng *rand.Rand, child Blob) Blob {
	child.SurvivalProb = Clamp01(child.SurvivalProb + rng.NormFloat64()*m.StdDev)
	child.ReproductionProb = Clamp01(child.ReproductionProb + rng.NormFloat64()*m.StdDev)
	return child
}

func (m JitterMutator) Validate() error {
	if m.StdDev < 0 {
		return fmt.Errorf("jitter stddev must be >= 0, got %v", m.StdDev)
	}
	return nil
}

// TypeMutator replaces the child with a distinct variant blob with the
// given probability, mirroring mutation into a separate lineage rather
// than trait jitter. Consumes one draw per offspring.
type TypeMutator struct {
	Prob    float64
	Variant Blob
}

func (TypeMutator) Name() string {
	return "type"
}

func (m TypeMutator) Mutate(rng *rand.Rand, child Blob) Blob {
	if rng.Float64() < m.Prob {
		return m.Variant
	}
	return child
}

func (m TypeMutator) Validate() error {
	if m.Prob < 0 || m.Prob > 1 {
		return fmt.Errorf("mutation probability out of range [0,1]: %v", m.Prob)
	}
	if err := m.Variant.Validate(); err != nil {
		return fmt.Errorf("mutation variant: %w", err)
	}
	return nil
}

// ValidateMutator checks a mutator's parameters when it exposes a
// Validate method. Nil mutators are valid.
func ValidateMutator(m Mutator) error {
	if m == nil {
		return nil
	}
	validator, ok := m.(interface{ Validate() error })
	if !ok {
		return nil
	}
	return validator.Validate()
}
