// Package env holds the population container and the single-generation
// transition: mortality, reproduction, then capacity enforcement.
package env

import (
	"fmt"
	"math/rand"

	"blobsim/internal/blob"
)

const (
	TraitSurvival     = "survival"
	TraitReproduction = "reproduction"
)

// Modifier is an environment-level pressure on one trait: the trait
// probability is scaled and shifted before sampling. A zero-value Scale is
// treated as 1 so that an offset-only modifier reads naturally.
type Modifier struct {
	Scale  float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Offset float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

func (m Modifier) adjustment() blob.Adjustment {
	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	return blob.Adjustment{Scale: scale, Offset: m.Offset}
}

type Config struct {
	// Capacity bounds the population after each generation. Unbounded
	// growth must be requested explicitly; Capacity 0 with Unbounded
	// false is a valid environment in which nothing survives a step.
	Capacity  int
	Unbounded bool

	// Pressure maps trait names to modifiers applied before each draw.
	Pressure map[string]Modifier

	// Cull resolves capacity overflows. Defaults to UniformCull.
	Cull CullPolicy

	// Mutator, when set, perturbs offspring traits.
	Mutator blob.Mutator

	// Drift, when set, adds a smooth per-generation offset on top of the
	// static survival pressure.
	Drift *Drift
}

func (c Config) Validate() error {
	if !c.Unbounded && c.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0 (or explicitly unbounded), got %d", c.Capacity)
	}
	for trait := range c.Pressure {
		switch trait {
		case TraitSurvival, TraitReproduction:
		default:
			return fmt.Errorf("unknown pressure trait: %s", trait)
		}
	}
	if err := blob.ValidateMutator(c.Mutator); err != nil {
		return fmt.Errorf("mutator: %w", err)
	}
	return nil
}

// Environment owns one trial's population. It is mutated in place, one
// generation at a time, and is not safe for concurrent use; every trial
// gets its own instance.
type Environment struct {
	cfg        Config
	population []blob.Blob
	generation int
}

func New(cfg Config, initial []blob.Blob) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cull == nil {
		cfg.Cull = UniformCull{}
	}
	population := make([]blob.Blob, len(initial))
	copy(population, initial)
	return &Environment{cfg: cfg, population: population}, nil
}

func (e *Environment) Size() int {
	return len(e.population)
}

func (e *Environment) Generation() int {
	return e.generation
}

// Population returns the live population in stable iteration order.
func (e *Environment) Population() []blob.Blob {
	return e.population
}

// Census counts the live population by blob type.
func (e *Environment) Census() map[string]int {
	counts := make(map[string]int, 4)
	for _, b := range e.population {
		counts[b.Type]++
	}
	return counts
}

// Step advances the population by one generation using the supplied
// random source. An empty population stays empty; extinction is a state,
// not an error.
func (e *Environment) Step(rng *rand.Rand) {
	pressure := e.pressure()
	e.generation++

	survivors := make([]blob.Blob, 0, len(e.population))
	for _, b := range e.population {
		if b.DrawsSurvival(rng, pressure) {
			survivors = append(survivors, b)
		}
	}

	var pending []blob.Blob
	for _, b := range survivors {
		pending = append(pending, b.AttemptReproduction(rng, pressure, e.cfg.Mutator)...)
	}

	next := append(survivors, pending...)
	if !e.cfg.Unbounded && len(next) > e.cfg.Capacity {
		next = e.cfg.Cull.Cull(rng, next, e.cfg.Capacity)
	}
	e.population = next
}

// pressure compiles the static modifiers plus any drift offset for the
// upcoming generation into per-trait adjustments.
func (e *Environment) pressure() blob.Pressure {
	p := blob.NoPressure()
	if m, ok := e.cfg.Pressure[TraitSurvival]; ok {
		p.Survival = m.adjustment()
	}
	if m, ok := e.cfg.Pressure[TraitReproduction]; ok {
		p.Reproduction = m.adjustment()
	}
	if e.cfg.Drift != nil {
		p.Survival.Offset += e.cfg.Drift.Offset(e.generation)
	}
	return p
}
