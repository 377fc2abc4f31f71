// Package engine drives an environment through discrete generations and
// classifies how each trial ends.
package engine

import (
	"context"
	"fmt"
	"math/rand"

	"blobsim/internal/blob"
	"blobsim/internal/env"
)

// State is the trial runner's lifecycle position.
type State string

const (
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateExtinct     State = "extinct"
	StateHorizon     State = "horizon_reached"
)

// Terminal classifies a finished trial.
type Terminal string

const (
	TerminalExtinct Terminal = "extinct"
	TerminalHorizon Terminal = "horizon_reached"
)

// PopulationSpec seeds Count copies of one blob into the initial
// population.
type PopulationSpec struct {
	Blob  blob.Blob
	Count int
}

// TrialConfig fully specifies one trial. Validation happens once, at
// runner construction, not inside the generation loop.
type TrialConfig struct {
	Initial      []PopulationSpec
	Env          env.Config
	Generations  int
	Seed         int64
	RecordCensus bool
}

// ValidateConfig fails fast on any malformed field with a ConfigError.
func ValidateConfig(cfg TrialConfig) error {
	if cfg.Generations <= 0 {
		return configErrorf("generations", "horizon must be > 0, got %d", cfg.Generations)
	}
	for i, spec := range cfg.Initial {
		if spec.Count < 0 {
			return configErrorf("initial", "spec %d: count must be >= 0, got %d", i, spec.Count)
		}
		if err := spec.Blob.Validate(); err != nil {
			return configErrorf("initial", "spec %d: %v", i, err)
		}
	}
	if err := cfg.Env.Validate(); err != nil {
		return configErrorf("env", "%v", err)
	}
	return nil
}

// TrialResult is the immutable outcome of one finished trial.
type TrialResult struct {
	// Trajectory holds one population size per simulated generation. It
	// is shorter than the horizon when extinction cuts the trial off.
	Trajectory []int
	// Census mirrors Trajectory with per-type counts when requested.
	Census      []map[string]int
	Terminal    Terminal
	Generations int
	InitialSize int
	FinalSize   int
	Seed        int64
}

// Runner executes a single trial to its terminal state. Each runner owns
// a private environment and rng stream, so independent runners are safe
// to execute concurrently.
type Runner struct {
	cfg        TrialConfig
	env        *env.Environment
	rng        *rand.Rand
	state      State
	trajectory []int
	census     []map[string]int
}

func NewRunner(cfg TrialConfig) (*Runner, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	total := 0
	for _, spec := range cfg.Initial {
		total += spec.Count
	}
	initial := make([]blob.Blob, 0, total)
	for _, spec := range cfg.Initial {
		for i := 0; i < spec.Count; i++ {
			initial = append(initial, spec.Blob)
		}
	}

	environment, err := env.New(cfg.Env, initial)
	if err != nil {
		// Env config was already validated; reaching this means the two
		// validators disagree.
		return nil, configErrorf("env", "%v", err)
	}

	return &Runner{
		cfg:   cfg,
		env:   environment,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		state: StateInitialized,
	}, nil
}

func (r *Runner) State() State {
	return r.state
}

// Run simulates until extinction or the horizon. A trial runs start to
// finish; the context is only consulted between generations so an
// abandoned trial never yields a half-stepped population. A trial cut
// off mid-run reports a TrialError wrapping the cause.
func (r *Runner) Run(ctx context.Context) (TrialResult, error) {
	if r.state != StateInitialized {
		return TrialResult{}, fmt.Errorf("trial already run (state %s)", r.state)
	}
	r.state = StateRunning
	initialSize := r.env.Size()

	for gen := 1; gen <= r.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return TrialResult{}, &TrialError{Generation: gen, Err: err}
		}

		r.env.Step(r.rng)
		r.trajectory = append(r.trajectory, r.env.Size())
		if r.cfg.RecordCensus {
			r.census = append(r.census, r.env.Census())
		}

		if r.env.Size() == 0 {
			r.state = StateExtinct
			return r.result(TerminalExtinct, initialSize), nil
		}
	}

	r.state = StateHorizon
	return r.result(TerminalHorizon, initialSize), nil
}

func (r *Runner) result(terminal Terminal, initialSize int) TrialResult {
	return TrialResult{
		Trajectory:  r.trajectory,
		Census:      r.census,
		Terminal:    terminal,
		Generations: len(r.trajectory),
		InitialSize: initialSize,
		FinalSize:   r.env.Size(),
		Seed:        r.cfg.Seed,
	}
}

// RunTrial is the one-shot convenience path: validate, build, run.
func RunTrial(ctx context.Context, cfg TrialConfig) (TrialResult, error) {
	runner, err := NewRunner(cfg)
	if err != nil {
		return TrialResult{}, err
	}
	return runner.Run(ctx)
}
