package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"blobsim/internal/engine"
)

// Runner executes one trial. The harness is the only concurrency
// boundary: implementations must be safe for concurrent use, which the
// engine-backed default is because every trial owns private state.
// Implementations report mid-trial failures as *engine.TrialError so
// callers can tell a broken trial from a misconfigured sweep.
type Runner interface {
	RunTrial(ctx context.Context, cfg engine.TrialConfig, seed int64) (engine.TrialResult, error)
}

// EngineRunner is the default Runner, backed by the simulation engine.
type EngineRunner struct{}

func (EngineRunner) RunTrial(ctx context.Context, cfg engine.TrialConfig, seed int64) (engine.TrialResult, error) {
	cfg.Seed = seed
	return engine.RunTrial(ctx, cfg)
}

type Config struct {
	Grid           Grid
	TrialsPerPoint int
	BaseSeed       int64
	// Workers is a hint; it defaults to GOMAXPROCS and is capped by the
	// number of trials.
	Workers int
	// Base is the trial configuration each grid point specializes.
	Base engine.TrialConfig
	// Runner overrides trial execution; nil means EngineRunner.
	Runner Runner
}

// Result is the sweep output: exactly one summary per requested grid
// point, in point order. Canceled marks a sweep cut short by its
// context; completed aggregates are preserved rather than discarded.
type Result struct {
	AxisNames      []string
	TrialsPerPoint int
	BaseSeed       int64
	Summaries      []PointSummary
	Canceled       bool
}

type Harness struct {
	cfg    Config
	runner Runner
}

func New(cfg Config) (*Harness, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.TrialsPerPoint <= 0 {
		return nil, fmt.Errorf("trials per point must be > 0, got %d", cfg.TrialsPerPoint)
	}
	// Surface configuration errors before any worker starts: every grid
	// point must yield a valid trial configuration.
	for _, point := range cfg.Grid.Points() {
		trialCfg, err := ApplyPoint(cfg.Base, point)
		if err != nil {
			return nil, err
		}
		if err := engine.ValidateConfig(trialCfg); err != nil {
			return nil, fmt.Errorf("grid point %s: %w", point.Key(), err)
		}
	}
	runner := cfg.Runner
	if runner == nil {
		runner = EngineRunner{}
	}
	return &Harness{cfg: cfg, runner: runner}, nil
}

// Run executes trials-per-point independent trials for every grid point
// and aggregates them. Trials run on a worker pool; each owns a private
// configuration and rng seed, so no state is shared between workers. A
// single trial's failure is recorded against its point and never aborts
// siblings. Cancellation is cooperative: in-flight trials finish, queued
// trials are abandoned, and the partial result is returned with ctx's
// error.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	points := h.cfg.Grid.Points()
	trials := h.cfg.TrialsPerPoint
	total := len(points) * trials

	type job struct {
		point Point
		trial int
	}
	type jobResult struct {
		point   int
		outcome trialOutcome
	}

	jobs := make(chan job)
	results := make(chan jobResult, total)

	workerCount := h.cfg.Workers
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	if workerCount > total {
		workerCount = total
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- jobResult{point: j.point.Index, outcome: trialOutcome{trial: j.trial}}
					continue
				}

				trialCfg, err := ApplyPoint(h.cfg.Base, j.point)
				if err != nil {
					results <- jobResult{point: j.point.Index, outcome: trialOutcome{trial: j.trial, err: err, attempted: true}}
					continue
				}
				seed := TrialSeed(h.cfg.BaseSeed, j.point.Key(), j.trial)
				result, err := h.runner.RunTrial(ctx, trialCfg, seed)
				if err != nil && ctx.Err() != nil {
					// Abandoned by cancellation, not failed.
					results <- jobResult{point: j.point.Index, outcome: trialOutcome{trial: j.trial}}
					continue
				}
				results <- jobResult{point: j.point.Index, outcome: trialOutcome{trial: j.trial, result: result, err: err, attempted: true}}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, point := range points {
			for trial := 0; trial < trials; trial++ {
				select {
				case jobs <- job{point: point, trial: trial}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	wg.Wait()
	close(results)

	outcomes := make([][]trialOutcome, len(points))
	received := 0
	for res := range results {
		outcomes[res.point] = append(outcomes[res.point], res.outcome)
		received++
	}

	result := Result{
		AxisNames:      h.cfg.Grid.AxisNames(),
		TrialsPerPoint: trials,
		BaseSeed:       h.cfg.BaseSeed,
		Summaries:      make([]PointSummary, len(points)),
		Canceled:       ctx.Err() != nil || received < total,
	}
	for i, point := range points {
		// Fixed aggregation order: trial index, not arrival order.
		byTrial := outcomes[i]
		sort.Slice(byTrial, func(a, b int) bool { return byTrial[a].trial < byTrial[b].trial })
		result.Summaries[i] = summarizePoint(point, trials, byTrial)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
