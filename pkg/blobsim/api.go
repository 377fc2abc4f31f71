// Package blobsim is the public face of the simulator: a Client that
// runs trials and parameter sweeps, persists their records, and manages
// on-disk artifacts.
package blobsim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"blobsim/internal/blob"
	"blobsim/internal/engine"
	"blobsim/internal/env"
	"blobsim/internal/model"
	"blobsim/internal/stats"
	"blobsim/internal/storage"
	"blobsim/internal/sweep"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "blobsim.db"

	defaultGenerations    = 100
	defaultCapacity       = 1000
	defaultInitialCount   = 100
	defaultTrialsPerPoint = 50
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store

	artifactsDir string
	exportsDir   string
}

// PopulationSpec seeds one cohort of identical blobs. Either name an
// archetype or spell the traits out; explicit trait fields override the
// archetype's. A nil Count defaults to 100; an explicit 0 seeds an
// empty cohort.
type PopulationSpec struct {
	Archetype    string   `json:"archetype,omitempty" yaml:"archetype,omitempty"`
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	Survival     *float64 `json:"survival,omitempty" yaml:"survival,omitempty"`
	Reproduction *float64 `json:"reproduction,omitempty" yaml:"reproduction,omitempty"`
	Offspring    string   `json:"offspring,omitempty" yaml:"offspring,omitempty"`
	OffspringN   int      `json:"offspring_count,omitempty" yaml:"offspring_count,omitempty"`
	Lambda       float64  `json:"lambda,omitempty" yaml:"lambda,omitempty"`
	Count        *int     `json:"count,omitempty" yaml:"count,omitempty"`
}

// MutationSpec selects the offspring mutator: "jitter" perturbs traits
// with Gaussian noise, "type" switches the child into a variant lineage.
type MutationSpec struct {
	Kind    string  `json:"kind" yaml:"kind"`
	StdDev  float64 `json:"stddev,omitempty" yaml:"stddev,omitempty"`
	Prob    float64 `json:"prob,omitempty" yaml:"prob,omitempty"`
	Variant string  `json:"variant,omitempty" yaml:"variant,omitempty"`
}

type DriftSpec struct {
	Seed      int64   `json:"seed" yaml:"seed"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// EnvironmentSpec configures the environment a request's trials run in.
// A nil Capacity defaults to 1000; an explicit 0 is honored and culls
// every generation to extinction.
type EnvironmentSpec struct {
	Capacity  *int                    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Unbounded bool                    `json:"unbounded,omitempty" yaml:"unbounded,omitempty"`
	Cull      string                  `json:"cull,omitempty" yaml:"cull,omitempty"`
	Pressure  map[string]env.Modifier `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	Mutation  *MutationSpec           `json:"mutation,omitempty" yaml:"mutation,omitempty"`
	Drift     *DriftSpec              `json:"drift,omitempty" yaml:"drift,omitempty"`
}

type TrialRequest struct {
	Population   []PopulationSpec `json:"population,omitempty" yaml:"population,omitempty"`
	Env          EnvironmentSpec  `json:"env,omitempty" yaml:"env,omitempty"`
	Generations  int              `json:"generations,omitempty" yaml:"generations,omitempty"`
	Seed         int64            `json:"seed" yaml:"seed"`
	RecordCensus bool             `json:"record_census,omitempty" yaml:"record_census,omitempty"`
}

type TrialSummary struct {
	TrialID     string
	Terminal    string
	Generations int
	InitialSize int
	FinalSize   int
	Trajectory  []int
	Census      []map[string]int
}

// AxisSpec is one swept dimension, given either as explicit values or as
// an inclusive min/max range walked by step.
type AxisSpec struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Min    float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Step   float64   `json:"step,omitempty" yaml:"step,omitempty"`
}

type SweepRequest struct {
	Axes           []AxisSpec       `json:"axes" yaml:"axes"`
	TrialsPerPoint int              `json:"trials_per_point,omitempty" yaml:"trials_per_point,omitempty"`
	BaseSeed       int64            `json:"base_seed" yaml:"base_seed"`
	Workers        int              `json:"workers,omitempty" yaml:"workers,omitempty"`
	Population     []PopulationSpec `json:"population,omitempty" yaml:"population,omitempty"`
	Env            EnvironmentSpec  `json:"env,omitempty" yaml:"env,omitempty"`
	Generations    int              `json:"generations,omitempty" yaml:"generations,omitempty"`
}

type SweepSummary struct {
	SweepID      string
	ArtifactsDir string
	AxisNames    []string
	Points       []model.PointRecord
	Canceled     bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Kind         string
	CreatedAtUTC string
	BaseSeed     int64
	Horizon      int
	Points       int
	Canceled     bool
}

type GridRequest struct {
	SweepID string
	Latest  bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Archetypes lists the stock blob presets available to requests.
func (c *Client) Archetypes() []string {
	return blob.ArchetypeNames()
}

// RunTrial executes one trial and persists its record.
func (c *Client) RunTrial(ctx context.Context, req TrialRequest) (TrialSummary, error) {
	cfg, err := buildTrialConfig(req)
	if err != nil {
		return TrialSummary{}, err
	}
	if err := c.store.Init(ctx); err != nil {
		return TrialSummary{}, err
	}

	result, err := engine.RunTrial(ctx, cfg)
	if err != nil {
		return TrialSummary{}, err
	}

	now := time.Now().UTC()
	trialID := fmt.Sprintf("trial-%s", uuid.NewString())
	record := model.TrialRecord{
		VersionedRecord: storage.Stamp(),
		ID:              trialID,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Seed:            cfg.Seed,
		Horizon:         cfg.Generations,
		Generations:     result.Generations,
		Terminal:        string(result.Terminal),
		InitialSize:     result.InitialSize,
		FinalSize:       result.FinalSize,
		Trajectory:      result.Trajectory,
		Census:          result.Census,
	}
	if err := c.store.SaveTrial(ctx, record); err != nil {
		return TrialSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        trialID,
		Kind:         "trial",
		BaseSeed:     cfg.Seed,
		Horizon:      cfg.Generations,
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return TrialSummary{}, err
	}

	return TrialSummary{
		TrialID:     trialID,
		Terminal:    string(result.Terminal),
		Generations: result.Generations,
		InitialSize: result.InitialSize,
		FinalSize:   result.FinalSize,
		Trajectory:  result.Trajectory,
		Census:      result.Census,
	}, nil
}

// RunSweep executes a Monte Carlo parameter sweep, persists its record
// and writes its artifacts. A canceled sweep still persists the
// aggregates completed so far; the summary is returned alongside the
// context's error.
func (c *Client) RunSweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	if req.TrialsPerPoint <= 0 {
		req.TrialsPerPoint = defaultTrialsPerPoint
	}

	grid, err := buildGrid(req.Axes)
	if err != nil {
		return SweepSummary{}, err
	}
	base, err := buildTrialConfig(TrialRequest{
		Population:  req.Population,
		Env:         req.Env,
		Generations: req.Generations,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	harness, err := sweep.New(sweep.Config{
		Grid:           grid,
		TrialsPerPoint: req.TrialsPerPoint,
		BaseSeed:       req.BaseSeed,
		Workers:        req.Workers,
		Base:           base,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	if err := c.store.Init(ctx); err != nil {
		return SweepSummary{}, err
	}

	result, runErr := harness.Run(ctx)
	if runErr != nil && !result.Canceled {
		return SweepSummary{}, runErr
	}

	now := time.Now().UTC()
	sweepID := fmt.Sprintf("sweep-%s", uuid.NewString())
	points := make([]model.PointRecord, 0, len(result.Summaries))
	for _, summary := range result.Summaries {
		points = append(points, model.PointRecord{
			Key:            summary.Point.Key(),
			Values:         summary.Point.Values,
			MeanFinal:      summary.MeanFinal,
			Variance:       summary.Variance,
			ExtinctionRate: summary.ExtinctionRate,
			ValidTrials:    summary.ValidTrials,
			FailedTrials:   summary.FailedTrials,
			AllFailed:      summary.AllFailed,
		})
	}

	record := model.SweepRecord{
		VersionedRecord: storage.Stamp(),
		ID:              sweepID,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		BaseSeed:        req.BaseSeed,
		TrialsPerPoint:  req.TrialsPerPoint,
		Horizon:         base.Generations,
		AxisNames:       result.AxisNames,
		Points:          points,
		Canceled:        result.Canceled,
	}
	// Persistence must survive the cancellation that stopped the sweep.
	saveCtx := context.WithoutCancel(ctx)
	if err := c.store.SaveSweep(saveCtx, record); err != nil {
		return SweepSummary{}, err
	}

	runDir, err := stats.WriteSweepArtifacts(c.artifactsDir, stats.SweepArtifacts{
		Config: stats.SweepConfig{
			RunID:          sweepID,
			BaseSeed:       req.BaseSeed,
			TrialsPerPoint: req.TrialsPerPoint,
			Horizon:        base.Generations,
			Workers:        req.Workers,
			AxisNames:      result.AxisNames,
			Canceled:       result.Canceled,
		},
		Points: points,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          sweepID,
		Kind:           "sweep",
		BaseSeed:       req.BaseSeed,
		TrialsPerPoint: req.TrialsPerPoint,
		Horizon:        base.Generations,
		Points:         len(points),
		Canceled:       result.Canceled,
		CreatedAtUTC:   record.CreatedAtUTC,
	}); err != nil {
		return SweepSummary{}, err
	}

	return SweepSummary{
		SweepID:      sweepID,
		ArtifactsDir: filepath.Clean(runDir),
		AxisNames:    result.AxisNames,
		Points:       points,
		Canceled:     result.Canceled,
	}, runErr
}

// Trial fetches one persisted trial record by id.
func (c *Client) Trial(ctx context.Context, trialID string) (model.TrialRecord, error) {
	if trialID == "" {
		return model.TrialRecord{}, errors.New("trial id is required")
	}
	if err := c.store.Init(ctx); err != nil {
		return model.TrialRecord{}, err
	}
	record, ok, err := c.store.GetTrial(ctx, trialID)
	if err != nil {
		return model.TrialRecord{}, err
	}
	if !ok {
		return model.TrialRecord{}, fmt.Errorf("trial not found: %s", trialID)
	}
	return record, nil
}

// Sweeps lists persisted sweep records, newest first.
func (c *Client) Sweeps(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListSweeps(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(records))
	for _, record := range records {
		out = append(out, RunItem{
			RunID:        record.ID,
			Kind:         "sweep",
			CreatedAtUTC: record.CreatedAtUTC,
			BaseSeed:     record.BaseSeed,
			Horizon:      record.Horizon,
			Points:       len(record.Points),
			Canceled:     record.Canceled,
		})
	}
	return out, nil
}

// Trials lists persisted trial records, newest first.
func (c *Client) Trials(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListTrials(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(records))
	for _, record := range records {
		out = append(out, RunItem{
			RunID:        record.ID,
			Kind:         "trial",
			CreatedAtUTC: record.CreatedAtUTC,
			BaseSeed:     record.Seed,
			Horizon:      record.Horizon,
		})
	}
	return out, nil
}

// Grid returns a persisted sweep's per-point aggregates, falling back to
// the on-disk artifacts when the store no longer has the record.
func (c *Client) Grid(ctx context.Context, req GridRequest) ([]model.PointRecord, error) {
	if req.SweepID != "" && req.Latest {
		return nil, errors.New("use either sweep id or latest")
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}

	sweepID := req.SweepID
	if req.Latest {
		records, err := c.store.ListSweeps(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, errors.New("no sweeps available")
		}
		sweepID = records[0].ID
	}
	if sweepID == "" {
		return nil, errors.New("grid requires sweep id or latest")
	}

	record, ok, err := c.store.GetSweep(ctx, sweepID)
	if err != nil {
		return nil, err
	}
	if ok {
		return record.Points, nil
	}

	points, ok, err := stats.ReadSweepGrid(c.artifactsDir, sweepID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sweep not found: %s", sweepID)
	}
	return points, nil
}

// Export copies a run's artifact files into the export directory.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		for _, entry := range entries {
			if entry.Kind == "sweep" {
				runID = entry.RunID
				break
			}
		}
		if runID == "" {
			return ExportSummary{}, errors.New("no sweeps available to export")
		}
	}

	exportedDir, err := stats.ExportSweepArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func buildTrialConfig(req TrialRequest) (engine.TrialConfig, error) {
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	if len(req.Population) == 0 {
		req.Population = []PopulationSpec{{Archetype: "base"}}
	}

	initial := make([]engine.PopulationSpec, 0, len(req.Population))
	for i, spec := range req.Population {
		b, err := buildBlob(spec)
		if err != nil {
			return engine.TrialConfig{}, fmt.Errorf("population spec %d: %w", i, err)
		}
		count := defaultInitialCount
		if spec.Count != nil {
			count = *spec.Count
		}
		initial = append(initial, engine.PopulationSpec{Blob: b, Count: count})
	}

	envCfg, err := buildEnvConfig(req.Env)
	if err != nil {
		return engine.TrialConfig{}, err
	}

	return engine.TrialConfig{
		Initial:      initial,
		Env:          envCfg,
		Generations:  req.Generations,
		Seed:         req.Seed,
		RecordCensus: req.RecordCensus,
	}, nil
}

func buildBlob(spec PopulationSpec) (blob.Blob, error) {
	var b blob.Blob
	if spec.Archetype != "" {
		preset, err := blob.Archetype(spec.Archetype)
		if err != nil {
			return blob.Blob{}, err
		}
		b = preset
	}
	if spec.Type != "" {
		b.Type = spec.Type
	}
	if b.Type == "" {
		b.Type = "custom"
	}
	if spec.Survival != nil {
		b.SurvivalProb = *spec.Survival
	}
	if spec.Reproduction != nil {
		b.ReproductionProb = *spec.Reproduction
	}
	if spec.Offspring != "" || spec.OffspringN > 0 || spec.Lambda > 0 {
		dist, err := blob.NewDistribution(spec.Offspring, spec.OffspringN, spec.Lambda)
		if err != nil {
			return blob.Blob{}, err
		}
		b.Offspring = dist
	}
	return b, nil
}

func buildEnvConfig(spec EnvironmentSpec) (env.Config, error) {
	cfg := env.Config{
		Unbounded: spec.Unbounded,
		Pressure:  spec.Pressure,
	}
	switch {
	case spec.Capacity != nil:
		cfg.Capacity = *spec.Capacity
	case !spec.Unbounded:
		cfg.Capacity = defaultCapacity
	}

	switch spec.Cull {
	case "", "uniform":
		cfg.Cull = env.UniformCull{}
	case "survival_weighted":
		cfg.Cull = env.SurvivalWeightedCull{}
	default:
		return env.Config{}, fmt.Errorf("unsupported cull policy: %s", spec.Cull)
	}

	if spec.Mutation != nil {
		mutator, err := buildMutator(*spec.Mutation)
		if err != nil {
			return env.Config{}, err
		}
		cfg.Mutator = mutator
	}
	if spec.Drift != nil {
		drift, err := env.NewDrift(spec.Drift.Seed, spec.Drift.Amplitude, spec.Drift.Frequency)
		if err != nil {
			return env.Config{}, err
		}
		cfg.Drift = drift
	}
	return cfg, nil
}

func buildMutator(spec MutationSpec) (blob.Mutator, error) {
	switch spec.Kind {
	case "jitter":
		return blob.JitterMutator{StdDev: spec.StdDev}, nil
	case "type":
		variant := spec.Variant
		if variant == "" {
			variant = "mutated_base"
		}
		b, err := blob.Archetype(variant)
		if err != nil {
			return nil, err
		}
		return blob.TypeMutator{Prob: spec.Prob, Variant: b}, nil
	default:
		return nil, fmt.Errorf("unsupported mutation kind: %s", spec.Kind)
	}
}

func buildGrid(axes []AxisSpec) (sweep.Grid, error) {
	if len(axes) == 0 {
		return sweep.Grid{}, errors.New("sweep requires at least one axis")
	}
	grid := sweep.Grid{Axes: make([]sweep.Axis, 0, len(axes))}
	for _, spec := range axes {
		values, err := spec.expand()
		if err != nil {
			return sweep.Grid{}, fmt.Errorf("axis %s: %w", spec.Name, err)
		}
		grid.Axes = append(grid.Axes, sweep.Axis{Name: spec.Name, Values: values})
	}
	return grid, nil
}

func (a AxisSpec) expand() ([]float64, error) {
	if len(a.Values) > 0 {
		return a.Values, nil
	}
	if a.Step <= 0 {
		return nil, fmt.Errorf("range form requires step > 0, got %g", a.Step)
	}
	if a.Max < a.Min {
		return nil, fmt.Errorf("range max %g is below min %g", a.Max, a.Min)
	}
	values := make([]float64, 0, int((a.Max-a.Min)/a.Step)+1)
	// Half-step tolerance keeps the inclusive upper bound from falling to
	// float accumulation.
	for v := a.Min; v <= a.Max+a.Step/2; v += a.Step {
		values = append(values, v)
	}
	return values, nil
}
