package blobsim

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
		ExportsDir:   filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestClientRunTrialPersistsRecord(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunTrial(ctx, TrialRequest{
		Population: []PopulationSpec{{
			Archetype:    "base",
			Survival:     floatPtr(0.9),
			Reproduction: floatPtr(0.5),
			Count:        intPtr(100),
		}},
		Env:         EnvironmentSpec{Capacity: intPtr(500)},
		Generations: 20,
		Seed:        42,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}
	if summary.TrialID == "" {
		t.Fatal("trial id is empty")
	}
	if summary.InitialSize != 100 {
		t.Fatalf("initial size = %d, want 100", summary.InitialSize)
	}
	if summary.Terminal != "extinct" && summary.Terminal != "horizon_reached" {
		t.Fatalf("unexpected terminal: %s", summary.Terminal)
	}
	if len(summary.Trajectory) != summary.Generations {
		t.Fatalf("trajectory length %d != generations %d", len(summary.Trajectory), summary.Generations)
	}

	trials, err := client.Trials(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("list trials: %v", err)
	}
	if len(trials) != 1 || trials[0].RunID != summary.TrialID {
		t.Fatalf("trial not listed: %+v", trials)
	}
}

func TestClientRunTrialIsDeterministic(t *testing.T) {
	req := TrialRequest{
		Population: []PopulationSpec{{
			Archetype: "base",
			Count:     intPtr(80),
		}},
		Env:         EnvironmentSpec{Capacity: intPtr(200)},
		Generations: 15,
		Seed:        7,
	}

	first, err := newTestClient(t).RunTrial(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newTestClient(t).RunTrial(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first.Trajectory, second.Trajectory) {
		t.Fatalf("same seed diverged: %v vs %v", first.Trajectory, second.Trajectory)
	}
}

func TestClientRunTrialRecordsCensus(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.RunTrial(context.Background(), TrialRequest{
		Population: []PopulationSpec{{Archetype: "perfect", Count: intPtr(10)}},
		Env: EnvironmentSpec{
			Capacity: intPtr(50),
			Mutation: &MutationSpec{Kind: "type", Prob: 0.5, Variant: "mutated_base"},
		},
		Generations:  5,
		Seed:         3,
		RecordCensus: true,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}
	if len(summary.Census) != len(summary.Trajectory) {
		t.Fatalf("census length %d != trajectory length %d", len(summary.Census), len(summary.Trajectory))
	}
	for i, counts := range summary.Census {
		total := 0
		for _, n := range counts {
			total += n
		}
		if total != summary.Trajectory[i] {
			t.Fatalf("generation %d census sums to %d, trajectory says %d", i+1, total, summary.Trajectory[i])
		}
	}
}

func TestClientRunSweepWritesArtifactsAndRecord(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunSweep(ctx, SweepRequest{
		Axes: []AxisSpec{
			{Name: "survival", Values: []float64{0.2, 0.8}},
			{Name: "reproduction", Values: []float64{0.3, 0.7}},
		},
		TrialsPerPoint: 10,
		BaseSeed:       42,
		Population:     []PopulationSpec{{Archetype: "base", Count: intPtr(50)}},
		Env:            EnvironmentSpec{Capacity: intPtr(300)},
		Generations:    10,
	})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if summary.Canceled {
		t.Fatal("sweep unexpectedly canceled")
	}
	if len(summary.Points) != 4 {
		t.Fatalf("expected 4 grid points, got %d", len(summary.Points))
	}
	for _, point := range summary.Points {
		if point.ValidTrials+point.FailedTrials != 10 {
			t.Fatalf("point %s accounts for %d trials, want 10", point.Key, point.ValidTrials+point.FailedTrials)
		}
	}

	for _, file := range []string{"config.json", "grid.json", "grid.csv"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
	}

	sweeps, err := client.Sweeps(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("list sweeps: %v", err)
	}
	if len(sweeps) != 1 || sweeps[0].RunID != summary.SweepID {
		t.Fatalf("sweep not listed: %+v", sweeps)
	}

	points, err := client.Grid(ctx, GridRequest{Latest: true})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if !reflect.DeepEqual(points, summary.Points) {
		t.Fatalf("grid mismatch: got %+v want %+v", points, summary.Points)
	}

	exported, err := client.Export(ctx, ExportRequest{RunID: summary.SweepID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "grid.csv")); err != nil {
		t.Fatalf("exported csv missing: %v", err)
	}
}

func TestClientRunSweepRejectsBadRequests(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  SweepRequest
	}{
		{
			name: "no axes",
			req:  SweepRequest{TrialsPerPoint: 5},
		},
		{
			name: "unknown axis",
			req: SweepRequest{
				Axes:           []AxisSpec{{Name: "gravity", Values: []float64{9.8}}},
				TrialsPerPoint: 5,
			},
		},
		{
			name: "range without step",
			req: SweepRequest{
				Axes:           []AxisSpec{{Name: "survival", Min: 0.1, Max: 0.9}},
				TrialsPerPoint: 5,
			},
		},
		{
			name: "out of range axis value",
			req: SweepRequest{
				Axes:           []AxisSpec{{Name: "survival", Values: []float64{1.5}}},
				TrialsPerPoint: 5,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.RunSweep(ctx, tc.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClientTrialLookup(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunTrial(ctx, TrialRequest{
		Population:  []PopulationSpec{{Archetype: "base", Count: intPtr(30)}},
		Env:         EnvironmentSpec{Capacity: intPtr(100)},
		Generations: 5,
		Seed:        21,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}

	record, err := client.Trial(ctx, summary.TrialID)
	if err != nil {
		t.Fatalf("trial lookup: %v", err)
	}
	if record.ID != summary.TrialID || !reflect.DeepEqual(record.Trajectory, summary.Trajectory) {
		t.Fatalf("record mismatch: %+v vs %+v", record, summary)
	}

	if _, err := client.Trial(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown trial id")
	}
	if _, err := client.Trial(ctx, ""); err == nil {
		t.Fatal("expected error for empty trial id")
	}
}

func TestClientHonorsExplicitZeros(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// capacity: 0 must cull to extinction at generation one, not be
	// rewritten to the default.
	summary, err := client.RunTrial(ctx, TrialRequest{
		Population:  []PopulationSpec{{Archetype: "perfect", Count: intPtr(10)}},
		Env:         EnvironmentSpec{Capacity: intPtr(0)},
		Generations: 20,
		Seed:        5,
	})
	if err != nil {
		t.Fatalf("zero capacity trial: %v", err)
	}
	if summary.Terminal != "extinct" || summary.Generations != 1 {
		t.Fatalf("zero capacity: terminal=%s generations=%d, want extinct at generation 1", summary.Terminal, summary.Generations)
	}

	// count: 0 seeds an empty cohort rather than the default hundred.
	summary, err = client.RunTrial(ctx, TrialRequest{
		Population:  []PopulationSpec{{Archetype: "base", Count: intPtr(0)}},
		Env:         EnvironmentSpec{Capacity: intPtr(100)},
		Generations: 5,
		Seed:        6,
	})
	if err != nil {
		t.Fatalf("zero count trial: %v", err)
	}
	if summary.InitialSize != 0 {
		t.Fatalf("initial size = %d, want 0", summary.InitialSize)
	}

	// A negative explicit capacity is rejected, not defaulted over.
	if _, err := client.RunTrial(ctx, TrialRequest{
		Population: []PopulationSpec{{Archetype: "base", Count: intPtr(10)}},
		Env:        EnvironmentSpec{Capacity: intPtr(-1)},
	}); err == nil {
		t.Fatal("expected error for negative capacity")
	}
}

func TestClientGridRequiresIDOrLatest(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Grid(context.Background(), GridRequest{}); err == nil {
		t.Fatal("expected error without sweep id")
	}
	if _, err := client.Grid(context.Background(), GridRequest{SweepID: "x", Latest: true}); err == nil {
		t.Fatal("expected error for both sweep id and latest")
	}
}

func TestBuildTrialConfigDefaults(t *testing.T) {
	cfg, err := buildTrialConfig(TrialRequest{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Generations != defaultGenerations {
		t.Fatalf("generations = %d, want %d", cfg.Generations, defaultGenerations)
	}
	if len(cfg.Initial) != 1 || cfg.Initial[0].Count != defaultInitialCount {
		t.Fatalf("unexpected default population: %+v", cfg.Initial)
	}
	if cfg.Initial[0].Blob.Type != "base" {
		t.Fatalf("default blob type = %s, want base", cfg.Initial[0].Blob.Type)
	}
	if cfg.Env.Capacity != defaultCapacity {
		t.Fatalf("capacity = %d, want %d", cfg.Env.Capacity, defaultCapacity)
	}
}

func TestBuildBlobOverridesArchetype(t *testing.T) {
	b, err := buildBlob(PopulationSpec{
		Archetype:  "sturdy",
		Survival:   floatPtr(0.65),
		Offspring:  "poisson",
		Lambda:     1.5,
		OffspringN: 0,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if b.Type != "sturdy" {
		t.Fatalf("type = %s, want sturdy", b.Type)
	}
	if b.SurvivalProb != 0.65 {
		t.Fatalf("survival = %v, want 0.65", b.SurvivalProb)
	}
	if b.ReproductionProb != 0.5 {
		t.Fatalf("reproduction = %v, want archetype's 0.5", b.ReproductionProb)
	}
	if b.Offspring.Name() != "poisson" {
		t.Fatalf("offspring = %s, want poisson", b.Offspring.Name())
	}

	if _, err := buildBlob(PopulationSpec{Archetype: "nonexistent"}); err == nil {
		t.Fatal("expected error for unknown archetype")
	}
}

func TestAxisSpecExpandRange(t *testing.T) {
	values, err := AxisSpec{Name: "survival", Min: 0.1, Max: 0.5, Step: 0.2}.expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []float64{0.1, 0.3, 0.5}
	if len(values) != len(want) {
		t.Fatalf("expanded %v, want %v", values, want)
	}
	for i := range want {
		if math.Abs(values[i]-want[i]) > 1e-9 {
			t.Fatalf("value %d = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestClientArchetypes(t *testing.T) {
	names := newTestClient(t).Archetypes()
	if len(names) == 0 {
		t.Fatal("no archetypes")
	}
	found := false
	for _, name := range names {
		if name == "base" {
			found = true
		}
	}
	if !found {
		t.Fatalf("base archetype missing from %v", names)
	}
}
