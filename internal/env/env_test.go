package env

import (
	"math/rand"
	"testing"

	"blobsim/internal/blob"
)

func flatPopulation(n int, survival, reproduction float64) []blob.Blob {
	population := make([]blob.Blob, n)
	for i := range population {
		population[i] = blob.Blob{
			Type:             "base",
			SurvivalProb:     survival,
			ReproductionProb: reproduction,
			Offspring:        blob.Fixed{Count: 1},
		}
	}
	return population
}

func TestStepKeepsSizeForImmortalNonBreeders(t *testing.T) {
	e, err := New(Config{Capacity: 1000}, flatPopulation(64, 1, 0))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	rng := rand.New(rand.NewSource(1))

	for gen := 0; gen < 50; gen++ {
		e.Step(rng)
		if e.Size() != 64 {
			t.Fatalf("generation %d: population changed to %d without mortality or reproduction", gen+1, e.Size())
		}
	}
}

func TestStepKillsEveryoneAtZeroSurvival(t *testing.T) {
	e, err := New(Config{Capacity: 1000}, flatPopulation(200, 0, 1))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	e.Step(rand.New(rand.NewSource(2)))
	if e.Size() != 0 {
		t.Fatalf("expected extinction after one generation, got %d survivors", e.Size())
	}
}

func TestStepOnEmptyPopulationIsNoop(t *testing.T) {
	e, err := New(Config{Capacity: 10}, nil)
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	rng := rand.New(rand.NewSource(3))
	e.Step(rng)
	e.Step(rng)
	if e.Size() != 0 {
		t.Fatalf("empty population grew to %d", e.Size())
	}
	if e.Generation() != 2 {
		t.Fatalf("generation counter = %d, want 2", e.Generation())
	}
}

func TestStepZeroCapacityAlwaysEmpties(t *testing.T) {
	e, err := New(Config{Capacity: 0}, flatPopulation(50, 1, 1))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	e.Step(rand.New(rand.NewSource(4)))
	if e.Size() != 0 {
		t.Fatalf("zero-capacity environment kept %d blobs", e.Size())
	}
}

func TestStepNeverExceedsCapacityAcrossRandomConfigs(t *testing.T) {
	meta := rand.New(rand.NewSource(99))
	for trial := 0; trial < 30; trial++ {
		capacity := meta.Intn(200)
		initial := meta.Intn(300)
		survival := meta.Float64()
		reproduction := meta.Float64()

		e, err := New(Config{Capacity: capacity}, flatPopulation(initial, survival, reproduction))
		if err != nil {
			t.Fatalf("new environment: %v", err)
		}
		rng := rand.New(rand.NewSource(int64(trial)))
		for gen := 0; gen < 10; gen++ {
			e.Step(rng)
			if e.Size() > capacity {
				t.Fatalf("trial %d generation %d: size %d exceeds capacity %d", trial, gen+1, e.Size(), capacity)
			}
		}
	}
}

func TestStepUnboundedGrowth(t *testing.T) {
	e, err := New(Config{Unbounded: true}, flatPopulation(10, 1, 1))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	rng := rand.New(rand.NewSource(6))
	e.Step(rng)
	if e.Size() <= 10 {
		t.Fatalf("unbounded population with certain reproduction did not grow: %d", e.Size())
	}
}

func TestPressureScaleZeroKillsPerfectSurvivors(t *testing.T) {
	cfg := Config{
		Capacity: 100,
		Pressure: map[string]Modifier{TraitSurvival: {Scale: 0.0000001, Offset: -1}},
	}
	e, err := New(cfg, flatPopulation(50, 1, 0))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	e.Step(rand.New(rand.NewSource(7)))
	if e.Size() != 0 {
		t.Fatalf("crushing survival pressure left %d survivors", e.Size())
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid bounded", cfg: Config{Capacity: 10}},
		{name: "valid zero capacity", cfg: Config{Capacity: 0}},
		{name: "valid unbounded", cfg: Config{Unbounded: true, Capacity: -1}},
		{name: "negative capacity", cfg: Config{Capacity: -1}, wantErr: true},
		{name: "unknown trait", cfg: Config{Capacity: 1, Pressure: map[string]Modifier{"speed": {}}}, wantErr: true},
		{name: "bad mutator", cfg: Config{Capacity: 1, Mutator: blob.JitterMutator{StdDev: -1}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCensusCountsByType(t *testing.T) {
	population := append(flatPopulation(3, 1, 0), blob.Blob{Type: "sturdy", SurvivalProb: 1})
	e, err := New(Config{Capacity: 10}, population)
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	census := e.Census()
	if census["base"] != 3 || census["sturdy"] != 1 {
		t.Fatalf("unexpected census: %v", census)
	}
}

func TestUniformCullIsDeterministicAndExact(t *testing.T) {
	population := flatPopulation(100, 0.5, 0.5)

	first := UniformCull{}.Cull(rand.New(rand.NewSource(11)), append([]blob.Blob(nil), population...), 40)
	second := UniformCull{}.Cull(rand.New(rand.NewSource(11)), append([]blob.Blob(nil), population...), 40)

	if len(first) != 40 || len(second) != 40 {
		t.Fatalf("cull sizes = %d, %d, want 40", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("uniform cull diverged for identical seeds")
		}
	}
}

func TestSurvivalWeightedCullPrefersHardierBlobs(t *testing.T) {
	population := make([]blob.Blob, 0, 200)
	for i := 0; i < 100; i++ {
		population = append(population, blob.Blob{Type: "hardy", SurvivalProb: 0.95})
		population = append(population, blob.Blob{Type: "frail", SurvivalProb: 0.05})
	}

	rng := rand.New(rand.NewSource(12))
	kept := SurvivalWeightedCull{}.Cull(rng, population, 100)
	if len(kept) != 100 {
		t.Fatalf("cull kept %d, want 100", len(kept))
	}
	hardy := 0
	for _, b := range kept {
		if b.Type == "hardy" {
			hardy++
		}
	}
	if hardy <= 60 {
		t.Fatalf("survival-weighted cull kept only %d hardy blobs out of 100", hardy)
	}
}

func TestDriftOffsetBoundedAndDeterministic(t *testing.T) {
	a, err := NewDrift(42, 0.2, 0.1)
	if err != nil {
		t.Fatalf("new drift: %v", err)
	}
	b, err := NewDrift(42, 0.2, 0.1)
	if err != nil {
		t.Fatalf("new drift: %v", err)
	}

	varied := false
	for gen := 0; gen < 200; gen++ {
		off := a.Offset(gen)
		if off < -0.2 || off > 0.2 {
			t.Fatalf("drift offset %v escaped amplitude bound at generation %d", off, gen)
		}
		if off != b.Offset(gen) {
			t.Fatal("drift diverged for identical seeds")
		}
		if gen > 0 && off != a.Offset(0) {
			varied = true
		}
	}
	if !varied {
		t.Fatal("drift offset never varied across generations")
	}

	if _, err := NewDrift(1, -0.1, 0.1); err == nil {
		t.Fatal("expected error for negative amplitude")
	}
	if _, err := NewDrift(1, 0.1, 0); err == nil {
		t.Fatal("expected error for zero frequency")
	}
}
