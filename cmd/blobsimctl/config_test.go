package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadTrialRequestJSON(t *testing.T) {
	path := writeFile(t, "trial.json", `{
		"population": [{"archetype": "sturdy", "count": 40}],
		"env": {"capacity": 250, "pressure": {"survival": {"offset": -0.1}}},
		"generations": 30,
		"seed": 9,
		"record_census": true
	}`)

	req, err := loadTrialRequest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(req.Population) != 1 || req.Population[0].Archetype != "sturdy" {
		t.Fatalf("unexpected population: %+v", req.Population)
	}
	if req.Population[0].Count == nil || *req.Population[0].Count != 40 {
		t.Fatalf("unexpected count: %+v", req.Population[0].Count)
	}
	if req.Env.Capacity == nil || *req.Env.Capacity != 250 {
		t.Fatalf("capacity = %v, want 250", req.Env.Capacity)
	}
	if mod, ok := req.Env.Pressure["survival"]; !ok || mod.Offset != -0.1 {
		t.Fatalf("unexpected pressure: %+v", req.Env.Pressure)
	}
	if req.Generations != 30 || req.Seed != 9 || !req.RecordCensus {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLoadSweepRequestYAML(t *testing.T) {
	path := writeFile(t, "sweep.yaml", `
axes:
  - name: survival
    values: [0.2, 0.5, 0.8]
  - name: reproduction
    min: 0.1
    max: 0.9
    step: 0.4
trials_per_point: 25
base_seed: 42
workers: 4
population:
  - archetype: base
    count: 60
env:
  capacity: 400
  mutation:
    kind: type
    prob: 0.05
    variant: mutated_base
generations: 20
`)

	req, err := loadSweepRequest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(req.Axes) != 2 {
		t.Fatalf("expected 2 axes, got %d", len(req.Axes))
	}
	if req.Axes[0].Name != "survival" || len(req.Axes[0].Values) != 3 {
		t.Fatalf("unexpected first axis: %+v", req.Axes[0])
	}
	if req.Axes[1].Step != 0.4 {
		t.Fatalf("unexpected second axis: %+v", req.Axes[1])
	}
	if req.TrialsPerPoint != 25 || req.BaseSeed != 42 || req.Workers != 4 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Env.Mutation == nil || req.Env.Mutation.Kind != "type" || req.Env.Mutation.Prob != 0.05 {
		t.Fatalf("unexpected mutation spec: %+v", req.Env.Mutation)
	}
}

func TestLoadRequestRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "trial.toml", "generations = 5")
	if _, err := loadTrialRequest(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadRequestMissingFile(t *testing.T) {
	if _, err := loadSweepRequest(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAxisFlagParsing(t *testing.T) {
	var axes axisFlag
	if err := axes.Set("survival=0.1,0.5,0.9"); err != nil {
		t.Fatalf("values form: %v", err)
	}
	if err := axes.Set("capacity=100:500:200"); err != nil {
		t.Fatalf("range form: %v", err)
	}
	if len(axes) != 2 {
		t.Fatalf("expected 2 axes, got %d", len(axes))
	}
	if len(axes[0].Values) != 3 || axes[0].Values[2] != 0.9 {
		t.Fatalf("unexpected values axis: %+v", axes[0])
	}
	if axes[1].Min != 100 || axes[1].Max != 500 || axes[1].Step != 200 {
		t.Fatalf("unexpected range axis: %+v", axes[1])
	}

	for _, bad := range []string{"noequals", "=0.1", "survival=0.1:0.9", "survival=abc"} {
		if err := axes.Set(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
