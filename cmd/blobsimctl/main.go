package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"blobsim/internal/blob"
	"blobsim/internal/model"
	"blobsim/internal/stats"
	"blobsim/internal/storage"
	simapi "blobsim/pkg/blobsim"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "trial":
		return runTrial(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "grid":
		return runGrid(ctx, args[1:])
	case "trajectory":
		return runTrajectory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "profiles":
		return runProfiles(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "blobsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runTrial(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trial", flag.ContinueOnError)
	configPath := fs.String("config", "", "trial request file (JSON or YAML)")
	archetype := fs.String("archetype", "base", "blob archetype")
	survival := fs.Float64("survival", -1, "per-generation survival probability (overrides archetype)")
	reproduction := fs.Float64("reproduction", -1, "per-generation reproduction probability (overrides archetype)")
	count := fs.Int("count", 100, "initial population size")
	offspring := fs.String("offspring", "", "offspring distribution: fixed|poisson")
	offspringCount := fs.Int("offspring-count", 0, "fixed offspring count")
	lambda := fs.Float64("lambda", 0, "poisson offspring mean")
	capacity := fs.Int("capacity", 1000, "environment carrying capacity")
	unbounded := fs.Bool("unbounded", false, "disable the carrying capacity")
	generations := fs.Int("gens", 100, "generation horizon")
	seed := fs.Int64("seed", 1, "rng seed")
	census := fs.Bool("census", false, "record per-type population counts")
	trajectory := fs.Bool("trajectory", false, "print the full population trajectory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "blobsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req simapi.TrialRequest
	if *configPath != "" {
		loaded, err := loadTrialRequest(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	} else {
		spec := simapi.PopulationSpec{
			Archetype:  *archetype,
			Offspring:  *offspring,
			OffspringN: *offspringCount,
			Lambda:     *lambda,
			Count:      count,
		}
		if *survival >= 0 {
			spec.Survival = survival
		}
		if *reproduction >= 0 {
			spec.Reproduction = reproduction
		}
		req = simapi.TrialRequest{
			Population:   []simapi.PopulationSpec{spec},
			Env:          simapi.EnvironmentSpec{Capacity: capacity, Unbounded: *unbounded},
			Generations:  *generations,
			Seed:         *seed,
			RecordCensus: *census,
		}
	}

	client, err := simapi.New(simapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunTrial(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("trial completed trial_id=%s terminal=%s generations=%d seed=%d\n",
		summary.TrialID, summary.Terminal, summary.Generations, req.Seed)
	fmt.Printf("population initial=%s final=%s\n",
		humanize.Comma(int64(summary.InitialSize)), humanize.Comma(int64(summary.FinalSize)))
	if *trajectory {
		for i, size := range summary.Trajectory {
			fmt.Printf("generation=%d size=%d\n", i+1, size)
		}
	}
	if req.RecordCensus {
		for i, counts := range summary.Census {
			fmt.Printf("generation=%d census=%s\n", i+1, formatCensus(counts))
		}
	}
	return nil
}

// axisFlag collects repeated -axis values. Each value is either
// "name=v1,v2,v3" or the range form "name=min:max:step".
type axisFlag []simapi.AxisSpec

func (a *axisFlag) String() string {
	parts := make([]string, len(*a))
	for i, spec := range *a {
		parts[i] = spec.Name
	}
	return strings.Join(parts, ",")
}

func (a *axisFlag) Set(value string) error {
	name, rest, ok := strings.Cut(value, "=")
	if !ok || name == "" {
		return fmt.Errorf("axis must look like name=v1,v2 or name=min:max:step, got %q", value)
	}

	spec := simapi.AxisSpec{Name: name}
	if strings.Contains(rest, ":") {
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return fmt.Errorf("range form needs min:max:step, got %q", rest)
		}
		var err error
		if spec.Min, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return fmt.Errorf("axis %s min: %w", name, err)
		}
		if spec.Max, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return fmt.Errorf("axis %s max: %w", name, err)
		}
		if spec.Step, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return fmt.Errorf("axis %s step: %w", name, err)
		}
	} else {
		for _, raw := range strings.Split(rest, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("axis %s value %q: %w", name, raw, err)
			}
			spec.Values = append(spec.Values, v)
		}
	}
	*a = append(*a, spec)
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "sweep request file (JSON or YAML)")
	var axes axisFlag
	fs.Var(&axes, "axis", "swept axis, repeatable: name=v1,v2 or name=min:max:step")
	trials := fs.Int("trials", 50, "trials per grid point")
	baseSeed := fs.Int64("seed", 1, "base rng seed")
	workers := fs.Int("workers", 0, "worker count (0 uses GOMAXPROCS)")
	archetype := fs.String("archetype", "base", "blob archetype")
	count := fs.Int("count", 100, "initial population size")
	capacity := fs.Int("capacity", 1000, "environment carrying capacity")
	generations := fs.Int("gens", 100, "generation horizon")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "blobsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req simapi.SweepRequest
	if *configPath != "" {
		loaded, err := loadSweepRequest(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	} else {
		req = simapi.SweepRequest{
			Axes:           axes,
			TrialsPerPoint: *trials,
			BaseSeed:       *baseSeed,
			Workers:        *workers,
			Population:     []simapi.PopulationSpec{{Archetype: *archetype, Count: count}},
			Env:            simapi.EnvironmentSpec{Capacity: capacity},
			Generations:    *generations,
		}
	}
	if len(req.Axes) == 0 {
		return errors.New("sweep requires at least one -axis or a config file")
	}

	client, err := simapi.New(simapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunSweep(ctx, req)
	if err != nil && !summary.Canceled {
		return err
	}

	fmt.Printf("sweep completed sweep_id=%s points=%d trials_per_point=%d seed=%d canceled=%t\n",
		summary.SweepID, len(summary.Points), req.TrialsPerPoint, req.BaseSeed, summary.Canceled)
	printGrid(summary.Points)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	if err != nil {
		return err
	}
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, entry := range entries {
		age := entry.CreatedAtUTC
		if created, err := time.Parse(time.RFC3339Nano, entry.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Printf("run_id=%s kind=%s seed=%d horizon=%d points=%d canceled=%t created=%s\n",
			entry.RunID, entry.Kind, entry.BaseSeed, entry.Horizon, entry.Points, entry.Canceled, age)
	}
	return nil
}

func runGrid(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	sweepID := fs.String("sweep-id", "", "sweep id")
	latest := fs.Bool("latest", false, "show the most recent sweep")
	jsonOut := fs.Bool("json", false, "emit grid as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "blobsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := simapi.New(simapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	points, err := client.Grid(ctx, simapi.GridRequest{SweepID: *sweepID, Latest: *latest})
	if err != nil {
		return err
	}

	if *jsonOut {
		data, err := json.MarshalIndent(points, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	printGrid(points)
	return nil
}

func runTrajectory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	trialID := fs.String("trial-id", "", "trial id")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "blobsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *trialID == "" {
		return errors.New("trajectory requires -trial-id")
	}

	client, err := simapi.New(simapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.Trial(ctx, *trialID)
	if err != nil {
		return err
	}

	fmt.Printf("trial_id=%s terminal=%s seed=%d horizon=%d\n",
		record.ID, record.Terminal, record.Seed, record.Horizon)
	for i, size := range record.Trajectory {
		if len(record.Census) == len(record.Trajectory) {
			fmt.Printf("generation=%d size=%d census=%s\n", i+1, size, formatCensus(record.Census[i]))
			continue
		}
		fmt.Printf("generation=%d size=%d\n", i+1, size)
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent sweep from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := simapi.New(simapi.Options{
		StoreKind:    "memory",
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(context.Background(), simapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func runProfiles(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("profiles", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, name := range blob.ArchetypeNames() {
		preset, err := blob.Archetype(name)
		if err != nil {
			return err
		}
		fmt.Printf("archetype=%s survival=%.2f reproduction=%.2f offspring=%s\n",
			name, preset.SurvivalProb, preset.ReproductionProb, preset.Offspring.Name())
	}
	return nil
}

func printGrid(points []model.PointRecord) {
	for _, point := range points {
		if point.AllFailed {
			fmt.Printf("point %s all_failed=true failed_trials=%d\n", point.Key, point.FailedTrials)
			continue
		}
		fmt.Printf("point %s mean_final=%.2f variance=%.2f extinction_rate=%.3f valid=%d failed=%d\n",
			point.Key, point.MeanFinal, point.Variance, point.ExtinctionRate, point.ValidTrials, point.FailedTrials)
	}
}

func formatCensus(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: blobsimctl <init|trial|sweep|runs|grid|trajectory|export|profiles> [flags]", msg)
}
