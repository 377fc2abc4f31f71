package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"blobsim/internal/model"
)

const runIndexFile = "run_index.json"

// SweepConfig is the reproducibility header of a sweep run: everything
// needed to re-run the sweep and obtain identical numbers.
type SweepConfig struct {
	RunID          string   `json:"run_id"`
	BaseSeed       int64    `json:"base_seed"`
	TrialsPerPoint int      `json:"trials_per_point"`
	Horizon        int      `json:"horizon"`
	Workers        int      `json:"workers"`
	AxisNames      []string `json:"axis_names"`
	Canceled       bool     `json:"canceled,omitempty"`
}

type RunIndexEntry struct {
	RunID          string `json:"run_id"`
	Kind           string `json:"kind"`
	BaseSeed       int64  `json:"base_seed"`
	TrialsPerPoint int    `json:"trials_per_point,omitempty"`
	Horizon        int    `json:"horizon"`
	Points         int    `json:"points,omitempty"`
	Canceled       bool   `json:"canceled,omitempty"`
	CreatedAtUTC   string `json:"created_at_utc"`
}

// SweepArtifacts bundles what WriteSweepArtifacts materializes for one run.
type SweepArtifacts struct {
	Config SweepConfig
	Points []model.PointRecord
}

// WriteSweepArtifacts writes config.json, grid.json and grid.csv under
// baseDir/<run id> and returns the run directory.
func WriteSweepArtifacts(baseDir string, artifacts SweepArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "grid.json"), artifacts.Points); err != nil {
		return "", err
	}
	if err := writeGridCSV(filepath.Join(runDir, "grid.csv"), artifacts.Config.AxisNames, artifacts.Points); err != nil {
		return "", err
	}

	return runDir, nil
}

func writeGridCSV(path string, axisNames []string, points []model.PointRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	header := make([]string, 0, len(axisNames)+6)
	header = append(header, axisNames...)
	header = append(header, "mean_final", "variance", "extinction_rate", "valid_trials", "failed_trials", "all_failed")

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, point := range points {
		if len(point.Values) != len(axisNames) {
			return fmt.Errorf("point %s has %d values for %d axes", point.Key, len(point.Values), len(axisNames))
		}
		row := make([]string, 0, len(header))
		for _, value := range point.Values {
			row = append(row, strconv.FormatFloat(value, 'g', -1, 64))
		}
		row = append(row,
			strconv.FormatFloat(point.MeanFinal, 'f', -1, 64),
			strconv.FormatFloat(point.Variance, 'f', -1, 64),
			strconv.FormatFloat(point.ExtinctionRate, 'f', -1, 64),
			strconv.Itoa(point.ValidTrials),
			strconv.Itoa(point.FailedTrials),
			strconv.FormatBool(point.AllFailed),
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadSweepConfig(baseDir, runID string) (SweepConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SweepConfig{}, false, nil
		}
		return SweepConfig{}, false, err
	}

	var cfg SweepConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SweepConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadSweepGrid(baseDir, runID string) ([]model.PointRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "grid.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var points []model.PointRecord
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, false, err
	}
	return points, true, nil
}

// AppendRunIndex records a run in baseDir's run_index.json, replacing any
// existing entry with the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportSweepArtifacts copies a run's artifact files into outDir/<run id>.
func ExportSweepArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "grid.json", "grid.csv"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
