package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// OffspringSpec describes how many offspring a successful reproduction
// event produces.
type OffspringSpec struct {
	Kind   string  `json:"kind"`
	Count  int     `json:"count,omitempty"`
	Lambda float64 `json:"lambda,omitempty"`
}

// BlobSpec is the persisted trait bundle of one blob type.
type BlobSpec struct {
	Type             string        `json:"type"`
	SurvivalProb     float64       `json:"survival_prob"`
	ReproductionProb float64       `json:"reproduction_prob"`
	Offspring        OffspringSpec `json:"offspring"`
}

type TrialRecord struct {
	VersionedRecord
	ID           string           `json:"id"`
	CreatedAtUTC string           `json:"created_at_utc"`
	Seed         int64            `json:"seed"`
	Horizon      int              `json:"horizon"`
	Generations  int              `json:"generations"`
	Terminal     string           `json:"terminal"`
	InitialSize  int              `json:"initial_size"`
	FinalSize    int              `json:"final_size"`
	Trajectory   []int            `json:"trajectory"`
	Census       []map[string]int `json:"census,omitempty"`
}

// PointRecord is one grid cell of a persisted sweep: the swept parameter
// values in axis order plus the aggregated statistics for that cell.
type PointRecord struct {
	Key            string    `json:"key"`
	Values         []float64 `json:"values"`
	MeanFinal      float64   `json:"mean_final"`
	Variance       float64   `json:"variance"`
	ExtinctionRate float64   `json:"extinction_rate"`
	ValidTrials    int       `json:"valid_trials"`
	FailedTrials   int       `json:"failed_trials"`
	AllFailed      bool      `json:"all_failed"`
}

type SweepRecord struct {
	VersionedRecord
	ID             string        `json:"id"`
	CreatedAtUTC   string        `json:"created_at_utc"`
	BaseSeed       int64         `json:"base_seed"`
	TrialsPerPoint int           `json:"trials_per_point"`
	Horizon        int           `json:"horizon"`
	AxisNames      []string      `json:"axis_names"`
	Points         []PointRecord `json:"points"`
	Canceled       bool          `json:"canceled,omitempty"`
}
