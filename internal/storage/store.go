package storage

import (
	"context"

	"blobsim/internal/model"
)

// Store persists finished trial and sweep records for the CLI and any
// downstream analysis tooling.
type Store interface {
	Init(ctx context.Context) error
	SaveTrial(ctx context.Context, trial model.TrialRecord) error
	GetTrial(ctx context.Context, id string) (model.TrialRecord, bool, error)
	ListTrials(ctx context.Context, limit int) ([]model.TrialRecord, error)
	SaveSweep(ctx context.Context, sweep model.SweepRecord) error
	GetSweep(ctx context.Context, id string) (model.SweepRecord, bool, error)
	ListSweeps(ctx context.Context, limit int) ([]model.SweepRecord, error)
}
