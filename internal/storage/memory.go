package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"blobsim/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	trials      map[string]model.TrialRecord
	sweeps      map[string]model.SweepRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init is idempotent: reinitializing an open store keeps its contents.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.trials = make(map[string]model.TrialRecord)
	s.sweeps = make(map[string]model.SweepRecord)
	return nil
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.trials[trial.ID] = trial
	return nil
}

func (s *MemoryStore) GetTrial(_ context.Context, id string) (model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trial, ok := s.trials[id]
	return trial, ok, nil
}

func (s *MemoryStore) ListTrials(_ context.Context, limit int) ([]model.TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials := make([]model.TrialRecord, 0, len(s.trials))
	for _, trial := range s.trials {
		trials = append(trials, trial)
	}
	// RFC3339 timestamps sort lexicographically; newest first, ID as
	// tie-breaker.
	sort.Slice(trials, func(i, j int) bool {
		if trials[i].CreatedAtUTC != trials[j].CreatedAtUTC {
			return trials[i].CreatedAtUTC > trials[j].CreatedAtUTC
		}
		return trials[i].ID > trials[j].ID
	})
	return truncate(trials, limit), nil
}

func (s *MemoryStore) SaveSweep(_ context.Context, sweep model.SweepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.sweeps[sweep.ID] = sweep
	return nil
}

func (s *MemoryStore) GetSweep(_ context.Context, id string) (model.SweepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sweep, ok := s.sweeps[id]
	return sweep, ok, nil
}

func (s *MemoryStore) ListSweeps(_ context.Context, limit int) ([]model.SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sweeps := make([]model.SweepRecord, 0, len(s.sweeps))
	for _, sweep := range s.sweeps {
		sweeps = append(sweeps, sweep)
	}
	sort.Slice(sweeps, func(i, j int) bool {
		if sweeps[i].CreatedAtUTC != sweeps[j].CreatedAtUTC {
			return sweeps[i].CreatedAtUTC > sweeps[j].CreatedAtUTC
		}
		return sweeps[i].ID > sweeps[j].ID
	})
	return truncate(sweeps, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
