package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"blobsim/internal/model"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sqlx.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	// modernc.org/sqlite takes pragmas via _pragma=name(value); the
	// mattn-style _journal_mode form is silently ignored by this driver.
	db, err := sqlx.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial model.TrialRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrial(trial)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, trial.ID, trial.CreatedAtUTC, trial.SchemaVersion, trial.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetTrial(ctx context.Context, id string) (model.TrialRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.TrialRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM trials WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TrialRecord{}, false, nil
		}
		return model.TrialRecord{}, false, err
	}

	trial, err := DecodeTrial(payload)
	if err != nil {
		return model.TrialRecord{}, false, fmt.Errorf("decode trial %s: %w", id, err)
	}
	return trial, true, nil
}

func (s *SQLiteStore) ListTrials(ctx context.Context, limit int) ([]model.TrialRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	query := `SELECT payload FROM trials ORDER BY created_at_utc DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var payloads [][]byte
	if err := db.SelectContext(ctx, &payloads, query, args...); err != nil {
		return nil, err
	}

	trials := make([]model.TrialRecord, 0, len(payloads))
	for _, payload := range payloads {
		trial, err := DecodeTrial(payload)
		if err != nil {
			return nil, err
		}
		trials = append(trials, trial)
	}
	return trials, nil
}

func (s *SQLiteStore) SaveSweep(ctx context.Context, sweep model.SweepRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSweep(sweep)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sweeps (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, sweep.ID, sweep.CreatedAtUTC, sweep.SchemaVersion, sweep.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSweep(ctx context.Context, id string) (model.SweepRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SweepRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM sweeps WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SweepRecord{}, false, nil
		}
		return model.SweepRecord{}, false, err
	}

	sweep, err := DecodeSweep(payload)
	if err != nil {
		return model.SweepRecord{}, false, fmt.Errorf("decode sweep %s: %w", id, err)
	}
	return sweep, true, nil
}

func (s *SQLiteStore) ListSweeps(ctx context.Context, limit int) ([]model.SweepRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	query := `SELECT payload FROM sweeps ORDER BY created_at_utc DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var payloads [][]byte
	if err := db.SelectContext(ctx, &payloads, query, args...); err != nil {
		return nil, err
	}

	sweeps := make([]model.SweepRecord, 0, len(payloads))
	for _, payload := range payloads {
		sweep, err := DecodeSweep(payload)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sweep)
	}
	return sweeps, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trials (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
