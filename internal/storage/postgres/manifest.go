package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	queryOpenLoad = `INSERT INTO manifest (source, started_at) VALUES ($1, $2) RETURNING load_id`

	queryCloseLoad = `UPDATE manifest SET good_count = $2, bad_count = $3, completed_at = $4 WHERE load_id = $1`
)

// ManifestStore records one row per loader run: where it read from and how
// many records came out good or bad.
type ManifestStore struct {
	db *sql.DB
}

func NewManifestStore(db *sql.DB) *ManifestStore {
	if db == nil {
		panic("postgres: db must not be nil")
	}
	return &ManifestStore{db: db}
}

// OpenLoad registers a starting run and returns its load id.
func (s *ManifestStore) OpenLoad(ctx context.Context, source string, startedAt time.Time) (int64, error) {
	var loadID int64
	err := s.db.QueryRowContext(ctx, queryOpenLoad, source, startedAt.UTC()).Scan(&loadID)
	if err != nil {
		return 0, fmt.Errorf("open manifest load for %q: %w", source, err)
	}
	return loadID, nil
}

// CloseLoad finalizes a run with its counters.
func (s *ManifestStore) CloseLoad(ctx context.Context, loadID, goodCount, badCount int64, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, queryCloseLoad, loadID, goodCount, badCount, completedAt.UTC())
	if err != nil {
		return fmt.Errorf("close manifest load %d: %w", loadID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close manifest load %d: %w", loadID, err)
	}
	if affected == 0 {
		return fmt.Errorf("close manifest load %d: no such load", loadID)
	}
	return nil
}
