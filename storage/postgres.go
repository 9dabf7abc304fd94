package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propscout/models"
)

// PostgresStore mirrors search runs and their analyses into a shared
// Postgres database for reporting outside this process.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS search_runs (
			id             UUID PRIMARY KEY,
			criteria_hash  TEXT        NOT NULL,
			criteria       JSONB,
			started_at     TIMESTAMPTZ NOT NULL,
			finished_at    TIMESTAMPTZ,
			status         TEXT        NOT NULL,
			listings_found INTEGER     NOT NULL DEFAULT 0,
			listings_valid INTEGER     NOT NULL DEFAULT 0,
			errors_count   INTEGER     NOT NULL DEFAULT 0,
			top_score      NUMERIC(4,2) NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS property_analyses (
			id          BIGSERIAL PRIMARY KEY,
			run_id      UUID        NOT NULL REFERENCES search_runs(id) ON DELETE CASCADE,
			title       TEXT        NOT NULL DEFAULT '',
			url         TEXT        NOT NULL DEFAULT '',
			price       NUMERIC(14,2),
			location    TEXT        NOT NULL DEFAULT '',
			lat         DOUBLE PRECISION,
			lng         DOUBLE PRECISION,
			match_score NUMERIC(4,2) NOT NULL,
			analysis    JSONB       NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_property_analyses_run ON property_analyses(run_id, match_score DESC);
		CREATE INDEX IF NOT EXISTS idx_search_runs_hash ON search_runs(criteria_hash, started_at DESC);
	`)
	return err
}

// SaveRun inserts or refreshes a run row.
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.SearchRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}
	criteria, err := json.Marshal(run.Criteria)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO search_runs (id, criteria_hash, criteria, started_at, finished_at, status,
			listings_found, listings_valid, errors_count, top_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			listings_found = EXCLUDED.listings_found,
			listings_valid = EXCLUDED.listings_valid,
			errors_count = EXCLUDED.errors_count,
			top_score = EXCLUDED.top_score`,
		id, run.CriteriaHash, criteria, run.StartedAt, run.FinishedAt, string(run.Status),
		run.ListingsFound, run.ListingsValid, run.ErrorsCount, run.TopScore,
	)
	return err
}

// SaveResults replaces the analyses stored for runID.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, results []models.PropertyResult) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", runID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_analyses WHERE run_id = $1`, id); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range results {
		analysis, err := json.Marshal(r)
		if err != nil {
			return err
		}

		var price, lat, lng *float64
		if r.Listing.HasPrice() {
			p := r.Listing.PriceValue
			price = &p
		}
		if la := r.Analysis.LocationAnalysis; la != nil && la.Coordinates != nil {
			lat, lng = &la.Coordinates.Latitude, &la.Coordinates.Longitude
		}

		batch.Queue(`
			INSERT INTO property_analyses (run_id, title, url, price, location, lat, lng, match_score, analysis)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, r.Listing.Title, r.Listing.URL, price, r.Listing.Location, lat, lng, r.Analysis.MatchScore, analysis)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert analyses: %w", err)
	}
	return tx.Commit(ctx)
}

// TopMatches returns the best scored listings across runs for a criteria hash.
func (s *PostgresStore) TopMatches(ctx context.Context, criteriaHash string, limit int) ([]models.PropertyResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pa.analysis
		FROM property_analyses pa
		JOIN search_runs sr ON sr.id = pa.run_id
		WHERE sr.criteria_hash = $1
		ORDER BY pa.match_score DESC, pa.created_at DESC
		LIMIT $2`, criteriaHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.PropertyResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r models.PropertyResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
