package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"propscout/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_runs (
		id TEXT PRIMARY KEY,
		criteria_hash TEXT NOT NULL,
		criteria JSON,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		sources_total INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		listings_valid INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		top_score REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		title TEXT,
		url TEXT,
		source TEXT,
		price REAL,
		location TEXT,
		is_valid BOOLEAN,
		match_score REAL,
		price_score REAL,
		location_score REAL,
		details_score REAL,
		investment_score REAL,
		distance_miles REAL,
		data JSON,
		created_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES search_runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_hash ON search_runs(criteria_hash, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON search_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_run ON analyses(run_id, match_score);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.SearchRun) error {
	criteria, err := json.Marshal(run.Criteria)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO search_runs (id, criteria_hash, criteria, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CriteriaHash, string(criteria), run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.SearchRun) error {
	_, err := s.db.Exec(`
		UPDATE search_runs SET finished_at = ?, status = ?, sources_total = ?, listings_found = ?,
			listings_valid = ?, errors_count = ?, top_score = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.SourcesTotal, run.ListingsFound,
		run.ListingsValid, run.ErrorsCount, run.TopScore, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id string) (*models.SearchRun, error) {
	row := s.db.QueryRow(`
		SELECT id, criteria_hash, criteria, started_at, finished_at, status, sources_total,
			listings_found, listings_valid, errors_count, top_score
		FROM search_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(limit int) ([]models.SearchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, criteria_hash, criteria, started_at, finished_at, status, sources_total,
			listings_found, listings_valid, errors_count, top_score
		FROM search_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SearchRun, error) {
	var run models.SearchRun
	var criteria sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.CriteriaHash, &criteria, &run.StartedAt, &finishedAt, &run.Status,
		&run.SourcesTotal, &run.ListingsFound, &run.ListingsValid, &run.ErrorsCount, &run.TopScore); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if criteria.Valid {
		if err := json.Unmarshal([]byte(criteria.String), &run.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// SaveResults stores one row per analyzed listing. The full result is kept
// as JSON next to the columns the dashboard sorts and filters on.
func (s *SQLiteStore) SaveResults(runID string, results []models.PropertyResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO analyses (run_id, title, url, source, price, location, is_valid, match_score,
			price_score, location_score, details_score, investment_score, distance_miles, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}

		var distance sql.NullFloat64
		if la := r.Analysis.LocationAnalysis; la != nil && la.DistanceMiles != nil {
			distance = sql.NullFloat64{Float64: *la.DistanceMiles, Valid: true}
		}

		sub := r.Analysis.SubScores
		if _, err := stmt.Exec(runID, r.Listing.Title, r.Listing.URL, r.Listing.Source, r.Listing.PriceValue,
			r.Listing.Location, r.Validation.IsValid, r.Analysis.MatchScore,
			sub.Price, sub.Location, sub.Details, sub.Investment, distance, string(data), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetResults returns a run's results ordered by match score, best first.
func (s *SQLiteStore) GetResults(runID string) ([]models.PropertyResult, error) {
	rows, err := s.db.Query(`
		SELECT data FROM analyses WHERE run_id = ? ORDER BY match_score DESC, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.PropertyResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r models.PropertyResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Log(runID string, level models.LogLevel, message, source string) error {
	var run any
	if runID != "" {
		run = runID
	}
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		run, time.Now(), level, message, source)
	return err
}

func (s *SQLiteStore) GetLogs(runID string) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(run_id, ''), timestamp, level, message, COALESCE(source, '')
		FROM run_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var payload any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		payload = string(data)
	}

	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, payload, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ResetAllData clears all SQLite operational tables
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"run_logs",
		"analyses",
		"search_runs",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
