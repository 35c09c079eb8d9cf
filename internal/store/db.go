package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"redfin-data-pipeline/internal/model"
)

// DB is the run history: runs, their stage attempts, errors and log lines.
type DB struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		error_message TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS stage_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		status TEXT,
		attempt INTEGER,
		started_at DATETIME,
		ended_at DATETIME,
		records INTEGER
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS stage_progress_attempt ON stage_progress (run_id, stage, attempt);`,
	`CREATE TABLE IF NOT EXISTS pipeline_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		level TEXT,
		message TEXT,
		details TEXT,
		created_at DATETIME
	);`,
}

// Open opens (and migrates) the sqlite database at dbPath
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate run history: %w", err)
		}
	}

	return &DB{db: db}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pipeline run
func (s *DB) SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *DB) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func (s *DB) SaveRunError(runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := s.db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// SaveStageProgress records one attempt of a stage. Saving the same attempt
// again updates its row, so each attempt appears once.
func (s *DB) SaveStageProgress(runID, stage, status string, attempt int, startedAt, endedAt *time.Time, records int) error {
	_, err := s.db.Exec(`INSERT INTO stage_progress (run_id, stage, status, attempt, started_at, ended_at, records) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stage, attempt) DO UPDATE SET
			status = excluded.status,
			started_at = COALESCE(excluded.started_at, stage_progress.started_at),
			ended_at = excluded.ended_at,
			records = excluded.records`,
		runID, stage, status, attempt, nullTime(startedAt), nullTime(endedAt), records)
	return err
}

// SavePipelineLog persists a log line with structured details
func (s *DB) SavePipelineLog(runID, stage, level, message string, details map[string]interface{}) error {
	var detailsJSON []byte
	if len(details) > 0 {
		var err error
		if detailsJSON, err = json.Marshal(details); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO pipeline_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, string(detailsJSON), now)
	return err
}

// ListRuns returns all runs, newest first
func (s *DB) ListRuns() ([]model.RunSummary, error) {
	rows, err := s.db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status
func (s *DB) GetRun(runID string) (*model.RunDetail, error) {
	var specJSON string
	run := model.RunDetail{RunSummary: model.RunSummary{ID: runID}}

	err := s.db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &run.Status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunErrors returns the errors recorded for a run, oldest first
func (s *DB) GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []model.ErrorDetail{}
	for rows.Next() {
		var e model.ErrorDetail
		var stage sql.NullString
		if err := rows.Scan(&stage, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Stage = stage.String
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// GetStageProgress returns every stage attempt recorded for a run
func (s *DB) GetStageProgress(runID string) ([]model.StageProgress, error) {
	rows, err := s.db.Query(`SELECT stage, status, attempt, started_at, ended_at, records FROM stage_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	progress := []model.StageProgress{}
	for rows.Next() {
		p := model.StageProgress{RunID: runID}
		var started, ended sql.NullTime
		if err := rows.Scan(&p.Stage, &p.Status, &p.Attempt, &started, &ended, &p.Records); err != nil {
			return nil, err
		}
		if started.Valid {
			p.StartedAt = &started.Time
		}
		if ended.Valid {
			p.EndedAt = &ended.Time
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// GetPipelineLogs returns the persisted log lines of a run
func (s *DB) GetPipelineLogs(runID string) ([]model.LogEntry, error) {
	rows, err := s.db.Query(`SELECT stage, level, message, details, created_at FROM pipeline_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.LogEntry{}
	for rows.Next() {
		var l model.LogEntry
		var details string
		if err := rows.Scan(&l.Stage, &l.Level, &l.Message, &details, &l.Timestamp); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &l.Details); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
