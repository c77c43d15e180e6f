// Package store persists batch reports to SQLite for history and status.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/report"
)

// Store provides SQLite-backed build history.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath, creating parent
// directories as needed.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch writes a report and its outcomes in one transaction.
func (s *Store) RecordBatch(r *domain.BatchReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO batches (id, started_at, finished_at, total, succeeded, failed, skipped, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.StartedAt, r.FinishedAt, r.Total, r.Succeeded, r.Failed, r.Skipped, r.Success,
	)
	if err != nil {
		return err
	}

	for i, o := range r.Outcomes {
		errsJSON, err := json.Marshal(o.Errors)
		if err != nil {
			return err
		}
		warnsJSON, err := json.Marshal(o.Warnings)
		if err != nil {
			return err
		}
		var attemptedAt interface{}
		if !o.AttemptedAt.IsZero() {
			attemptedAt = o.AttemptedAt
		}
		_, err = tx.Exec(`
			INSERT INTO outcomes (batch_id, position, game_id, kind, revision, duration_ms, attempted_at, errors, warnings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, i, o.GameID, string(o.Kind), o.Revision, o.Duration.Milliseconds(),
			attemptedAt, string(errsJSON), string(warnsJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LatestBatch reloads the most recent report, outcomes in stored order.
// Returns (nil, nil) when no batch has been recorded yet.
func (s *Store) LatestBatch() (*domain.BatchReport, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at FROM batches
		ORDER BY started_at DESC LIMIT 1
	`)

	var id string
	var started, finished time.Time
	if err := row.Scan(&id, &started, &finished); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s.loadBatch(id, started, finished)
}

// Batch reloads one report by id. Returns (nil, nil) when absent.
func (s *Store) Batch(id string) (*domain.BatchReport, error) {
	row := s.db.QueryRow(`SELECT id, started_at, finished_at FROM batches WHERE id = ?`, id)

	var started, finished time.Time
	if err := row.Scan(&id, &started, &finished); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s.loadBatch(id, started, finished)
}

func (s *Store) loadBatch(id string, started, finished time.Time) (*domain.BatchReport, error) {
	rows, err := s.db.Query(`
		SELECT game_id, kind, revision, duration_ms, attempted_at, errors, warnings
		FROM outcomes WHERE batch_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.JobOutcome
	for rows.Next() {
		var o domain.JobOutcome
		var kind string
		var revision sql.NullString
		var durationMS int64
		var attemptedAt sql.NullTime
		var errsJSON, warnsJSON sql.NullString

		if err := rows.Scan(&o.GameID, &kind, &revision, &durationMS, &attemptedAt, &errsJSON, &warnsJSON); err != nil {
			return nil, err
		}
		o.Kind = domain.OutcomeKind(kind)
		o.Revision = revision.String
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if attemptedAt.Valid {
			o.AttemptedAt = attemptedAt.Time
		}
		if errsJSON.Valid && errsJSON.String != "" && errsJSON.String != "null" {
			if err := json.Unmarshal([]byte(errsJSON.String), &o.Errors); err != nil {
				return nil, err
			}
		}
		if warnsJSON.Valid && warnsJSON.String != "" && warnsJSON.String != "null" {
			if err := json.Unmarshal([]byte(warnsJSON.String), &o.Warnings); err != nil {
				return nil, err
			}
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// counts and flattened errors are derivable, rebuild them from the
	// outcomes instead of trusting two copies to agree
	return report.Aggregate(id, started, finished, outcomes), nil
}

// BatchSummary is one batches table row, without outcomes.
type BatchSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	Success    bool
}

// ListOptions specifies filters for listing batches
type ListOptions struct {
	Limit int // 0 means 20
}

// ListBatches returns recent batches, newest first.
func (s *Store) ListBatches(opts ListOptions) ([]BatchSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, total, succeeded, failed, skipped, success
		FROM batches ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []BatchSummary
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Total, &b.Succeeded, &b.Failed, &b.Skipped, &b.Success); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GameRecord is the most recent outcome recorded for one game.
type GameRecord struct {
	GameID    string
	Kind      domain.OutcomeKind
	Revision  string
	BatchID   string
	StartedAt time.Time
}

// LastOutcomes returns the newest recorded outcome per game.
func (s *Store) LastOutcomes() (map[string]GameRecord, error) {
	rows, err := s.db.Query(`
		SELECT o.game_id, o.kind, o.revision, o.batch_id, b.started_at
		FROM outcomes o
		JOIN batches b ON b.id = o.batch_id
		ORDER BY b.started_at DESC, o.position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]GameRecord)
	for rows.Next() {
		var rec GameRecord
		var kind string
		var revision sql.NullString
		if err := rows.Scan(&rec.GameID, &kind, &revision, &rec.BatchID, &rec.StartedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.OutcomeKind(kind)
		rec.Revision = revision.String
		if _, seen := records[rec.GameID]; !seen {
			records[rec.GameID] = rec
		}
	}
	return records, rows.Err()
}
