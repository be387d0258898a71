package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists scoring runs to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scoring_runs (
			id              TEXT PRIMARY KEY,
			timestamp       INTEGER NOT NULL,
			catalog_version TEXT,
			best_match      TEXT,
			best_score      INTEGER,
			features        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON scoring_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS philosophy_scores (
			run_id           TEXT NOT NULL REFERENCES scoring_runs(id) ON DELETE CASCADE,
			ordinal          INTEGER NOT NULL,
			philosophy_id    TEXT NOT NULL,
			score            INTEGER NOT NULL,
			excluded         INTEGER NOT NULL,
			exclusion_reason TEXT,
			PRIMARY KEY (run_id, ordinal)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_philosophy ON philosophy_scores(philosophy_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *Run) error {
	features, err := json.Marshal(run.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO scoring_runs
		(id, timestamp, catalog_version, best_match, best_score, features)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.Timestamp.UnixMilli(), run.CatalogVersion,
		run.BestMatch, run.BestScore, string(features),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, s := range run.Scores {
		_, err = tx.ExecContext(ctx, `INSERT INTO philosophy_scores
			(run_id, ordinal, philosophy_id, score, excluded, exclusion_reason)
			VALUES (?,?,?,?,?,?)`,
			run.ID, i, s.ID, s.Score, s.Excluded, s.ExclusionReason,
		)
		if err != nil {
			return fmt.Errorf("insert score %s: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Debug().Str("run_id", run.ID).Str("best_match", run.BestMatch).Msg("scoring run recorded")
	return nil
}

func (r *SQLiteRecorder) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, catalog_version, best_match, best_score, features
		FROM scoring_runs ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	runs := []Run{}
	for rows.Next() {
		var (
			run      Run
			ts       int64
			features string
		)
		if err := rows.Scan(&run.ID, &ts, &run.CatalogVersion, &run.BestMatch, &run.BestScore, &features); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(features), &run.Features); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode features of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The pool holds a single connection, so scores are loaded after the
	// run cursor is closed.
	for i := range runs {
		scores, err := r.scores(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Scores = scores
	}
	return runs, nil
}

func (r *SQLiteRecorder) scores(ctx context.Context, runID string) ([]PhilosophyScore, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT philosophy_id, score, excluded, exclusion_reason
		FROM philosophy_scores WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	scores := []PhilosophyScore{}
	for rows.Next() {
		var s PhilosophyScore
		if err := rows.Scan(&s.ID, &s.Score, &s.Excluded, &s.ExclusionReason); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
