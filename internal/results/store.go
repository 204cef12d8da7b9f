// Package results persists benchmark runs: one row per run plus one row per
// aggregated metric value, in SQLite.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultSQLitePath = "data/xquad-eval.db"
	defaultLimit      = 50
)

type Store struct {
	db *sql.DB
}

type Run struct {
	ID         int64
	Model      string
	Provider   string
	Language   string
	NumFewshot int
	NumDocs    int
	Duration   time.Duration
	EvalDate   time.Time
	Metrics    map[string]float64
}

func NewStore(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("results: empty db path")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("results: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("results: open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection to :memory: is a distinct database, so the
		// in-memory store must stay on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("results: ping db: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("results: nil db")
	}

	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			language TEXT NOT NULL,
			num_fewshot INTEGER NOT NULL,
			num_docs INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			eval_date INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_metrics (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_language ON runs(language)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model_language ON runs(model, language)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_eval_date ON runs(eval_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("results: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil {
		return errors.New("results: nil store")
	}
	if ctx == nil {
		return errors.New("results: nil context")
	}
	if run == nil {
		return errors.New("results: nil run")
	}

	model := strings.TrimSpace(run.Model)
	provider := strings.TrimSpace(run.Provider)
	language := strings.TrimSpace(run.Language)
	if model == "" || provider == "" || language == "" {
		return errors.New("results: missing model/provider/language")
	}

	evalDate := run.EvalDate
	if evalDate.IsZero() {
		evalDate = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("results: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (model, provider, language, num_fewshot, num_docs, duration_ms, eval_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, model, provider, language, run.NumFewshot, run.NumDocs, run.Duration.Milliseconds(), evalDate.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("results: insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("results: run id: %w", err)
	}

	for name, value := range run.Metrics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)
		`, id, name, value); err != nil {
			return fmt.Errorf("results: insert metric %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("results: commit: %w", err)
	}

	run.ID = id
	run.EvalDate = evalDate
	run.Model = model
	run.Provider = provider
	run.Language = language
	return nil
}

func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("results: nil store")
	}
	if ctx == nil {
		return nil, errors.New("results: nil context")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, provider, language, num_fewshot, num_docs, duration_ms, eval_date
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("results: run %d not found", id)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM run_metrics WHERE run_id = ? ORDER BY name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("results: query metrics: %w", err)
	}
	defer rows.Close()

	run.Metrics = make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("results: scan metric: %w", err)
		}
		run.Metrics[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: scan metrics: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, language string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("results: nil store")
	}
	if ctx == nil {
		return nil, errors.New("results: nil context")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	language = strings.TrimSpace(language)
	query := `
		SELECT id, model, provider, language, num_fewshot, num_docs, duration_ms, eval_date
		FROM runs
	`
	args := []any{}
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	query += ` ORDER BY eval_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("results: query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func (s *Store) ModelHistory(ctx context.Context, model, language string) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("results: nil store")
	}
	if ctx == nil {
		return nil, errors.New("results: nil context")
	}
	model = strings.TrimSpace(model)
	language = strings.TrimSpace(language)
	if model == "" || language == "" {
		return nil, errors.New("results: missing model/language")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, provider, language, num_fewshot, num_docs, duration_ms, eval_date
		FROM runs
		WHERE model = ? AND language = ?
		ORDER BY eval_date DESC
	`, model, language)
	if err != nil {
		return nil, fmt.Errorf("results: query model history: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Leaderboard ranks runs for one language by a named metric, best first.
func (s *Store) Leaderboard(ctx context.Context, language, metric string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("results: nil store")
	}
	if ctx == nil {
		return nil, errors.New("results: nil context")
	}
	language = strings.TrimSpace(language)
	metric = strings.TrimSpace(metric)
	if language == "" {
		return nil, errors.New("results: empty language")
	}
	if metric == "" {
		metric = "f1"
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.model, r.provider, r.language, r.num_fewshot, r.num_docs, r.duration_ms, r.eval_date
		FROM runs r
		JOIN run_metrics m ON m.run_id = r.id AND m.name = ?
		WHERE r.language = ?
		ORDER BY m.value DESC, r.eval_date DESC
		LIMIT ?
	`, metric, language, limit)
	if err != nil {
		return nil, fmt.Errorf("results: query leaderboard: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var durationMS, evalDateMS int64
	if err := row.Scan(
		&r.ID,
		&r.Model,
		&r.Provider,
		&r.Language,
		&r.NumFewshot,
		&r.NumDocs,
		&durationMS,
		&evalDateMS,
	); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.EvalDate = time.UnixMilli(evalDateMS).UTC()
	return &r, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("results: scan run: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: scan rows: %w", err)
	}
	return out, nil
}
