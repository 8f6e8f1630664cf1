// Package store persists analysis run history to SQLite, so reviewers
// can compare blacklists across runs and audit when a field first
// appeared.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Run is a persisted analysis run summary.
type Run struct {
	ID                string    `db:"id" json:"id"`
	StartedAt         time.Time `db:"started_at" json:"started_at"`
	FinishedAt        time.Time `db:"finished_at" json:"finished_at"`
	RuleFingerprint   string    `db:"rule_fingerprint" json:"rule_fingerprint"`
	InputFiles        string    `db:"input_files" json:"input_files"`
	FieldsAnalyzed    int       `db:"fields_analyzed" json:"fields_analyzed"`
	FieldsBlacklisted int       `db:"fields_blacklisted" json:"fields_blacklisted"`
	FieldsExcluded    int       `db:"fields_excluded" json:"fields_excluded"`
}

// FieldResult is one persisted field decision within a run.
type FieldResult struct {
	RunID       string `db:"run_id" json:"run_id"`
	Path        string `db:"path" json:"path"`
	FinalKey    string `db:"final_key" json:"final_key"`
	Source      string `db:"source" json:"source"`
	Blacklisted bool   `db:"blacklisted" json:"blacklisted"`
	Categories  string `db:"categories" json:"categories"`
	Confidence  string `db:"confidence" json:"confidence"`
	Reasons     string `db:"reasons" json:"reasons"`
}

// NewRun converts a finished pipeline run into its persisted form.
// Input files are stored as a JSON array so every writer encodes the
// column identically.
func NewRun(run *analysis.RunResult) *Run {
	files, _ := json.Marshal(run.InputFiles)
	return &Run{
		ID:                run.RunID,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		RuleFingerprint:   run.RuleFingerprint,
		InputFiles:        string(files),
		FieldsAnalyzed:    run.Stats.FieldsAnalyzed,
		FieldsBlacklisted: run.Stats.FieldsBlacklisted,
		FieldsExcluded:    run.Stats.FieldsExcluded,
	}
}

// Store handles run history persistence.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	started_at         TIMESTAMP NOT NULL,
	finished_at        TIMESTAMP NOT NULL,
	rule_fingerprint   TEXT NOT NULL,
	input_files        TEXT NOT NULL,
	fields_analyzed    INTEGER NOT NULL,
	fields_blacklisted INTEGER NOT NULL,
	fields_excluded    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS field_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	path        TEXT NOT NULL,
	final_key   TEXT NOT NULL,
	source      TEXT NOT NULL,
	blacklisted INTEGER NOT NULL,
	categories  TEXT NOT NULL,
	confidence  TEXT NOT NULL,
	reasons     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_results_run ON field_results(run_id);
CREATE INDEX IF NOT EXISTS idx_field_results_path ON field_results(path);
`

// New opens (or creates) the run history database.
func New(cfg *config.StoreConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)

	s := &Store{db: db, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Run store initialized", zap.String("path", cfg.Path))
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("run store ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create run store schema: %w", err)
	}
	return nil
}

// SaveRun records a run summary and its per-field decisions in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run, results []classifier.Result) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, rule_fingerprint, input_files,
			fields_analyzed, fields_blacklisted, fields_excluded)
		VALUES (:id, :started_at, :finished_at, :rule_fingerprint, :input_files,
			:fields_analyzed, :fields_blacklisted, :fields_excluded)`, run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO field_results (run_id, path, final_key, source, blacklisted, categories, confidence, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare field insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		cats, _ := json.Marshal(r.Categories)
		_, err := stmt.ExecContext(ctx,
			run.ID,
			r.Path,
			r.FinalKey,
			string(r.Source),
			r.Blacklisted,
			string(cats),
			string(r.Confidence),
			strings.Join(r.Reasons, "; "),
		)
		if err != nil {
			return fmt.Errorf("failed to insert field result for %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("Run persisted",
		zap.String("run_id", run.ID),
		zap.Int("fields", len(results)))

	return nil
}

// RecentRuns returns the most recent run summaries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs,
		`SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ResultsForRun returns every field decision recorded for a run.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]FieldResult, error) {
	var results []FieldResult
	err := s.db.SelectContext(ctx, &results,
		`SELECT * FROM field_results WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run results: %w", err)
	}
	return results, nil
}

// FieldHistory returns prior decisions for a field path across runs,
// newest first.
func (s *Store) FieldHistory(ctx context.Context, path string, limit int) ([]FieldResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []FieldResult
	err := s.db.SelectContext(ctx, &results, `
		SELECT fr.* FROM field_results fr
		JOIN runs r ON r.id = fr.run_id
		WHERE fr.path = ?
		ORDER BY r.started_at DESC
		LIMIT ?`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load field history: %w", err)
	}
	return results, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
