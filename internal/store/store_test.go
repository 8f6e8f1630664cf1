package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/ingest"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestNewRunEncodesInputFilesAsJSON(t *testing.T) {
	run := &analysis.RunResult{
		RunID:      "run-1",
		InputFiles: []string{"traffic_a.json", "traffic_b.json"},
	}

	rec := NewRun(run)

	var files []string
	if err := json.Unmarshal([]byte(rec.InputFiles), &files); err != nil {
		t.Fatalf("input_files is not a JSON array: %v (%q)", err, rec.InputFiles)
	}
	if !reflect.DeepEqual(files, run.InputFiles) {
		t.Errorf("input files = %v, want %v", files, run.InputFiles)
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	cfg := &config.StoreConfig{
		Path:         filepath.Join(t.TempDir(), "runs.db"),
		MaxOpenConns: 1,
	}
	st, err := New(cfg, nopLogger())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	now := time.Now().UTC().Truncate(time.Second)
	run := &analysis.RunResult{
		RunID:           "run-42",
		StartedAt:       now,
		FinishedAt:      now.Add(2 * time.Second),
		RuleFingerprint: "abcdef123456",
		InputFiles:      []string{"traffic.json"},
		Stats:           analysis.RunStats{FieldsAnalyzed: 1, FieldsBlacklisted: 1},
	}
	results := []classifier.Result{{
		Path:        "request.user.email",
		FinalKey:    "email",
		Source:      ingest.SourceRequest,
		Blacklisted: true,
		Categories:  []patterns.Category{patterns.CategorySPI},
		Confidence:  classifier.ConfidenceHigh,
		Reasons:     []string{"Key-based match"},
	}}

	ctx := context.Background()
	if err := st.SaveRun(ctx, NewRun(run), results); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	runs, err := st.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-42" {
		t.Fatalf("RecentRuns = %+v, want one run-42", runs)
	}

	var files []string
	if err := json.Unmarshal([]byte(runs[0].InputFiles), &files); err != nil {
		t.Fatalf("persisted input_files is not a JSON array: %v (%q)", err, runs[0].InputFiles)
	}
	if !reflect.DeepEqual(files, run.InputFiles) {
		t.Errorf("persisted input files = %v, want %v", files, run.InputFiles)
	}

	fields, err := st.ResultsForRun(ctx, "run-42")
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if len(fields) != 1 || fields[0].FinalKey != "email" || !fields[0].Blacklisted {
		t.Errorf("ResultsForRun = %+v", fields)
	}
}
