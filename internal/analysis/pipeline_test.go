package analysis

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func testPipeline(t *testing.T, events Events) *Pipeline {
	t.Helper()
	rules, err := patterns.Compile(patterns.Default(), nopLogger())
	if err != nil {
		t.Fatalf("Failed to compile patterns: %v", err)
	}
	cfg := &config.AnalysisConfig{Workers: 3, SampleLimit: 5}
	cls := classifier.New(rules, nopLogger())
	return New(cfg, cls, nil, nopLogger(), events)
}

func writeExtraction(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleExtraction = `{
	"data": [
		{
			"request.user.email": ["john@example.com"],
			"request.user.accountAge": ["123"],
			"response.statusCode": ["200"],
			"response.billing.creditCard": ["4111 1111 1111 1111"],
			"headers.X-Subscriber-Id": ["312025000012345"]
		}
	]
}`

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	file := writeExtraction(t, dir, "extraction.json", sampleExtraction)

	var mu sync.Mutex
	var seen []classifier.Result
	var statuses []string

	p := testPipeline(t, Events{
		Classification: func(r classifier.Result) {
			mu.Lock()
			seen = append(seen, r)
			mu.Unlock()
		},
		RunStatus: func(status string, _ *RunResult) {
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
		},
	})

	run, err := p.Run(context.Background(), []string{file})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.RunID == "" {
		t.Error("run has no ID")
	}
	if run.Stats.FieldsAnalyzed != 5 {
		t.Errorf("FieldsAnalyzed = %d, want 5", run.Stats.FieldsAnalyzed)
	}
	if run.Stats.FilesRead != 1 || run.Stats.FilesFailed != 0 {
		t.Errorf("file stats = %+v", run.Stats)
	}

	wantPayload := map[string]bool{"email": true, "creditcard": true}
	if len(run.PayloadBlacklist) != len(wantPayload) {
		t.Fatalf("PayloadBlacklist = %v, want keys %v", run.PayloadBlacklist, wantPayload)
	}
	for _, key := range run.PayloadBlacklist {
		if !wantPayload[key] {
			t.Errorf("unexpected payload blacklist entry %q", key)
		}
	}

	if len(run.HeadersBlacklist) != 1 || run.HeadersBlacklist[0] != "x-subscriber-id" {
		t.Errorf("HeadersBlacklist = %v, want [x-subscriber-id]", run.HeadersBlacklist)
	}

	// Results come back sorted by path regardless of worker order.
	for i := 1; i < len(run.Results); i++ {
		if run.Results[i-1].Path > run.Results[i].Path {
			t.Errorf("results not sorted: %q before %q", run.Results[i-1].Path, run.Results[i].Path)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != run.Stats.FieldsAnalyzed {
		t.Errorf("classification events = %d, want %d", len(seen), run.Stats.FieldsAnalyzed)
	}
	if len(statuses) != 2 || statuses[0] != "started" || statuses[1] != "finished" {
		t.Errorf("run status events = %v", statuses)
	}
}

func TestPipelineRunSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeExtraction(t, dir, "good.json", sampleExtraction)
	bad := writeExtraction(t, dir, "bad.json", "{broken")

	p := testPipeline(t, Events{})

	run, err := p.Run(context.Background(), []string{bad, good})
	if err != nil {
		t.Fatalf("Run failed despite a readable file: %v", err)
	}
	if run.Stats.FilesRead != 1 || run.Stats.FilesFailed != 1 {
		t.Errorf("file stats = %+v", run.Stats)
	}
	if run.Stats.FieldsAnalyzed == 0 {
		t.Error("no fields analyzed from the readable file")
	}
}

func TestPipelineRunFailsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	file := writeExtraction(t, dir, "extraction.json", sampleExtraction)

	var mu sync.Mutex
	var statuses []string
	p := testPipeline(t, Events{
		RunStatus: func(status string, _ *RunResult) {
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := p.Run(ctx, []string{file})
	if err == nil {
		t.Fatalf("Run returned a result on a cancelled context: %+v", run.Stats)
	}
	if run != nil {
		t.Errorf("cancelled run returned a partial result: %+v", run.Stats)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || statuses[0] != "started" || statuses[1] != "failed" {
		t.Errorf("run status events = %v, want [started failed]", statuses)
	}
}

func TestPipelineRunFailsWithNoReadableFiles(t *testing.T) {
	p := testPipeline(t, Events{})

	if _, err := p.Run(context.Background(), []string{"does-not-exist.json"}); err == nil {
		t.Fatal("Run succeeded with no readable input")
	}
}
