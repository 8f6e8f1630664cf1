// Package analysis orchestrates a classification run: read field
// observations from input files, classify them across a worker pool,
// and aggregate the payload and header blacklists.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldguard/fieldguard/internal/cache"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/ingest"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Events receives run progress callbacks. Nil callbacks are skipped.
type Events struct {
	Classification func(classifier.Result)
	RunStatus      func(status string, run *RunResult)
}

// RunStats summarizes a finished run.
type RunStats struct {
	FieldsAnalyzed    int `json:"fields_analyzed"`
	FieldsBlacklisted int `json:"fields_blacklisted"`
	FieldsExcluded    int `json:"fields_excluded"`
	CacheHits         int `json:"cache_hits"`
	FilesRead         int `json:"files_read"`
	FilesFailed       int `json:"files_failed"`
}

// RunResult is the complete outcome of one analysis run.
type RunResult struct {
	RunID            string              `json:"run_id"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	RuleFingerprint  string              `json:"rule_fingerprint"`
	InputFiles       []string            `json:"input_files"`
	Results          []classifier.Result `json:"results"`
	PayloadBlacklist []string            `json:"payload_blacklist"`
	HeadersBlacklist []string            `json:"headers_blacklist"`
	Stats            RunStats            `json:"stats"`
}

// Pipeline runs classifications over observation files.
type Pipeline struct {
	cfg        *config.AnalysisConfig
	classifier *classifier.Classifier
	cache      *cache.ResultCache
	logger     *logger.Logger
	events     Events
}

// New creates a pipeline. The cache may be nil, in which case every
// observation is classified fresh.
func New(cfg *config.AnalysisConfig, cls *classifier.Classifier, rc *cache.ResultCache, log *logger.Logger, events Events) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		classifier: cls,
		cache:      rc,
		logger:     log,
		events:     events,
	}
}

// Run reads every input file, classifies all observations, and builds
// the blacklists. A file that fails to parse is logged and skipped;
// the run continues with the remaining files and only fails when no
// file could be read at all.
func (p *Pipeline) Run(ctx context.Context, files []string) (*RunResult, error) {
	run := &RunResult{
		RunID:           uuid.NewString(),
		StartedAt:       time.Now(),
		RuleFingerprint: p.classifier.Rules().Fingerprint,
		InputFiles:      files,
	}
	log := p.logger.WithRunID(run.RunID)

	p.emitStatus("started", run)

	var observations []ingest.FieldObservation
	for _, file := range files {
		obs, err := ingest.ReadFile(file, p.cfg.SampleLimit, log)
		if err != nil {
			log.Error("Skipping unreadable input file",
				zap.String("file", file),
				zap.Error(err))
			run.Stats.FilesFailed++
			continue
		}
		run.Stats.FilesRead++
		observations = append(observations, obs...)
	}

	if run.Stats.FilesRead == 0 {
		p.emitStatus("failed", run)
		return nil, fmt.Errorf("no readable input files among %d given", len(files))
	}

	log.Info("Starting classification run",
		zap.Int("files", run.Stats.FilesRead),
		zap.Int("observations", len(observations)),
		zap.Int("workers", p.cfg.Workers))

	run.Results = p.classifyAll(ctx, observations, &run.Stats)

	// A cancelled context stops the worker pool mid-stream. A partial
	// result must never reach the blacklist writers: a truncated
	// blacklist silently unmasks fields.
	if err := ctx.Err(); err != nil {
		p.emitStatus("failed", run)
		return nil, fmt.Errorf("classification run cancelled after %d of %d observations: %w",
			len(run.Results), len(observations), err)
	}

	for _, r := range run.Results {
		if r.Excluded {
			run.Stats.FieldsExcluded++
		}
		if r.Blacklisted {
			run.Stats.FieldsBlacklisted++
		}
	}
	run.Stats.FieldsAnalyzed = len(run.Results)

	run.PayloadBlacklist, run.HeadersBlacklist = buildBlacklists(run.Results)
	run.FinishedAt = time.Now()

	log.Info("Classification run complete",
		zap.Int("analyzed", run.Stats.FieldsAnalyzed),
		zap.Int("blacklisted", run.Stats.FieldsBlacklisted),
		zap.Int("excluded", run.Stats.FieldsExcluded),
		zap.Int("cache_hits", run.Stats.CacheHits),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)))

	p.emitStatus("finished", run)
	return run, nil
}

// classifyAll fans observations out to a bounded worker pool and
// gathers results in a deterministic order.
func (p *Pipeline) classifyAll(ctx context.Context, observations []ingest.FieldObservation, stats *RunStats) []classifier.Result {
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan ingest.FieldObservation)
	out := make(chan classifier.Result, workers)
	var cacheHits int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obs := range jobs {
				result := p.classifyOne(ctx, obs)
				if result.fromCache {
					atomic.AddInt64(&cacheHits, 1)
				}
				select {
				case out <- result.Result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, obs := range observations {
			select {
			case jobs <- obs:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]classifier.Result, 0, len(observations))
	for result := range out {
		results = append(results, result)
		if p.events.Classification != nil {
			p.events.Classification(result)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	stats.CacheHits = int(cacheHits)
	return results
}

type classified struct {
	classifier.Result
	fromCache bool
}

func (p *Pipeline) classifyOne(ctx context.Context, obs ingest.FieldObservation) classified {
	fingerprint := p.classifier.Rules().Fingerprint

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, fingerprint, obs.Path, obs.Values); ok {
			return classified{Result: *cached, fromCache: true}
		}
	}

	result := p.classifier.Classify(obs)

	if p.cache != nil {
		p.cache.Set(ctx, fingerprint, &result)
	}

	return classified{Result: result}
}

// buildBlacklists collapses per-path decisions into the masking lists:
// payload fields (request and response bodies) and header fields, as
// deduplicated, sorted final key names.
func buildBlacklists(results []classifier.Result) (payload, headers []string) {
	payloadSet := make(map[string]struct{})
	headersSet := make(map[string]struct{})

	for _, r := range results {
		if !r.Blacklisted {
			continue
		}
		key := strings.ToLower(r.FinalKey)
		switch r.Source {
		case ingest.SourceRequest, ingest.SourceResponse:
			payloadSet[key] = struct{}{}
		case ingest.SourceHeaders:
			headersSet[key] = struct{}{}
		}
	}

	return sortedKeys(payloadSet), sortedKeys(headersSet)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *Pipeline) emitStatus(status string, run *RunResult) {
	if p.events.RunStatus != nil {
		p.events.RunStatus(status, run)
	}
}
