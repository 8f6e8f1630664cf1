// Package server exposes the review service: trigger analysis runs,
// inspect results, submit developer overrides, and stream run progress
// over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/cache"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/overrides"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"github.com/fieldguard/fieldguard/internal/report"
	"github.com/fieldguard/fieldguard/internal/store"
	"github.com/fieldguard/fieldguard/internal/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the review HTTP server.
type Server struct {
	config *config.Config
	logger *logger.Logger
	router *mux.Router
	server *http.Server
	hub    *websocket.Hub
	store  *store.Store       // nil when run history is disabled
	cache  *cache.ResultCache // nil when caching is disabled

	mu        sync.RWMutex
	rules     *patterns.RuleSet
	latestRun *analysis.RunResult
}

// New creates a review server. The pattern store is loaded and
// compiled up front; a broken store fails startup rather than the
// first request.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	patternsCfg, err := patterns.Load(cfg.Analysis.PatternsFile, log.WithComponent("patterns"))
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern store: %w", err)
	}
	rules, err := patterns.Compile(patternsCfg, log.WithComponent("patterns"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern store: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: log.WithComponent("server"),
		router: mux.NewRouter(),
		hub:    websocket.NewHub(&cfg.WebSocket, log),
		rules:  rules,
	}

	if cfg.Cache.Enabled {
		rc, err := cache.New(&cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		s.cache = rc
	}

	if cfg.Store.Enabled {
		st, err := store.New(&cfg.Store, log.WithComponent("store"))
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		s.store = st
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		s.router.Use(s.rateLimitMiddleware())
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/", s.handleReviewPage).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
	api.HandleFunc("/runs/{id}/results", s.handleRunResults).Methods("GET")
	api.HandleFunc("/overrides", s.handleOverrides).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.hub.HandleWebSocket).Methods("GET")
	}
}

// ReloadRules reloads and recompiles the pattern store, so pattern or
// configuration edits take effect without a restart. In-flight runs
// keep the rule set they started with.
func (s *Server) ReloadRules(cfg *config.Config) error {
	log := s.logger.WithComponent("patterns")
	patternsCfg, err := patterns.Load(cfg.Analysis.PatternsFile, log)
	if err != nil {
		return fmt.Errorf("failed to reload pattern store: %w", err)
	}
	rules, err := patterns.Compile(patternsCfg, log)
	if err != nil {
		return fmt.Errorf("failed to recompile pattern store: %w", err)
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("Rules reloaded", zap.String("fingerprint", rules.Fingerprint))
	return nil
}

// Start starts the HTTP server and the review event hub.
func (s *Server) Start() error {
	s.logger.Info("Starting review server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("store", s.store != nil),
		zap.Bool("websocket", s.config.WebSocket.Enabled))

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the server and closes its resources.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping review server")

	err := s.server.Shutdown(ctx)
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fingerprint := s.rules.Fingerprint
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":             "fieldguard",
		"rule_fingerprint": fingerprint,
		"cache_enabled":    s.cache != nil,
		"store_enabled":    s.store != nil,
		"ws_connections":   s.hub.ActiveConnections(),
	})
}

func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	run := s.latestRun
	s.mu.RUnlock()

	if run == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>No analysis run yet. POST input files to /api/analyze.</p></body></html>")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(run, w); err != nil {
		s.logger.Error("Failed to render review page", zap.Error(err))
	}
}

type analyzeRequest struct {
	Files []string `json:"files"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Files) == 0 && s.config.Analysis.DataFile != "" {
		req.Files = []string{s.config.Analysis.DataFile}
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "no input files given and no data file configured")
		return
	}

	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()

	cls := classifier.New(rules, s.logger.WithComponent("classifier"))
	pipeline := analysis.New(&s.config.Analysis, cls, s.cache, s.logger, analysis.Events{
		Classification: func(result classifier.Result) {
			s.hub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeClassification,
				Timestamp: time.Now(),
				Data:      result,
			})
		},
		RunStatus: func(status string, run *analysis.RunResult) {
			s.hub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeRunStatus,
				Timestamp: time.Now(),
				Data: map[string]interface{}{
					"status": status,
					"run_id": run.RunID,
					"stats":  run.Stats,
				},
			})
		},
	})

	run, err := pipeline.Run(r.Context(), req.Files)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.latestRun = run
	s.mu.Unlock()

	if err := report.WriteProperties(run, s.config.Analysis.PropertiesFile, s.logger); err != nil {
		s.logger.Error("Failed to write properties file", zap.Error(err))
	}
	if err := report.WriteHTML(run, s.config.Analysis.ReportFile, s.logger); err != nil {
		s.logger.Error("Failed to write review report", zap.Error(err))
	}

	if s.store != nil {
		if err := s.saveRun(r.Context(), run); err != nil {
			s.logger.Error("Failed to persist run", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) saveRun(ctx context.Context, run *analysis.RunResult) error {
	return s.store.SaveRun(ctx, store.NewRun(run), run.Results)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history store is disabled")
		return
	}

	runs, err := s.store.RecentRuns(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history store is disabled")
		return
	}

	results, err := s.store.ResultsForRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleOverrides merges a submitted override set straight into the
// pattern store and recompiles the rules, so the next run picks the
// overrides up without a restart.
func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	var incoming overrides.File
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid override body: "+err.Error())
		return
	}
	if len(incoming.ManualBlacklist) == 0 && len(incoming.ManualWhitelist) == 0 {
		writeError(w, http.StatusBadRequest, "override set is empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithComponent("patterns")
	cfg, err := patterns.Load(s.config.Analysis.PatternsFile, log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	merged := overrides.Merge(cfg.DeveloperOverrides, incoming)
	merged.LastMerged = time.Now().Format(time.RFC3339)
	merged.MergedFrom = "api"
	cfg.DeveloperOverrides = merged

	if _, err := patterns.Backup(s.config.Analysis.PatternsFile); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := patterns.Save(cfg, s.config.Analysis.PatternsFile); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rules, err := patterns.Compile(cfg, log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.rules = rules

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"manual_blacklist": merged.ManualBlacklist,
		"manual_whitelist": merged.ManualWhitelist,
		"rule_fingerprint": rules.Fingerprint,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"ws_connections": s.hub.ActiveConnections(),
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(r.Context())
		if err != nil {
			s.logger.Error("Failed to read cache stats", zap.Error(err))
		} else {
			stats["cache"] = cacheStats
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
