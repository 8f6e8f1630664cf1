package server

import (
	"path/filepath"
	"testing"

	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestReloadRules(t *testing.T) {
	log := nopLogger()
	path := filepath.Join(t.TempDir(), "patterns_config.json")

	patternsCfg, err := patterns.Load(path, log)
	if err != nil {
		t.Fatalf("Failed to create pattern store: %v", err)
	}
	rules, err := patterns.Compile(patternsCfg, log)
	if err != nil {
		t.Fatalf("Failed to compile pattern store: %v", err)
	}

	cfg := config.GetDefaults()
	cfg.Analysis.PatternsFile = path
	s := &Server{config: cfg, logger: log, rules: rules}

	patternsCfg.DeveloperOverrides.ManualBlacklist = []string{"internalid"}
	if err := patterns.Save(patternsCfg, path); err != nil {
		t.Fatalf("Failed to save pattern store: %v", err)
	}

	if err := s.ReloadRules(cfg); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	s.mu.RLock()
	reloaded := s.rules
	s.mu.RUnlock()

	if reloaded.Fingerprint == rules.Fingerprint {
		t.Error("fingerprint unchanged after pattern store edit")
	}
	if !reloaded.Blacklisted("internalid") {
		t.Error("reloaded rules missing the new manual blacklist entry")
	}
}
