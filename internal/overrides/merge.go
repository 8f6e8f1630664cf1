// Package overrides reconciles transient developer override files with
// the persistent pattern store. An override file is produced by a human
// reviewing a generated report; it is merged once and then deleted.
package overrides

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

// File is the on-disk shape of a developer override file.
type File struct {
	ManualBlacklist []string `json:"manual_blacklist"`
	ManualWhitelist []string `json:"manual_whitelist"`
}

// Merge unions the incoming override sets into the existing ones and
// removes every whitelisted name from the merged blacklist. Whitelist
// always wins on conflict. The union makes the operation idempotent
// and commutative.
func Merge(existing patterns.Overrides, incoming File) patterns.Overrides {
	blacklist := union(existing.ManualBlacklist, incoming.ManualBlacklist)
	whitelist := union(existing.ManualWhitelist, incoming.ManualWhitelist)

	for name := range whitelist {
		delete(blacklist, name)
	}

	return patterns.Overrides{
		ManualBlacklist: sorted(blacklist),
		ManualWhitelist: sorted(whitelist),
	}
}

// Consume merges an override file into the pattern store. It returns
// false without error when the override file does not exist. On
// success the pre-merge pattern file is backed up and the override
// file deleted, so re-running is a no-op.
func Consume(overridePath, patternsPath string, log *logger.Logger) (bool, error) {
	data, err := os.ReadFile(overridePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read override file: %w", err)
	}

	var incoming File
	if err := json.Unmarshal(data, &incoming); err != nil {
		return false, fmt.Errorf("failed to parse override file %s: %w", overridePath, err)
	}

	if len(incoming.ManualBlacklist) == 0 && len(incoming.ManualWhitelist) == 0 {
		return false, nil
	}

	cfg, err := patterns.Load(patternsPath, log)
	if err != nil {
		return false, err
	}

	merged := Merge(cfg.DeveloperOverrides, incoming)
	merged.LastMerged = time.Now().Format(time.RFC3339)
	merged.MergedFrom = overridePath
	cfg.DeveloperOverrides = merged

	backupPath, err := patterns.Backup(patternsPath)
	if err != nil {
		return false, err
	}

	if err := patterns.Save(cfg, patternsPath); err != nil {
		return false, err
	}

	log.Info("Merged developer overrides into pattern store",
		zap.String("override_file", overridePath),
		zap.String("patterns_file", patternsPath),
		zap.String("backup", backupPath),
		zap.Int("manual_blacklist", len(merged.ManualBlacklist)),
		zap.Int("manual_whitelist", len(merged.ManualWhitelist)),
	)

	// The override file is consumed exactly once. A failed delete
	// leaves a file whose re-merge is a harmless union, so it is
	// reported but not treated as a merge failure.
	if err := os.Remove(overridePath); err != nil {
		log.Warn("Failed to remove consumed override file",
			zap.String("path", overridePath),
			zap.Error(err),
		)
	}

	return true, nil
}

func union(a, b []string) map[string]struct{} {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	return set
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
