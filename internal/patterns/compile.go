package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

// RuleSet is the compiled, immutable form of a pattern store. All key
// material is lowercased once at compile time.
type RuleSet struct {
	Keywords              map[Category][]string
	ValuePatterns         map[string]*regexp.Regexp
	PatternMappings       map[string][]Category
	FuzzyRules            map[string]string
	Exclusions            map[string]struct{}
	ValueExclusions       map[string]struct{}
	BusinessValuePatterns []*regexp.Regexp
	ManualBlacklist       map[string]struct{}
	ManualWhitelist       map[string]struct{}

	// Fingerprint identifies this exact rule configuration; cached
	// classification results are namespaced by it so a pattern edit
	// invalidates prior decisions.
	Fingerprint string
}

// Compile turns a loaded Config into a RuleSet. Invalid regexes are
// logged and skipped, never fatal.
func Compile(cfg *Config, log *logger.Logger) (*RuleSet, error) {
	rs := &RuleSet{
		Keywords:        make(map[Category][]string, len(cfg.Keywords)),
		ValuePatterns:   make(map[string]*regexp.Regexp, len(cfg.ValuePatterns)),
		PatternMappings: make(map[string][]Category, len(cfg.PatternMappings)),
		FuzzyRules:      make(map[string]string, len(cfg.FuzzyRules)),
		Exclusions:      toSet(cfg.Exclusions),
		ValueExclusions: toSet(cfg.ValueExclusions),
		ManualBlacklist: toSet(cfg.DeveloperOverrides.ManualBlacklist),
		ManualWhitelist: toSet(cfg.DeveloperOverrides.ManualWhitelist),
	}

	for cat, words := range cfg.Keywords {
		category, err := ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(w)))
		}
		sort.Strings(lowered)
		rs.Keywords[category] = lowered
	}

	for name, expr := range cfg.ValuePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warn("Skipping invalid value pattern",
				zap.String("pattern", name),
				zap.Error(err),
			)
			continue
		}
		rs.ValuePatterns[name] = re
	}

	for name, cats := range cfg.PatternMappings {
		mapped := make([]Category, 0, len(cats))
		for _, cat := range cats {
			category, err := ParseCategory(cat)
			if err != nil {
				return nil, err
			}
			mapped = append(mapped, category)
		}
		rs.PatternMappings[name] = mapped
	}

	for abbr, canonical := range cfg.FuzzyRules {
		rs.FuzzyRules[strings.ToLower(abbr)] = strings.ToLower(canonical)
	}

	for _, expr := range cfg.BusinessValuePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warn("Skipping invalid business value pattern", zap.Error(err))
			continue
		}
		rs.BusinessValuePatterns = append(rs.BusinessValuePatterns, re)
	}

	rs.Fingerprint = fingerprint(cfg)

	log.Info("Compiled rule set",
		zap.Int("keyword_categories", len(rs.Keywords)),
		zap.Int("value_patterns", len(rs.ValuePatterns)),
		zap.String("fingerprint", rs.Fingerprint[:12]),
	)

	return rs, nil
}

// Excluded reports whether a final key sits in the static exclusion set.
func (rs *RuleSet) Excluded(finalKey string) bool {
	_, ok := rs.Exclusions[strings.ToLower(finalKey)]
	return ok
}

// Whitelisted reports whether a developer manually cleared this key.
func (rs *RuleSet) Whitelisted(finalKey string) bool {
	_, ok := rs.ManualWhitelist[strings.ToLower(finalKey)]
	return ok
}

// Blacklisted reports whether a developer manually flagged this key.
func (rs *RuleSet) Blacklisted(finalKey string) bool {
	_, ok := rs.ManualBlacklist[strings.ToLower(finalKey)]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	return set
}

func fingerprint(cfg *Config) string {
	// json.Marshal sorts map keys, so the digest is stable for a given
	// store content.
	data, err := json.Marshal(cfg)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
