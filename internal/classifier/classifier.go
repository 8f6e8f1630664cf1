// Package classifier decides whether an observed API field should be
// withheld from logs, and why. The decision procedure is a pure
// function over a compiled pattern rule set: results are unioned, never
// prioritized, so the outcome is deterministic for a given rule set.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fieldguard/fieldguard/internal/ingest"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

// Confidence grades how strong the classification signal was.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result is the classification decision for a single field.
type Result struct {
	Path            string               `json:"path"`
	FinalKey        string               `json:"finalKey"`
	Source          ingest.Source        `json:"source"`
	Blacklisted     bool                 `json:"blacklisted"`
	Categories      []patterns.Category  `json:"categories"`
	Reasons         []string             `json:"reasons"`
	Confidence      Confidence           `json:"confidence"`
	FuzzyMatch      string               `json:"fuzzyMatch,omitempty"`
	KeyBased        bool                 `json:"keyBased"`
	ValueBased      bool                 `json:"valueBased"`
	DeveloperManual bool                 `json:"developerManual"`
	Excluded        bool                 `json:"excluded"`
	SampleValues    []string             `json:"sampleValues,omitempty"`
}

// Classifier applies the compiled rule set to field observations.
type Classifier struct {
	rules  *patterns.RuleSet
	logger *logger.Logger
}

// New creates a classifier over a compiled rule set.
func New(rules *patterns.RuleSet, log *logger.Logger) *Classifier {
	return &Classifier{rules: rules, logger: log}
}

// Rules exposes the rule set the classifier was built from.
func (c *Classifier) Rules() *patterns.RuleSet {
	return c.rules
}

// Classify runs the canonical check order:
//
//  1. final key = segment after the last dot, lowercased
//  2. developer whitelist        -> not sensitive
//  3. developer blacklist        -> sensitive (DEVELOPER_MANUAL)
//  4. static exclusion set       -> not sensitive
//  5. classification suffix      -> not sensitive (unless sensitive code)
//  6. all values boolean-like    -> not sensitive
//  7. all values UUID-like       -> not sensitive
//  8. type-name values           -> not sensitive
//  9. business/system date key   -> not sensitive
// 10. datetime values            -> not sensitive (unless personal date
//     key or sensitive-name field)
// 11. keyword match on raw and fuzzy-normalized key -> categories
// 12. value pattern match (with name corroboration) -> categories
//
// The field is sensitive iff the accumulated category set is non-empty.
func (c *Classifier) Classify(obs ingest.FieldObservation) Result {
	finalKey := obs.FinalKey()
	key := strings.ToLower(finalKey)

	result := Result{
		Path:         obs.Path,
		FinalKey:     finalKey,
		Source:       obs.Source,
		Confidence:   ConfidenceLow,
		SampleValues: obs.Values,
	}

	if c.rules.Whitelisted(key) {
		return c.exclude(result, "Developer manually excluded this field (developer_overrides)")
	}

	if c.rules.Blacklisted(key) {
		result.Blacklisted = true
		result.DeveloperManual = true
		result.KeyBased = true
		result.Categories = []patterns.Category{patterns.CategoryDeveloperManual}
		result.Confidence = ConfidenceHigh
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Developer manually added %q to blacklist (developer_overrides)", finalKey))
		return result
	}

	if c.rules.Excluded(key) {
		return c.exclude(result, "Excluded - common non-sensitive field")
	}

	if hasClassificationSuffix(key) {
		return c.exclude(result, "Excluded - code/type field (classification, not sensitive data)")
	}

	if isBooleanValues(obs.Values) {
		return c.exclude(result, "Excluded - boolean field")
	}

	if isUUIDValues(obs.Values) {
		return c.exclude(result, "Excluded - UUID field (system-generated identifiers)")
	}

	if isClassificationValues(key, obs.Values) {
		return c.exclude(result, "Excluded - classification field (contains type names, not actual data)")
	}

	if !isPersonalDateKey(key) && isBusinessDateKey(key) {
		return c.exclude(result, "Excluded - non-personal date field (business/system date)")
	}

	if hasDateTimeValues(obs.Values) && !isPersonalDateKey(key) && !isSensitiveNameField(key, obs.Values) {
		return c.exclude(result, "Excluded - contains timestamps/datetime (not a personal date)")
	}

	categories := make(map[patterns.Category]struct{})

	// Key-based matching
	normalized := c.fuzzyNormalize(finalKey)
	keyCategories := c.matchKeywords(key, normalized)
	if len(keyCategories) > 0 {
		result.KeyBased = true
		for _, cat := range keyCategories {
			categories[cat] = struct{}{}
		}
		if normalized != key {
			result.FuzzyMatch = normalized
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Key-based: %q matched as %q -> %s", finalKey, normalized, joinCategories(keyCategories)))
		} else {
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Key-based: %q contains sensitive keywords -> %s", finalKey, joinCategories(keyCategories)))
		}
	}

	// Value-based matching
	valueCategories, matchedPatterns := c.matchValues(key, obs.Values, result.KeyBased)
	if len(valueCategories) > 0 {
		result.ValueBased = true
		for _, cat := range valueCategories {
			categories[cat] = struct{}{}
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Value-based: values match sensitive patterns %v -> %s", matchedPatterns, joinCategories(valueCategories)))
	}

	result.Categories = sortedCategories(categories)
	result.Blacklisted = len(result.Categories) > 0

	switch {
	case result.ValueBased:
		result.Confidence = ConfidenceHigh
	case result.KeyBased:
		result.Confidence = ConfidenceMedium
	}

	if !result.Blacklisted {
		result.Reasons = append(result.Reasons, "No sensitive patterns detected")
	} else {
		c.logger.Debug("Field blacklisted",
			zap.String("path", obs.Path),
			zap.String("final_key", finalKey),
			zap.Strings("values", logger.SafeValues(obs.Values)),
			zap.String("confidence", string(result.Confidence)),
		)
	}

	return result
}

func (c *Classifier) exclude(result Result, reason string) Result {
	result.Excluded = true
	result.Reasons = append(result.Reasons, reason)
	return result
}

// matchKeywords tests category keywords against the raw and normalized
// key. A keyword hits when it equals a key token, or appears as a
// substring for keywords of five or more characters; bare containment
// of short generic keywords flags too many compound names.
func (c *Classifier) matchKeywords(key, normalized string) []patterns.Category {
	keyTokens := splitTokens(key)
	normTokens := splitTokens(normalized)

	var matched []patterns.Category
	for category, keywords := range c.rules.Keywords {
		for _, keyword := range keywords {
			if keywordHits(keyword, key, keyTokens) || keywordHits(keyword, normalized, normTokens) {
				matched = append(matched, category)
				break
			}
		}
	}
	return matched
}

func keywordHits(keyword, key string, tokens []string) bool {
	if keyword == key {
		return true
	}
	for _, token := range tokens {
		if token == keyword {
			return true
		}
	}
	return len(keyword) >= 5 && strings.Contains(key, keyword)
}

// matchValues tests each sample value against the compiled value
// patterns. Patterns in the corroborated set only count when the field
// name backs them up; CONTEXTUAL mappings (generic IDs) only count when
// the key itself already matched a keyword.
func (c *Classifier) matchValues(key string, values []string, keyMatched bool) ([]patterns.Category, []string) {
	categories := make(map[patterns.Category]struct{})
	matchedPatterns := make(map[string]struct{})

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, excluded := c.rules.ValueExclusions[strings.ToLower(value)]; excluded {
			continue
		}
		if isBusinessValue(c.rules, value) {
			continue
		}

		for name, re := range c.rules.ValuePatterns {
			if !re.MatchString(value) {
				continue
			}
			// A date with a time component is a timestamp, not a DOB.
			if strings.HasPrefix(name, "date_") && hasDateTimeValues([]string{value}) {
				continue
			}
			if !corroborated(name, key, value) {
				continue
			}

			for _, cat := range c.rules.PatternMappings[name] {
				if cat == patterns.CategoryContextual && !keyMatched {
					continue
				}
				categories[cat] = struct{}{}
				matchedPatterns[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(matchedPatterns))
	for name := range matchedPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	return sortedCategories(categories), names
}

func sortedCategories(set map[patterns.Category]struct{}) []patterns.Category {
	out := make([]patterns.Category, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinCategories(cats []patterns.Category) string {
	parts := make([]string, len(cats))
	for i, cat := range cats {
		parts[i] = string(cat)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func isBusinessValue(rules *patterns.RuleSet, value string) bool {
	for _, re := range rules.BusinessValuePatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
