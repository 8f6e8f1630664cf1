package patterns

import (
	"fmt"
	"strings"
)

// Category tags a field with the kind of sensitive data it carries.
type Category string

const (
	// CategorySPI is Sensitive Personal Information
	CategorySPI Category = "SPI"
	// CategoryCPNI is Customer Proprietary Network Information
	CategoryCPNI Category = "CPNI"
	// CategoryRPI is Revenue/Payment Information
	CategoryRPI Category = "RPI"
	// CategoryCSO is Customer Support/Operations data
	CategoryCSO Category = "CSO"
	// CategoryPCI is Payment Card Industry data
	CategoryPCI Category = "PCI"
	// CategoryContextual marks value patterns that only matter with
	// corroborating field-name context (generic numeric/alphanumeric IDs)
	CategoryContextual Category = "CONTEXTUAL"
	// CategoryDeveloperManual marks fields force-blacklisted by a developer
	CategoryDeveloperManual Category = "DEVELOPER_MANUAL"
)

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategorySPI:
		return CategorySPI, nil
	case CategoryCPNI:
		return CategoryCPNI, nil
	case CategoryRPI:
		return CategoryRPI, nil
	case CategoryCSO:
		return CategoryCSO, nil
	case CategoryPCI:
		return CategoryPCI, nil
	case CategoryContextual:
		return CategoryContextual, nil
	case CategoryDeveloperManual:
		return CategoryDeveloperManual, nil
	default:
		return "", fmt.Errorf("unknown sensitivity category: %q", s)
	}
}

// Overrides holds developer manual corrections layered on top of the
// automatic rules. A field name must never appear in both lists; the
// merge step enforces whitelist precedence.
type Overrides struct {
	ManualBlacklist []string `json:"manual_blacklist"`
	ManualWhitelist []string `json:"manual_whitelist"`
	LastMerged      string   `json:"last_merged,omitempty"`
	MergedFrom      string   `json:"merged_from,omitempty"`
}

// Config is the persistent pattern store. It is loaded once per run,
// mutated only by the override merge, and written back wholesale.
type Config struct {
	Keywords              map[string][]string `json:"keywords"`
	ValuePatterns         map[string]string   `json:"value_patterns"`
	FuzzyRules            map[string]string   `json:"fuzzy_rules"`
	Exclusions            []string            `json:"exclusions"`
	PatternMappings       map[string][]string `json:"pattern_mappings"`
	ValueExclusions       []string            `json:"value_exclusions"`
	BusinessValuePatterns []string            `json:"business_value_patterns"`
	DeveloperOverrides    Overrides           `json:"developer_overrides"`
}

// Validate checks that every category referenced by the store is known.
func (c *Config) Validate() error {
	for cat := range c.Keywords {
		if _, err := ParseCategory(cat); err != nil {
			return fmt.Errorf("keywords: %w", err)
		}
	}
	for name, cats := range c.PatternMappings {
		for _, cat := range cats {
			if _, err := ParseCategory(cat); err != nil {
				return fmt.Errorf("pattern_mappings[%s]: %w", name, err)
			}
		}
	}
	return nil
}
