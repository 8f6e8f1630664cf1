package classifier

import "testing"

func TestHasClassificationSuffix(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"statuscode", true},
		{"rateplancode", true},
		{"producttype", true},
		{"paymentmethod", true},
		// Sensitive code fields keep their sensitivity despite the suffix.
		{"zipcode", false},
		{"securitycode", false},
		{"pincode", false},
		{"authcode", false},
		// Bare "code" without business context stays in play.
		{"code", false},
		{"promocode", false},
		{"email", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := hasClassificationSuffix(tt.key); got != tt.want {
				t.Errorf("hasClassificationSuffix(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestIsBooleanValues(t *testing.T) {
	if !isBooleanValues([]string{"true", "FALSE", "Yes", "0"}) {
		t.Error("mixed-case boolean values not detected")
	}
	if isBooleanValues([]string{"true", "maybe"}) {
		t.Error("non-boolean value slipped through")
	}
	if isBooleanValues(nil) {
		t.Error("empty value set must not count as boolean")
	}
}

func TestIsUUIDValues(t *testing.T) {
	valid := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"550E8400E29B41D4A716446655440000",
		"{550e8400-e29b-41d4-a716-446655440000}",
	}
	if !isUUIDValues(valid) {
		t.Error("valid UUID forms not detected")
	}
	if isUUIDValues([]string{"550e8400-e29b-41d4-a716-446655440000", "not-a-uuid"}) {
		t.Error("mixed values must not count as UUIDs")
	}
	if isUUIDValues(nil) {
		t.Error("empty value set must not count as UUIDs")
	}
}

func TestHasDateTimeValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"ISO with time", "2024-01-15T10:30:00Z", true},
		{"space separated", "2024-01-15 10:30:00", true},
		{"US with time", "01/15/2024 10:30", true},
		{"epoch millis in range", "1700000000000", true},
		{"epoch micros", "1700000000000000", true},
		{"13 digits out of range", "9999999999999", false},
		{"plain date", "2024-01-15", false},
		{"short number", "123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasDateTimeValues([]string{tt.value}); got != tt.want {
				t.Errorf("hasDateTimeValues(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsBusinessDateKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"effectivedate", true},
		{"lastupdatedtime", true},
		{"billingcycledate", true},
		{"lastname", false},
		{"dob", false},
		{"paymentdate", false}, // payment fields are never date fields
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isBusinessDateKey(tt.key); got != tt.want {
				t.Errorf("isBusinessDateKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"accountAge", []string{"account", "age"}},
		{"first_name", []string{"first", "name"}},
		{"HTTPStatusCode", []string{"http", "status", "code"}},
		{"field2Value", []string{"field", "2", "value"}},
	}

	for _, tt := range tests {
		got := splitTokens(tt.key)
		if len(got) != len(tt.want) {
			t.Errorf("splitTokens(%q) = %v, want %v", tt.key, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitTokens(%q) = %v, want %v", tt.key, got, tt.want)
				break
			}
		}
	}
}
