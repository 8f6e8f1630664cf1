package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadExtractionJSON(t *testing.T) {
	const doc = `{
		"data": [
			{
				"request.user.email": ["a@b.com", "a@b.com", "c@d.com"],
				"headers.Authorization": ["Bearer xyz"],
				"curl": ["curl -X POST https://api.example.com"],
				"garbage.field": ["ignored"]
			},
			{
				"response.items.price": [10.5, true, null]
			}
		]
	}`
	path := writeFile(t, "extraction.json", doc)

	obs, err := ReadFile(path, 5, nopLogger())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	// Sorted by path; curl and unknown-source entries dropped.
	if len(obs) != 3 {
		t.Fatalf("got %d observations, want 3: %+v", len(obs), obs)
	}

	if obs[0].Path != "headers.Authorization" || obs[0].Source != SourceHeaders {
		t.Errorf("obs[0] = %+v", obs[0])
	}

	if obs[1].Path != "request.user.email" {
		t.Fatalf("obs[1] = %+v", obs[1])
	}
	if len(obs[1].Values) != 2 {
		t.Errorf("email values not deduplicated: %v", obs[1].Values)
	}

	if obs[2].Path != "response.items.price" {
		t.Fatalf("obs[2] = %+v", obs[2])
	}
	want := []string{"10.5", "true", "null"}
	for i, v := range want {
		if obs[2].Values[i] != v {
			t.Errorf("price values = %v, want %v", obs[2].Values, want)
			break
		}
	}
}

func TestReadExtractionJSONSampleLimit(t *testing.T) {
	const doc = `{"data": [{"request.a": ["1", "2", "3", "4", "5", "6"]}]}`
	path := writeFile(t, "extraction.json", doc)

	obs, err := ReadFile(path, 2, nopLogger())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(obs) != 1 || len(obs[0].Values) != 2 {
		t.Errorf("sample limit not applied: %+v", obs)
	}
}

func TestReadCSV(t *testing.T) {
	const doc = "field_path,source,value\n" +
		"request.user.phone,request,5551234567\n" +
		"request.user.phone,request,5551234567\n" +
		"headers.X-Api-Key,headers,abc123\n" +
		"unknown.thing,other,zzz\n"
	path := writeFile(t, "traffic.csv", doc)

	obs, err := ReadFile(path, 5, nopLogger())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2: %+v", len(obs), obs)
	}
	if obs[0].Path != "request.user.phone" || len(obs[0].Values) != 1 {
		t.Errorf("obs[0] = %+v", obs[0])
	}
	if obs[1].Source != SourceHeaders {
		t.Errorf("obs[1] = %+v", obs[1])
	}
}

func TestReadFileUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "traffic.txt", "whatever")
	if _, err := ReadFile(path, 5, nopLogger()); err == nil {
		t.Fatal("unsupported format accepted")
	}
}

func TestSourceOf(t *testing.T) {
	tests := []struct {
		path string
		want Source
	}{
		{"request.user.email", SourceRequest},
		{"response.data.items.price", SourceResponse},
		{"headers.Authorization", SourceHeaders},
		{"body.email", SourceUnknown},
		{"request", SourceUnknown},
	}

	for _, tt := range tests {
		if got := SourceOf(tt.path); got != tt.want {
			t.Errorf("SourceOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFinalKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"request.user.email", "email"},
		{"response.items.0.price", "price"},
		{"email", "email"},
	}

	for _, tt := range tests {
		obs := FieldObservation{Path: tt.path}
		if got := obs.FinalKey(); got != tt.want {
			t.Errorf("FinalKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		path string
		want FileFormat
	}{
		{"extraction.json", FormatJSON},
		{"traffic.PARQUET", FormatParquet},
		{"export.csv", FormatCSV},
		{"notes.txt", FormatUnknown},
	}

	for _, tt := range tests {
		if got := DetectFileFormat(tt.path); got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
