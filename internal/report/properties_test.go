package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestWriteProperties(t *testing.T) {
	log := nopLogger()
	run := &analysis.RunResult{
		PayloadBlacklist: []string{"creditcard", "email", "ssn"},
		HeadersBlacklist: []string{"x-subscriber-id"},
	}

	t.Run("CreatesNewFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "application.properties")

		if err := WriteProperties(run, path, log); err != nil {
			t.Fatalf("WriteProperties failed: %v", err)
		}

		content := readFile(t, path)
		if !strings.Contains(content, "payload.blacklist=creditcard,email,ssn\n") {
			t.Errorf("payload line missing:\n%s", content)
		}
		if !strings.Contains(content, "headers.blacklist=x-subscriber-id\n") {
			t.Errorf("headers line missing:\n%s", content)
		}
	})

	t.Run("ReplacesInPlaceAndPreservesOtherProperties", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "application.properties")
		seed := "app.name=billing-gateway\n" +
			"payload.blacklist=old,stale\n" +
			"log.level=INFO\n" +
			"headers.blacklist=old-header\n"
		if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
			t.Fatal(err)
		}

		if err := WriteProperties(run, path, log); err != nil {
			t.Fatalf("WriteProperties failed: %v", err)
		}

		content := readFile(t, path)
		if !strings.Contains(content, "app.name=billing-gateway\n") ||
			!strings.Contains(content, "log.level=INFO\n") {
			t.Errorf("unrelated properties lost:\n%s", content)
		}
		if strings.Contains(content, "old,stale") || strings.Contains(content, "old-header") {
			t.Errorf("stale blacklists survived:\n%s", content)
		}
		if strings.Count(content, "payload.blacklist=") != 1 {
			t.Errorf("payload line duplicated:\n%s", content)
		}

		// Replacement keeps the original line position.
		lines := strings.Split(content, "\n")
		if lines[1] != "payload.blacklist=creditcard,email,ssn" {
			t.Errorf("payload line moved: %q", lines[1])
		}
	})

	t.Run("RewriteIsStable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "application.properties")

		if err := WriteProperties(run, path, log); err != nil {
			t.Fatal(err)
		}
		first := readFile(t, path)
		if err := WriteProperties(run, path, log); err != nil {
			t.Fatal(err)
		}
		second := readFile(t, path)

		if first != second {
			t.Errorf("second write changed the file:\n--- first\n%s\n--- second\n%s", first, second)
		}
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
