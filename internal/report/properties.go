// Package report renders a finished analysis run into its output
// artifacts: the masking properties file consumed by the logging
// layer, an HTML review report for humans, and a console summary.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

// WriteProperties writes (or rewrites) the blacklist entries in a Java
// properties file. Existing unrelated properties are preserved; the
// payload.blacklist and headers.blacklist lines are replaced in place,
// or appended when absent.
func WriteProperties(run *analysis.RunResult, path string, log *logger.Logger) error {
	payloadLine := "payload.blacklist=" + strings.Join(run.PayloadBlacklist, ",")
	headersLine := "headers.blacklist=" + strings.Join(run.HeadersBlacklist, ",")

	var lines []string
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		lines = []string{
			"# Log masking blacklists",
			"# Generated " + time.Now().Format(time.RFC3339),
		}
	case err != nil:
		return fmt.Errorf("failed to read properties file: %w", err)
	default:
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	payloadSet, headersSet := false, false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "payload.blacklist=") {
			lines[i] = payloadLine
			payloadSet = true
		}
		if strings.HasPrefix(trimmed, "headers.blacklist=") {
			lines[i] = headersLine
			headersSet = true
		}
	}
	if !payloadSet {
		lines = append(lines, payloadLine)
	}
	if !headersSet {
		lines = append(lines, headersLine)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write properties file: %w", err)
	}

	log.Info("Properties file updated",
		zap.String("path", path),
		zap.Int("payload_entries", len(run.PayloadBlacklist)),
		zap.Int("headers_entries", len(run.HeadersBlacklist)))

	return nil
}
