// Package ingest reads field observations from the extraction formats
// the analysis pipeline accepts: Postman extraction JSON, and parquet
// or CSV exports of sampled API traffic.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// TrafficRecord is a single row in a parquet/CSV traffic export.
type TrafficRecord struct {
	FieldPath string `parquet:"field_path" json:"field_path"`
	Source    string `parquet:"source" json:"source"`
	Value     string `parquet:"value" json:"value"`
}

// extractionDocument mirrors the extraction tool's output:
// {"data": [{"<field path>": [values...]}, ...]}
type extractionDocument struct {
	Data []map[string]json.RawMessage `json:"data"`
}

// ReadFile loads observations from a file, detecting the format from
// its extension. Fields with an unknown source prefix are dropped and
// at most sampleLimit distinct values are kept per field.
func ReadFile(path string, sampleLimit int, log *logger.Logger) ([]FieldObservation, error) {
	format := DetectFileFormat(path)
	log.Debug("Reading observations",
		zap.String("file", path),
		zap.String("format", string(format)),
	)

	switch format {
	case FormatJSON:
		return readExtractionJSON(path, sampleLimit)
	case FormatParquet:
		return readParquet(path, sampleLimit, log)
	case FormatCSV:
		return readCSV(path, sampleLimit, log)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", path)
	}
}

func readExtractionJSON(path string, sampleLimit int) ([]FieldObservation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction file: %w", err)
	}

	var doc extractionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse extraction file %s: %w", path, err)
	}

	var observations []FieldObservation
	for _, item := range doc.Data {
		for fieldPath, raw := range item {
			// curl entries are command echoes, not fields
			if fieldPath == "curl" {
				continue
			}
			source := SourceOf(fieldPath)
			if source == SourceUnknown {
				continue
			}
			observations = append(observations, FieldObservation{
				Path:   fieldPath,
				Source: source,
				Values: decodeValues(raw, sampleLimit),
			})
		}
	}

	// Map iteration order is random; keep output deterministic.
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Path < observations[j].Path
	})

	return observations, nil
}

func readParquet(path string, sampleLimit int, log *logger.Logger) ([]FieldObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	grouped := make(map[string][]string)
	var paths []string

	for {
		var record TrafficRecord
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("Failed to read parquet record", zap.Error(err))
			continue
		}
		if record.FieldPath == "" {
			continue
		}
		if _, seen := grouped[record.FieldPath]; !seen {
			paths = append(paths, record.FieldPath)
		}
		grouped[record.FieldPath] = append(grouped[record.FieldPath], record.Value)
	}

	return groupObservations(paths, grouped, sampleLimit), nil
}

func readCSV(path string, sampleLimit int, log *logger.Logger) ([]FieldObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 3 // field_path, source, value

	// Header row
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	grouped := make(map[string][]string)
	var paths []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("Failed to read CSV record", zap.Error(err))
			continue
		}

		fieldPath := strings.TrimSpace(record[0])
		if fieldPath == "" {
			continue
		}
		if _, seen := grouped[fieldPath]; !seen {
			paths = append(paths, fieldPath)
		}
		grouped[fieldPath] = append(grouped[fieldPath], strings.TrimSpace(record[2]))
	}

	return groupObservations(paths, grouped, sampleLimit), nil
}

func groupObservations(paths []string, grouped map[string][]string, sampleLimit int) []FieldObservation {
	observations := make([]FieldObservation, 0, len(paths))
	for _, fieldPath := range paths {
		source := SourceOf(fieldPath)
		if source == SourceUnknown {
			continue
		}
		observations = append(observations, FieldObservation{
			Path:   fieldPath,
			Source: source,
			Values: dedupe(grouped[fieldPath], sampleLimit),
		})
	}
	return observations
}

// decodeValues turns the raw JSON value list into deduplicated strings.
// Non-array values are kept as a single sample.
func decodeValues(raw json.RawMessage, sampleLimit int) []string {
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		var single interface{}
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []interface{}{single}
	}

	values := make([]string, 0, len(list))
	for _, v := range list {
		switch tv := v.(type) {
		case string:
			values = append(values, tv)
		case nil:
			values = append(values, "null")
		default:
			values = append(values, fmt.Sprintf("%v", tv))
		}
	}
	return dedupe(values, sampleLimit)
}

func dedupe(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) >= limit {
			break
		}
	}
	return out
}
