package overrides

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"go.uber.org/zap"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestMerge(t *testing.T) {
	t.Run("Union", func(t *testing.T) {
		existing := patterns.Overrides{
			ManualBlacklist: []string{"deviceid"},
			ManualWhitelist: []string{"statuscode"},
		}
		incoming := File{
			ManualBlacklist: []string{"sessiontoken", "deviceid"},
			ManualWhitelist: []string{"correlationid"},
		}

		merged := Merge(existing, incoming)

		wantBlacklist := []string{"deviceid", "sessiontoken"}
		wantWhitelist := []string{"correlationid", "statuscode"}
		if !reflect.DeepEqual(merged.ManualBlacklist, wantBlacklist) {
			t.Errorf("blacklist = %v, want %v", merged.ManualBlacklist, wantBlacklist)
		}
		if !reflect.DeepEqual(merged.ManualWhitelist, wantWhitelist) {
			t.Errorf("whitelist = %v, want %v", merged.ManualWhitelist, wantWhitelist)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		incoming := File{
			ManualBlacklist: []string{"deviceid"},
			ManualWhitelist: []string{"statuscode"},
		}

		once := Merge(patterns.Overrides{}, incoming)
		twice := Merge(once, incoming)

		if !reflect.DeepEqual(once, twice) {
			t.Errorf("repeated merge changed result: %v vs %v", once, twice)
		}
	})

	t.Run("WhitelistWinsOnConflict", func(t *testing.T) {
		merged := Merge(patterns.Overrides{
			ManualBlacklist: []string{"email"},
		}, File{
			ManualWhitelist: []string{"email"},
		})

		if len(merged.ManualBlacklist) != 0 {
			t.Errorf("blacklist = %v, want empty", merged.ManualBlacklist)
		}
		if !reflect.DeepEqual(merged.ManualWhitelist, []string{"email"}) {
			t.Errorf("whitelist = %v, want [email]", merged.ManualWhitelist)
		}
	})
}

func TestConsume(t *testing.T) {
	log := nopLogger()

	setup := func(t *testing.T) (overridePath, patternsPath string) {
		t.Helper()
		dir := t.TempDir()
		patternsPath = filepath.Join(dir, "patterns_config.json")
		if err := patterns.Save(patterns.Default(), patternsPath); err != nil {
			t.Fatalf("Failed to seed pattern store: %v", err)
		}
		return filepath.Join(dir, "developer_overrides.json"), patternsPath
	}

	t.Run("AbsentFileIsNoop", func(t *testing.T) {
		overridePath, patternsPath := setup(t)

		merged, err := Consume(overridePath, patternsPath, log)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if merged {
			t.Error("Consume reported a merge with no override file present")
		}
	})

	t.Run("EmptyOverridesIsNoop", func(t *testing.T) {
		overridePath, patternsPath := setup(t)
		writeOverrides(t, overridePath, File{})

		merged, err := Consume(overridePath, patternsPath, log)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if merged {
			t.Error("Consume reported a merge for an empty override set")
		}
	})

	t.Run("MergesBacksUpAndDeletes", func(t *testing.T) {
		overridePath, patternsPath := setup(t)
		writeOverrides(t, overridePath, File{
			ManualBlacklist: []string{"deviceid"},
			ManualWhitelist: []string{"statuscode"},
		})

		merged, err := Consume(overridePath, patternsPath, log)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if !merged {
			t.Fatal("Consume did not merge")
		}

		cfg, err := patterns.Load(patternsPath, log)
		if err != nil {
			t.Fatalf("Failed to reload pattern store: %v", err)
		}
		if !reflect.DeepEqual(cfg.DeveloperOverrides.ManualBlacklist, []string{"deviceid"}) {
			t.Errorf("merged blacklist = %v", cfg.DeveloperOverrides.ManualBlacklist)
		}
		if !reflect.DeepEqual(cfg.DeveloperOverrides.ManualWhitelist, []string{"statuscode"}) {
			t.Errorf("merged whitelist = %v", cfg.DeveloperOverrides.ManualWhitelist)
		}
		if cfg.DeveloperOverrides.LastMerged == "" {
			t.Error("LastMerged not recorded")
		}

		if _, err := os.Stat(overridePath); !os.IsNotExist(err) {
			t.Error("override file not deleted after merge")
		}

		backups, err := filepath.Glob(patternsPath + ".backup.*")
		if err != nil || len(backups) == 0 {
			t.Error("no pattern store backup written")
		}

		// Second call is a no-op: the override file is gone.
		merged, err = Consume(overridePath, patternsPath, log)
		if err != nil {
			t.Fatalf("Second consume failed: %v", err)
		}
		if merged {
			t.Error("second consume reported a merge")
		}
	})
}

func writeOverrides(t *testing.T, path string, f File) {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Failed to marshal overrides: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write override file: %v", err)
	}
}
