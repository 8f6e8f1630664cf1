package patterns

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

func TestLoad(t *testing.T) {
	log := nopLogger()

	t.Run("MissingFileCreatesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns_config.json")

		cfg, err := Load(path, log)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(cfg.Keywords) == 0 {
			t.Error("default keywords missing")
		}
		if len(cfg.ValuePatterns) == 0 {
			t.Error("default value patterns missing")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("default pattern file not written: %v", err)
		}
	})

	t.Run("MalformedJSONIsFatal", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns_config.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(path, log); err == nil {
			t.Fatal("Load accepted malformed JSON")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns_config.json")
		cfg := Default()
		cfg.DeveloperOverrides.ManualBlacklist = []string{"deviceid"}

		if err := Save(cfg, path); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := Load(path, log)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded.DeveloperOverrides.ManualBlacklist) != 1 ||
			loaded.DeveloperOverrides.ManualBlacklist[0] != "deviceid" {
			t.Errorf("overrides lost in round trip: %v", loaded.DeveloperOverrides.ManualBlacklist)
		}
	})
}

func TestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns_config.json")
	if err := Save(Default(), path); err != nil {
		t.Fatal(err)
	}

	backupPath, err := Backup(path)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	original, _ := os.ReadFile(path)
	backup, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("backup file unreadable: %v", err)
	}
	if string(original) != string(backup) {
		t.Error("backup content differs from original")
	}
}

func TestCompile(t *testing.T) {
	log := nopLogger()

	t.Run("Defaults", func(t *testing.T) {
		rules, err := Compile(Default(), log)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(rules.Keywords[CategorySPI]) == 0 {
			t.Error("no SPI keywords compiled")
		}
		if rules.ValuePatterns["email"] == nil {
			t.Error("email value pattern not compiled")
		}
		if rules.Fingerprint == "" || rules.Fingerprint == "unknown" {
			t.Errorf("fingerprint = %q", rules.Fingerprint)
		}
	})

	t.Run("InvalidRegexSkipped", func(t *testing.T) {
		cfg := Default()
		cfg.ValuePatterns["broken"] = "["

		rules, err := Compile(cfg, log)
		if err != nil {
			t.Fatalf("Compile failed on invalid regex: %v", err)
		}
		if _, ok := rules.ValuePatterns["broken"]; ok {
			t.Error("invalid regex was compiled")
		}
		if rules.ValuePatterns["email"] == nil {
			t.Error("valid patterns dropped alongside invalid one")
		}
	})

	t.Run("UnknownCategoryFails", func(t *testing.T) {
		cfg := Default()
		cfg.Keywords["bogus"] = []string{"something"}

		if _, err := Compile(cfg, log); err == nil {
			t.Fatal("Compile accepted unknown keyword category")
		}
	})

	t.Run("FingerprintTracksContent", func(t *testing.T) {
		a, err := Compile(Default(), log)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Compile(Default(), log)
		if err != nil {
			t.Fatal(err)
		}
		if a.Fingerprint != b.Fingerprint {
			t.Error("identical configs produced different fingerprints")
		}

		changed := Default()
		changed.DeveloperOverrides.ManualBlacklist = []string{"deviceid"}
		c, err := Compile(changed, log)
		if err != nil {
			t.Fatal(err)
		}
		if c.Fingerprint == a.Fingerprint {
			t.Error("changed config kept the same fingerprint")
		}
	})

	t.Run("LookupsAreCaseInsensitive", func(t *testing.T) {
		cfg := Default()
		cfg.DeveloperOverrides.ManualBlacklist = []string{"DeviceID"}
		cfg.DeveloperOverrides.ManualWhitelist = []string{"StatusCode"}

		rules, err := Compile(cfg, log)
		if err != nil {
			t.Fatal(err)
		}
		if !rules.Blacklisted("deviceid") {
			t.Error("blacklist lookup not case-insensitive")
		}
		if !rules.Whitelisted("STATUSCODE") {
			t.Error("whitelist lookup not case-insensitive")
		}
		if !rules.Excluded("Timestamp") {
			t.Error("exclusion lookup not case-insensitive")
		}
	})
}
