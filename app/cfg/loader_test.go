package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// Version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestFromRaw(t *testing.T) {
	raw := rawCfg{
		DBPath:        "/tmp/prices.db",
		SourcesDir:    "./sources",
		Port:          "8080",
		WorkerCount:   3,
		AlertSchedule: "@hourly",
		SourcePacing:  2 * time.Second,
		CheapestLimit: 5,
		APIAccessKey:  "test-key",
		RedisStream:   "price-comb:alerts",
		UserAgent:     "Test Agent",
		Timezone:      "UTC",
		Debug:         true,
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/tmp/prices.db" {
		t.Errorf("Expected DB path '/tmp/prices.db', got '%s'", cfg.DBPath)
	}
	if cfg.SourcesDir != "./sources" {
		t.Errorf("Expected sources dir './sources', got '%s'", cfg.SourcesDir)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("Expected worker count 3, got %d", cfg.WorkerCount)
	}
	if cfg.AlertSchedule != "@hourly" {
		t.Errorf("Expected alert schedule '@hourly', got '%s'", cfg.AlertSchedule)
	}
	if cfg.SourcePacing != 2*time.Second {
		t.Errorf("Expected source pacing 2s, got %v", cfg.SourcePacing)
	}
	if cfg.CheapestLimit != 5 {
		t.Errorf("Expected cheapest limit 5, got %d", cfg.CheapestLimit)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.Version == "" {
		t.Error("Expected version to be populated")
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestFromRawRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		raw  rawCfg
	}{
		{"zero workers", rawCfg{WorkerCount: 0, CheapestLimit: 5}},
		{"zero cheapest limit", rawCfg{WorkerCount: 1, CheapestLimit: 0}},
		{"negative pacing", rawCfg{WorkerCount: 1, CheapestLimit: 5, SourcePacing: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromRaw(tt.raw); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing dotenv file should not be an error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PRICE_COMB_TEST_VALUE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRICE_COMB_TEST_VALUE", "from-env")
	if err := loadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PRICE_COMB_TEST_VALUE"); got != "from-env" {
		t.Errorf("Existing environment should win, got '%s'", got)
	}
}

func TestGetPanicsWhenNotLoaded(t *testing.T) {
	previous := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = previous
		if recover() == nil {
			t.Error("Expected Get to panic when configuration is not loaded")
		}
	}()

	Get()
}
