package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/price-comb.db" description:"SQLite database file"`

	// Application configuration
	SourcesDir    string        `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port          string        `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount   int           `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	AlertSchedule string        `long:"alert-schedule" env:"ALERT_SCHEDULE" default:"@hourly" description:"Cron schedule for alert evaluation"`
	SourcePacing  time.Duration `long:"source-pacing" env:"SOURCE_PACING" default:"2s" description:"Delay between source requests during alert evaluation"`
	CheapestLimit int           `long:"cheapest-limit" env:"CHEAPEST_LIMIT" default:"5" description:"Number of cheapest products returned with search results"`
	APIAccessKey  string        `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Alert event publishing
	RedisAddr   string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for alert event publishing (optional)"`
	RedisStream string `long:"redis-stream" env:"REDIS_STREAM" default:"price-comb:alerts" description:"Redis stream for alert events"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; PriceComb/1.0)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Bogota)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the process configuration. Intended for tests and embedding.
func Set(c *Cfg) {
	globalCfg = c
}

func fromRaw(raw rawCfg) (*Cfg, error) {
	if raw.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.CheapestLimit <= 0 {
		return nil, fmt.Errorf("cheapest limit must be positive, got %d", raw.CheapestLimit)
	}
	if raw.SourcePacing < 0 {
		return nil, fmt.Errorf("source pacing must be non-negative, got %s", raw.SourcePacing)
	}

	return &Cfg{
		DBPath:        raw.DBPath,
		SourcesDir:    raw.SourcesDir,
		Port:          raw.Port,
		WorkerCount:   raw.WorkerCount,
		AlertSchedule: raw.AlertSchedule,
		SourcePacing:  raw.SourcePacing,
		CheapestLimit: raw.CheapestLimit,
		APIAccessKey:  raw.APIAccessKey,
		RedisAddr:     raw.RedisAddr,
		RedisStream:   raw.RedisStream,
		UserAgent:     raw.UserAgent,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}, nil
}

// loadDotEnv populates missing environment variables from a dotenv file.
// Variables already present in the environment take precedence.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
