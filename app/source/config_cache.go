package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/price-comb/app/database"
)

const (
	DefaultTimeout       = 10 // seconds
	DefaultRateLimit     = 1.0
	DefaultQuantile      = 0.75
	DefaultTermSeparator = "+"
	DefaultCurrency      = "COP"
	DefaultCountry       = "CO"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		code := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(code)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", code, "mode", config.Mode, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(code string) (*Config, error) {
	configFile := cc.getConfigFilePath(code)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Code = strings.ToLower(code)

	if err := ValidateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.Set(sourceConfig)

	return sourceConfig, nil
}

// Set stores an already validated configuration
func (cc *ConfigCache) Set(sourceConfig *Config) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Code] = sourceConfig
}

func (cc *ConfigCache) GetConfig(code string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[code]
	if !ok {
		return nil, fmt.Errorf("source config with code '%s' not found", code)
	}
	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

// GetEnabledCodes returns the codes of enabled sources in lexical order
func (cc *ConfigCache) GetEnabledCodes() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	codes := make([]string, 0, len(cc.cache))
	for code, v := range cc.cache {
		if v.Settings.Enabled {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// header values may reference secrets kept in the environment
	if sourceConfig.API != nil {
		for name, value := range sourceConfig.API.Headers {
			sourceConfig.API.Headers[name] = os.ExpandEnv(value)
		}
	}

	ApplyDefaults(&sourceConfig)

	return &sourceConfig, nil
}

// ApplyDefaults fills unset optional fields
func ApplyDefaults(c *Config) {
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = DefaultTimeout
	}
	if c.Settings.RateLimit == 0 {
		c.Settings.RateLimit = DefaultRateLimit
	}
	if c.Settings.Quantile == 0 {
		c.Settings.Quantile = DefaultQuantile
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	if c.Price.ThousandsSeparator == "" && c.Price.DecimalSeparator == "" {
		c.Price.ThousandsSeparator = "."
		c.Price.DecimalSeparator = ","
	}
	if c.Price.Multiplier == 0 {
		c.Price.Multiplier = 1
	}
	if c.HTML != nil && c.HTML.TermSeparator == "" {
		c.HTML.TermSeparator = DefaultTermSeparator
	}
	if c.API != nil {
		if c.API.Method == "" {
			c.API.Method = "GET"
		}
		c.API.Method = strings.ToUpper(c.API.Method)
		if c.API.MaxPages == 0 {
			c.API.MaxPages = 1
		}
	}
}

// ValidateConfig checks a defaulted configuration
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("source config is nil")
	}

	requiredFields := map[string]string{
		"source code": c.Code,
		"name":        c.Name,
		"base URL":    c.BaseURL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if c.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.Settings.RateLimit < 0 {
		return fmt.Errorf("rps must be non-negative")
	}
	if c.Settings.Quantile <= 0 || c.Settings.Quantile > 1 {
		return fmt.Errorf("quantile must be in (0, 1]")
	}
	if c.Price.Multiplier <= 0 {
		return fmt.Errorf("price multiplier must be positive")
	}
	if c.Price.ThousandsSeparator == c.Price.DecimalSeparator {
		return fmt.Errorf("price thousands and decimal separators must differ")
	}

	switch c.Mode {
	case database.ScrapeTypeHTML:
		if c.HTML == nil {
			return fmt.Errorf("html mapping is required for mode %s", c.Mode)
		}
		return requireSelectors(map[string]string{
			"html.search_path": c.HTML.SearchPath,
			"html.item":        c.HTML.Item,
			"html.name":        c.HTML.Name,
			"html.price":       c.HTML.Price,
			"html.url":         c.HTML.URL,
		})
	case database.ScrapeTypeAPI:
		if c.API == nil {
			return fmt.Errorf("api mapping is required for mode %s", c.Mode)
		}
		if c.API.Method != "GET" && c.API.Method != "POST" {
			return fmt.Errorf("api.method must be GET or POST, got %s", c.API.Method)
		}
		if c.API.MaxPages < 1 {
			return fmt.Errorf("api.max_pages must be positive")
		}
		return requireSelectors(map[string]string{
			"api.path":         c.API.Path,
			"api.items":        c.API.Items,
			"api.fields.name":  c.API.Fields.Name,
			"api.fields.price": c.API.Fields.Price,
			"api.fields.url":   c.API.Fields.URL,
		})
	case database.ScrapeTypeFeed:
		if c.Feed == nil || c.Feed.Path == "" {
			return fmt.Errorf("feed.path is required for mode %s", c.Mode)
		}
		return nil
	case database.ScrapeTypeHeadless:
		return fmt.Errorf("mode %s is not supported by this build", c.Mode)
	default:
		return fmt.Errorf("invalid mode: %q", c.Mode)
	}
}

func requireSelectors(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if fields[name] == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

func (cc *ConfigCache) getConfigFilePath(code string) string {
	return filepath.Join(cc.sourcesDir, code+".yml")
}
