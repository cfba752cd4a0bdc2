package scraper

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lysyi3m/price-comb/app/source"
)

type entry struct {
	adapter source.Adapter
	config  *source.Config
}

// Catalog maps source codes to their adapter and configuration
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

// LoadCatalog builds one adapter per configured source
func LoadCatalog(configCache *source.ConfigCache, fetcher *source.Fetcher) (*Catalog, error) {
	catalog := NewCatalog()

	for code, cfg := range configCache.GetConfigs() {
		adapter, err := source.NewAdapter(cfg, fetcher)
		if err != nil {
			return nil, fmt.Errorf("failed to build adapter for %s: %w", code, err)
		}
		catalog.Add(cfg, adapter)
	}

	return catalog, nil
}

func (c *Catalog) Add(cfg *source.Config, adapter source.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cfg.Code] = entry{adapter: adapter, config: cfg}
}

func (c *Catalog) Lookup(code string) (source.Adapter, *source.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, code)
	}
	return e.adapter, e.config, nil
}

// Configs returns the configuration of every source, ordered by code
func (c *Catalog) Configs() []*source.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*source.Config, 0, len(c.entries))
	for _, e := range c.entries {
		configs = append(configs, e.config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Code < configs[j].Code })
	return configs
}

// EnabledCodes returns the codes visited when no explicit selection is made
func (c *Catalog) EnabledCodes() []string {
	codes := []string{}
	for _, cfg := range c.Configs() {
		if cfg.Settings.Enabled {
			codes = append(codes, cfg.Code)
		}
	}
	return codes
}

// ResolveSources parses a source selection. Each element may itself be a
// comma separated list. Codes are trimmed, lowercased and de-duplicated in
// first-seen order. A nil or empty selection means every enabled source.
func (c *Catalog) ResolveSources(selection []string) ([]string, error) {
	if len(selection) == 0 {
		return c.EnabledCodes(), nil
	}

	seen := make(map[string]bool)
	codes := []string{}
	for _, raw := range selection {
		for _, part := range strings.Split(raw, ",") {
			code := strings.ToLower(strings.TrimSpace(part))
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}

	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: at least one source must be provided", ErrUnsupportedSource)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var unknown []string
	for _, code := range codes {
		if _, ok := c.entries[code]; !ok {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, strings.Join(unknown, ", "))
	}

	return codes, nil
}

// ValidateSearchTerm trims the term and rejects it when nothing is left
func ValidateSearchTerm(term string) (string, error) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return "", ErrInvalidSearchTerm
	}
	return trimmed, nil
}
