package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
)

// Adapter fetches raw listings for a search term from one source.
// An empty slice with a nil error means the source legitimately has no results.
type Adapter interface {
	Code() string
	Fetch(ctx context.Context, searchTerm string) ([]RawListing, error)
}

// RawListing is one unprocessed search result. It never outlives a scrape pass.
type RawListing struct {
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	URL        string    `json:"url"`
	Image      string    `json:"image,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Seller     string    `json:"seller,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	EAN        string    `json:"ean,omitempty"`
	Category   string    `json:"category,omitempty"`
	Source     string    `json:"source"`
	Currency   string    `json:"currency"`
	SearchTerm string    `json:"search_term"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// FetchError reports a network or parse failure inside an adapter
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Configuration types

type Config struct {
	Code     string              // Derived from filename (without .yml extension)
	Name     string              `yaml:"name"`
	BaseURL  string              `yaml:"base_url"`
	LogoURL  string              `yaml:"logo_url"`
	Mode     database.ScrapeType `yaml:"mode"`
	Country  string              `yaml:"country"`
	Currency string              `yaml:"currency"`
	Settings ConfigSettings      `yaml:"settings"`
	Price    PriceFormat         `yaml:"price"`

	HTML *HTMLMapping `yaml:"html"`
	API  *APIMapping  `yaml:"api"`
	Feed *FeedMapping `yaml:"feed"`
}

type ConfigSettings struct {
	Enabled       bool    `yaml:"enabled"`
	Timeout       int     `yaml:"timeout"` // seconds
	RateLimit     float64 `yaml:"rps"`     // requests per second
	Quantile      float64 `yaml:"quantile"`
	DefaultSeller string  `yaml:"default_seller"`
}

type PriceFormat struct {
	ThousandsSeparator string  `yaml:"thousands_separator"`
	DecimalSeparator   string  `yaml:"decimal_separator"`
	Multiplier         float64 `yaml:"multiplier"`
}

// HTMLMapping holds CSS selectors for server-rendered search pages
type HTMLMapping struct {
	SearchPath    string `yaml:"search_path"` // {{term}} is replaced with the joined query
	TermSeparator string `yaml:"term_separator"`
	Item          string `yaml:"item"`
	Name          string `yaml:"name"`
	Price         string `yaml:"price"`
	URL           string `yaml:"url"`
	Image         string `yaml:"image"`
	Seller        string `yaml:"seller"`
	Brand         string `yaml:"brand"`
}

// APIMapping describes a JSON search endpoint
type APIMapping struct {
	Method    string            `yaml:"method"`
	Path      string            `yaml:"path"` // {{term}} and {{page}} placeholders
	Body      string            `yaml:"body"`
	Headers   map[string]string `yaml:"headers"`
	Items     string            `yaml:"items"`
	Fields    FieldPaths        `yaml:"fields"`
	URLPrefix string            `yaml:"url_prefix"`
	FirstPage int               `yaml:"first_page"`
	MaxPages  int               `yaml:"max_pages"`
}

type FieldPaths struct {
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	URL      string `yaml:"url"`
	Image    string `yaml:"image"`
	Seller   string `yaml:"seller"`
	Brand    string `yaml:"brand"`
	SKU      string `yaml:"sku"`
	EAN      string `yaml:"ean"`
	Category string `yaml:"category"`
}

// FeedMapping points at an RSS/Atom product feed
type FeedMapping struct {
	Path string `yaml:"path"` // {{term}} is replaced with the query-escaped term
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
