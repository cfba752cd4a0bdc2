package source

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
)

type constructor func(cfg *Config, fetcher *Fetcher) (Adapter, error)

var constructors = map[database.ScrapeType]constructor{
	database.ScrapeTypeHTML: newHTMLAdapter,
	database.ScrapeTypeAPI:  newAPIAdapter,
	database.ScrapeTypeFeed: newFeedAdapter,
}

// NewAdapter builds the adapter for a source's extraction mode
func NewAdapter(cfg *Config, fetcher *Fetcher) (Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source config is nil")
	}

	build, ok := constructors[cfg.Mode]
	if !ok {
		return nil, fmt.Errorf("no adapter for mode %q", cfg.Mode)
	}
	return build(cfg, fetcher)
}

// base carries what every adapter needs to turn extracted fields into listings
type base struct {
	cfg     *Config
	fetcher *Fetcher
	baseURL *url.URL
}

func newBase(cfg *Config, fetcher *Fetcher) (base, error) {
	if fetcher == nil {
		return base{}, fmt.Errorf("fetcher is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return base{}, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return base{cfg: cfg, fetcher: fetcher, baseURL: baseURL}, nil
}

func (b base) Code() string {
	return b.cfg.Code
}

func (b base) request(method, target string, body []byte, headers map[string]string) Request {
	return Request{
		Source:    b.cfg.Code,
		Method:    method,
		URL:       target,
		Body:      body,
		Headers:   headers,
		Timeout:   b.cfg.TimeoutDuration(),
		RateLimit: b.cfg.Settings.RateLimit,
	}
}

func (b base) fetchError(err error) error {
	return &FetchError{Source: b.cfg.Code, Err: err}
}

// resolve turns a possibly relative link into an absolute URL
func (b base) resolve(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return b.baseURL.ResolveReference(ref).String()
}

// finish fills source-level fields and reports whether the listing is usable
func (b base) finish(l RawListing, searchTerm string, scrapedAt time.Time) (RawListing, bool) {
	l.Name = strings.Join(strings.Fields(l.Name), " ")
	l.Seller = strings.TrimSpace(l.Seller)
	l.Brand = strings.TrimSpace(l.Brand)

	if l.Name == "" || l.URL == "" || l.Price <= 0 {
		return l, false
	}

	if l.Seller == "" {
		l.Seller = b.cfg.Settings.DefaultSeller
	}
	l.Source = b.cfg.Code
	l.Currency = b.cfg.Currency
	l.SearchTerm = searchTerm
	l.ScrapedAt = scrapedAt

	return l, true
}

func queryTerm(searchTerm, separator string) string {
	tokens := strings.Fields(searchTerm)
	for i, token := range tokens {
		tokens[i] = url.QueryEscape(token)
	}
	return strings.Join(tokens, separator)
}

func expandURL(template, searchTerm, separator string, page int) string {
	return strings.NewReplacer(
		"{{term}}", queryTerm(searchTerm, separator),
		"{{page}}", strconv.Itoa(page),
	).Replace(template)
}

func expandBody(template, searchTerm string, page int) []byte {
	if template == "" {
		return nil
	}

	quoted, _ := json.Marshal(strings.TrimSpace(searchTerm))
	escaped := string(quoted[1 : len(quoted)-1])

	return []byte(strings.NewReplacer(
		"{{term}}", escaped,
		"{{page}}", strconv.Itoa(page),
	).Replace(template))
}
