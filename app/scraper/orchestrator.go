package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/listing"
	"github.com/lysyi3m/price-comb/app/metrics"
	"github.com/lysyi3m/price-comb/app/source"
)

const DefaultCheapestLimit = 5

// SourceResult is the outcome of one source within a multi-source scrape
type SourceResult struct {
	Source   string
	Products []database.Product
	Err      error
}

// SearchResult is the outcome of a multi-source scrape
type SearchResult struct {
	SearchTerm string
	Results    []SourceResult
	Cheapest   []database.Product
}

// Products returns every persisted product across successful sources
func (r *SearchResult) Products() []database.Product {
	products := []database.Product{}
	for _, result := range r.Results {
		products = append(products, result.Products...)
	}
	return products
}

// Orchestrator drives fetch, filter, dedup and persistence for one
// (search term, source) pair at a time
type Orchestrator struct {
	catalog       *Catalog
	registry      *SourceRegistry
	products      database.ProductRepository
	filterer      *listing.Filterer
	metrics       *metrics.Metrics
	cheapestLimit int
}

func NewOrchestrator(catalog *Catalog, registry *SourceRegistry, products database.ProductRepository, filterer *listing.Filterer, m *metrics.Metrics, cheapestLimit int) *Orchestrator {
	if cheapestLimit <= 0 {
		cheapestLimit = DefaultCheapestLimit
	}
	return &Orchestrator{
		catalog:       catalog,
		registry:      registry,
		products:      products,
		filterer:      filterer,
		metrics:       m,
		cheapestLimit: cheapestLimit,
	}
}

func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Scrape fetches one source, keeps the relevant realistically priced
// listings and upserts them with a new price observation each
func (o *Orchestrator) Scrape(ctx context.Context, searchTerm, sourceCode string) ([]database.Product, error) {
	startedAt := time.Now()

	products, err := o.scrape(ctx, searchTerm, sourceCode)
	o.metrics.ObserveScrape(sourceCode, outcome(err), time.Since(startedAt))

	return products, err
}

func (o *Orchestrator) scrape(ctx context.Context, searchTerm, sourceCode string) ([]database.Product, error) {
	term, err := ValidateSearchTerm(searchTerm)
	if err != nil {
		return nil, err
	}

	adapter, cfg, err := o.catalog.Lookup(sourceCode)
	if err != nil {
		return nil, err
	}

	listings, err := fetch(ctx, adapter, term)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, cfg.Code)
	}

	kept, stats := o.filterer.Run(listings, term, cfg.Settings.Quantile)
	o.metrics.ObserveListings(cfg.Code, "fetched", stats.Fetched)
	o.metrics.ObserveListings(cfg.Code, "relevant", stats.Relevant)
	o.metrics.ObserveListings(cfg.Code, "priced", stats.Priced)
	o.metrics.ObserveListings(cfg.Code, "unique", stats.Unique)

	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRelevantData, cfg.Code)
	}

	row, err := o.registry.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}

	products := make([]database.Product, 0, len(kept))
	for _, l := range kept {
		stored, err := o.upsert(ctx, toProduct(l, row, cfg, term), observedAt(l))
		if err != nil {
			// earlier listings are already persisted and are returned with the error
			return products, fmt.Errorf("failed to persist %s: %w", l.URL, err)
		}
		products = append(products, *stored)
	}

	slog.Info("Scrape completed",
		"source", cfg.Code,
		"term", term,
		"fetched", stats.Fetched,
		"relevant", stats.Relevant,
		"priced", stats.Priced,
		"unique", stats.Unique,
		"rule", stats.Rule)

	return products, nil
}

// ScrapeRaw returns the adapter output untouched. Nothing is persisted.
func (o *Orchestrator) ScrapeRaw(ctx context.Context, searchTerm, sourceCode string) ([]source.RawListing, error) {
	term, err := ValidateSearchTerm(searchTerm)
	if err != nil {
		return nil, err
	}

	adapter, _, err := o.catalog.Lookup(sourceCode)
	if err != nil {
		return nil, err
	}

	listings, err := fetch(ctx, adapter, term)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []source.RawListing{}
	}
	return listings, nil
}

// Cheapest returns the n lowest-priced products for the term, ascending.
// A non-positive n uses the configured default.
func (o *Orchestrator) Cheapest(ctx context.Context, searchTerm string, n int) ([]database.Product, error) {
	term, err := ValidateSearchTerm(searchTerm)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = o.cheapestLimit
	}
	return o.products.GetCheapestProducts(ctx, term, n)
}

// ScrapeMany scrapes the selected sources concurrently. Per-source failures
// are reported in the result; only request-level input errors fail the call.
func (o *Orchestrator) ScrapeMany(ctx context.Context, searchTerm string, selection []string) (*SearchResult, error) {
	term, err := ValidateSearchTerm(searchTerm)
	if err != nil {
		return nil, err
	}

	codes, err := o.catalog.ResolveSources(selection)
	if err != nil {
		return nil, err
	}

	results := make([]SourceResult, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()

			products, err := o.Scrape(ctx, term, code)
			if err != nil {
				slog.Warn("Source scrape failed", "source", code, "term", term, "persisted", len(products), "error", err)
				if products == nil {
					products = []database.Product{}
				}
			}
			results[i] = SourceResult{Source: code, Products: products, Err: err}
		}(i, code)
	}
	wg.Wait()

	cheapest, err := o.Cheapest(ctx, term, o.cheapestLimit)
	if err != nil {
		return nil, err
	}

	return &SearchResult{SearchTerm: term, Results: results, Cheapest: cheapest}, nil
}

func (o *Orchestrator) upsert(ctx context.Context, product database.Product, at time.Time) (*database.Product, error) {
	stored, err := o.products.UpsertProductWithObservation(ctx, product, at)
	if errors.Is(err, database.ErrPersistenceConflict) {
		slog.Warn("Retrying product upsert after conflict", "url", product.URL, "error", err)
		stored, err = o.products.UpsertProductWithObservation(ctx, product, at)
	}
	return stored, err
}

func fetch(ctx context.Context, adapter source.Adapter, term string) ([]source.RawListing, error) {
	listings, err := adapter.Fetch(ctx, term)
	if err != nil {
		var fetchErr *source.FetchError
		if !errors.As(err, &fetchErr) {
			err = &source.FetchError{Source: adapter.Code(), Err: err}
		}
		return nil, err
	}
	return listings, nil
}

func toProduct(l source.RawListing, row *database.Source, cfg *source.Config, term string) database.Product {
	return database.Product{
		SourceID:   row.ID,
		SourceCode: row.Code,
		URL:        l.URL,
		Name:       l.Name,
		Image:      l.Image,
		Brand:      l.Brand,
		SKU:        l.SKU,
		EAN:        l.EAN,
		Category:   l.Category,
		Price:      l.Price,
		Currency:   l.Currency,
		Seller:     l.Seller,
		Country:    cfg.Country,
		SearchTerm: term,
	}
}

func observedAt(l source.RawListing) time.Time {
	if l.ScrapedAt.IsZero() {
		return time.Now().UTC()
	}
	return l.ScrapedAt
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNoData):
		return metrics.OutcomeNoData
	case errors.Is(err, ErrNoRelevantData):
		return metrics.OutcomeNoRelevant
	case errors.Is(err, ErrUnsupportedSource), errors.Is(err, ErrInvalidSearchTerm):
		return metrics.OutcomeUnsupported
	default:
		return metrics.OutcomeFailure
	}
}
