package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/source"
)

type fakeAdapter struct {
	code     string
	listings []source.RawListing
	err      error
	block    bool
	calls    int
	mu       sync.Mutex
}

func (a *fakeAdapter) Code() string { return a.code }

func (a *fakeAdapter) Fetch(ctx context.Context, searchTerm string) ([]source.RawListing, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	if a.block {
		<-ctx.Done()
		return nil, &source.FetchError{Source: a.code, Err: ctx.Err()}
	}
	if a.err != nil {
		return nil, a.err
	}

	out := make([]source.RawListing, len(a.listings))
	for i, l := range a.listings {
		l.Source = a.code
		l.SearchTerm = searchTerm
		out[i] = l
	}
	return out, nil
}

type fakeSourceRepo struct {
	mu      sync.Mutex
	sources map[string]*database.Source
	creates int
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{sources: make(map[string]*database.Source)}
}

func (r *fakeSourceRepo) GetSourceByCode(ctx context.Context, code string) (*database.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[code]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeSourceRepo) ListSources(ctx context.Context) ([]database.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sources := []database.Source{}
	for _, s := range r.sources {
		sources = append(sources, *s)
	}
	return sources, nil
}

func (r *fakeSourceRepo) CreateSourceIfAbsent(ctx context.Context, s database.Source) (*database.Source, error) {
	r.mu.Lock()
	r.creates++
	if _, ok := r.sources[s.Code]; !ok {
		s.ID = "src-" + s.Code
		r.sources[s.Code] = &s
	}
	r.mu.Unlock()
	return r.GetSourceByCode(ctx, s.Code)
}

func (r *fakeSourceRepo) UpdateSourceMetadata(ctx context.Context, s database.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sources[s.Code]
	if !ok {
		return fmt.Errorf("not found")
	}
	stored.Name = s.Name
	stored.URLBase = s.URLBase
	stored.LogoURL = s.LogoURL
	return nil
}

func (r *fakeSourceRepo) SetSourceActive(ctx context.Context, code string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sources[code]
	if !ok {
		return fmt.Errorf("not found")
	}
	stored.Active = active
	return nil
}

type fakeProductRepo struct {
	mu             sync.Mutex
	products       map[string]*database.Product // keyed by source_id|url
	observations   int
	conflicts      int // upserts to fail with ErrPersistenceConflict
	failURL        string
	upsertAttempts int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*database.Product)}
}

func (r *fakeProductRepo) UpsertProductWithObservation(ctx context.Context, p database.Product, at time.Time) (*database.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsertAttempts++
	if r.conflicts > 0 {
		r.conflicts--
		return nil, fmt.Errorf("failed to upsert product: %w", database.ErrPersistenceConflict)
	}
	if r.failURL != "" && p.URL == r.failURL {
		return nil, fmt.Errorf("failed to upsert product: disk I/O error")
	}

	key := p.SourceID + "|" + p.URL
	if existing, ok := r.products[key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = fmt.Sprintf("prod-%d", len(r.products)+1)
	}
	p.LastSeenAt = at
	r.products[key] = &p
	r.observations++

	copied := p
	return &copied, nil
}

func (r *fakeProductRepo) GetCheapestProducts(ctx context.Context, term string, limit int) ([]database.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	products := []database.Product{}
	for _, p := range r.products {
		if p.SearchTerm == term {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Price < products[j].Price })
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (r *fakeProductRepo) GetProduct(ctx context.Context, id string) (*database.Product, error) {
	return nil, nil
}

func (r *fakeProductRepo) GetPriceHistory(ctx context.Context, productID string, limit int) ([]database.PriceObservation, error) {
	return nil, nil
}

func (r *fakeProductRepo) GetProductCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), nil
}

func (r *fakeProductRepo) GetObservationCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observations, nil
}

func (r *fakeProductRepo) HistoricalMinPrice(ctx context.Context, term string, before time.Time) (float64, bool, error) {
	return 0, false, nil
}
