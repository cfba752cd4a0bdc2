package alerts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/price-comb/app/database"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type staticSources []string

func (s staticSources) EnabledCodes() []string { return s }

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	failOn string
}

func (n *recordingNotifier) Notify(ctx context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn != "" && event.Email == n.failOn {
		return errors.New("mail server down")
	}
	n.events = append(n.events, event)
	return nil
}

// fakeScraper persists one product per source per pass through the real store
type fakeScraper struct {
	products *database.ProductStore
	sources  map[string]*database.Source
	clock    *testClock

	mu     sync.Mutex
	prices map[string][]float64 // per source, one entry per pass
	passes map[string]int
	failed map[string]bool
}

func (s *fakeScraper) Scrape(ctx context.Context, term, code string) ([]database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed[code] {
		return nil, fmt.Errorf("fetch from %s failed: timeout", code)
	}

	pass := s.passes[code]
	s.passes[code]++
	prices := s.prices[code]
	if pass >= len(prices) {
		return nil, fmt.Errorf("no data returned by source")
	}

	stored, err := s.products.UpsertProductWithObservation(ctx, database.Product{
		SourceID:   s.sources[code].ID,
		URL:        "https://" + code + ".example.com/p/1",
		Name:       "Phone X 128GB",
		Price:      prices[pass],
		Currency:   "COP",
		Seller:     code,
		SearchTerm: term,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return []database.Product{*stored}, nil
}

type evaluatorHarness struct {
	db       *database.DB
	alerts   *database.AlertStore
	products *database.ProductStore
	scraper  *fakeScraper
	notifier *recordingNotifier
	clock    *testClock
}

func newEvaluatorHarness(t *testing.T, codes ...string) *evaluatorHarness {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	sourceStore := database.NewSourceStore(db)
	sources := map[string]*database.Source{}
	for _, code := range codes {
		row, err := sourceStore.CreateSourceIfAbsent(context.Background(), database.Source{
			Code: code, Name: code, ScrapeType: database.ScrapeTypeHTML, Active: true, Country: "CO",
		})
		require.NoError(t, err)
		sources[code] = row
	}

	clock := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	products := database.NewProductStore(db)

	return &evaluatorHarness{
		db:       db,
		alerts:   database.NewAlertStore(db),
		products: products,
		scraper: &fakeScraper{
			products: products,
			sources:  sources,
			clock:    clock,
			prices:   map[string][]float64{},
			passes:   map[string]int{},
			failed:   map[string]bool{},
		},
		notifier: &recordingNotifier{},
		clock:    clock,
	}
}

func (h *evaluatorHarness) evaluator(codes ...string) *Evaluator {
	e := NewEvaluator(h.alerts, h.products, h.scraper, staticSources(codes), h.notifier, nil, 0)
	e.now = h.clock.Now
	return e
}

func TestEvaluatorFiresOnlyOnNewLow(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	// price known from an earlier scrape
	h.scraper.prices["store-a"] = []float64{100, 100, 100, 90}
	_, err := h.scraper.Scrape(ctx, "phone x", "store-a")
	require.NoError(t, err)

	alert, err := h.alerts.CreateAlert(ctx, "phone x", 100, "buyer@example.com")
	require.NoError(t, err)

	e := h.evaluator("store-a")

	for pass, wantFired := range []int{0, 0, 1} {
		summary, err := e.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantFired, summary.Fired, "pass %d", pass)
	}

	require.Len(t, h.notifier.events, 1)
	event := h.notifier.events[0]
	assert.Equal(t, 90.0, event.Price)
	assert.Equal(t, "buyer@example.com", event.Email)
	assert.Equal(t, "Phone X 128GB", event.ProductName)
	assert.Equal(t, "store-a", event.Source)
	assert.Equal(t, "store-a", event.Seller)

	stored, err := h.alerts.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastTriggeredPrice)
	assert.Equal(t, 90.0, *stored.LastTriggeredPrice)
}

func TestEvaluatorFiresOnFirstObservation(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	h.scraper.prices["store-a"] = []float64{95, 95}
	_, err := h.alerts.CreateAlert(ctx, "phone x", 100, "buyer@example.com")
	require.NoError(t, err)

	e := h.evaluator("store-a")

	summary, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fired)

	summary, err = e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fired)
}

func TestEvaluatorIgnoresPricesAboveThreshold(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	h.scraper.prices["store-a"] = []float64{150}
	_, err := h.alerts.CreateAlert(ctx, "phone x", 100, "buyer@example.com")
	require.NoError(t, err)

	summary, err := h.evaluator("store-a").RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fired)
	assert.Empty(t, h.notifier.events)
}

func TestEvaluatorTracksMinimumAcrossSources(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a", "store-b", "store-c")
	ctx := context.Background()

	h.scraper.prices["store-a"] = []float64{98}
	h.scraper.prices["store-b"] = []float64{91}
	h.scraper.failed["store-c"] = true

	_, err := h.alerts.CreateAlert(ctx, "phone x", 100, "buyer@example.com")
	require.NoError(t, err)

	summary, err := h.evaluator("store-c", "store-a", "store-b").RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fired)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.Scrapes)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, 91.0, h.notifier.events[0].Price)
	assert.Equal(t, "store-b", h.notifier.events[0].Source)
}

func TestEvaluatorContinuesAfterAlertFailure(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	h.scraper.prices["store-a"] = []float64{90, 90}
	h.notifier.failOn = "broken@example.com"

	_, err := h.alerts.CreateAlert(ctx, "phone x", 100, "broken@example.com")
	require.NoError(t, err)
	_, err = h.alerts.CreateAlert(ctx, "phone x", 100, "ok@example.com")
	require.NoError(t, err)

	summary, err := h.evaluator("store-a").RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Alerts)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Fired)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "ok@example.com", h.notifier.events[0].Email)
}

func TestEvaluatorFiresEveryAlertSharingATerm(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	h.scraper.prices["store-a"] = []float64{100, 90, 90}
	_, err := h.scraper.Scrape(ctx, "phone x", "store-a")
	require.NoError(t, err)

	_, err = h.alerts.CreateAlert(ctx, "phone x", 100, "a@example.com")
	require.NoError(t, err)
	_, err = h.alerts.CreateAlert(ctx, "phone x", 100, "b@example.com")
	require.NoError(t, err)

	summary, err := h.evaluator("store-a").RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fired)

	emails := []string{}
	for _, event := range h.notifier.events {
		assert.Equal(t, 90.0, event.Price)
		emails = append(emails, event.Email)
	}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, emails)
}

type blockingScraper struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingScraper) Scrape(ctx context.Context, term, code string) ([]database.Product, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return nil, errors.New("no data")
}

func TestEvaluatorRejectsOverlappingRuns(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	_, err := h.alerts.CreateAlert(ctx, "phone x", 100, "buyer@example.com")
	require.NoError(t, err)

	scraper := &blockingScraper{started: make(chan struct{}), release: make(chan struct{})}
	e := NewEvaluator(h.alerts, h.products, scraper, staticSources{"store-a"}, h.notifier, nil, 0)

	done := make(chan error, 1)
	go func() {
		_, err := e.RunOnce(ctx)
		done <- err
	}()

	<-scraper.started
	assert.True(t, e.Running())

	_, err = e.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(scraper.release)
	require.NoError(t, <-done)
	assert.False(t, e.Running())

	_, err = e.RunOnce(ctx)
	assert.NoError(t, err)
}

func TestPacerSpacesCallsAndHonorsCancellation(t *testing.T) {
	p := &pacer{delay: 20 * time.Millisecond}
	ctx := context.Background()

	startedAt := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(startedAt), 40*time.Millisecond)
	assert.Equal(t, 3, p.calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, p.wait(cancelled))
}

type cancellingScraper struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingScraper) Scrape(ctx context.Context, term, code string) ([]database.Product, error) {
	s.calls++
	s.cancel()
	return nil, ctx.Err()
}

func TestEvaluatorStopsOnCancelledContext(t *testing.T) {
	h := newEvaluatorHarness(t, "store-a")
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := h.alerts.CreateAlert(ctx, "phone x", 100, email)
		require.NoError(t, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scraper := &cancellingScraper{cancel: cancel}
	e := NewEvaluator(h.alerts, h.products, scraper, staticSources{"store-a"}, h.notifier, nil, 0)

	summary, err := e.RunOnce(runCtx)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, scraper.calls)
	assert.Equal(t, 0, summary.Fired)
}
