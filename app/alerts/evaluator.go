package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/metrics"
)

// DefaultPacing is the delay between consecutive source scrapes in a run
const DefaultPacing = 2 * time.Second

// ErrAlreadyRunning is returned by RunOnce while another run is in flight
var ErrAlreadyRunning = errors.New("alert evaluation already running")

type Scraper interface {
	Scrape(ctx context.Context, searchTerm, sourceCode string) ([]database.Product, error)
}

type SourceLister interface {
	EnabledCodes() []string
}

// RunSummary counts what happened in one evaluation run
type RunSummary struct {
	Alerts    int
	Fired     int
	Failed    int
	Scrapes   int
	Duration  time.Duration
	Cancelled bool
}

type Evaluator struct {
	alerts   database.AlertRepository
	history  database.ProductRepository
	scraper  Scraper
	sources  SourceLister
	notifier Notifier
	metrics  *metrics.Metrics
	pacing   time.Duration

	running atomic.Bool
	now     func() time.Time
}

func NewEvaluator(alerts database.AlertRepository, history database.ProductRepository, scraper Scraper, sources SourceLister, notifier Notifier, m *metrics.Metrics, pacing time.Duration) *Evaluator {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Evaluator{
		alerts:   alerts,
		history:  history,
		scraper:  scraper,
		sources:  sources,
		notifier: notifier,
		metrics:  m,
		pacing:   pacing,
		now:      time.Now,
	}
}

// Running reports whether a run is in flight
func (e *Evaluator) Running() bool {
	return e.running.Load()
}

// RunOnce evaluates every alert once. Overlapping calls are rejected with
// ErrAlreadyRunning. One alert's failure never stops the others.
func (e *Evaluator) RunOnce(ctx context.Context) (*RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.metrics.ObserveEvaluation(metrics.OutcomeSkipped, 0)
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	startedAt := time.Now()

	alerts, err := e.alerts.ListAlerts(ctx)
	if err != nil {
		e.metrics.ObserveEvaluation(metrics.OutcomeFailure, time.Since(startedAt))
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	// every alert compares against history written before this run, so alerts
	// sharing a term all see the same previous minimum
	cutoff := e.now().UTC()
	codes := e.sources.EnabledCodes()
	summary := &RunSummary{Alerts: len(alerts)}
	run := &pacer{delay: e.pacing}

	for _, alert := range alerts {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		fired, err := e.evaluate(ctx, alert, codes, cutoff, run)
		if err != nil {
			summary.Failed++
			slog.Warn("Alert evaluation failed", "alert", alert.ID, "term", alert.SearchTerm, "error", err)
			continue
		}
		if fired {
			summary.Fired++
		}
	}

	summary.Scrapes = run.calls
	summary.Duration = time.Since(startedAt)

	outcome := metrics.OutcomeSuccess
	if summary.Cancelled {
		outcome = metrics.OutcomeFailure
	}
	e.metrics.ObserveEvaluation(outcome, summary.Duration)

	return summary, nil
}

func (e *Evaluator) evaluate(ctx context.Context, alert database.Alert, codes []string, cutoff time.Time, run *pacer) (bool, error) {
	var best *database.Product
	for _, code := range codes {
		if err := run.wait(ctx); err != nil {
			return false, err
		}

		products, err := e.scraper.Scrape(ctx, alert.SearchTerm, code)
		if err != nil {
			slog.Warn("Alert source scrape failed",
				"alert", alert.ID,
				"source", code,
				"term", alert.SearchTerm,
				"error", err)
			continue
		}

		for i := range products {
			if best == nil || products[i].Price < best.Price {
				best = &products[i]
			}
		}
	}

	if best == nil || best.Price > alert.PriceThreshold {
		return false, nil
	}

	previousMin, found, err := e.history.HistoricalMinPrice(ctx, alert.SearchTerm, cutoff)
	if err != nil {
		return false, err
	}
	if found && best.Price >= previousMin {
		return false, nil
	}

	triggeredAt := e.now().UTC()
	event := Event{
		AlertID:     alert.ID,
		Email:       alert.Email,
		SearchTerm:  alert.SearchTerm,
		Threshold:   alert.PriceThreshold,
		ProductName: best.Name,
		Price:       best.Price,
		Currency:    best.Currency,
		Source:      best.SourceCode,
		Seller:      best.Seller,
		URL:         best.URL,
		TriggeredAt: triggeredAt,
	}

	if err := e.notifier.Notify(ctx, event); err != nil {
		return false, fmt.Errorf("failed to notify: %w", err)
	}

	if err := e.alerts.MarkAlertTriggered(ctx, alert.ID, best.Price, triggeredAt); err != nil {
		return false, err
	}

	e.metrics.AlertFired()
	slog.Info("Alert fired",
		"alert", alert.ID,
		"term", alert.SearchTerm,
		"price", best.Price,
		"previous_min", previousMin,
		"source", best.SourceCode)

	return true, nil
}

// pacer spaces consecutive source calls within one run
type pacer struct {
	delay time.Duration
	calls int
}

func (p *pacer) wait(ctx context.Context) error {
	defer func() { p.calls++ }()

	if p.calls == 0 || p.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
