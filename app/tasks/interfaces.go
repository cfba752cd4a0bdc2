package tasks

import (
	"context"

	"github.com/lysyi3m/price-comb/app/alerts"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/scraper"
	"github.com/lysyi3m/price-comb/app/source"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the HTTP API to queue background work.
// Example usage:
//
//	scheduler, err := NewScheduler(configCache, registry, evaluator, orchestrator, workers, "@hourly")
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewEvaluateAlertsTask(evaluator))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type ConfigSource interface {
	GetConfigs() map[string]*source.Config
}

type SourceSyncer interface {
	Sync(ctx context.Context, cfg *source.Config) (*database.Source, error)
}

type AlertRunner interface {
	RunOnce(ctx context.Context) (*alerts.RunSummary, error)
}

type TermScraper interface {
	ScrapeMany(ctx context.Context, searchTerm string, selection []string) (*scraper.SearchResult, error)
}
