package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ScrapeTermTask refreshes stored prices for a term across the selected sources
type ScrapeTermTask struct {
	Task
	Sources []string
	scraper TermScraper
}

func NewScrapeTermTask(searchTerm string, sources []string, scraper TermScraper) *ScrapeTermTask {
	task := NewTask(TaskTypeScrapeTerm, searchTerm)
	task.MaxRetries = 1

	return &ScrapeTermTask{
		Task:    task,
		Sources: sources,
		scraper: scraper,
	}
}

func (t *ScrapeTermTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.scraper.ScrapeMany(ctx, t.Subject, t.Sources)
	if err != nil {
		return fmt.Errorf("failed to scrape term: %w", err)
	}

	failed := 0
	for _, r := range result.Results {
		if r.Err != nil {
			failed++
		}
	}

	if failed == len(result.Results) && failed > 0 {
		return fmt.Errorf("all %d sources failed for %q", failed, t.Subject)
	}

	slog.Info("Task completed",
		"type", "ScrapeTerm",
		"term", t.Subject,
		"duration", t.GetDuration(),
		"sources", len(result.Results),
		"failed_sources", failed,
		"products", len(result.Products()))

	return nil
}
