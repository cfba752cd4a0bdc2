package api

import (
	"context"
	"net/http"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
	"github.com/lysyi3m/price-comb/app/scraper"
	"github.com/lysyi3m/price-comb/app/source"
	"github.com/lysyi3m/price-comb/app/tasks"
)

type ScraperInterface interface {
	Scrape(ctx context.Context, searchTerm, sourceCode string) ([]database.Product, error)
	ScrapeRaw(ctx context.Context, searchTerm, sourceCode string) ([]source.RawListing, error)
	ScrapeMany(ctx context.Context, searchTerm string, selection []string) (*scraper.SearchResult, error)
	Cheapest(ctx context.Context, searchTerm string, n int) ([]database.Product, error)
}

var _ ScraperInterface = (*scraper.Orchestrator)(nil)

type CatalogInterface interface {
	Configs() []*source.Config
}

var _ CatalogInterface = (*scraper.Catalog)(nil)

// TaskQueue accepts background work from HTTP requests
type TaskQueue interface {
	EnqueueAlertEvaluation() (tasks.TaskInterface, error)
	EnqueueScrape(searchTerm string, sources []string) (tasks.TaskInterface, error)
}

var _ TaskQueue = (*tasks.Scheduler)(nil)

type Handler struct {
	scraper     ScraperInterface
	catalog     CatalogInterface
	productRepo database.ProductRepository
	alertRepo   database.AlertRepository
	queue       TaskQueue
	metrics     http.Handler
	generator   *feed.Generator
	version     string
}

// Request and response shapes

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type sourceSearchResult struct {
	Source   string             `json:"source"`
	Count    int                `json:"count"`
	Products []database.Product `json:"products"`
	Error    *errorBody         `json:"error,omitempty"`
}

type searchResponse struct {
	SearchTerm string               `json:"search_term"`
	Results    []sourceSearchResult `json:"results"`
	Cheapest   []database.Product   `json:"cheapest"`
}

type rawSearchResponse struct {
	Source string              `json:"source"`
	Data   []source.RawListing `json:"data"`
	Error  *errorBody          `json:"error,omitempty"`
}

type scrapeRequest struct {
	Query  string   `json:"query"`
	Stores []string `json:"stores"`
}

type createAlertRequest struct {
	SearchTerm     string  `json:"search_term"`
	PriceThreshold float64 `json:"price_threshold"`
	Email          string  `json:"email"`
}
