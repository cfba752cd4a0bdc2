package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/price-comb/app/alerts"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
	"github.com/lysyi3m/price-comb/app/scraper"
	"github.com/lysyi3m/price-comb/app/source"
)

const maxHistoryLimit = 1000

func NewHandler(scrapeService ScraperInterface, catalog CatalogInterface, productRepo database.ProductRepository,
	alertRepo database.AlertRepository, queue TaskQueue, metrics http.Handler, version string) *Handler {
	return &Handler{
		scraper:     scrapeService,
		catalog:     catalog,
		productRepo: productRepo,
		alertRepo:   alertRepo,
		queue:       queue,
		metrics:     metrics,
		generator:   feed.NewGenerator(),
		version:     version,
	}
}

// statusFor maps the scrape and validation error taxonomy to HTTP statuses
func statusFor(err error) int {
	var fetchErr *source.FetchError

	switch {
	case errors.Is(err, scraper.ErrUnsupportedSource),
		errors.Is(err, scraper.ErrInvalidSearchTerm),
		errors.Is(err, alerts.ErrInvalidAlert):
		return http.StatusBadRequest
	case errors.Is(err, scraper.ErrNoData),
		errors.Is(err, scraper.ErrNoRelevantData):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorFor(err error) *errorBody {
	if err == nil {
		return nil
	}
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	return &errorBody{Status: status, Message: message}
}

func respondError(c *gin.Context, operation string, err error) {
	body := errorFor(err)
	if body.Status == http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(body.Status, gin.H{"error": body})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   len(h.catalog.Configs()),
	}

	if productCount, err := h.productRepo.GetProductCount(c.Request.Context()); err == nil {
		health["products"] = productCount
	}
	if observationCount, err := h.productRepo.GetObservationCount(c.Request.Context()); err == nil {
		health["observations"] = observationCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetMetrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Search scrapes the selected stores concurrently. Per-store failures are
// reported inline and never fail the request.
func (h *Handler) Search(c *gin.Context) {
	var selection []string
	if stores := c.Query("stores"); stores != "" {
		selection = []string{stores}
	}

	result, err := h.scraper.ScrapeMany(c.Request.Context(), c.Query("query"), selection)
	if err != nil {
		respondError(c, "search", err)
		return
	}

	response := searchResponse{
		SearchTerm: result.SearchTerm,
		Results:    make([]sourceSearchResult, 0, len(result.Results)),
		Cheapest:   result.Cheapest,
	}
	for _, r := range result.Results {
		products := r.Products
		if products == nil {
			products = []database.Product{}
		}
		response.Results = append(response.Results, sourceSearchResult{
			Source:   r.Source,
			Count:    len(products),
			Products: products,
			Error:    errorFor(r.Err),
		})
	}

	c.JSON(http.StatusOK, response)
}

// EnqueueSearch queues a background scrape and returns immediately
func (h *Handler) EnqueueSearch(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Status: http.StatusBadRequest, Message: "Invalid request body"}})
		return
	}

	term, err := scraper.ValidateSearchTerm(req.Query)
	if err != nil {
		respondError(c, "enqueue_search", err)
		return
	}

	task, err := h.queue.EnqueueScrape(term, req.Stores)
	if err != nil {
		slog.Error("Error enqueueing scrape task", "term", term, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorBody{Status: http.StatusServiceUnavailable, Message: err.Error()}})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
		"search_term": term,
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	configs := h.catalog.Configs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		sources = append(sources, map[string]interface{}{
			"code":     sourceConfig.Code,
			"name":     sourceConfig.Name,
			"base_url": sourceConfig.BaseURL,
			"logo_url": sourceConfig.LogoURL,
			"mode":     sourceConfig.Mode,
			"country":  sourceConfig.Country,
			"currency": sourceConfig.Currency,
			"enabled":  sourceConfig.Settings.Enabled,
			"timeout":  sourceConfig.TimeoutDuration().String(),
			"rps":      sourceConfig.Settings.RateLimit,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) SearchSource(c *gin.Context) {
	code := c.Param("code")

	products, err := h.scraper.Scrape(c.Request.Context(), c.Query("query"), code)
	if err != nil {
		respondError(c, "search_source", err)
		return
	}

	c.JSON(http.StatusOK, sourceSearchResult{
		Source:   code,
		Count:    len(products),
		Products: products,
	})
}

// RawSearchSource returns unfiltered adapter output. Failures are reported
// inline next to an empty data list.
func (h *Handler) RawSearchSource(c *gin.Context) {
	code := c.Param("code")

	listings, err := h.scraper.ScrapeRaw(c.Request.Context(), c.Query("query"), code)
	if listings == nil {
		listings = []source.RawListing{}
	}
	if err != nil && statusFor(err) == http.StatusInternalServerError {
		slog.Error("Raw search failed", "source", code, "error", err)
	}

	c.JSON(http.StatusOK, rawSearchResponse{
		Source: code,
		Data:   listings,
		Error:  errorFor(err),
	})
}

// cheapestLimit reads the optional limit query parameter; zero means the
// configured default
func cheapestLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Status: http.StatusBadRequest, Message: "limit must be a positive integer"}})
		return 0, false
	}
	return parsed, true
}

func (h *Handler) GetCheapest(c *gin.Context) {
	limit, ok := cheapestLimit(c)
	if !ok {
		return
	}

	products, err := h.scraper.Cheapest(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		respondError(c, "get_cheapest", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"search_term": c.Query("query"),
		"products":    products,
		"count":       len(products),
	})
}

// GetCheapestFeed serves the same ranking as GetCheapest as an RSS feed
func (h *Handler) GetCheapestFeed(c *gin.Context) {
	limit, ok := cheapestLimit(c)
	if !ok {
		return
	}

	searchTerm := c.Query("query")
	products, err := h.scraper.Cheapest(c.Request.Context(), searchTerm, limit)
	if err != nil {
		respondError(c, "get_cheapest_feed", err)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	rss, err := h.generator.Run(feed.Channel{
		SearchTerm: searchTerm,
		SelfLink:   scheme + "://" + c.Request.Host + c.Request.URL.RequestURI(),
		Version:    h.version,
		BuiltAt:    time.Now(),
	}, products)
	if err != nil {
		slog.Error("Failed to generate RSS", "search_term", searchTerm, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Status: http.StatusInternalServerError, Message: "Internal server error"}})
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetProductHistory(c *gin.Context) {
	id := c.Param("id")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Status: http.StatusBadRequest, Message: "limit must be between 1 and 1000"}})
			return
		}
		limit = parsed
	}

	product, err := h.productRepo.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_product", err)
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Status: http.StatusNotFound, Message: "Product not found"}})
		return
	}

	history, err := h.productRepo.GetPriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, "get_price_history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"history": history,
	})
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Status: http.StatusBadRequest, Message: "Invalid request body"}})
		return
	}

	alert, err := alerts.CreateAlert(c.Request.Context(), h.alertRepo, req.SearchTerm, req.PriceThreshold, req.Email)
	if err != nil {
		respondError(c, "create_alert", err)
		return
	}

	slog.Info("Alert created", "alert", alert.ID, "term", alert.SearchTerm, "threshold", alert.PriceThreshold)
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	list, err := h.alertRepo.ListAlerts(c.Request.Context())
	if err != nil {
		respondError(c, "list_alerts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"total":  len(list),
	})
}

func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.alertRepo.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get_alert", err)
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Status: http.StatusNotFound, Message: "Alert not found"}})
		return
	}

	c.JSON(http.StatusOK, alert)
}

func (h *Handler) EvaluateAlerts(c *gin.Context) {
	task, err := h.queue.EnqueueAlertEvaluation()
	if err != nil {
		slog.Error("Error enqueueing alert evaluation", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorBody{Status: http.StatusServiceUnavailable, Message: err.Error()}})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Alert evaluation enqueued",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}
