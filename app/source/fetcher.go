package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseSize = 10 << 20

// Request is a single outbound call made on behalf of a source
type Request struct {
	Source    string
	Method    string
	URL       string
	Body      []byte
	Headers   map[string]string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

type cachedResponse struct {
	etag string
	body []byte
}

// Fetcher performs HTTP calls shared by all adapters: one client, one
// User-Agent, one rate limiter per source, and ETag revalidation for GETs.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	etags    map[string]cachedResponse
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		limiters:   make(map[string]*rate.Limiter),
		etags:      make(map[string]cachedResponse),
	}
}

func (f *Fetcher) Do(ctx context.Context, r Request) ([]byte, error) {
	if limiter := f.limiter(r.Source, r.RateLimit); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	if len(r.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	cached, hasCached := f.cached(method, r.URL)
	if hasCached {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hasCached {
		return cached.body, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" && method == http.MethodGet {
		f.mu.Lock()
		f.etags[r.URL] = cachedResponse{etag: etag, body: data}
		f.mu.Unlock()
	}

	return data, nil
}

func (f *Fetcher) limiter(sourceCode string, rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	limiter, ok := f.limiters[sourceCode]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
		f.limiters[sourceCode] = limiter
	} else if limiter.Limit() != rate.Limit(rps) {
		limiter.SetLimit(rate.Limit(rps))
	}
	return limiter
}

func (f *Fetcher) cached(method, url string) (cachedResponse, bool) {
	if method != http.MethodGet {
		return cachedResponse{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.etags[url]
	return c, ok
}
