package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type apiAdapter struct {
	base
	mapping *APIMapping
}

func newAPIAdapter(cfg *Config, fetcher *Fetcher) (Adapter, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("api mapping is required")
	}

	b, err := newBase(cfg, fetcher)
	if err != nil {
		return nil, err
	}
	return &apiAdapter{base: b, mapping: cfg.API}, nil
}

// Fetch walks up to MaxPages pages. A failure after the first page keeps
// what was already collected.
func (a *apiAdapter) Fetch(ctx context.Context, searchTerm string) ([]RawListing, error) {
	scrapedAt := time.Now().UTC()
	listings := []RawListing{}

	maxPages := max(a.mapping.MaxPages, 1)
	for i := 0; i < maxPages; i++ {
		page := a.mapping.FirstPage + i

		items, err := a.fetchPage(ctx, searchTerm, page)
		if err != nil {
			if i == 0 {
				return nil, a.fetchError(err)
			}
			slog.Warn("Keeping partial results after page failure",
				"source", a.cfg.Code,
				"page", page,
				"error", err)
			break
		}

		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if listing, ok := a.finish(a.listing(item), searchTerm, scrapedAt); ok {
				listings = append(listings, listing)
			}
		}
	}

	return listings, nil
}

func (a *apiAdapter) fetchPage(ctx context.Context, searchTerm string, page int) ([]gjson.Result, error) {
	target := a.resolve(expandURL(a.mapping.Path, searchTerm, "+", page))
	body := expandBody(a.mapping.Body, searchTerm, page)

	data, err := a.fetcher.Do(ctx, a.request(a.mapping.Method, target, body, a.mapping.Headers))
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	result := gjson.GetBytes(data, a.mapping.Items)
	if !result.Exists() {
		return nil, nil
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("items path %q is not an array", a.mapping.Items)
	}

	return result.Array(), nil
}

func (a *apiAdapter) listing(item gjson.Result) RawListing {
	fields := a.mapping.Fields

	listing := RawListing{
		Name:     field(item, fields.Name),
		URL:      a.productURL(field(item, fields.URL)),
		Image:    a.resolve(field(item, fields.Image)),
		Seller:   field(item, fields.Seller),
		Brand:    field(item, fields.Brand),
		SKU:      field(item, fields.SKU),
		EAN:      field(item, fields.EAN),
		Category: field(item, fields.Category),
	}

	if price, err := a.price(item.Get(fields.Price)); err == nil {
		listing.Price = price
	}

	return listing
}

func (a *apiAdapter) price(value gjson.Result) (float64, error) {
	switch value.Type {
	case gjson.Number:
		return scalePrice(value.Float(), a.cfg.Price)
	case gjson.String:
		return ParsePrice(value.String(), a.cfg.Price)
	default:
		return 0, fmt.Errorf("price is missing")
	}
}

func (a *apiAdapter) productURL(link string) string {
	if link == "" {
		return ""
	}
	if a.mapping.URLPrefix != "" && !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = strings.TrimRight(a.mapping.URLPrefix, "/") + "/" + strings.TrimLeft(link, "/")
	}
	return a.resolve(link)
}

func field(item gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSpace(item.Get(path).String())
}
