package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type htmlAdapter struct {
	base
	mapping *HTMLMapping
}

func newHTMLAdapter(cfg *Config, fetcher *Fetcher) (Adapter, error) {
	if cfg.HTML == nil {
		return nil, fmt.Errorf("html mapping is required")
	}

	b, err := newBase(cfg, fetcher)
	if err != nil {
		return nil, err
	}
	return &htmlAdapter{base: b, mapping: cfg.HTML}, nil
}

func (a *htmlAdapter) Fetch(ctx context.Context, searchTerm string) ([]RawListing, error) {
	searchURL := a.resolve(expandURL(a.mapping.SearchPath, searchTerm, a.mapping.TermSeparator, 1))

	data, err := a.fetcher.Do(ctx, a.request(http.MethodGet, searchURL, nil, nil))
	if err != nil {
		return nil, a.fetchError(err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, a.fetchError(fmt.Errorf("failed to parse HTML: %w", err))
	}

	scrapedAt := time.Now().UTC()
	listings := []RawListing{}

	doc.Find(a.mapping.Item).Each(func(_ int, item *goquery.Selection) {
		priceText := extract(item, a.mapping.Price)
		price, err := ParsePrice(priceText, a.cfg.Price)
		if err != nil {
			return
		}

		listing := RawListing{
			Name:   extract(item, a.mapping.Name),
			Price:  price,
			URL:    a.resolve(extractDefaultAttr(item, a.mapping.URL, "href")),
			Image:  a.resolve(extractDefaultAttr(item, a.mapping.Image, "src", "data-src")),
			Seller: extract(item, a.mapping.Seller),
			Brand:  extract(item, a.mapping.Brand),
		}

		if listing, ok := a.finish(listing, searchTerm, scrapedAt); ok {
			listings = append(listings, listing)
		}
	})

	return listings, nil
}

// splitSelector separates an optional "@attr" suffix from a CSS selector
func splitSelector(selector string) (string, string) {
	if i := strings.LastIndex(selector, "@"); i >= 0 {
		return strings.TrimSpace(selector[:i]), strings.TrimSpace(selector[i+1:])
	}
	return strings.TrimSpace(selector), ""
}

func find(item *goquery.Selection, css string) *goquery.Selection {
	if css == "" {
		return item
	}
	return item.Find(css).First()
}

// extract returns the text of the selector, or its attribute when the
// selector ends in "@attr"
func extract(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}

	css, attr := splitSelector(selector)
	sel := find(item, css)
	if attr != "" {
		value, _ := sel.Attr(attr)
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(sel.Text())
}

func extractDefaultAttr(item *goquery.Selection, selector string, attrs ...string) string {
	if selector == "" {
		return ""
	}

	css, attr := splitSelector(selector)
	if attr != "" {
		attrs = []string{attr}
	}

	sel := find(item, css)
	for _, name := range attrs {
		if value, ok := sel.Attr(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
