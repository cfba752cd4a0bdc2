package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// merchantNamespace is the prefix used by Google-merchant style product feeds
const merchantNamespace = "g"

type feedAdapter struct {
	base
	mapping      *FeedMapping
	gofeedParser *gofeed.Parser
}

func newFeedAdapter(cfg *Config, fetcher *Fetcher) (Adapter, error) {
	if cfg.Feed == nil {
		return nil, fmt.Errorf("feed mapping is required")
	}

	b, err := newBase(cfg, fetcher)
	if err != nil {
		return nil, err
	}
	return &feedAdapter{base: b, mapping: cfg.Feed, gofeedParser: gofeed.NewParser()}, nil
}

func (a *feedAdapter) Fetch(ctx context.Context, searchTerm string) ([]RawListing, error) {
	feedURL := a.resolve(expandURL(a.mapping.Path, searchTerm, "+", 1))

	data, err := a.fetcher.Do(ctx, a.request(http.MethodGet, feedURL, nil, nil))
	if err != nil {
		return nil, a.fetchError(err)
	}

	feed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, a.fetchError(fmt.Errorf("failed to parse feed: %w", err))
	}

	scrapedAt := time.Now().UTC()
	listings := make([]RawListing, 0, len(feed.Items))

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if listing, ok := a.finish(a.listing(item), searchTerm, scrapedAt); ok {
			listings = append(listings, listing)
		}
	}

	return listings, nil
}

func (a *feedAdapter) listing(item *gofeed.Item) RawListing {
	merchant := item.Extensions[merchantNamespace]

	listing := RawListing{
		Name:     cmp.Or(merchantValue(merchant, "title"), item.Title),
		URL:      a.resolve(cmp.Or(item.Link, merchantValue(merchant, "link"))),
		Brand:    merchantValue(merchant, "brand"),
		Seller:   merchantValue(merchant, "seller"),
		EAN:      merchantValue(merchant, "gtin"),
		SKU:      cmp.Or(merchantValue(merchant, "mpn"), merchantValue(merchant, "id")),
		Category: merchantValue(merchant, "product_type"),
	}

	image := merchantValue(merchant, "image_link")
	if image == "" && item.Image != nil {
		image = item.Image.URL
	}
	listing.Image = a.resolve(image)

	priceText := cmp.Or(merchantValue(merchant, "sale_price"), merchantValue(merchant, "price"))
	if price, err := ParsePrice(priceText, a.cfg.Price); err == nil {
		listing.Price = price
	}

	return listing
}

func merchantValue(fields map[string][]ext.Extension, name string) string {
	values := fields[name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
