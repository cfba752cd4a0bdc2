package database

import (
	"time"
)

// ScrapeType is the extraction mode of a source
type ScrapeType string

const (
	ScrapeTypeHTML     ScrapeType = "html"
	ScrapeTypeAPI      ScrapeType = "api"
	ScrapeTypeFeed     ScrapeType = "feed"
	ScrapeTypeHeadless ScrapeType = "headless"
)

// Source represents a registered e-commerce origin
type Source struct {
	ID         string     `db:"id"` // Database UUID
	Code       string     `db:"code"`
	Name       string     `db:"name"`
	URLBase    string     `db:"url_base"`
	LogoURL    string     `db:"logo_url"`
	ScrapeType ScrapeType `db:"scrape_type"`
	Active     bool       `db:"active"`
	Country    string     `db:"country"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// Product is the canonical listing for one (source, URL) pair
type Product struct {
	ID         string    `db:"id" json:"id"`
	SourceID   string    `db:"source_id" json:"source_id"`
	SourceCode string    `db:"source_code" json:"source"` // Joined from sources
	URL        string    `db:"url" json:"url"`
	Name       string    `db:"name" json:"name"`
	Image      string    `db:"image" json:"image,omitempty"`
	Brand      string    `db:"brand" json:"brand,omitempty"`
	SKU        string    `db:"sku" json:"sku,omitempty"`
	EAN        string    `db:"ean" json:"ean,omitempty"`
	Category   string    `db:"category" json:"category,omitempty"`
	Price      float64   `db:"price" json:"price"`
	Currency   string    `db:"currency" json:"currency"`
	Seller     string    `db:"seller" json:"seller,omitempty"`
	Country    string    `db:"country" json:"country,omitempty"`
	SearchTerm string    `db:"search_term" json:"search_term"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PriceObservation is one immutable price sample of a product
type PriceObservation struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	SearchTerm string    `db:"search_term" json:"search_term"`
	Price      float64   `db:"price" json:"price"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
}

// Alert is a standing price-drop subscription
type Alert struct {
	ID                 string     `db:"id" json:"id"`
	SearchTerm         string     `db:"search_term" json:"search_term"`
	PriceThreshold     float64    `db:"price_threshold" json:"price_threshold"`
	Email              string     `db:"email" json:"email"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	LastTriggeredAt    *time.Time `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	LastTriggeredPrice *float64   `db:"last_triggered_price" json:"last_triggered_price,omitempty"`
}
