package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	GetSourceByCode(ctx context.Context, code string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)

	CreateSourceIfAbsent(ctx context.Context, source Source) (*Source, error)
	UpdateSourceMetadata(ctx context.Context, source Source) error
	SetSourceActive(ctx context.Context, code string, active bool) error
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetCheapestProducts(ctx context.Context, searchTerm string, limit int) ([]Product, error)
	GetPriceHistory(ctx context.Context, productID string, limit int) ([]PriceObservation, error)
	GetProductCount(ctx context.Context) (int, error)
	GetObservationCount(ctx context.Context) (int, error)

	// HistoricalMinPrice returns the lowest price observed for a search term
	// strictly before the given instant. ok is false when none exists.
	HistoricalMinPrice(ctx context.Context, searchTerm string, before time.Time) (price float64, ok bool, err error)

	UpsertProductWithObservation(ctx context.Context, product Product, observedAt time.Time) (*Product, error)
}

type AlertRepository interface {
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ListAlerts(ctx context.Context) ([]Alert, error)

	CreateAlert(ctx context.Context, searchTerm string, priceThreshold float64, email string) (*Alert, error)
	MarkAlertTriggered(ctx context.Context, id string, price float64, at time.Time) error
}
