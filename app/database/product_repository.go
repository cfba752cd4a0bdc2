package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `
	p.id, p.source_id, s.code AS source_code, p.url, p.name, p.image, p.brand, p.sku, p.ean,
	p.category, p.price, p.currency, p.seller, p.country, p.search_term,
	p.last_seen_at, p.created_at, p.updated_at`

var _ ProductRepository = (*ProductStore)(nil)

// ProductStore handles database operations for products and their price history
type ProductStore struct {
	db *DB
}

// NewProductStore creates a new product repository
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// UpsertProductWithObservation creates or updates the product identified by
// (source, URL) and appends one price observation, in a single transaction
func (r *ProductStore) UpsertProductWithObservation(ctx context.Context, product Product, observedAt time.Time) (*Product, error) {
	if product.SourceID == "" || product.URL == "" {
		return nil, fmt.Errorf("product source and URL are required")
	}

	observedAt = observedAt.UTC()
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classifyWriteError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO products (
			id, source_id, url, name, image, brand, sku, ean, category,
			price, currency, seller, country, search_term,
			last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, url) DO UPDATE SET
			name = excluded.name,
			image = excluded.image,
			brand = excluded.brand,
			sku = excluded.sku,
			ean = excluded.ean,
			category = excluded.category,
			price = excluded.price,
			currency = excluded.currency,
			seller = excluded.seller,
			country = excluded.country,
			search_term = excluded.search_term,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), product.SourceID, product.URL, product.Name, product.Image, product.Brand,
		product.SKU, product.EAN, product.Category, product.Price, product.Currency,
		product.Seller, product.Country, product.SearchTerm,
		observedAt, now, now).Scan(&product.ID)
	if err != nil {
		return nil, classifyWriteError("failed to upsert product", err)
	}

	if err := appendObservation(ctx, tx, product.ID, product.SearchTerm, product.Price, observedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyWriteError("failed to commit product upsert", err)
	}

	stored, err := r.GetProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("product %s missing after upsert: %w", product.ID, ErrPersistenceConflict)
	}

	return stored, nil
}

func appendObservation(ctx context.Context, tx *sqlx.Tx, productID, searchTerm string, price float64, observedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO price_observations (product_id, search_term, price, observed_at)
		VALUES (?, ?, ?, ?)
	`, productID, searchTerm, price, observedAt)
	if err != nil {
		return classifyWriteError("failed to append price observation", err)
	}
	return nil
}

// GetProduct retrieves a product by ID
func (r *ProductStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	err := r.db.GetContext(ctx, &product, `
		SELECT `+productColumns+`
		FROM products p
		JOIN sources s ON s.id = p.source_id
		WHERE p.id = ?
	`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// GetCheapestProducts returns the lowest current-price products for a search term
func (r *ProductStore) GetCheapestProducts(ctx context.Context, searchTerm string, limit int) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products p
		JOIN sources s ON s.id = p.source_id
		WHERE p.search_term = ?
		ORDER BY p.price ASC, p.last_seen_at DESC
		LIMIT ?
	`, searchTerm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get cheapest products: %w", err)
	}

	return products, nil
}

// GetPriceHistory returns the newest observations of a product first
func (r *ProductStore) GetPriceHistory(ctx context.Context, productID string, limit int) ([]PriceObservation, error) {
	observations := []PriceObservation{}
	err := r.db.SelectContext(ctx, &observations, `
		SELECT id, product_id, search_term, price, observed_at
		FROM price_observations
		WHERE product_id = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT ?
	`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}

	return observations, nil
}

// HistoricalMinPrice returns the lowest observed price for the search term
// among observations recorded strictly before the given instant
func (r *ProductStore) HistoricalMinPrice(ctx context.Context, searchTerm string, before time.Time) (float64, bool, error) {
	var minPrice sql.NullFloat64
	err := r.db.GetContext(ctx, &minPrice, `
		SELECT MIN(price)
		FROM price_observations
		WHERE search_term = ? AND observed_at < ?
	`, searchTerm, before.UTC())
	if err != nil {
		return 0, false, fmt.Errorf("failed to get historical minimum price: %w", err)
	}

	return minPrice.Float64, minPrice.Valid, nil
}

// GetProductCount returns the total number of products
func (r *ProductStore) GetProductCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products"); err != nil {
		return 0, fmt.Errorf("failed to get product count: %w", err)
	}
	return count, nil
}

// GetObservationCount returns the total number of price observations
func (r *ProductStore) GetObservationCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM price_observations"); err != nil {
		return 0, fmt.Errorf("failed to get observation count: %w", err)
	}
	return count, nil
}
