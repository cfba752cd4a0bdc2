package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const alertColumns = `id, search_term, price_threshold, email, created_at, last_triggered_at, last_triggered_price`

var _ AlertRepository = (*AlertStore)(nil)

// AlertStore handles database operations for alert subscriptions
type AlertStore struct {
	db *DB
}

// NewAlertStore creates a new alert repository
func NewAlertStore(db *DB) *AlertStore {
	return &AlertStore{db: db}
}

// CreateAlert stores a new subscription
func (r *AlertStore) CreateAlert(ctx context.Context, searchTerm string, priceThreshold float64, email string) (*Alert, error) {
	alert := Alert{
		ID:             uuid.NewString(),
		SearchTerm:     searchTerm,
		PriceThreshold: priceThreshold,
		Email:          email,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, search_term, price_threshold, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, alert.ID, alert.SearchTerm, alert.PriceThreshold, alert.Email, alert.CreatedAt)
	if err != nil {
		return nil, classifyWriteError("failed to create alert", err)
	}

	return &alert, nil
}

// GetAlert retrieves an alert by ID
func (r *AlertStore) GetAlert(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	err := r.db.GetContext(ctx, &alert, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return &alert, nil
}

// ListAlerts returns all alerts, oldest first
func (r *AlertStore) ListAlerts(ctx context.Context) ([]Alert, error) {
	alerts := []Alert{}
	err := r.db.SelectContext(ctx, &alerts, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}

// MarkAlertTriggered records the last notification sent for an alert
func (r *AlertStore) MarkAlertTriggered(ctx context.Context, id string, price float64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET last_triggered_at = ?, last_triggered_price = ?
		WHERE id = ?
	`, at.UTC(), price, id)
	if err != nil {
		return classifyWriteError("failed to mark alert triggered", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}

	return nil
}
