package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/lysyi3m/price-comb/app/database"
)

// ErrInvalidAlert is returned when an alert request fails validation
var ErrInvalidAlert = errors.New("invalid alert")

// CreateAlert validates and stores a new subscription
func CreateAlert(ctx context.Context, repo database.AlertRepository, searchTerm string, threshold float64, email string) (*database.Alert, error) {
	searchTerm = strings.TrimSpace(searchTerm)
	if searchTerm == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidAlert)
	}

	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return nil, fmt.Errorf("%w: price threshold must be a positive number", ErrInvalidAlert)
	}

	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || address.Name != "" {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidAlert)
	}

	return repo.CreateAlert(ctx, searchTerm, threshold, address.Address)
}
