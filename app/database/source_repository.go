package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sourceColumns = `id, code, name, url_base, logo_url, scrape_type, active, country, created_at, updated_at`

var _ SourceRepository = (*SourceStore)(nil)

// SourceStore handles database operations for the source registry
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new source repository
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// CreateSourceIfAbsent inserts the source unless its code is already
// registered, and returns the stored row either way
func (r *SourceStore) CreateSourceIfAbsent(ctx context.Context, source Source) (*Source, error) {
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (id, code, name, url_base, logo_url, scrape_type, active, country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING
	`, uuid.NewString(), source.Code, source.Name, source.URLBase, source.LogoURL,
		string(source.ScrapeType), source.Active, source.Country, now, now)
	if err != nil {
		return nil, classifyWriteError("failed to create source", err)
	}

	stored, err := r.GetSourceByCode(ctx, source.Code)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("source %s missing after insert: %w", source.Code, ErrPersistenceConflict)
	}

	return stored, nil
}

// UpdateSourceMetadata refreshes descriptive fields of a registered source
func (r *SourceStore) UpdateSourceMetadata(ctx context.Context, source Source) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, url_base = ?, logo_url = ?, scrape_type = ?, country = ?, updated_at = ?
		WHERE code = ?
	`, source.Name, source.URLBase, source.LogoURL, string(source.ScrapeType), source.Country,
		time.Now().UTC(), source.Code)
	if err != nil {
		return classifyWriteError("failed to update source metadata", err)
	}

	return nil
}

// SetSourceActive toggles the active flag. Sources are never deleted.
func (r *SourceStore) SetSourceActive(ctx context.Context, code string, active bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET active = ?, updated_at = ?
		WHERE code = ?
	`, active, time.Now().UTC(), code)
	if err != nil {
		return classifyWriteError("failed to set source active status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %s not found", code)
	}

	return nil
}

// GetSourceByCode retrieves a source by its unique code
func (r *SourceStore) GetSourceByCode(ctx context.Context, code string) (*Source, error) {
	var source Source
	err := r.db.GetContext(ctx, &source, `SELECT `+sourceColumns+` FROM sources WHERE code = ?`, code)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by code: %w", err)
	}

	return &source, nil
}

// ListSources returns all registered sources ordered by code
func (r *SourceStore) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	err := r.db.SelectContext(ctx, &sources, `SELECT `+sourceColumns+` FROM sources ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	return sources, nil
}
