package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/source"
)

// SourceRegistry caches source rows by code for the life of the process.
// Rows are created lazily, one writer per code.
type SourceRegistry struct {
	repo database.SourceRepository

	mu    sync.Mutex
	rows  map[string]*database.Source
	locks map[string]*sync.Mutex
}

func NewSourceRegistry(repo database.SourceRepository) *SourceRegistry {
	return &SourceRegistry{
		repo:  repo,
		rows:  make(map[string]*database.Source),
		locks: make(map[string]*sync.Mutex),
	}
}

// Seed loads every stored source into the cache
func (r *SourceRegistry) Seed(ctx context.Context) error {
	sources, err := r.repo.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed source registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range sources {
		r.rows[sources[i].Code] = &sources[i]
	}
	return nil
}

// Resolve returns the row for a configured source, creating it on first use
func (r *SourceRegistry) Resolve(ctx context.Context, cfg *source.Config) (*database.Source, error) {
	if row := r.cached(cfg.Code); row != nil {
		return row, nil
	}

	lock := r.lockFor(cfg.Code)
	lock.Lock()
	defer lock.Unlock()

	if row := r.cached(cfg.Code); row != nil {
		return row, nil
	}

	row, err := r.repo.CreateSourceIfAbsent(ctx, RowFromConfig(cfg))
	if errors.Is(err, database.ErrPersistenceConflict) {
		slog.Warn("Retrying source registration after conflict", "source", cfg.Code, "error", err)
		row, err = r.repo.CreateSourceIfAbsent(ctx, RowFromConfig(cfg))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register source %s: %w", cfg.Code, err)
	}

	r.store(row)
	return row, nil
}

// Sync registers the source if needed and refreshes its metadata and
// active flag from configuration
func (r *SourceRegistry) Sync(ctx context.Context, cfg *source.Config) (*database.Source, error) {
	lock := r.lockFor(cfg.Code)
	lock.Lock()
	defer lock.Unlock()

	desired := RowFromConfig(cfg)

	row, err := r.repo.CreateSourceIfAbsent(ctx, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to register source %s: %w", cfg.Code, err)
	}

	if err := r.repo.UpdateSourceMetadata(ctx, desired); err != nil {
		return nil, err
	}

	if row.Active != desired.Active {
		if err := r.repo.SetSourceActive(ctx, cfg.Code, desired.Active); err != nil {
			return nil, err
		}
	}

	refreshed, err := r.repo.GetSourceByCode(ctx, cfg.Code)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, fmt.Errorf("source %s missing after sync", cfg.Code)
	}

	r.store(refreshed)
	return refreshed, nil
}

func (r *SourceRegistry) cached(code string) *database.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[code]
}

func (r *SourceRegistry) store(row *database.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.Code] = row
}

func (r *SourceRegistry) lockFor(code string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[code]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[code] = lock
	}
	return lock
}

// RowFromConfig maps a source configuration to its registry row
func RowFromConfig(cfg *source.Config) database.Source {
	return database.Source{
		Code:       cfg.Code,
		Name:       cfg.Name,
		URLBase:    cfg.BaseURL,
		LogoURL:    cfg.LogoURL,
		ScrapeType: cfg.Mode,
		Active:     cfg.Settings.Enabled,
		Country:    cfg.Country,
	}
}
