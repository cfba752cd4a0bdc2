package scraper

import "errors"

var (
	// ErrUnsupportedSource is returned for source codes with no configuration
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrInvalidSearchTerm is returned when the term is empty after trimming
	ErrInvalidSearchTerm = errors.New("search term is required")
	// ErrNoData is returned when a source yields no listings at all
	ErrNoData = errors.New("no data returned by source")
	// ErrNoRelevantData is returned when filtering leaves nothing
	ErrNoRelevantData = errors.New("no relevant data after filtering")
)
