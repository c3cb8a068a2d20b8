package repository

import (
	"context"
	"errors"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// ErrTokenNotFound is returned when no fetching user account is mapped to a pixel
var ErrTokenNotFound = errors.New("no active account mapping for pixel")

// ConversionRepository defines the durable store of processed conversion records
type ConversionRepository interface {
	// FindByKey returns the stored record for the key, or nil if none exists
	FindByKey(ctx context.Context, key domain.Key) (*domain.ConversionRecord, error)

	// Upsert inserts or replaces records by (session_id, keyword_clicked). Safe for concurrent writers.
	Upsert(ctx context.Context, records []domain.ConversionRecord) error

	// Delete removes the stored record for the key
	Delete(ctx context.Context, key domain.Key) error

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}

// PixelRepository defines lookups against the pixel and ad-account tables
type PixelRepository interface {
	// ListActivePixelIDs returns the pixel codes registered for a traffic source
	ListActivePixelIDs(ctx context.Context, trafficSource string) (map[string]struct{}, error)

	// GetToken returns the access token of a fetching user account mapped to the pixel
	GetToken(ctx context.Context, pixelID string) (string, error)
}

// TableOptimizer runs table maintenance on the analytics store
type TableOptimizer interface {
	OptimizeTable(ctx context.Context, table string) error
}
