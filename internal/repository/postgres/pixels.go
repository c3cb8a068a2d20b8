package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/repository"
)

const listPixelsQuery = `SELECT code FROM pixels WHERE traffic_source = $1`

const tokenQuery = `
	SELECT ua.token
	FROM pixels
	INNER JOIN pixels_ad_accounts_relations AS paar ON pixels.id = paar.pixel_id
	INNER JOIN ad_accounts AS aa ON paar.ad_account_id = aa.id
	INNER JOIN ua_aa_map AS map ON aa.id = map.aa_id
	INNER JOIN user_accounts AS ua ON map.ua_id = ua.id
	WHERE pixels.code = $1 AND ua.fetching = true
	LIMIT 1`

// PixelRepository implements repository.PixelRepository on the ad-account tables
type PixelRepository struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPixelRepository creates a new PixelRepository
func NewPixelRepository(pool *pgxpool.Pool, log *zap.Logger) *PixelRepository {
	return &PixelRepository{pool: pool, log: log}
}

// ListActivePixelIDs returns the set of pixel codes registered for trafficSource
func (r *PixelRepository) ListActivePixelIDs(ctx context.Context, trafficSource string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, listPixelsQuery, trafficSource)
	if err != nil {
		return nil, fmt.Errorf("failed to query pixels: %w", err)
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan pixels: %w", err)
	}

	pixels := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		pixels[code] = struct{}{}
	}

	r.log.Debug("Loaded active pixels", zap.String("trafficSource", trafficSource), zap.Int("count", len(pixels)))
	return pixels, nil
}

// GetToken returns the access token for pixelID, or repository.ErrTokenNotFound
func (r *PixelRepository) GetToken(ctx context.Context, pixelID string) (string, error) {
	var token string
	if err := r.pool.QueryRow(ctx, tokenQuery, pixelID).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("pixel %s: %w", pixelID, repository.ErrTokenNotFound)
		}
		return "", fmt.Errorf("failed to query token for pixel %s: %w", pixelID, err)
	}
	return token, nil
}
