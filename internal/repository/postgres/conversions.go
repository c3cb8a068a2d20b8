package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

const conversionColumns = `session_id, keyword_clicked, pixel_id, click_timestamp, ts_click_id,
	country_code, region, city, ip, user_agent, conversions, revenue, lander_visitors, lander_searches,
	network, campaign_id, traffic_source, vertical, category, valid, invalid_reason, reported,
	landings, serp_landings`

// ConversionRepository implements repository.ConversionRepository on Postgres.
// Rows are keyed by (session_id, keyword_clicked) and replaced in place.
type ConversionRepository struct {
	pool  *pgxpool.Pool
	table string
	log   *zap.Logger
}

// NewConversionRepository creates a repository writing to table
func NewConversionRepository(pool *pgxpool.Pool, table string, log *zap.Logger) (*ConversionRepository, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &ConversionRepository{pool: pool, table: table, log: log}, nil
}

// InitSchema creates the conversions table if it does not exist
func (r *ConversionRepository) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		session_id TEXT NOT NULL,
		keyword_clicked TEXT NOT NULL,
		pixel_id TEXT NOT NULL DEFAULT '',
		click_timestamp BIGINT NOT NULL DEFAULT 0,
		ts_click_id TEXT NOT NULL DEFAULT '',
		country_code TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		conversions INTEGER NOT NULL DEFAULT 0,
		revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
		lander_visitors INTEGER NOT NULL DEFAULT 0,
		lander_searches INTEGER NOT NULL DEFAULT 0,
		network TEXT NOT NULL DEFAULT '',
		campaign_id TEXT NOT NULL DEFAULT '',
		traffic_source TEXT NOT NULL DEFAULT '',
		vertical TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		valid BOOLEAN NOT NULL DEFAULT true,
		invalid_reason TEXT,
		reported SMALLINT NOT NULL DEFAULT 0,
		landings INTEGER NOT NULL DEFAULT 0,
		serp_landings INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (session_id, keyword_clicked)
	)`, r.table)

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", r.table, err)
	}

	r.log.Info("Postgres schema initialized successfully", zap.String("table", r.table))
	return nil
}

// FindByKey returns the record stored under key, or nil if none exists
func (r *ConversionRepository) FindByKey(ctx context.Context, key domain.Key) (*domain.ConversionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND keyword_clicked = $2`, conversionColumns, r.table)

	var (
		rec        domain.ConversionRecord
		clickMs    int64
		network    string
		conv       int32
		visitors   int32
		searches   int32
		reported   int16
		landings   int32
		serpLanded int32
	)
	err := r.pool.QueryRow(ctx, query, key.SessionID, key.KeywordClicked).Scan(
		&rec.SessionID, &rec.KeywordClicked, &rec.PixelID, &clickMs, &rec.TsClickID,
		&rec.CountryCode, &rec.Region, &rec.City, &rec.IP, &rec.UserAgent,
		&conv, &rec.Revenue, &visitors, &searches,
		&network, &rec.CampaignID, &rec.TrafficSource, &rec.Vertical, &rec.Category,
		&rec.Valid, &rec.InvalidReason, &reported, &landings, &serpLanded,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conversion %s: %w", key, err)
	}

	rec.ClickTimestamp = domain.NewEpochSeconds(clickMs / 1000)
	rec.Network = domain.Network(network)
	rec.Conversions = int(conv)
	rec.LanderVisitors = int(visitors)
	rec.LanderSearches = int(searches)
	rec.Reported = int(reported)
	rec.Landings = int(landings)
	rec.SerpLandings = int(serpLanded)
	return &rec, nil
}

func (r *ConversionRepository) upsertQuery() string {
	return fmt.Sprintf(`
	INSERT INTO %s (%s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	ON CONFLICT (session_id, keyword_clicked) DO UPDATE SET
		pixel_id = EXCLUDED.pixel_id,
		click_timestamp = EXCLUDED.click_timestamp,
		ts_click_id = EXCLUDED.ts_click_id,
		country_code = EXCLUDED.country_code,
		region = EXCLUDED.region,
		city = EXCLUDED.city,
		ip = EXCLUDED.ip,
		user_agent = EXCLUDED.user_agent,
		conversions = EXCLUDED.conversions,
		revenue = EXCLUDED.revenue,
		lander_visitors = EXCLUDED.lander_visitors,
		lander_searches = EXCLUDED.lander_searches,
		network = EXCLUDED.network,
		campaign_id = EXCLUDED.campaign_id,
		traffic_source = EXCLUDED.traffic_source,
		vertical = EXCLUDED.vertical,
		category = EXCLUDED.category,
		valid = EXCLUDED.valid,
		invalid_reason = EXCLUDED.invalid_reason,
		reported = EXCLUDED.reported,
		landings = EXCLUDED.landings,
		serp_landings = EXCLUDED.serp_landings,
		updated_at = now()`, r.table, conversionColumns)
}

// Upsert writes all records in a single round trip
func (r *ConversionRepository) Upsert(ctx context.Context, records []domain.ConversionRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := r.upsertQuery()
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.SessionID, rec.KeywordClicked, rec.PixelID, rec.ClickTimestamp.Millis(), rec.TsClickID,
			rec.CountryCode, rec.Region, rec.City, rec.IP, rec.UserAgent,
			int32(rec.Conversions), rec.Revenue, int32(rec.LanderVisitors), int32(rec.LanderSearches),
			string(rec.Network), rec.CampaignID, rec.TrafficSource, rec.Vertical, rec.Category,
			rec.Valid, rec.InvalidReason, int16(rec.Reported), int32(rec.Landings), int32(rec.SerpLandings),
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert conversions: %w", err)
	}

	r.log.Debug("Upserted conversions", zap.Int("count", len(records)), zap.String("table", r.table))
	return nil
}

// Delete removes the record stored under key
func (r *ConversionRepository) Delete(ctx context.Context, key domain.Key) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND keyword_clicked = $2`, r.table)
	if _, err := r.pool.Exec(ctx, query, key.SessionID, key.KeywordClicked); err != nil {
		return fmt.Errorf("failed to delete conversion %s: %w", key, err)
	}
	return nil
}

// Ping checks if the Postgres connection is alive
func (r *ConversionRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool
func (r *ConversionRepository) Close() error {
	r.pool.Close()
	return nil
}
