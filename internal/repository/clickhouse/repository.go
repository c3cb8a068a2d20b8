package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// conversionRow is the stored shape of a conversion record. click_timestamp is kept in milliseconds.
type conversionRow struct {
	SessionID        string  `ch:"session_id"`
	KeywordClicked   string  `ch:"keyword_clicked"`
	PixelID          string  `ch:"pixel_id"`
	ClickTimestampMs int64   `ch:"click_timestamp"`
	TsClickID        string  `ch:"ts_click_id"`
	CountryCode      string  `ch:"country_code"`
	Region           string  `ch:"region"`
	City             string  `ch:"city"`
	IP               string  `ch:"ip"`
	UserAgent        string  `ch:"user_agent"`
	Conversions      int32   `ch:"conversions"`
	Revenue          float64 `ch:"revenue"`
	LanderVisitors   int32   `ch:"lander_visitors"`
	LanderSearches   int32   `ch:"lander_searches"`
	Network          string  `ch:"network"`
	CampaignID       string  `ch:"campaign_id"`
	TrafficSource    string  `ch:"traffic_source"`
	Vertical         string  `ch:"vertical"`
	Category         string  `ch:"category"`
	Valid            bool    `ch:"valid"`
	InvalidReason    *string `ch:"invalid_reason"`
	Reported         uint8   `ch:"reported"`
	Landings         int32   `ch:"landings"`
	SerpLandings     int32   `ch:"serp_landings"`
	Version          uint64  `ch:"version"`
}

const conversionColumns = `session_id, keyword_clicked, pixel_id, click_timestamp, ts_click_id,
	country_code, region, city, ip, user_agent, conversions, revenue, lander_visitors, lander_searches,
	network, campaign_id, traffic_source, vertical, category, valid, invalid_reason, reported,
	landings, serp_landings, version`

func toRow(rec domain.ConversionRecord, version uint64) conversionRow {
	return conversionRow{
		SessionID:        rec.SessionID,
		KeywordClicked:   rec.KeywordClicked,
		PixelID:          rec.PixelID,
		ClickTimestampMs: rec.ClickTimestamp.Millis(),
		TsClickID:        rec.TsClickID,
		CountryCode:      rec.CountryCode,
		Region:           rec.Region,
		City:             rec.City,
		IP:               rec.IP,
		UserAgent:        rec.UserAgent,
		Conversions:      int32(rec.Conversions),
		Revenue:          rec.Revenue,
		LanderVisitors:   int32(rec.LanderVisitors),
		LanderSearches:   int32(rec.LanderSearches),
		Network:          string(rec.Network),
		CampaignID:       rec.CampaignID,
		TrafficSource:    rec.TrafficSource,
		Vertical:         rec.Vertical,
		Category:         rec.Category,
		Valid:            rec.Valid,
		InvalidReason:    rec.InvalidReason,
		Reported:         uint8(rec.Reported),
		Landings:         int32(rec.Landings),
		SerpLandings:     int32(rec.SerpLandings),
		Version:          version,
	}
}

func (row conversionRow) toRecord() domain.ConversionRecord {
	return domain.ConversionRecord{
		SessionID:      row.SessionID,
		KeywordClicked: row.KeywordClicked,
		PixelID:        row.PixelID,
		ClickTimestamp: domain.NewEpochSeconds(row.ClickTimestampMs / 1000),
		TsClickID:      row.TsClickID,
		CountryCode:    row.CountryCode,
		Region:         row.Region,
		City:           row.City,
		IP:             row.IP,
		UserAgent:      row.UserAgent,
		Conversions:    int(row.Conversions),
		Revenue:        row.Revenue,
		LanderVisitors: int(row.LanderVisitors),
		LanderSearches: int(row.LanderSearches),
		Network:        domain.Network(row.Network),
		CampaignID:     row.CampaignID,
		TrafficSource:  row.TrafficSource,
		Vertical:       row.Vertical,
		Category:       row.Category,
		Valid:          row.Valid,
		InvalidReason:  row.InvalidReason,
		Reported:       int(row.Reported),
		Landings:       int(row.Landings),
		SerpLandings:   int(row.SerpLandings),
	}
}

// Repository implements ConversionRepository for ClickHouse
type Repository struct {
	client *Client
	table  string
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository writing to the given table
func NewRepository(client *Client, table string, log *zap.Logger) (*Repository, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	return &Repository{
		client: client,
		table:  table,
		log:    log,
	}, nil
}

// InitSchema initializes the ClickHouse schema with ReplacingMergeTree engine
func (r *Repository) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		session_id String,
		keyword_clicked String,
		pixel_id String,
		click_timestamp Int64,
		ts_click_id String,
		country_code LowCardinality(String),
		region String,
		city String,
		ip String,
		user_agent String,
		conversions Int32,
		revenue Float64,
		lander_visitors Int32,
		lander_searches Int32,
		network LowCardinality(String),
		campaign_id String,
		traffic_source LowCardinality(String),
		vertical String,
		category String,
		valid Bool,
		invalid_reason Nullable(String),
		reported UInt8,
		landings Int32,
		serp_landings Int32,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	ORDER BY (session_id, keyword_clicked)
	SETTINGS index_granularity = 8192
	`, r.table)

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", r.table, err)
	}

	r.log.Info("ClickHouse schema initialized successfully", zap.String("table", r.table))
	return nil
}

// FindByKey returns the latest version of the record stored under key
func (r *Repository) FindByKey(ctx context.Context, key domain.Key) (*domain.ConversionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE session_id = ? AND keyword_clicked = ? LIMIT 1`,
		conversionColumns, r.table)

	var row conversionRow
	if err := r.client.Conn().QueryRow(ctx, query, key.SessionID, key.KeywordClicked).ScanStruct(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conversion %s: %w", key, err)
	}

	rec := row.toRecord()
	return &rec, nil
}

// Upsert appends a new version of each record. Readers collapse versions with FINAL.
func (r *Repository) Upsert(ctx context.Context, records []domain.ConversionRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", r.table, conversionColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := uint64(time.Now().UnixNano())
	for i, rec := range records {
		row := toRow(rec, version+uint64(i))
		if err := batch.AppendStruct(&row); err != nil {
			return fmt.Errorf("failed to append conversion %s to batch: %w", rec.Key(), err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	r.log.Debug("Upserted conversions", zap.Int("count", len(records)), zap.String("table", r.table))
	return nil
}

// Delete removes every version of the record stored under key
func (r *Repository) Delete(ctx context.Context, key domain.Key) error {
	query := fmt.Sprintf(`ALTER TABLE %s DELETE WHERE session_id = ? AND keyword_clicked = ?`, r.table)
	if err := r.client.Conn().Exec(ctx, query, key.SessionID, key.KeywordClicked); err != nil {
		return fmt.Errorf("failed to delete conversion %s: %w", key, err)
	}
	return nil
}

// OptimizeTable merges parts of the table so duplicate versions are collapsed on disk
func (r *Repository) OptimizeTable(ctx context.Context, table string) error {
	if table == "" {
		table = r.table
	}
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("invalid table name: %q", table)
	}

	r.log.Info("Optimizing table", zap.String("table", table))
	if err := r.client.Conn().Exec(ctx, fmt.Sprintf("OPTIMIZE TABLE %s FINAL", table)); err != nil {
		return fmt.Errorf("failed to optimize table %s: %w", table, err)
	}
	return nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}
