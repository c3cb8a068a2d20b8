package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const dialTimeout = 5 * time.Second

// Client owns the native-protocol connection pool used by the conversion store
type Client struct {
	conn driver.Conn
	log  *zap.Logger
}

// NewClient opens the pool and verifies the server is reachable
func NewClient(ctx context.Context, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	log = log.With(zap.String("clickhouse_host", cfg.Host), zap.String("database", cfg.Database))
	log.Info("Connecting to ClickHouse", zap.Bool("useTLS", cfg.UseTLS))

	conn, err := clickhouse.Open(connOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if version, err := conn.ServerVersion(); err == nil {
		log.Info("ClickHouse connection established", zap.String("server_version", version.String()))
	}

	return &Client{conn: conn, log: log}, nil
}

func connOptions(cfg *config.ClickHouse) *clickhouse.Options {
	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{}
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
			// purge must be visible before the object is reprocessed
			"mutations_sync": 1,
		},
		TLS:              tlsConfig,
		DialTimeout:      dialTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetime) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
}

func (c *Client) Conn() driver.Conn {
	return c.conn
}

func (c *Client) Close() error {
	c.log.Info("Closing ClickHouse connection")
	return c.conn.Close()
}
