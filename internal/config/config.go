package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Store backends accepted by Reporter.StoreBackend
const (
	StoreBackendClickHouse = "clickhouse"
	StoreBackendPostgres   = "postgres"
)

type Config struct {
	Service    Service    `envconfig:"SERVICE"`
	SQS        SQS        `envconfig:"SQS"`
	S3         S3         `envconfig:"S3"`
	DynamoDB   DynamoDB   `envconfig:"DYNAMODB"`
	ClickHouse ClickHouse `envconfig:"CLICKHOUSE"`
	Postgres   Postgres   `envconfig:"POSTGRES"`
	Consumer   Consumer   `envconfig:"CONSUMER"`
	Reporter   Reporter   `envconfig:"REPORTER"`
	CAPI       CAPI       `envconfig:"CAPI"`
}

type Service struct {
	Environment string `envconfig:"ENVIRONMENT" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

type SQS struct {
	Endpoint string `envconfig:"ENDPOINT"`
	QueueURL string `envconfig:"QUEUE_URL" required:"true"`
	Region   string `envconfig:"REGION" default:"us-east-1"`
}

type S3 struct {
	Endpoint     string `envconfig:"ENDPOINT"`
	Region       string `envconfig:"REGION" default:"us-east-1"`
	Bucket       string `envconfig:"BUCKET" default:"report-conversions-bucket"`
	UploadBucket string `envconfig:"UPLOAD_BUCKET" default:"interpreted-events-bucket"`
	UsePathStyle bool   `envconfig:"USE_PATH_STYLE" default:"false"`
}

type DynamoDB struct {
	Endpoint           string `envconfig:"ENDPOINT"`
	Region             string `envconfig:"REGION" default:"us-east-1"`
	SubscriptionsTable string `envconfig:"SUBSCRIPTIONS_TABLE" default:"conversion-reporting-subscriptions"`
}

type ClickHouse struct {
	Host            string `envconfig:"HOST" default:"localhost"`
	Port            string `envconfig:"PORT" default:"9000"`
	Database        string `envconfig:"DB" default:"default"`
	User            string `envconfig:"USER" default:""`
	Password        string `envconfig:"PASSWORD" default:""`
	UseTLS          bool   `envconfig:"USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CONN_MAX_LIFETIME_SEC" default:"3600"`
}

type Postgres struct {
	URL      string `envconfig:"URL" required:"true"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"5"`
}

type Consumer struct {
	MaxMessages       int32  `envconfig:"MAX_MESSAGES" default:"1"`
	WaitTimeSeconds   int32  `envconfig:"WAIT_TIME_SECONDS" default:"20"`
	VisibilityTimeout int32  `envconfig:"VISIBILITY_TIMEOUT_SEC" default:"300"`
	HealthCheckPort   string `envconfig:"HEALTH_CHECK_PORT" default:"8081"`
	Disabled          bool   `envconfig:"DISABLED" default:"false"`
}

type Reporter struct {
	StoreBackend        string `envconfig:"STORE_BACKEND" default:"clickhouse"`
	TrafficSource       string `envconfig:"TRAFFIC_SOURCE" default:"facebook"`
	MaxEventsPerBatch   int    `envconfig:"MAX_EVENTS_PER_BATCH" default:"1000"`
	DispatchConcurrency int    `envconfig:"DISPATCH_CONCURRENCY" default:"4"`
	ConversionsTable    string `envconfig:"CONVERSIONS_TABLE" default:"report_conversions"`
}

type CAPI struct {
	BaseURL    string `envconfig:"BASE_URL" default:"https://graph.facebook.com"`
	APIVersion string `envconfig:"API_VERSION" default:"v21.0"`
	TimeoutSec int    `envconfig:"TIMEOUT_SEC" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Reporter.StoreBackend {
	case StoreBackendClickHouse, StoreBackendPostgres:
	default:
		return fmt.Errorf("unsupported store backend: %s (supported: clickhouse, postgres)", c.Reporter.StoreBackend)
	}

	if c.Reporter.MaxEventsPerBatch <= 0 || c.Reporter.MaxEventsPerBatch > 1000 {
		return fmt.Errorf("max events per batch must be between 1 and 1000, got %d", c.Reporter.MaxEventsPerBatch)
	}

	if c.Reporter.DispatchConcurrency <= 0 {
		return fmt.Errorf("dispatch concurrency must be positive, got %d", c.Reporter.DispatchConcurrency)
	}

	return nil
}
