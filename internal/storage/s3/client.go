package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/awsconfig"
	envConfig "github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// ObjectAPI is the subset of the S3 API used by Client
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client reads and writes conversion objects
type Client struct {
	api ObjectAPI
	log *zap.Logger
}

// NewClient creates a new S3 client
func NewClient(ctx context.Context, S3Config envConfig.S3, log *zap.Logger) (*Client, error) {
	var clientOpts []func(*s3.Options)

	if S3Config.Endpoint != "" {
		log.Info("Configuring S3 for local development",
			zap.String("endpoint", S3Config.Endpoint))
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(S3Config.Endpoint)
		})
	}
	if S3Config.UsePathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	cfg, err := awsconfig.Load(ctx, S3Config.Region, S3Config.Endpoint)
	if err != nil {
		return nil, err
	}

	log.Info("S3 client created", zap.String("region", S3Config.Region))

	return NewClientWithAPI(s3.NewFromConfig(cfg, clientOpts...), log), nil
}

// NewClientWithAPI wraps an existing S3 API implementation
func NewClientWithAPI(api ObjectAPI, log *zap.Logger) *Client {
	return &Client{api: api, log: log}
}

// ReadConversions downloads an object and decodes it as a JSON array of conversion records
func (c *Client) ReadConversions(ctx context.Context, bucket, key string) ([]domain.ConversionRecord, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, key, err)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			c.log.Warn("Failed to close object body", zap.String("key", key), zap.Error(err))
		}
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object s3://%s/%s: %w", bucket, key, err)
	}

	var records []domain.ConversionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &DecodeError{Bucket: bucket, Key: key, Err: err}
	}

	c.log.Debug("Read conversions from S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("count", len(records)))

	return records, nil
}

// PutJSON stores v as a JSON object at bucket/key
func (c *Client) PutJSON(ctx context.Context, bucket, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal object: %w", err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object s3://%s/%s: %w", bucket, key, err)
	}

	c.log.Info("Stored object in S3", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// FolderKey builds "<folder>/<YYYY-MM-DD>/<H>/<filename>.json" for the UTC time at.
// The hour is not zero-padded.
func FolderKey(folder, filename string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%d/%s.json", folder, at.Format("2006-01-02"), at.Hour(), filename)
}

// DecodeError reports an object whose contents are not a JSON array of records
type DecodeError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode object s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
