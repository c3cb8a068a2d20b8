package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/awsconfig"
	envConfig "github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// Client represents an SQS client
type Client struct {
	client *sqs.Client
	config envConfig.SQS
	log    *zap.Logger
}

// NewClient creates a new SQS client
func NewClient(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*Client, error) {
	var clientOpts []func(*sqs.Options)

	// Configure for local development with ElasticMQ / LocalStack
	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := awsconfig.Load(ctx, SQSConfig.Region, SQSConfig.Endpoint)
	if err != nil {
		return nil, err
	}

	sqsClient := sqs.NewFromConfig(cfg, clientOpts...)

	log.Info("SQS client created",
		zap.String("region", SQSConfig.Region),
		zap.String("queue_url", SQSConfig.QueueURL))

	return &Client{
		client: sqsClient,
		config: SQSConfig,
		log:    log,
	}, nil
}

// ReceiveMessages receives messages from SQS
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from SQS
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.config.QueueURL
}

// NewObjectCreatedBody builds the notification S3 would publish for an object put
func NewObjectCreatedBody(bucket, key string) ([]byte, error) {
	notification := domain.S3EventNotification{
		Records: []domain.S3EventRecord{{
			EventName: "ObjectCreated:Put",
			S3: domain.S3Entity{
				Bucket: domain.S3Bucket{Name: bucket},
				Object: domain.S3Object{Key: encodeKey(key)},
			},
		}},
	}
	return json.Marshal(notification)
}

// encodeKey mirrors the S3 notification encoding: query escaping with slashes kept
func encodeKey(key string) string {
	return strings.ReplaceAll(url.QueryEscape(key), "%2F", "/")
}

// PublishObjectCreated enqueues an object notification so the consumer processes the object again
func (c *Client) PublishObjectCreated(ctx context.Context, bucket, key string) error {
	body, err := NewObjectCreatedBody(bucket, key)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.config.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Info("Object notification published to SQS",
		zap.String("bucket", bucket),
		zap.String("key", key))

	return nil
}
