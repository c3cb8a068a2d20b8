package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// QueuePublisher enqueues object-created notifications, the same bodies S3 emits
type QueuePublisher interface {
	PublishObjectCreated(ctx context.Context, bucket, key string) error
}

// QueueConsumer is the receiving side of the report-conversions queue.
// A message that is never deleted reappears after its visibility timeout.
type QueueConsumer interface {
	ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	QueueURL() string
}
