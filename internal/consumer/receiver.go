package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/queue"
)

const receiveErrorBackoff = 1 * time.Second

// ReceiverConfig configures the long poll against the notification queue
type ReceiverConfig struct {
	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

// Receiver long-polls the queue and hands each message on as an Envelope
type Receiver struct {
	queue  queue.QueueConsumer
	config ReceiverConfig
	log    *zap.Logger
}

func NewReceiver(queueConsumer queue.QueueConsumer, config ReceiverConfig, log *zap.Logger) *Receiver {
	return &Receiver{
		queue:  queueConsumer,
		config: config,
		log:    log,
	}
}

// Start polls until ctx is done, then closes out
func (r *Receiver) Start(ctx context.Context, out chan<- *Envelope) {
	defer close(out)

	for ctx.Err() == nil {
		messages, err := r.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.log.Error("Error receiving messages from SQS", zap.Error(err))
			r.backoff(ctx)
			continue
		}

		if len(messages) > 0 {
			r.log.Info("Received notifications", zap.Int("message_count", len(messages)))
		}

		for _, msg := range messages {
			select {
			case <-ctx.Done():
				r.log.Info("Receiver stopped with undelivered messages", zap.Int("message_count", len(messages)))
				return
			case out <- r.envelope(msg):
			}
		}
	}

	r.log.Info("Receiver shutting down")
}

func (r *Receiver) poll(ctx context.Context) ([]types.Message, error) {
	result, err := r.queue.ReceiveMessages(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(r.queue.QueueURL()),
		MaxNumberOfMessages: r.config.MaxMessages,
		WaitTimeSeconds:     r.config.WaitTimeSeconds,
		VisibilityTimeout:   r.config.VisibilityTimeout,
	})
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (r *Receiver) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(receiveErrorBackoff):
	}
}

func (r *Receiver) envelope(msg types.Message) *Envelope {
	receipt := msg.ReceiptHandle
	id := aws.ToString(msg.MessageId)

	ack := func(ctx context.Context) error {
		_, err := r.queue.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
			QueueUrl:      aws.String(r.queue.QueueURL()),
			ReceiptHandle: receipt,
		})
		if err != nil {
			return err
		}
		r.log.Debug("Deleted message from SQS", zap.String("message_id", id))
		return nil
	}

	// nil nack: an unsettled message becomes visible again once its visibility timeout expires
	return NewEnvelope(id, []byte(aws.ToString(msg.Body)), ack, nil)
}
