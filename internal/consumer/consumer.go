package consumer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/queue"
)

// Consumer runs the receive and process stages for SQS messages
type Consumer struct {
	receiver *Receiver
	worker   *Worker
}

// NewConsumer creates a new consumer
func NewConsumer(cfg *config.Config, queueConsumer queue.QueueConsumer, processor MessageProcessor, log *zap.Logger) *Consumer {
	receiver := NewReceiver(queueConsumer, ReceiverConfig{
		MaxMessages:       cfg.Consumer.MaxMessages,
		WaitTimeSeconds:   cfg.Consumer.WaitTimeSeconds,
		VisibilityTimeout: cfg.Consumer.VisibilityTimeout,
	}, log)

	return &Consumer{
		receiver: receiver,
		worker:   NewWorker(processor, log),
	}
}

// Start runs the pipeline until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	// Unbuffered so that at most one message waits while another is processed
	messageChan := make(chan *Envelope)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		c.worker.Start(ctx, messageChan)
	}()

	wg.Wait()
	return nil
}
