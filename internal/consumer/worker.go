package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/reporter"
)

const ackTimeout = 10 * time.Second

// Worker processes envelopes one at a time and acks those that succeed
type Worker struct {
	processor MessageProcessor
	log       *zap.Logger
}

func NewWorker(processor MessageProcessor, log *zap.Logger) *Worker {
	return &Worker{
		processor: processor,
		log:       log,
	}
}

// Start consumes envelopes until the input channel closes or ctx is done
func (w *Worker) Start(ctx context.Context, in <-chan *Envelope) {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker shutting down")
			return
		case envelope, ok := <-in:
			if !ok {
				w.log.Info("Worker input channel closed")
				return
			}
			w.handle(ctx, envelope)
		}
	}
}

func (w *Worker) handle(ctx context.Context, envelope *Envelope) {
	log := w.log.With(zap.String("message_id", envelope.MessageID))
	start := time.Now()

	err := w.processor.ProcessMessage(ctx, envelope.Body)
	if err == nil {
		// Deletion must survive shutdown once the work is persisted
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
		defer cancel()
		if err := envelope.Ack(ackCtx); err != nil {
			log.Error("Failed to delete processed message", zap.Error(err))
			return
		}
		log.Info("Message processed", zap.Duration("duration", time.Since(start)))
		return
	}

	if errors.Is(err, reporter.ErrMalformedMessage) {
		log.Warn("Malformed message left for redrive", zap.Error(err))
	} else {
		log.Error("Failed to process message, leaving it for redelivery", zap.Error(err))
	}

	if err := envelope.Nack(ctx); err != nil {
		log.Error("Failed to release message", zap.Error(err))
	}
}
