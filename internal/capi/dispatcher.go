package capi

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenSource resolves the access token for a pixel
type TokenSource interface {
	GetToken(ctx context.Context, pixelID string) (string, error)
}

// EventSender delivers events for a pixel
type EventSender interface {
	SendEvents(ctx context.Context, pixelID, token string, events []Event) error
}

// BatchResult is the outcome of one batch. Err is nil when the batch was accepted.
type BatchResult struct {
	Batch    Batch
	Err      error
	Duration time.Duration
}

// Dispatcher sends batches concurrently and reports a result per batch
type Dispatcher struct {
	tokens      TokenSource
	sender      EventSender
	concurrency int
	log         *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(tokens TokenSource, sender EventSender, concurrency int, log *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		tokens:      tokens,
		sender:      sender,
		concurrency: concurrency,
		log:         log,
	}
}

// Dispatch resolves one token per pixel and sends every batch. A failure is confined
// to its own batch, or to every batch of the pixel when the token cannot be resolved.
// Results are returned in the order of the input batches.
func (d *Dispatcher) Dispatch(ctx context.Context, batches []Batch) []BatchResult {
	results := make([]BatchResult, len(batches))
	if len(batches) == 0 {
		return results
	}

	tokens, tokenErrs := d.resolveTokens(ctx, batches)

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for i := range batches {
		batch := batches[i]
		results[i].Batch = batch

		if err, failed := tokenErrs[batch.PixelID]; failed {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			start := time.Now()
			err := d.sender.SendEvents(ctx, batch.PixelID, tokens[batch.PixelID], batch.Events)
			results[i].Duration = time.Since(start)
			if err != nil {
				d.log.Error("Failed to report batch",
					zap.String("pixel_id", batch.PixelID),
					zap.Int("event_count", len(batch.Events)),
					zap.Int("record_count", len(batch.Sources)),
					zap.Error(err))
				results[i].Err = fmt.Errorf("failed to send batch for pixel %s: %w", batch.PixelID, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (d *Dispatcher) resolveTokens(ctx context.Context, batches []Batch) (map[string]string, map[string]error) {
	var pixels []string
	seen := make(map[string]struct{})
	for _, b := range batches {
		if _, ok := seen[b.PixelID]; !ok {
			seen[b.PixelID] = struct{}{}
			pixels = append(pixels, b.PixelID)
		}
	}

	tokenList := make([]string, len(pixels))
	errList := make([]error, len(pixels))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, pixelID := range pixels {
		g.Go(func() error {
			tokenList[i], errList[i] = d.tokens.GetToken(ctx, pixelID)
			return nil
		})
	}
	_ = g.Wait()

	tokens := make(map[string]string, len(pixels))
	tokenErrs := make(map[string]error)
	for i, pixelID := range pixels {
		if errList[i] != nil {
			d.log.Error("Failed to resolve pixel token",
				zap.String("pixel_id", pixelID),
				zap.Error(errList[i]))
			tokenErrs[pixelID] = fmt.Errorf("failed to resolve token for pixel %s: %w", pixelID, errList[i])
			continue
		}
		tokens[pixelID] = tokenList[i]
	}

	return tokens, tokenErrs
}
