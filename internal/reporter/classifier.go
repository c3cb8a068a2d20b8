package reporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// Invalid reasons, checked in this order
const (
	ReasonInvalidPixel   = "Invalid pixel"
	ReasonTooOld         = "Conversion older than 7 days"
	ReasonMissingClickID = "Missing traffic source click id"
)

const maxConversionAgeSeconds = 7 * 24 * 3600

// PixelSource lists pixels registered for a traffic source
type PixelSource interface {
	ListActivePixelIDs(ctx context.Context, trafficSource string) (map[string]struct{}, error)
}

// Classifier labels records valid or invalid
type Classifier struct {
	pixels        PixelSource
	trafficSource string
	now           func() time.Time
	log           *zap.Logger
}

func NewClassifier(pixels PixelSource, trafficSource string, now func() time.Time, log *zap.Logger) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{pixels: pixels, trafficSource: trafficSource, now: now, log: log}
}

// Classify fetches the active pixel set once and splits records into valid and invalid copies
func (c *Classifier) Classify(ctx context.Context, records []domain.ConversionRecord) (valid, invalid []domain.ConversionRecord, err error) {
	if len(records) == 0 {
		return nil, nil, nil
	}

	pixels, err := c.pixels.ListActivePixelIDs(ctx, c.trafficSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list active pixels: %w", err)
	}

	nowSeconds := c.now().Unix()
	for _, rec := range records {
		labeled := classify(rec, pixels, nowSeconds)
		if labeled.Valid {
			valid = append(valid, labeled)
		} else {
			invalid = append(invalid, labeled)
		}
	}

	c.log.Info("Classified conversions",
		zap.Int("valid", len(valid)),
		zap.Int("invalid", len(invalid)))

	return valid, invalid, nil
}

func classify(rec domain.ConversionRecord, pixels map[string]struct{}, nowSeconds int64) domain.ConversionRecord {
	rec.Valid = true
	rec.InvalidReason = nil

	if _, ok := pixels[rec.PixelID]; !ok {
		rec.Invalidate(ReasonInvalidPixel)
		return rec
	}

	if !isFresh(rec.ClickTimestamp, nowSeconds) {
		rec.Invalidate(ReasonTooOld)
		return rec
	}

	if rec.TsClickID == "" {
		rec.Invalidate(ReasonMissingClickID)
	}
	return rec
}

// isFresh fails timestamps that are not integer epoch seconds
func isFresh(ts domain.EpochSeconds, nowSeconds int64) bool {
	clicked, ok := ts.Int64()
	if !ok {
		return false
	}
	return nowSeconds-clicked < maxConversionAgeSeconds
}
