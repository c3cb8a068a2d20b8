package capi

import "github.com/BarkinBalci/conversion-reporting-service/internal/domain"

// MaxEvents is the Conversions API limit on events per request
const MaxEvents = 1000

// Plan is the dispatch plan for a set of records
type Plan struct {
	Batches []Batch
	// Records holds every planned record with landings applied, in input order
	Records []domain.ConversionRecord
}

// Planner groups expanded events by pixel and packs them into capped batches
type Planner struct {
	maxEvents int
}

// NewPlanner creates a planner. Values outside (0, MaxEvents] fall back to MaxEvents.
func NewPlanner(maxEvents int) *Planner {
	if maxEvents <= 0 || maxEvents > MaxEvents {
		maxEvents = MaxEvents
	}
	return &Planner{maxEvents: maxEvents}
}

// Plan expands every record and packs the events of each pixel into batches.
// Pixels appear in the order they are first seen.
func (p *Planner) Plan(records []domain.ConversionRecord) Plan {
	plan := Plan{Records: make([]domain.ConversionRecord, 0, len(records))}

	var pixelOrder []string
	byPixel := make(map[string][]SourcedEvent)

	for _, rec := range records {
		expansion := Expand(rec)
		plan.Records = append(plan.Records, expansion.Record)

		if _, ok := byPixel[rec.PixelID]; !ok {
			pixelOrder = append(pixelOrder, rec.PixelID)
			byPixel[rec.PixelID] = nil
		}
		for _, ev := range expansion.Events {
			byPixel[rec.PixelID] = append(byPixel[rec.PixelID], SourcedEvent{Event: ev, Source: rec.Key()})
		}
	}

	for _, pixelID := range pixelOrder {
		plan.Batches = append(plan.Batches, p.Pack(pixelID, byPixel[pixelID])...)
	}

	return plan
}

// Pack greedily splits events for one pixel into batches of at most maxEvents,
// preserving order. A record's events may straddle two consecutive batches.
func (p *Planner) Pack(pixelID string, events []SourcedEvent) []Batch {
	var batches []Batch
	current := newBatch(pixelID)
	seen := make(map[domain.Key]struct{})

	for _, se := range events {
		if len(current.Events)+1 > p.maxEvents {
			batches = append(batches, current)
			current = newBatch(pixelID)
			seen = make(map[domain.Key]struct{})
		}

		current.Events = append(current.Events, se.Event)
		if _, ok := seen[se.Source]; !ok {
			seen[se.Source] = struct{}{}
			current.Sources = append(current.Sources, se.Source)
		}
	}

	if len(current.Events) > 0 {
		batches = append(batches, current)
	}

	return batches
}

func newBatch(pixelID string) Batch {
	return Batch{PixelID: pixelID}
}
