package reporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/capi"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

const testNow = 1738417713 + 3600

func testClock() time.Time {
	return time.Unix(testNow, 0)
}

func newRecord(session, campaign, pixel string) domain.ConversionRecord {
	return domain.ConversionRecord{
		SessionID:      session,
		KeywordClicked: "best shoes",
		PixelID:        pixel,
		ClickTimestamp: domain.NewEpochSeconds(1738417713),
		TsClickID:      "click-" + session,
		CountryCode:    "US",
		Region:         "NewYork",
		City:           "New York",
		Conversions:    1,
		Revenue:        2,
		Network:        domain.NetworkTonic,
		CampaignID:     campaign,
	}
}

func reasonOf(rec domain.ConversionRecord) string {
	if rec.InvalidReason == nil {
		return ""
	}
	return *rec.InvalidReason
}

func TestSubscriptionFilter_KeepsSubscribedInOrder(t *testing.T) {
	source := new(MockSubscriptionSource)
	source.On("ListSubscribedCampaignIDs", mock.Anything).Return(set("c1", "c3"), nil)
	filter := NewSubscriptionFilter(source, zap.NewNop())

	records := []domain.ConversionRecord{newRecord("s1", "c1", "p"), newRecord("s2", "c2", "p"), newRecord("s3", "c3", "p")}
	kept, err := filter.Filter(context.Background(), records)

	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "s1", kept[0].SessionID)
	assert.Equal(t, "s3", kept[1].SessionID)
}

func TestSubscriptionFilter_EmptySetFiltersEverything(t *testing.T) {
	source := new(MockSubscriptionSource)
	source.On("ListSubscribedCampaignIDs", mock.Anything).Return(set(), nil)
	filter := NewSubscriptionFilter(source, zap.NewNop())

	kept, err := filter.Filter(context.Background(), []domain.ConversionRecord{newRecord("s1", "c1", "p")})

	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestSubscriptionFilter_SourceError(t *testing.T) {
	source := new(MockSubscriptionSource)
	source.On("ListSubscribedCampaignIDs", mock.Anything).Return(nil, errors.New("throttled"))
	filter := NewSubscriptionFilter(source, zap.NewNop())

	_, err := filter.Filter(context.Background(), []domain.ConversionRecord{newRecord("s1", "c1", "p")})

	assert.Error(t, err)
}

func TestDeduplicator_Exists(t *testing.T) {
	store := newMemoryStore()
	reported := newRecord("reported", "c", "p")
	reported.Valid, reported.Reported = true, 1
	invalid := newRecord("invalid", "c", "p")
	invalid.Invalidate(ReasonInvalidPixel)
	failed := newRecord("failed", "c", "p")
	failed.Valid, failed.Reported = true, 0
	require.NoError(t, store.Upsert(context.Background(), []domain.ConversionRecord{reported, invalid, failed}))

	dedup := NewDeduplicator(store, zap.NewNop())

	tests := []struct {
		key  domain.Key
		want bool
	}{
		{key: reported.Key(), want: true},
		{key: invalid.Key(), want: true},
		{key: failed.Key(), want: false},
		{key: domain.Key{SessionID: "unknown", KeywordClicked: "kw"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			got, err := dedup.Exists(context.Background(), tt.key)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeduplicator_FilterCollapsesRepeatsAndDropsProcessed(t *testing.T) {
	store := newMemoryStore()
	done := newRecord("done", "c", "p")
	done.Valid, done.Reported = true, 1
	require.NoError(t, store.Upsert(context.Background(), []domain.ConversionRecord{done}))
	dedup := NewDeduplicator(store, zap.NewNop())

	first := newRecord("s1", "c", "p")
	repeat := newRecord("s1", "c", "p")
	repeat.Revenue = 99

	kept, dropped, err := dedup.Filter(context.Background(), []domain.ConversionRecord{first, done, repeat, newRecord("s2", "c", "p")})

	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, "s1", kept[0].SessionID)
	assert.Equal(t, 2.0, kept[0].Revenue)
	assert.Equal(t, "s2", kept[1].SessionID)
}

func TestDeduplicator_StoreError(t *testing.T) {
	store := newMemoryStore()
	store.findErr = errors.New("connection refused")
	dedup := NewDeduplicator(store, zap.NewNop())

	_, _, err := dedup.Filter(context.Background(), []domain.ConversionRecord{newRecord("s1", "c", "p")})

	assert.ErrorIs(t, err, store.findErr)
}

func TestClassify_RulesInPriorityOrder(t *testing.T) {
	pixels := set("px")
	old := domain.NewEpochSeconds(testNow - 7*24*3600)

	tests := []struct {
		name   string
		mutate func(*domain.ConversionRecord)
		reason string
	}{
		{name: "valid", mutate: func(r *domain.ConversionRecord) {}},
		{name: "unknown pixel wins over everything", mutate: func(r *domain.ConversionRecord) {
			r.PixelID = "other"
			r.ClickTimestamp = old
			r.TsClickID = ""
		}, reason: ReasonInvalidPixel},
		{name: "exactly seven days is too old", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = old
		}, reason: ReasonTooOld},
		{name: "too old wins over missing click id", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = domain.NewEpochSeconds(testNow - 30*24*3600)
			r.TsClickID = ""
		}, reason: ReasonTooOld},
		{name: "non numeric timestamp fails freshness", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = domain.RawEpochSeconds(`"yesterday"`)
		}, reason: ReasonTooOld},
		{name: "fractional timestamp fails freshness", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = domain.RawEpochSeconds(`1738417713.5`)
		}, reason: ReasonTooOld},
		{name: "missing timestamp fails freshness", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = domain.EpochSeconds{}
		}, reason: ReasonTooOld},
		{name: "numeric string timestamp is fresh", mutate: func(r *domain.ConversionRecord) {
			r.ClickTimestamp = domain.RawEpochSeconds(`"1738417713"`)
		}},
		{name: "missing click id", mutate: func(r *domain.ConversionRecord) {
			r.TsClickID = ""
		}, reason: ReasonMissingClickID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord("s1", "c", "px")
			tt.mutate(&rec)

			got := classify(rec, pixels, testNow)

			assert.Equal(t, tt.reason == "", got.Valid)
			assert.Equal(t, tt.reason, reasonOf(got))
		})
	}
}

func TestClassifier_FetchesPixelsOnceAndSplits(t *testing.T) {
	pixels := new(MockPixelSource)
	pixels.On("ListActivePixelIDs", mock.Anything, "facebook").Return(set("px"), nil).Once()
	classifier := NewClassifier(pixels, "facebook", testClock, zap.NewNop())

	records := []domain.ConversionRecord{newRecord("s1", "c", "px"), newRecord("s2", "c", "nope"), newRecord("s3", "c", "px")}
	valid, invalid, err := classifier.Classify(context.Background(), records)

	require.NoError(t, err)
	assert.Len(t, valid, 2)
	require.Len(t, invalid, 1)
	assert.Equal(t, ReasonInvalidPixel, reasonOf(invalid[0]))
	assert.Nil(t, records[1].InvalidReason)
	pixels.AssertExpectations(t)
}

func TestReconcile_RecordFailsIfAnyCarryingBatchFails(t *testing.T) {
	a := newRecord("a", "c", "px")
	b := newRecord("b", "c", "px")
	c := newRecord("c", "c", "px")
	silent := newRecord("silent", "c", "px")

	results := []capi.BatchResult{
		{Batch: capi.Batch{PixelID: "px", Sources: []domain.Key{a.Key(), b.Key()}}},
		{Batch: capi.Batch{PixelID: "px", Sources: []domain.Key{b.Key(), c.Key()}}, Err: errors.New("boom")},
	}

	reported, failed := Reconcile([]domain.ConversionRecord{a, b, c, silent}, results)

	require.Len(t, reported, 2)
	assert.Equal(t, "a", reported[0].SessionID)
	assert.Equal(t, "silent", reported[1].SessionID)
	assert.Equal(t, 1, reported[0].Reported)
	require.Len(t, failed, 2)
	assert.Equal(t, "b", failed[0].SessionID)
	assert.Equal(t, "c", failed[1].SessionID)
	assert.Equal(t, 0, failed[0].Reported)
}
