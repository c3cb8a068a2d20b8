package reporter

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/BarkinBalci/conversion-reporting-service/internal/capi"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

type MockObjectReader struct {
	mock.Mock
}

func (m *MockObjectReader) ReadConversions(ctx context.Context, bucket, key string) ([]domain.ConversionRecord, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversionRecord), args.Error(1)
}

type MockSubscriptionSource struct {
	mock.Mock
}

func (m *MockSubscriptionSource) ListSubscribedCampaignIDs(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

type MockPixelSource struct {
	mock.Mock
}

func (m *MockPixelSource) ListActivePixelIDs(ctx context.Context, trafficSource string) (map[string]struct{}, error) {
	args := m.Called(ctx, trafficSource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) GetToken(ctx context.Context, pixelID string) (string, error) {
	args := m.Called(ctx, pixelID)
	return args.String(0), args.Error(1)
}

type MockEventSender struct {
	mock.Mock
}

func (m *MockEventSender) SendEvents(ctx context.Context, pixelID, token string, events []capi.Event) error {
	args := m.Called(ctx, pixelID, token, events)
	return args.Error(0)
}

// memoryStore is an in-memory ConversionStore keyed like the real stores
type memoryStore struct {
	mu        sync.Mutex
	records   map[domain.Key]domain.ConversionRecord
	upserts   int
	upsertErr error
	findErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[domain.Key]domain.ConversionRecord)}
}

func (s *memoryStore) FindByKey(ctx context.Context, key domain.Key) (*domain.ConversionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memoryStore) Upsert(ctx context.Context, records []domain.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	for _, rec := range records {
		s.records[rec.Key()] = rec
	}
	return nil
}

func (s *memoryStore) get(key domain.Key) (domain.ConversionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
