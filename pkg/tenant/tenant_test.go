package tenant_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// fakeStore is a minimal in-memory tenant.Store used across this package's
// tests. It tracks call counts so tests can assert on cache hit/miss
// behavior.
type fakeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*tenant.Record
	err     error
	calls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[uuid.UUID]*tenant.Record)}
}

func (s *fakeStore) add(rec *tenant.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.GUID] = rec
}

func (s *fakeStore) GetByGUID(_ context.Context, guid uuid.UUID) (*tenant.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	rec, ok := s.records[guid]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) Create(_ context.Context, rec *tenant.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.GUID] = rec
	return nil
}

func (s *fakeStore) Update(_ context.Context, rec *tenant.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.GUID] = rec
	return nil
}

func (s *fakeStore) Delete(_ context.Context, guid uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, guid)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]*tenant.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tenant.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestRecord(enabled bool) *tenant.Record {
	now := time.Now()
	return &tenant.Record{
		GUID:        uuid.New(),
		InternalID:  "acme",
		Code:        "acme",
		DisplayName: "ACME Corp",
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
