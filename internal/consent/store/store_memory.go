package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"idwallet/internal/consent/models"
	id "idwallet/pkg/domain"
	"idwallet/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrAlreadyExists when saving a duplicate id
// - Return ErrInvalidState when a compare-and-set transition finds another status
// - Return nil for successful operations

// InMemoryStore stores consent requests in memory. Records are never deleted.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.ConsentRequestID]*models.Request
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.ConsentRequestID]*models.Request)}
}

func (s *InMemoryStore) Save(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return fmt.Errorf("consent request %s: %w", request.ID, sentinel.ErrAlreadyExists)
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.ConsentRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

// List returns copies of matching requests ordered by creation time.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, record := range s.requests {
		if !filter.Matches(record) {
			continue
		}
		out = append(out, record.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Request) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

// Transition moves a request from one status to another only if its current
// status equals from, stamping DecidedAt when it leaves pending.
func (s *InMemoryStore) Transition(_ context.Context, requestID id.ConsentRequestID, from, to models.Status, at time.Time) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if record.Status != from {
		return nil, fmt.Errorf("consent request %s is %s, not %s: %w", requestID, record.Status, from, sentinel.ErrInvalidState)
	}
	record.Status = to
	if to.IsDecided() {
		decidedAt := at
		record.DecidedAt = &decidedAt
	}
	return record.Clone(), nil
}

func compareIDs(a, b id.ConsentRequestID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
