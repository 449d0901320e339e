package ledger

import (
	"context"
	"fmt"
	"sync"

	"idwallet/pkg/platform/sentinel"
)

// Store persists ledger entries in sequence order. Implementations never
// update or delete an entry once appended.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	At(ctx context.Context, sequence uint64) (Entry, error)
	Len(ctx context.Context) (uint64, error)
}

// InMemoryStore keeps entries in a slice indexed by sequence.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores entry. The entry's sequence must equal the current length.
func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Sequence != uint64(len(s.entries)) {
		return fmt.Errorf("append sequence %d at length %d: %w", entry.Sequence, len(s.entries), sentinel.ErrConflict)
	}
	s.entries = append(s.entries, entry.clone())
	return nil
}

// At returns a copy of the entry with the given sequence.
func (s *InMemoryStore) At(_ context.Context, sequence uint64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sequence >= uint64(len(s.entries)) {
		return Entry{}, fmt.Errorf("entry %d: %w", sequence, sentinel.ErrNotFound)
	}
	return s.entries[sequence].clone(), nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}
