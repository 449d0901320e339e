package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	id "idwallet/pkg/domain"
	"idwallet/pkg/platform/sentinel"
)

// InMemoryStore keeps documents in memory. A document number may appear only
// once per document type.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*Document
	numbers   map[string]id.DocumentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		documents: make(map[id.DocumentID]*Document),
		numbers:   make(map[string]id.DocumentID),
	}
}

func numberKey(t DocumentType, number string) string {
	return string(t) + ":" + strings.ToUpper(strings.TrimSpace(number))
}

func (s *InMemoryStore) Save(_ context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrAlreadyExists)
	}
	key := numberKey(doc.Type, doc.Number)
	if _, ok := s.numbers[key]; ok {
		return fmt.Errorf("document number already stored: %w", sentinel.ErrAlreadyExists)
	}
	stored := *doc
	s.documents[doc.ID] = &stored
	s.numbers[key] = doc.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, docID id.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	out := *doc
	return &out, nil
}

// List returns every document ordered by when it was added.
func (s *InMemoryStore) List(_ context.Context) ([]*Document, error) {
	s.mu.RLock()
	out := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		d := *doc
		out = append(out, &d)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Document) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}
