package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"idwallet/internal/credential/models"
	id "idwallet/pkg/domain"
	"idwallet/pkg/platform/sentinel"
)

// Error Contract:
// - Return sentinel.ErrNotFound when the requested credential does not exist
// - Return sentinel.ErrAlreadyExists when saving a duplicate id
// - Return sentinel.ErrInvalidState when a compare-and-set transition loses
// Services translate these into domain errors; the store never does.

// InMemoryStore owns every credential record. Records are never deleted;
// terminal credentials stay queryable so late validations are rejected with
// the right reason.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
	active      map[id.SubjectID]id.CredentialID
}

// New constructs an empty in-memory credential store.
func New() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[id.CredentialID]*models.Credential),
		active:      make(map[id.SubjectID]id.CredentialID),
	}
}

// Save inserts a new credential.
func (s *InMemoryStore) Save(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(credential)
}

func (s *InMemoryStore) insertLocked(credential *models.Credential) error {
	if _, exists := s.credentials[credential.ID]; exists {
		return fmt.Errorf("credential %s: %w", credential.ID, sentinel.ErrAlreadyExists)
	}
	if credential.Status == models.StatusActive {
		if current, ok := s.active[credential.SubjectID]; ok {
			return fmt.Errorf("subject already holds active credential %s: %w", current, sentinel.ErrConflict)
		}
		s.active[credential.SubjectID] = credential.ID
	}
	copyRecord := *credential
	s.credentials[credential.ID] = &copyRecord
	return nil
}

// FindByID returns a copy of the credential with the given id.
func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *record
	return &copyRecord, nil
}

// FindActiveBySubject returns the subject's active credential. The record may
// be past its expiry; lazy expiry is the caller's job.
func (s *InMemoryStore) FindActiveBySubject(_ context.Context, subjectID id.SubjectID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credentialID, ok := s.active[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *s.credentials[credentialID]
	return &copyRecord, nil
}

// ListBySubject returns every credential ever issued to the subject, oldest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, record := range s.credentials {
		if record.SubjectID != subjectID {
			continue
		}
		copyRecord := *record
		out = append(out, &copyRecord)
	}
	slices.SortFunc(out, func(a, b *models.Credential) int {
		return a.IssuedAt.Compare(b.IssuedAt)
	})
	return out, nil
}

// Transition moves a credential from one status to another only if its
// current status equals from. Exactly one of any number of concurrent
// callers racing on the same transition succeeds; the rest get
// sentinel.ErrInvalidState.
func (s *InMemoryStore) Transition(_ context.Context, credentialID id.CredentialID, from, to models.Status, at time.Time) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if record.Status != from {
		return nil, fmt.Errorf("credential %s is %s, not %s: %w", credentialID, record.Status, from, sentinel.ErrInvalidState)
	}
	s.setStatusLocked(record, to, at)
	copyRecord := *record
	return &copyRecord, nil
}

// Rotate stores next as the subject's active credential and retires the
// previous active one in the same critical section, so a subject never
// holds two active credentials. The previous credential becomes expired if
// its validity had already lapsed at at, revoked otherwise. It returns the
// retired credential, or nil when the subject had none.
func (s *InMemoryStore) Rotate(_ context.Context, next *models.Credential, at time.Time) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[next.ID]; exists {
		return nil, fmt.Errorf("credential %s: %w", next.ID, sentinel.ErrAlreadyExists)
	}

	var retired *models.Credential
	if previousID, ok := s.active[next.SubjectID]; ok {
		previous := s.credentials[previousID]
		to := models.StatusRevoked
		if previous.IsExpiredAt(at) {
			to = models.StatusExpired
		}
		s.setStatusLocked(previous, to, at)
		copyRecord := *previous
		retired = &copyRecord
	}
	if err := s.insertLocked(next); err != nil {
		return nil, err
	}
	return retired, nil
}

func (s *InMemoryStore) setStatusLocked(record *models.Credential, to models.Status, at time.Time) {
	record.Status = to
	record.StatusChangedAt = at
	if to != models.StatusActive && s.active[record.SubjectID] == record.ID {
		delete(s.active, record.SubjectID)
	}
}
