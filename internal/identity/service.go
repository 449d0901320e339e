package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/platform/sentinel"
	limits "idwallet/pkg/platform/validation"
	"idwallet/pkg/validation"
)

// Store persists documents.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*Document, error)
	List(ctx context.Context) ([]*Document, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

type Service struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	svc := &Service{
		store:  store,
		clock:  clock.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Add validates and stores a document. The expiry date must fall after the
// issue date.
func (s *Service) Add(ctx context.Context, req AddDocumentRequest) (*Document, error) {
	req.HolderName = strings.TrimSpace(req.HolderName)
	req.Number = strings.TrimSpace(req.Number)
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	if err := limits.CheckStringLength("holder_name", req.HolderName, limits.MaxHolderNameLength); err != nil {
		return nil, err
	}
	if err := limits.CheckStringLength("number", req.Number, limits.MaxDocumentNumberLength); err != nil {
		return nil, err
	}
	issuedOn, err := time.Parse(DateLayout, req.IssuedOn)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "issued_on must be a date")
	}
	expiresOn, err := time.Parse(DateLayout, req.ExpiresOn)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "expires_on must be a date")
	}
	if !expiresOn.After(issuedOn) {
		return nil, dErrors.New(dErrors.CodeValidation, "expires_on must be after issued_on")
	}

	doc := &Document{
		ID:         id.NewDocumentID(),
		Type:       req.Type,
		HolderName: req.HolderName,
		Number:     req.Number,
		IssuedOn:   issuedOn,
		ExpiresOn:  expiresOn,
		AddedAt:    s.clock.Now(),
	}
	if err := s.store.Save(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "document already in wallet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
	}

	s.logger.InfoContext(ctx, "document added",
		"document_id", doc.ID.String(),
		"document_type", string(doc.Type),
		"document_number", doc.MaskedNumber(),
	)
	if doc.IsExpiredAt(s.clock.Now()) {
		s.logger.WarnContext(ctx, "added document is already expired",
			"document_id", doc.ID.String(),
			"expires_on", doc.ExpiresOn.Format(DateLayout),
		)
	}
	return doc, nil
}

func (s *Service) Get(ctx context.Context, docID id.DocumentID) (*Document, error) {
	doc, err := s.store.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context) ([]*Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}
