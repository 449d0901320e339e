// Package identity keeps the identity documents a holder has added to the
// wallet. Documents are reference data: they carry no lifecycle of their own
// and are never written to the ledger.
package identity

import (
	"time"

	"idwallet/internal/platform/privacy"
	id "idwallet/pkg/domain"
)

// DocumentType is the kind of identity document.
type DocumentType string

const (
	DocumentFayda         DocumentType = "fayda"
	DocumentDriverLicense DocumentType = "driver"
	DocumentPassport      DocumentType = "passport"
	DocumentOther         DocumentType = "other"
)

// IsValid checks if the document type is one of the supported values.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentFayda, DocumentDriverLicense, DocumentPassport, DocumentOther:
		return true
	}
	return false
}

// Label returns the human-readable document name.
func (t DocumentType) Label() string {
	switch t {
	case DocumentFayda:
		return "Ethiopian Fayda ID"
	case DocumentDriverLicense:
		return "Driver License"
	case DocumentPassport:
		return "Ethiopian Passport"
	default:
		return "Identity Document"
	}
}

// DateLayout is the calendar-date format used for document dates.
const DateLayout = "2006-01-02"

// Document is an identity document stored in the wallet.
type Document struct {
	ID         id.DocumentID
	Type       DocumentType
	HolderName string
	Number     string
	IssuedOn   time.Time
	ExpiresOn  time.Time
	AddedAt    time.Time
}

// IsExpiredAt reports whether the document has lapsed by now. A document is
// valid through the whole of its expiry day.
func (d *Document) IsExpiredAt(now time.Time) bool {
	return !now.Before(d.ExpiresOn.AddDate(0, 0, 1))
}

// MaskedNumber returns the document number with all but the last four
// characters hidden, for display while the wallet is locked.
func (d *Document) MaskedNumber() string {
	return privacy.MaskIdentifier(d.Number)
}

// AddDocumentRequest is the holder's input when adding a document.
type AddDocumentRequest struct {
	Type       DocumentType `validate:"required,oneof=fayda driver passport other"`
	HolderName string       `validate:"required,notblank"`
	Number     string       `validate:"required,notblank"`
	IssuedOn   string       `validate:"required,datetime=2006-01-02"`
	ExpiresOn  string       `validate:"required,datetime=2006-01-02"`
}
