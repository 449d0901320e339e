// Package payload encodes a credential into the signed compact token shown
// in the wallet's QR code and decodes tokens presented back for validation.
package payload

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"idwallet/internal/credential/models"
	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
)

const minKeyLength = 32

// Claims is the token body. Expiry is informational: the validator enforces
// it against the credential store, not the token.
type Claims struct {
	PayloadHash string `json:"payload_hash"`
	jwt.RegisteredClaims
}

// Presentation is what a verifier recovers from a scanned token.
type Presentation struct {
	CredentialID id.CredentialID
	SubjectID    id.SubjectID
	PayloadHash  string
}

// Signer produces and verifies HS256 display payloads.
type Signer struct {
	signingKey []byte
	issuer     string
}

// NewSigner returns a signer for key, which must be at least 32 bytes.
func NewSigner(signingKey []byte, issuer string) (*Signer, error) {
	if len(signingKey) < minKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minKeyLength)
	}
	return &Signer{signingKey: signingKey, issuer: issuer}, nil
}

// Sign encodes the credential's id, subject and payload hash.
func (s *Signer) Sign(c *models.Credential) (string, error) {
	if c == nil || c.ID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PayloadHash: c.PayloadHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID.String(),
			Subject:   c.SubjectID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign display payload")
	}
	return signed, nil
}

// Parse verifies the token signature and returns its contents. Registered
// claims such as exp are not validated here.
func (s *Signer) Parse(tokenString string) (*Presentation, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unexpected signing algorithm")
		}
		return s.signingKey, nil
	},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid display payload signature")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "display payload parse failed")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid display payload signature")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unexpected display payload issuer")
	}

	credentialID, err := id.ParseCredentialID(claims.ID)
	if err != nil {
		return nil, err
	}
	return &Presentation{
		CredentialID: credentialID,
		SubjectID:    id.SubjectID(claims.Subject),
		PayloadHash:  claims.PayloadHash,
	}, nil
}
