package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
)

func TestNewRequest(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	reqID := id.NewConsentRequestID()

	t.Run("valid request is pending", func(t *testing.T) {
		fields := []string{"full_name", "id_number"}
		r, err := NewRequest(reqID, "cbe", "Commercial Bank of Ethiopia", "Account Opening Verification", fields, now, now.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, StatusPending, r.Status)
		assert.Nil(t, r.DecidedAt)

		fields[0] = "changed"
		assert.Equal(t, "full_name", r.RequestedFields[0], "fields are copied")
	})

	t.Run("invariants", func(t *testing.T) {
		cases := map[string]func() error{
			"missing id": func() error {
				_, err := NewRequest("", "cbe", "", "p", []string{"f"}, now, now.Add(time.Minute))
				return err
			},
			"missing requester": func() error {
				_, err := NewRequest(reqID, " ", "", "p", []string{"f"}, now, now.Add(time.Minute))
				return err
			},
			"no fields": func() error {
				_, err := NewRequest(reqID, "cbe", "", "p", nil, now, now.Add(time.Minute))
				return err
			},
			"expiry not after creation": func() error {
				_, err := NewRequest(reqID, "cbe", "", "p", []string{"f"}, now, now)
				return err
			},
		}
		for name, fn := range cases {
			t.Run(name, func(t *testing.T) {
				assert.True(t, dErrors.HasCode(fn(), dErrors.CodeInvariantViolation))
			})
		}
	})
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r := &Request{Status: StatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	assert.False(t, r.IsExpiredAt(r.ExpiresAt))
	assert.True(t, r.IsExpiredAt(r.ExpiresAt.Add(time.Nanosecond)))

	r.Status = StatusApproved
	assert.False(t, r.IsExpiredAt(r.ExpiresAt.Add(time.Hour)), "decided requests never expire")
}

func TestDecisionAndFilter(t *testing.T) {
	assert.Equal(t, StatusApproved, Approve.Status())
	assert.Equal(t, StatusDenied, Deny.Status())
	assert.True(t, StatusExpired.IsDecided())
	assert.False(t, StatusPending.IsDecided())

	pending := StatusPending
	r := &Request{Status: StatusPending, RequesterID: "cbe"}
	assert.True(t, Filter{}.Matches(r))
	assert.True(t, Filter{Status: &pending, RequesterID: "cbe"}.Matches(r))
	assert.False(t, Filter{RequesterID: "ethio-telecom"}.Matches(r))
	r.Status = StatusDenied
	assert.False(t, Filter{Status: &pending}.Matches(r))
}

func TestClone(t *testing.T) {
	decided := time.Now()
	r := &Request{RequestedFields: []string{"a"}, DecidedAt: &decided}
	c := r.Clone()
	c.RequestedFields[0] = "b"
	*c.DecidedAt = decided.Add(time.Hour)
	assert.Equal(t, "a", r.RequestedFields[0])
	assert.Equal(t, decided, *r.DecidedAt)
}
