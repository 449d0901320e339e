package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idwallet/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "credential not found"), http.StatusNotFound, "not_found"},
		{"already decided", dErrors.New(dErrors.CodeAlreadyDecided, "decided"), http.StatusConflict, "already_decided"},
		{"expired", dErrors.New(dErrors.CodeExpired, ""), http.StatusGone, "expired"},
		{"locked", dErrors.New(dErrors.CodeLocked, "try later"), http.StatusTooManyRequests, "locked"},
		{"corrupted", dErrors.New(dErrors.CodeChainCorrupted, "broken"), http.StatusServiceUnavailable, "chain_corrupted"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestWriteErrorOmitsEmptyDescription(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &dErrors.Error{Code: dErrors.CodeTimeout})

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, ok := body["error_description"]
	assert.False(t, ok)
}
