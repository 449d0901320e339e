package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"idwallet/internal/ledger"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/httputil"
	"idwallet/pkg/platform/middleware/request"
)

const (
	defaultEntriesLimit = 100
	maxEntriesLimit     = 1000
)

type chainReportResponse struct {
	Valid    bool    `json:"valid"`
	Entries  uint64  `json:"entries"`
	BrokenAt *uint64 `json:"broken_at,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

type entryResponse struct {
	Sequence     uint64            `json:"sequence"`
	PreviousHash string            `json:"previous_hash"`
	EntryHash    string            `json:"entry_hash"`
	EventType    string            `json:"event_type"`
	Status       string            `json:"status"`
	Payload      map[string]string `json:"payload"`
	Timestamp    string            `json:"timestamp"`
}

type entriesResponse struct {
	Entries []entryResponse `json:"entries"`
	Count   int             `json:"count"`
}

// handleVerify recomputes the chain. A broken chain answers 503 so probes
// and scrapers treat it as an outage.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.ledger.VerifyLedger(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "ledger verification failed",
			"error", err,
			"request_id", request.RequestIDFrom(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if !report.Valid {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, chainReportResponse{
		Valid:    report.Valid,
		Entries:  report.Entries,
		BrokenAt: report.BrokenAt,
		Reason:   report.Reason,
	})
}

// handleEntries lists entries in ascending order, optionally filtered by
// event_type and status query parameters.
func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := parseEntriesQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := entriesResponse{Entries: make([]entryResponse, 0)}
	for e := range h.ledger.ListLedgerEntries(r.Context(), filter) {
		out.Entries = append(out.Entries, entryResponse{
			Sequence:     e.Sequence,
			PreviousHash: e.PreviousHash.String(),
			EntryHash:    e.EntryHash.String(),
			EventType:    string(e.EventType),
			Status:       string(e.Status()),
			Payload:      e.Payload,
			Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
		})
		if len(out.Entries) == limit {
			break
		}
	}
	out.Count = len(out.Entries)
	httputil.WriteJSON(w, http.StatusOK, out)
}

func parseEntriesQuery(r *http.Request) (ledger.Filter, int, error) {
	q := r.URL.Query()
	var filter ledger.Filter

	if raw := q.Get("event_type"); raw != "" {
		eventType := ledger.EventType(raw)
		if !eventType.IsValid() {
			return filter, 0, dErrors.New(dErrors.CodeInvalidInput, "unknown event_type "+raw)
		}
		filter.EventType = &eventType
	}
	if raw := q.Get("status"); raw != "" {
		status := ledger.Status(raw)
		if !status.IsValid() {
			return filter, 0, dErrors.New(dErrors.CodeInvalidInput, "status must be success or failed")
		}
		filter.Status = &status
	}

	limit := defaultEntriesLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEntriesLimit {
			return filter, 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and "+strconv.Itoa(maxEntriesLimit))
		}
		limit = n
	}
	return filter, limit, nil
}
