package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"idwallet/internal/ledger"
	"idwallet/internal/platform/health"
	"idwallet/internal/wallet"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/platform/middleware/request"
)

// ledgerReader adapts a real ledger to LedgerReader and lets tests force a
// corruption report.
type ledgerReader struct {
	ledger *ledger.Ledger
	broken *uint64
}

func (l *ledgerReader) VerifyLedger(ctx context.Context) (wallet.ChainReport, error) {
	if l.broken != nil {
		return wallet.ChainReport{Valid: false, Entries: l.ledger.Len(), BrokenAt: l.broken, Reason: "sequence gap"}, nil
	}
	if err := l.ledger.VerifyChain(ctx); err != nil {
		return wallet.ChainReport{}, err
	}
	return wallet.ChainReport{Valid: true, Entries: l.ledger.Len()}, nil
}

func (l *ledgerReader) ListLedgerEntries(ctx context.Context, filter ledger.Filter) iter.Seq[ledger.Entry] {
	return l.ledger.Entries(ctx, filter)
}

type RouterSuite struct {
	suite.Suite
	reader *ledgerReader
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	c := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	l, err := ledger.New(ledger.NewInMemoryStore(), ledger.WithClock(c))
	s.Require().NoError(err)

	_, err = l.Append(ctx, ledger.EventCredentialIssued, ledger.Payload{ledger.KeyCredentialID: "vc_1"})
	s.Require().NoError(err)
	_, err = l.Append(ctx, ledger.EventCredentialRejected, ledger.Payload{ledger.KeyReason: "hash_mismatch"})
	s.Require().NoError(err)
	_, err = l.Append(ctx, ledger.EventAuthSucceeded, ledger.Payload{ledger.KeyAuthMethod: "pin"})
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	s.reader = &ledgerReader{ledger: l}
	s.router = NewRouter(RouterConfig{
		Handler:  NewHandler(s.reader, logger),
		Health:   health.New("test"),
		Gatherer: reg,
		Metrics:  request.NewMetrics(reg),
		Logger:   logger,
	})
}

func (s *RouterSuite) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.get("/health/live")
	rec := s.get("/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "wallet_ops_endpoint_latency_seconds")
}

func (s *RouterSuite) TestHealthRoutesMounted() {
	s.Equal(http.StatusOK, s.get("/health/ready").Code)
	s.NotEmpty(s.get("/health").Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestVerify() {
	s.Run("valid chain", func() {
		rec := s.get("/ledger/verify")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"valid":true,"entries":3}`, rec.Body.String())
	})

	s.Run("broken chain is unavailable", func() {
		at := uint64(1)
		s.reader.broken = &at
		defer func() { s.reader.broken = nil }()

		rec := s.get("/ledger/verify")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.JSONEq(`{"valid":false,"entries":3,"broken_at":1,"reason":"sequence gap"}`, rec.Body.String())
	})
}

func (s *RouterSuite) TestEntries() {
	s.Run("lists all in order", func() {
		rec := s.get("/ledger/entries")
		s.Require().Equal(http.StatusOK, rec.Code)

		var body entriesResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Equal(3, body.Count)
		s.Equal(uint64(0), body.Entries[0].Sequence)
		s.Equal(body.Entries[0].EntryHash, body.Entries[1].PreviousHash)
		s.Contains(body.Entries[0].PreviousHash, "sha256:")
	})

	s.Run("filters by status", func() {
		var body entriesResponse
		rec := s.get("/ledger/entries?status=failed")
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Equal(1, body.Count)
		s.Equal("credential_rejected", body.Entries[0].EventType)
		s.Equal("hash_mismatch", body.Entries[0].Payload["reason"])
	})

	s.Run("filters by event type with limit", func() {
		var body entriesResponse
		rec := s.get("/ledger/entries?event_type=auth_succeeded&limit=1")
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Equal(1, body.Count)
		s.Equal("success", body.Entries[0].Status)
	})

	s.Run("rejects bad query", func() {
		s.Equal(http.StatusBadRequest, s.get("/ledger/entries?event_type=nope").Code)
		s.Equal(http.StatusBadRequest, s.get("/ledger/entries?status=maybe").Code)
		s.Equal(http.StatusBadRequest, s.get("/ledger/entries?limit=0").Code)
	})
}
