package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fiscal-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantKind   string
		wantStatus int
	}{
		{domain.ErrPaymentNotFound, "payment_not_found", http.StatusNotFound},
		{domain.ErrCompanyNotFound, "company_not_found", http.StatusNotFound},
		{domain.ErrAlreadyIssued, "already_issued", http.StatusConflict},
		{domain.ErrPersistenceConflict, "conflict", http.StatusConflict},
		{domain.ErrNotTarget, "not_target", http.StatusUnprocessableEntity},
		{domain.ErrCredentialsMissing, "credentials_missing", http.StatusUnprocessableEntity},
		{domain.ErrDecryption, "decryption_failed", http.StatusUnprocessableEntity},
		{domain.ErrUpstreamRejected, "upstream_rejected", http.StatusBadGateway},
		{domain.ErrFiscalSubmission, "fiscal_submission_failed", http.StatusBadGateway},
		{domain.ErrUpstreamUnavailable, "upstream_unavailable", http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), "internal_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			// Wrapped errors classify the same as bare ones.
			kind, status := classify(fmt.Errorf("payment 7: %w", tt.err))
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.March, from.Month())
	assert.True(t, to.After(from))

	_, _, err = parseRange("", "2026-03-31")
	assert.Error(t, err)
	_, _, err = parseRange("01-03-2026", "2026-03-31")
	assert.Error(t, err)
	_, _, err = parseRange("2026-03-31", "2026-03-01")
	assert.Error(t, err)

	// Single-day range is inclusive and valid.
	_, _, err = parseRange("2026-03-01", "2026-03-01")
	assert.NoError(t, err)
}

type stubIngester struct {
	summary *domain.IngestSummary
	err     error
}

func (s *stubIngester) Ingest(ctx context.Context, companyID int64, from, to time.Time) (*domain.IngestSummary, error) {
	return s.summary, s.err
}

func ingestRouter(ing Ingester) *chi.Mux {
	h := NewIngestHandler(ing, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/companies/{company_id}/ingest", h.HandleIngest)
	return r
}

func postIngest(r http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/companies/1/ingest", strings.NewReader(body))
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleIngest(t *testing.T) {
	r := ingestRouter(&stubIngester{
		summary: &domain.IngestSummary{CompanyID: 1, Fetched: 2, Created: 2},
	})

	rec := postIngest(r, `{"from":"2026-03-01","to":"2026-03-31"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":2`)
}

// A cancelled run returns its partial summary alongside the error so
// already-persisted payments are still accounted for.
func TestHandleIngestPartialSummaryOnError(t *testing.T) {
	r := ingestRouter(&stubIngester{
		summary: &domain.IngestSummary{CompanyID: 1, Fetched: 5, Created: 3},
		err:     context.Canceled,
	})

	rec := postIngest(r, `{"from":"2026-03-01","to":"2026-03-31"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.Contains(t, rec.Body.String(), `"fetched":5`)
	assert.Contains(t, rec.Body.String(), `"created":3`)
}

func TestHandleIngestWithoutSummaryOnError(t *testing.T) {
	r := ingestRouter(&stubIngester{err: domain.ErrUpstreamUnavailable})

	rec := postIngest(r, `{"from":"2026-03-01","to":"2026-03-31"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_unavailable")
	assert.NotContains(t, rec.Body.String(), "summary")
}

type stubPaymentRepo struct {
	payment *domain.Payment
}

func (s *stubPaymentRepo) Create(ctx context.Context, p *domain.Payment) error { return nil }

func (s *stubPaymentRepo) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	if s.payment == nil || s.payment.ID != id {
		return nil, fmt.Errorf("payment %d: %w", id, domain.ErrPaymentNotFound)
	}
	return s.payment, nil
}

func (s *stubPaymentRepo) GetByExternalID(ctx context.Context, companyID int64, externalID string) (*domain.Payment, error) {
	return nil, domain.ErrPaymentNotFound
}

func (s *stubPaymentRepo) ListByCompany(ctx context.Context, companyID int64, limit int) ([]*domain.Payment, error) {
	return nil, nil
}

func TestHandleGetPayment(t *testing.T) {
	repo := &stubPaymentRepo{payment: &domain.Payment{
		ID:       7,
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "UAH",
		IsTarget: true,
	}}
	h := NewReceiptHandler(nil, repo, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/payments/{payment_id}", h.HandleGetPayment)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_target":true`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/8", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_not_found")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
