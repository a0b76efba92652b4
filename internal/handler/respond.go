package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fiscal-service/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps usecase sentinel errors onto HTTP statuses. The wrapped
// message carries only our own summaries, never raw upstream bodies.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		return "payment_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrCompanyNotFound):
		return "company_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyIssued):
		return "already_issued", http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceConflict):
		return "conflict", http.StatusConflict
	case errors.Is(err, domain.ErrNotTarget):
		return "not_target", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCredentialsMissing):
		return "credentials_missing", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDecryption):
		return "decryption_failed", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamRejected):
		return "upstream_rejected", http.StatusBadGateway
	case errors.Is(err, domain.ErrFiscalSubmission):
		return "fiscal_submission_failed", http.StatusBadGateway
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable", http.StatusServiceUnavailable
	default:
		return "internal_error", http.StatusInternalServerError
	}
}
