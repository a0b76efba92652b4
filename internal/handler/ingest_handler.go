package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fiscal-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Ingester runs one ingestion for a tenant over an inclusive date range.
type Ingester interface {
	Ingest(ctx context.Context, companyID int64, from, to time.Time) (*domain.IngestSummary, error)
}

type IngestHandler struct {
	ingestUC Ingester
	logger   *zap.Logger
}

func NewIngestHandler(ingestUC Ingester, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingestUC: ingestUC, logger: logger}
}

type ingestRequest struct {
	From string `json:"from"` // YYYY-MM-DD, inclusive
	To   string `json:"to"`   // YYYY-MM-DD, inclusive
}

// HandleIngest triggers one ingestion run for a tenant.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(chi.URLParam(r, "company_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid company id"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid request body"})
		return
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	summary, err := h.ingestUC.Ingest(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("ingestion failed",
			zap.Int64("company_id", companyID),
			zap.Error(err))
		// A cancelled run may still have persisted payments; the partial
		// summary accounts for them and rides along with the error.
		if summary != nil {
			kind, status := classify(err)
			writeJSON(w, status, ingestErrorResponse{
				Error:   kind,
				Message: err.Error(),
				Summary: summary,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type ingestErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Summary *domain.IngestSummary `json:"summary"`
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to dates are required")
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", fromStr)
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", toStr)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date precedes from date")
	}
	return from, to, nil
}
