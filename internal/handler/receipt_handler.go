package handler

import (
	"net/http"
	"strconv"

	"fiscal-service/internal/repository"
	"fiscal-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReceiptHandler struct {
	issueUC     *usecase.IssueUsecase
	paymentRepo repository.PaymentRepository
	logger      *zap.Logger
}

func NewReceiptHandler(issueUC *usecase.IssueUsecase, paymentRepo repository.PaymentRepository, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{issueUC: issueUC, paymentRepo: paymentRepo, logger: logger}
}

func paymentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "payment_id"), 10, 64)
	return id, err == nil
}

// HandleIssue issues a fiscal receipt for one payment.
func (h *ReceiptHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid payment id"})
		return
	}

	receipt, err := h.issueUC.Issue(r.Context(), id)
	if err != nil {
		h.logger.Warn("issuance failed",
			zap.Int64("payment_id", id),
			zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// HandleLookup returns the receipt already issued for a payment.
func (h *ReceiptHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid payment id"})
		return
	}

	receipt, err := h.issueUC.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// HandleGetPayment returns one payment with its issuance state.
func (h *ReceiptHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid payment id"})
		return
	}

	payment, err := h.paymentRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// HandleReconcile re-applies the issued flag for receipts orphaned by a
// crash between the receipt insert and the payment update.
func (h *ReceiptHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.issueUC.Reconcile(r.Context())
	if err != nil {
		h.logger.Error("reconciliation failed", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
}
