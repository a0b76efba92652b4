package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt statuses as stored. A receipt row exists only after the fiscal
// API accepted the submission, so DONE is the normal state.
const (
	ReceiptStatusDone    = "done"
	ReceiptStatusPending = "pending"
)

// Receipt is one fiscally registered receipt. Created exactly once per
// payment by the issuance workflow and immutable afterwards; payment_id
// carries a unique index which is the backstop against double issuance.
type Receipt struct {
	ID        int64 `json:"id"`
	CompanyID int64 `json:"company_id"`
	PaymentID int64 `json:"payment_id"`

	// ExternalID is the fiscal system's receipt identifier; LocalCode is
	// our own reference placed on the receipt header.
	ExternalID string `json:"external_id"`
	LocalCode  string `json:"local_code,omitempty"`
	FiscalCode string `json:"fiscal_code,omitempty"`

	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
	ViewURL  string          `json:"view_url,omitempty"`
	PDFURL   string          `json:"pdf_url,omitempty"`
	IssuedAt time.Time       `json:"issued_at"`

	CreatedAt time.Time `json:"created_at"`
}
