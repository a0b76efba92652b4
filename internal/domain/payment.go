package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one normalized bank transaction belonging to a tenant.
// (CompanyID, ExternalID) is unique: re-ingesting the same bank transaction
// is a no-op. IsTarget is derived from SenderAccount once at ingestion and
// stored, so historical classification stays stable even if the pattern
// table changes later. ReceiptIssued and ReceiptID are flipped only by the
// issuance workflow, atomically with the receipt insert.
type Payment struct {
	ID        int64 `json:"id"`
	CompanyID int64 `json:"company_id"`

	ExternalID     string          `json:"external_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	SenderAccount  string          `json:"sender_account"`
	SenderName     string          `json:"sender_name,omitempty"`
	SenderTaxID    string          `json:"sender_tax_id,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	PaidAt         time.Time       `json:"paid_at"`

	IsTarget      bool   `json:"is_target"`
	ReceiptIssued bool   `json:"receipt_issued"`
	ReceiptID     *int64 `json:"receipt_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields the pipeline must have filled before persisting.
func (p *Payment) Validate() error {
	if p.CompanyID == 0 {
		return fmt.Errorf("payment: company id is required")
	}
	if p.ExternalID == "" {
		return fmt.Errorf("payment: external id is required")
	}
	if p.Currency == "" {
		return fmt.Errorf("payment: currency is required")
	}
	if p.PaidAt.IsZero() {
		return fmt.Errorf("payment: paid_at is required")
	}
	return nil
}

// IngestError records one raw transaction the pipeline could not normalize
// or persist. The batch keeps going; the record is accounted for here.
type IngestError struct {
	ExternalID string `json:"external_id,omitempty"`
	Reason     string `json:"reason"`
}

// IngestSummary is the result of one ingestion run. Every fetched
// transaction lands in exactly one of Created, Duplicates or Errors.
type IngestSummary struct {
	CompanyID  int64         `json:"company_id"`
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	Fetched    int           `json:"fetched"`
	Created    int           `json:"created"`
	Duplicates int           `json:"duplicates"`
	Errors     []IngestError `json:"errors,omitempty"`
}
