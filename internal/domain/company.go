package domain

import "time"

// Company is a tenant. Credential fields hold vault ciphertext; the CRUD
// surface that writes them lives outside this service, we only read and
// decrypt them immediately before the external call that needs them.
type Company struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TaxID     string `json:"tax_id"`

	// Bank integration
	MerchantID   string `json:"merchant_id,omitempty"`
	BankTokenEnc string `json:"-"`

	// Fiscal integration
	FiscalLicenseEnc   string `json:"-"`
	FiscalCashierLogin string `json:"fiscal_cashier_login,omitempty"`
	FiscalPINEnc       string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBankCredentials reports whether ingestion can run for this tenant.
func (c *Company) HasBankCredentials() bool {
	return c.MerchantID != "" && c.BankTokenEnc != ""
}

// HasFiscalCredentials reports whether issuance can run for this tenant.
func (c *Company) HasFiscalCredentials() bool {
	return c.FiscalLicenseEnc != "" && c.FiscalCashierLogin != "" && c.FiscalPINEnc != ""
}
