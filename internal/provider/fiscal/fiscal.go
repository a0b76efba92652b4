// Package fiscal is the client for the external fiscal-registration API.
package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fiscal-service/internal/domain"
)

// QuantityOne is one unit under the API's quantity scaling (1000 = 1.000).
const QuantityOne = 1000

// PaymentTypeCashless tags the single payment leg on every receipt we issue.
const PaymentTypeCashless = "CASHLESS"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Issuance sits in the ambiguous-timeout window (the remote side
		// may have registered the receipt); keep the timeout tight.
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Credentials authenticate one tenant's cashier for a single submission.
// Values are decrypted immediately before the call and not retained.
type Credentials struct {
	LicenseKey string
	Login      string
	PIN        string
}

type GoodItem struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"` // minor units
}

type Good struct {
	Good     GoodItem `json:"good"`
	Quantity int64    `json:"quantity"` // scaled, see QuantityOne
}

type PaymentLeg struct {
	Type  string `json:"type"`
	Value int64  `json:"value"` // minor units
}

type CreateReceiptRequest struct {
	CashierName string       `json:"cashier_name,omitempty"`
	Goods       []Good       `json:"goods"`
	Payments    []PaymentLeg `json:"payments"`
	Header      string       `json:"header,omitempty"`
	Footer      string       `json:"footer,omitempty"`
}

type CreateReceiptResponse struct {
	ID         string    `json:"id"`
	FiscalCode string    `json:"fiscal_code"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ReceiptURL string    `json:"receipt_url"`
	PDFURL     string    `json:"pdf_url"`
}

type signinResponse struct {
	AccessToken string `json:"access_token"`
}

// CreateReceipt signs the cashier in and submits one sell receipt. Any
// failure — including a timeout, whose outcome is ambiguous — surfaces as
// domain.ErrFiscalSubmission; the caller must not have mutated durable
// state before this returns.
func (c *Client) CreateReceipt(ctx context.Context, creds Credentials, req *CreateReceiptRequest) (*CreateReceiptResponse, error) {
	token, err := c.signin(ctx, creds)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/receipts/sell", map[string]string{
		"Authorization": "Bearer " + token,
		"X-License-Key": creds.LicenseKey,
	}, req)
	if err != nil {
		return nil, err
	}

	var out CreateReceiptResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse fiscal response", domain.ErrFiscalSubmission)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: fiscal response missing receipt id", domain.ErrFiscalSubmission)
	}
	return &out, nil
}

func (c *Client) signin(ctx context.Context, creds Credentials) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/cashier/signinPinCode", map[string]string{
		"X-License-Key": creds.LicenseKey,
	}, map[string]string{
		"login":    creds.Login,
		"pin_code": creds.PIN,
	})
	if err != nil {
		return "", err
	}

	var out signinResponse
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("%w: cashier signin did not return a token", domain.ErrFiscalSubmission)
	}
	return out.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network error or timeout: the remote side may or may not have
		// acted. Manual reconciliation required, never an automatic retry.
		return nil, fmt.Errorf("%w: fiscal request failed: %v", domain.ErrFiscalSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read fiscal response", domain.ErrFiscalSubmission)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: fiscal API returned %d: %s", domain.ErrFiscalSubmission, resp.StatusCode, summarize(body))
	}
	return body, nil
}

func summarize(body []byte) string {
	const maxLen = 200

	// Prefer the structured message when the API sends one.
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}

	s := string(body)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
