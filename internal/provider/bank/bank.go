// Package bank is the client for the bank's merchant transaction-listing API.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fiscal-service/internal/domain"
)

const dateFormat = "02-01-2006"

// maxPages bounds statement pagination so a misbehaving upstream that keeps
// announcing another page cannot spin the ingestion forever.
const maxPages = 100

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Transaction is one raw statement record as the bank returns it. Amounts
// arrive as decimal strings; normalization happens in the ingestion
// pipeline, not here.
type Transaction struct {
	ID             string `json:"ID"`
	Amount         string `json:"SUM"`
	Currency       string `json:"CCY"`
	Description    string `json:"OSND"`
	SenderName     string `json:"AUT_CNTR_NAM"`
	SenderAccount  string `json:"AUT_CNTR_ACC"`
	SenderTaxID    string `json:"AUT_CNTR_CRF"`
	DocumentNumber string `json:"NUM_DOC"`
	DateTime       string `json:"DAT_OD"` // DD-MM-YYYY
	Time           string `json:"TIM_P"`  // HH:MM, may be empty
}

type listResponse struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	Transactions []Transaction `json:"transactions"`
	ExistsNext   bool          `json:"exists_next_page"`
	NextPageID   string        `json:"next_page_id"`
}

// ListTransactions fetches the merchant's statement for the inclusive date
// range, following pagination. The bearer token is the tenant's decrypted
// bank token; it lives only for the duration of this call.
func (c *Client) ListTransactions(ctx context.Context, merchantID, token string, from, to time.Time) ([]Transaction, error) {
	var all []Transaction
	nextPage := ""

	for pages := 0; ; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("%w: bank pagination exceeded %d pages", domain.ErrUpstreamRejected, maxPages)
		}

		page, err := c.listPage(ctx, merchantID, token, from, to, nextPage)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Transactions...)
		// A next page id equal to the one just fetched would loop forever;
		// treat it as the end of the statement.
		if !page.ExistsNext || page.NextPageID == "" || page.NextPageID == nextPage {
			return all, nil
		}
		nextPage = page.NextPageID
	}
}

func (c *Client) listPage(ctx context.Context, merchantID, token string, from, to time.Time, pageID string) (*listResponse, error) {
	url := fmt.Sprintf("%s/statements/transactions?acc=%s&startDate=%s&endDate=%s",
		c.baseURL, merchantID, from.Format(dateFormat), to.Format(dateFormat))
	if pageID != "" {
		url += "&followId=" + pageID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "fiscal-service")
	req.Header.Set("Content-Type", "application/json;charset=utf8")
	req.Header.Set("token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bank request failed: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read bank response", domain.ErrUpstreamUnavailable)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: bank returned %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, summarize(body))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: bank returned %d: %s", domain.ErrUpstreamRejected, resp.StatusCode, summarize(body))
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse bank response", domain.ErrUpstreamRejected)
	}
	if out.Status != "" && out.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: bank status %s: %s", domain.ErrUpstreamRejected, out.Status, out.Message)
	}
	return &out, nil
}

// summarize trims an upstream body to something safe to log and to return
// to callers; raw bodies are never forwarded verbatim.
func summarize(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
