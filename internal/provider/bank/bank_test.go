package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fiscal-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	from, err := time.Parse("2006-01-02", "2026-03-01")
	require.NoError(t, err)
	to, err := time.Parse("2006-01-02", "2026-03-31")
	require.NoError(t, err)
	return from, to
}

func TestListTransactionsPagination(t *testing.T) {
	var gotToken string
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotToken = r.Header.Get("token")
		assert.Equal(t, "M-100", r.URL.Query().Get("acc"))
		assert.Equal(t, "01-03-2026", r.URL.Query().Get("startDate"))
		assert.Equal(t, "31-03-2026", r.URL.Query().Get("endDate"))

		resp := listResponse{Status: "SUCCESS"}
		if r.URL.Query().Get("followId") == "" {
			resp.Transactions = []Transaction{{ID: "tx-1", Amount: "100.00"}}
			resp.ExistsNext = true
			resp.NextPageID = "page-2"
		} else {
			assert.Equal(t, "page-2", r.URL.Query().Get("followId"))
			resp.Transactions = []Transaction{{ID: "tx-2", Amount: "50.00"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	txs, err := c.ListTransactions(context.Background(), "M-100", "secret-token", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "secret-token", gotToken)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "tx-2", txs[1].ID)
}

// An upstream that keeps answering with the same next page id must not
// loop the client; the repeat ends the statement.
func TestListTransactionsRepeatedPageID(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(listResponse{
			Status:       "SUCCESS",
			Transactions: []Transaction{{ID: fmt.Sprintf("tx-%d", calls), Amount: "1.00"}},
			ExistsNext:   true,
			NextPageID:   "stuck",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	txs, err := c.ListTransactions(context.Background(), "M-100", "t", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, txs, 2)
}

func TestListTransactionsPageCap(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(listResponse{
			Status:     "SUCCESS",
			ExistsNext: true,
			NextPageID: fmt.Sprintf("page-%d", calls),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	_, err := c.ListTransactions(context.Background(), "M-100", "t", from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamRejected))
	assert.Equal(t, maxPages, calls)
}

func TestListTransactionsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	_, err := c.ListTransactions(context.Background(), "M-100", "bad", from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamRejected))
}

func TestListTransactionsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	_, err := c.ListTransactions(context.Background(), "M-100", "t", from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestListTransactionsUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	from, to := testRange(t)

	_, err := c.ListTransactions(context.Background(), "M-100", "t", from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestListTransactionsBusinessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listResponse{Status: "ERROR", Message: "merchant blocked"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	from, to := testRange(t)

	_, err := c.ListTransactions(context.Background(), "M-100", "t", from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamRejected))
	assert.Contains(t, err.Error(), "merchant blocked")
}
