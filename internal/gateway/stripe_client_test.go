package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *gateway.StripeClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return gateway.NewStripeClient(gateway.StripeConfig{
		APIKey:  "sk_test_123",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestStripeClient_GetInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/invoices/in_123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "in_123",
			"customer": "cus_1",
			"status": "paid",
			"amount_due": 500000,
			"amount_paid": 500000,
			"currency": "usd",
			"hosted_invoice_url": "https://pay.example/in_123",
			"status_transitions": {"paid_at": 1700000000},
			"lines": {"data": [
				{"description": "Design", "quantity": 2, "amount": 300000, "price": {"unit_amount": 150000}},
				{"description": "Hosting", "quantity": 0, "amount": 200000, "price": null}
			]}
		}`))
	})

	inv, err := client.GetInvoice(context.Background(), "in_123")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPaid, inv.Status)
	assert.Equal(t, "cus_1", inv.CustomerID)
	assert.Equal(t, int64(500000), inv.AmountPaid)
	assert.Equal(t, "USD", inv.Currency)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, int64(1700000000), inv.PaidAt.Unix())
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, int64(150000), inv.Lines[0].UnitAmount)
	assert.Equal(t, int64(1), inv.Lines[1].Quantity)
	assert.Equal(t, int64(200000), inv.Lines[1].UnitAmount)
}

func TestStripeClient_ErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": "resource_missing", "message": "No such invoice"}}`))
	})

	_, err := client.GetInvoice(context.Background(), "in_missing")
	var upstream *gateway.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Equal(t, "resource_missing", upstream.Code)
	assert.Equal(t, "No such invoice", upstream.Message)
}

func TestStripeClient_InvalidBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.GetInvoice(context.Background(), "in_1")
	assert.ErrorIs(t, err, gateway.ErrInvalidResponse)
}

func TestStripeClient_NotConfigured(t *testing.T) {
	client := gateway.NewStripeClient(gateway.StripeConfig{}, zap.NewNop())
	_, err := client.VoidInvoice(context.Background(), "in_1")
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)
}

func TestStripeClient_TimeoutIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client := gateway.NewStripeClient(gateway.StripeConfig{
		APIKey:  "sk_test",
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	_, err := client.GetInvoice(context.Background(), "in_slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStripeClient_CreateInvoice(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	var idempotencyKeys []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		idempotencyKeys = append(idempotencyKeys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/invoices":
			assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
			assert.Equal(t, "INV-0007", r.PostForm.Get("metadata[invoice_number]"))
			_, _ = w.Write([]byte(`{"id": "in_new"}`))
		case "/v1/invoiceitems":
			assert.Equal(t, "in_new", r.PostForm.Get("invoice"))
			assert.Equal(t, "usd", r.PostForm.Get("currency"))
			_, _ = w.Write([]byte(`{"id": "ii_1"}`))
		case "/v1/invoices/in_new/finalize":
			_, _ = w.Write([]byte(`{"id": "in_new", "status": "open", "customer": "cus_1", "amount_due": 12550, "currency": "usd", "hosted_invoice_url": "https://pay.example/in_new"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	inv, err := client.CreateInvoice(context.Background(), gateway.CreateInvoiceParams{
		CustomerID:     "cus_1",
		Currency:       "USD",
		DaysUntilDue:   14,
		Lines:          []gateway.Line{{Description: "Services", Quantity: 1, UnitAmount: 10000, Amount: 10000}, {Description: "Tax", Quantity: 1, UnitAmount: 2550, Amount: 2550}},
		Metadata:       map[string]string{"invoice_number": "INV-0007"},
		IdempotencyKey: "invoice:abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "in_new", inv.ID)
	assert.Equal(t, gateway.StatusOpen, inv.Status)
	assert.Equal(t, "https://pay.example/in_new", inv.HostedURL)

	assert.Equal(t, []string{
		"POST /v1/invoices",
		"POST /v1/invoiceitems",
		"POST /v1/invoiceitems",
		"POST /v1/invoices/in_new/finalize",
	}, calls)
	assert.Equal(t, "invoice:abc:invoice", idempotencyKeys[0])
	assert.Equal(t, "invoice:abc:finalize", idempotencyKeys[3])
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(125050), gateway.ToMinorUnits(decimal.RequireFromString("1250.50")))
	assert.Equal(t, int64(1), gateway.ToMinorUnits(decimal.RequireFromString("0.005")))
	assert.True(t, decimal.RequireFromString("5000.00").Equal(gateway.FromMinorUnits(500000)))
}
