package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/loopwork-studio/agency-api/internal/gateway"
)

// FakeGateway is an in-memory gateway.Gateway for service and handler tests
type FakeGateway struct {
	mu       sync.Mutex
	invoices map[string]*gateway.Invoice
	created  int

	// Err, when set, is returned by every call
	Err error
	// GetErrs fails GetInvoice for specific ids
	GetErrs map[string]error

	GetCalls  int
	VoidCalls int
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		invoices: make(map[string]*gateway.Invoice),
		GetErrs:  make(map[string]error),
	}
}

// Put stores or replaces an invoice
func (f *FakeGateway) Put(inv *gateway.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices[inv.ID] = inv
}

// Invoice returns a stored invoice
func (f *FakeGateway) Invoice(id string) *gateway.Invoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invoices[id]
}

func (f *FakeGateway) GetInvoice(_ context.Context, id string) (*gateway.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	if err, ok := f.GetErrs[id]; ok {
		return nil, err
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &gateway.UpstreamError{StatusCode: 404, Code: "resource_missing", Message: "No such invoice: " + id}
	}
	copied := *inv
	return &copied, nil
}

func (f *FakeGateway) VoidInvoice(_ context.Context, id string) (*gateway.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VoidCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &gateway.UpstreamError{StatusCode: 404, Code: "resource_missing", Message: "No such invoice: " + id}
	}
	inv.Status = gateway.StatusVoid
	copied := *inv
	return &copied, nil
}

func (f *FakeGateway) CreateInvoice(_ context.Context, params gateway.CreateInvoiceParams) (*gateway.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.created++
	id := fmt.Sprintf("in_fake_%d", f.created)

	var due int64
	for _, l := range params.Lines {
		due += l.Amount
	}
	inv := &gateway.Invoice{
		ID:         id,
		CustomerID: params.CustomerID,
		Status:     gateway.StatusOpen,
		AmountDue:  due,
		Currency:   params.Currency,
		HostedURL:  "https://pay.example/" + id,
		Lines:      params.Lines,
	}
	f.invoices[id] = inv
	copied := *inv
	return &copied, nil
}
