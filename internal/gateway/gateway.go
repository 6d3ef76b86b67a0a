// Package gateway talks to the external payment gateway of record.
// Amounts on this boundary are integer minor units; callers convert with
// ToMinorUnits and FromMinorUnits.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured is returned when the gateway has no API key
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrInvalidResponse is returned when the gateway answers with a body we cannot use
	ErrInvalidResponse = errors.New("payment gateway returned an invalid response")
)

// InvoiceStatus is the gateway's invoice vocabulary
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusOpen          InvoiceStatus = "open"
	StatusPaid          InvoiceStatus = "paid"
	StatusVoid          InvoiceStatus = "void"
	StatusUncollectible InvoiceStatus = "uncollectible"
)

// Line is one line of a gateway invoice
type Line struct {
	Description string
	Quantity    int64
	UnitAmount  int64
	Amount      int64
}

// Invoice is the gateway's view of an invoice
type Invoice struct {
	ID         string
	CustomerID string
	Status     InvoiceStatus
	AmountDue  int64
	AmountPaid int64
	Currency   string
	HostedURL  string
	DueDate    *time.Time
	PaidAt     *time.Time
	Lines      []Line
}

// CreateInvoiceParams describes an invoice to raise at the gateway
type CreateInvoiceParams struct {
	CustomerID     string
	Currency       string
	Description    string
	DaysUntilDue   int
	Lines          []Line
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway is the subset of the payment gateway API the workflow engine needs
type Gateway interface {
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	VoidInvoice(ctx context.Context, id string) (*Invoice, error)
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)
}

// UpstreamError is a non-2xx answer from the gateway
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Message)
}

// ToMinorUnits converts a decimal amount to integer cents, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts integer cents to a decimal amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
