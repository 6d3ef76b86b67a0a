package domain_test

import (
	"errors"
	"testing"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReimbursementGuard(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.ReimbursementStatus
		to      domain.ReimbursementStatus
		allowed bool
	}{
		{"pending to approved", domain.ReimbursementStatusPending, domain.ReimbursementStatusApproved, true},
		{"pending to rejected", domain.ReimbursementStatusPending, domain.ReimbursementStatusRejected, true},
		{"pending to paid", domain.ReimbursementStatusPending, domain.ReimbursementStatusPaid, false},
		{"approved to paid", domain.ReimbursementStatusApproved, domain.ReimbursementStatusPaid, true},
		{"approved to rejected", domain.ReimbursementStatusApproved, domain.ReimbursementStatusRejected, true},
		{"rejected to pending", domain.ReimbursementStatusRejected, domain.ReimbursementStatusPending, true},
		{"rejected to paid", domain.ReimbursementStatusRejected, domain.ReimbursementStatusPaid, false},
		{"paid to approved", domain.ReimbursementStatusPaid, domain.ReimbursementStatusApproved, false},
		{"paid to pending", domain.ReimbursementStatusPaid, domain.ReimbursementStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, domain.ReimbursementGuard.Allowed(tt.from, tt.to))
		})
	}
}

func TestReturnGuard(t *testing.T) {
	assert.True(t, domain.ReturnGuard.Allowed(domain.ReturnStatusPending, domain.ReturnStatusInProgress))
	assert.True(t, domain.ReturnGuard.Allowed(domain.ReturnStatusInProgress, domain.ReturnStatusCompleted))
	assert.False(t, domain.ReturnGuard.Allowed(domain.ReturnStatusPending, domain.ReturnStatusCompleted))
	assert.True(t, domain.ReturnGuard.IsTerminal(domain.ReturnStatusCompleted))
	assert.True(t, domain.ReturnGuard.IsTerminal(domain.ReturnStatusCancelled))
}

func TestInvoiceGuard(t *testing.T) {
	assert.True(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatusDraft, domain.InvoiceStatusSent))
	assert.True(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatusSent, domain.InvoiceStatusCancelled))
	assert.True(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatusOverdue, domain.InvoiceStatusPaid))
	assert.False(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatusDraft, domain.InvoiceStatusCancelled))
	assert.False(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatusPaid, domain.InvoiceStatusSent))
}

func TestDeliverableGuard(t *testing.T) {
	assert.True(t, domain.DeliverableGuard.Allowed(domain.DeliverableStatusDraft, domain.DeliverableStatusInReview))
	assert.True(t, domain.DeliverableGuard.Allowed(domain.DeliverableStatusApproved, domain.DeliverableStatusFinal))
	assert.False(t, domain.DeliverableGuard.Allowed(domain.DeliverableStatusDraft, domain.DeliverableStatusApproved))
	assert.False(t, domain.DeliverableGuard.Allowed(domain.DeliverableStatusInReview, domain.DeliverableStatusFinal))
	assert.Empty(t, domain.DeliverableGuard.Next(domain.DeliverableStatusFinal))
}

func TestStatusGuard_CheckReportsBothStatuses(t *testing.T) {
	err := domain.ReimbursementGuard.Check(domain.ReimbursementStatusPaid, domain.ReimbursementStatusApproved)
	require.Error(t, err)

	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "reimbursement", te.Entity)
	assert.Equal(t, "paid", te.From)
	assert.Equal(t, "approved", te.To)

	assert.NoError(t, domain.ReimbursementGuard.Check(domain.ReimbursementStatusPending, domain.ReimbursementStatusApproved))
}

func TestStatusGuard_UnknownFromStatus(t *testing.T) {
	assert.False(t, domain.InvoiceGuard.Allowed(domain.InvoiceStatus("bogus"), domain.InvoiceStatusSent))
}

func TestDeliverableStatus_IsClientVisible(t *testing.T) {
	assert.False(t, domain.DeliverableStatusDraft.IsClientVisible())
	assert.True(t, domain.DeliverableStatusInReview.IsClientVisible())
	assert.True(t, domain.DeliverableStatusFinal.IsClientVisible())
}

func TestStatusGuard_Known(t *testing.T) {
	assert.True(t, domain.InvoiceGuard.Known(domain.InvoiceStatusPaid))
	assert.True(t, domain.ReturnGuard.Known(domain.ReturnStatusCancelled))
	assert.False(t, domain.InvoiceGuard.Known("archived"))
}
