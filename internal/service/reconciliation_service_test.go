package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentGatewayInvoice creates and sends an invoice so it carries a gateway id
func sentGatewayInvoice(t *testing.T, env *testEnv, clientID, amount string) *domain.InvoiceDTO {
	t.Helper()
	client := testutil.CreateTestClient(t, env.db, "Client "+clientID, clientID)
	inv := createDraft(t, env, client.ID, amount, "")
	sent, err := env.invoices.Send(testutil.Ctx(testutil.MemberUser()), inv.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sent.ExternalGatewayID)
	return sent
}

func markGatewayPaid(env *testEnv, externalID string, paidAt *time.Time) {
	ext := env.gateway.Invoice(externalID)
	ext.Status = gateway.StatusPaid
	ext.AmountPaid = ext.AmountDue
	ext.PaidAt = paidAt
}

func countPayments(t *testing.T, env *testEnv, invoiceID interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&domain.Payment{}).Where("invoice_id = ?", invoiceID).Count(&n).Error)
	return n
}

func TestReconciliationService_Run(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	paid := sentGatewayInvoice(t, env, "cus_paid", "150")
	open := sentGatewayInvoice(t, env, "cus_open", "90")
	broken := sentGatewayInvoice(t, env, "cus_broken", "30")

	paidAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	markGatewayPaid(env, paid.ExternalGatewayID, &paidAt)
	env.gateway.GetErrs[broken.ExternalGatewayID] = errors.New("malformed response")

	result, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalChecked)
	assert.Equal(t, 1, result.UpdatedToPaid)
	assert.Equal(t, 1, result.PaymentsCreated)
	assert.Equal(t, 1, result.Errors)

	outcomes := map[string]string{}
	for _, r := range result.Results {
		outcomes[r.ExternalID] = r.Outcome
	}
	assert.Equal(t, service.OutcomeUpdatedToPaid, outcomes[paid.ExternalGatewayID])
	assert.Equal(t, service.OutcomeUnchanged, outcomes[open.ExternalGatewayID])
	assert.Equal(t, service.OutcomeError, outcomes[broken.ExternalGatewayID])

	var payment domain.Payment
	require.NoError(t, env.db.Where("invoice_id = ?", paid.ID).First(&payment).Error)
	assert.Equal(t, "150.00", payment.Amount.StringFixed(2))
	assert.Equal(t, domain.PaymentStatusSucceeded, payment.Status)
	assert.True(t, payment.PaidAt.Equal(paidAt))

	reloaded, err := env.invoices.Get(admin, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, reloaded.Status)
	assert.Equal(t, paidAt.Format(time.RFC3339), reloaded.PaidAt)
}

func TestReconciliationService_CurrencyMismatchIsAnError(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	inv := sentGatewayInvoice(t, env, "cus_eur", "100")
	markGatewayPaid(env, inv.ExternalGatewayID, nil)
	env.gateway.Invoice(inv.ExternalGatewayID).Currency = "eur"

	result, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, service.OutcomeError, result.Results[0].Outcome)
	assert.Contains(t, result.Results[0].Error, "EUR")
	assert.Equal(t, 0, result.PaymentsCreated)
	assert.Zero(t, countPayments(t, env, inv.ID))

	reloaded, err := env.invoices.Get(admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, reloaded.Status)
}

func TestReconciliationService_Idempotent(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	inv := sentGatewayInvoice(t, env, "cus_1", "500")
	markGatewayPaid(env, inv.ExternalGatewayID, nil)

	first, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, first.PaymentsCreated)

	second, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PaymentsCreated)

	assert.Equal(t, int64(1), countPayments(t, env, inv.ID))
	reloaded, err := env.invoices.Get(admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, reloaded.Status)
	assert.NotEmpty(t, reloaded.PaidAt)
}

func TestReconciliationService_ExistingPaymentStillMarksPaid(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	inv := sentGatewayInvoice(t, env, "cus_1", "500")
	markGatewayPaid(env, inv.ExternalGatewayID, nil)
	require.NoError(t, env.db.Create(&domain.Payment{
		InvoiceID: inv.ID,
		ClientID:  inv.ClientID,
		Amount:    testutil.Money(t, "500"),
		Currency:  "USD",
		Status:    domain.PaymentStatusSucceeded,
		PaidAt:    time.Now(),
	}).Error)

	result, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedToPaid)
	assert.Equal(t, 0, result.PaymentsCreated)
	assert.Equal(t, int64(1), countPayments(t, env, inv.ID))
}

func TestReconciliationService_ConcurrentRunsCreateOnePayment(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	inv := sentGatewayInvoice(t, env, "cus_1", "75")
	markGatewayPaid(env, inv.ExternalGatewayID, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.reconcile.Run(admin, service.TriggerScheduled)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countPayments(t, env, inv.ID))
}

func TestReconciliationService_MarksMilestonePaid(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	client := testutil.CreateTestClient(t, env.db, "Acme", "cus_ms")
	project := testutil.CreateTestProject(t, env.db, &client.ID, "")
	milestone := testutil.CreateTestMilestone(t, env.db, project.ID, "Launch", "1200")

	inv, err := env.invoices.Create(testutil.Ctx(testutil.MemberUser()), &domain.CreateInvoiceRequest{
		ClientID:    client.ID,
		ProjectID:   &project.ID,
		MilestoneID: &milestone.ID,
		Type:        domain.InvoiceTypeMilestone,
		Amount:      money(t, "1200"),
	})
	require.NoError(t, err)
	sent, err := env.invoices.Send(testutil.Ctx(testutil.MemberUser()), inv.ID)
	require.NoError(t, err)
	markGatewayPaid(env, sent.ExternalGatewayID, nil)

	_, err = env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)

	var reloaded domain.Milestone
	require.NoError(t, env.db.First(&reloaded, "id = ?", milestone.ID).Error)
	assert.True(t, reloaded.IsPaid)
}

func TestReconciliationService_Authorization(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.reconcile.Run(testutil.Ctx(testutil.MemberUser()), service.TriggerManual)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = env.reconcile.Run(context.Background(), service.TriggerManual)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	disabled := newTestEnv(t, envOptions{noGateway: true})
	_, err = disabled.reconcile.Run(testutil.Ctx(testutil.AdminUser()), service.TriggerManual)
	assert.ErrorIs(t, err, service.ErrGatewayNotConfigured)
}

func TestReconciliationService_ListPayments(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.Ctx(testutil.AdminUser())

	inv := sentGatewayInvoice(t, env, "cus_list", "75")
	markGatewayPaid(env, inv.ExternalGatewayID, nil)
	_, err := env.reconcile.Run(admin, service.TriggerManual)
	require.NoError(t, err)

	payments, err := env.reconcile.ListPayments(testutil.Ctx(testutil.MemberUser()), inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "75.00", payments[0].Amount)
	assert.Equal(t, domain.PaymentStatusSucceeded, payments[0].Status)

	t.Run("owning client sees the payment", func(t *testing.T) {
		payments, err := env.reconcile.ListPayments(testutil.Ctx(testutil.ClientUser(inv.ClientID)), inv.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("other client gets not found", func(t *testing.T) {
		_, err := env.reconcile.ListPayments(testutil.Ctx(testutil.ClientUser(uuid.New())), inv.ID)
		assert.ErrorIs(t, err, service.ErrInvoiceNotFound)
	})
}
