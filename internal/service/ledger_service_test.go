package service_test

import (
	"testing"
	"time"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todayString() string {
	return time.Now().UTC().Format("2006-01-02")
}

func reimbursementStatus(s domain.ReimbursementStatus) *domain.ReimbursementStatus { return &s }

func returnStatus(s domain.ReturnStatus) *domain.ReturnStatus { return &s }

func TestReimbursementService_Lifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := testutil.AdminUser()
	ctx := testutil.Ctx(admin)

	r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{
		PersonName: "Jordan",
		Amount:     money(t, "42.10"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReimbursementStatusPending, r.Status)

	approved, err := env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Status: reimbursementStatus(domain.ReimbursementStatusApproved),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReimbursementStatusApproved, approved.Status)
	assert.Equal(t, admin.DisplayName, approved.ApprovedBy)
	assert.Equal(t, todayString(), approved.DateApproved)

	paid, err := env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Status: reimbursementStatus(domain.ReimbursementStatusPaid),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReimbursementStatusPaid, paid.Status)
	assert.Equal(t, todayString(), paid.DatePaid)

	_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Status: reimbursementStatus(domain.ReimbursementStatusPending),
	})
	var tErr *domain.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "paid", tErr.From)
}

func TestReimbursementService_RejectedCannotBePaid(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.AdminUser())

	r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Jordan", Amount: money(t, "10")})
	require.NoError(t, err)
	_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Status: reimbursementStatus(domain.ReimbursementStatusRejected),
	})
	require.NoError(t, err)

	_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Status: reimbursementStatus(domain.ReimbursementStatusPaid),
	})
	var tErr *domain.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "rejected", tErr.From)
	assert.Equal(t, "paid", tErr.To)

	reloaded, err := env.reimbursement.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReimbursementStatusRejected, reloaded.Status)
	assert.Empty(t, reloaded.DatePaid)
}

func TestReimbursementService_ReopenClearsApproval(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.AdminUser())

	r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Jordan", Amount: money(t, "10")})
	require.NoError(t, err)
	for _, status := range []domain.ReimbursementStatus{
		domain.ReimbursementStatusApproved,
		domain.ReimbursementStatusRejected,
		domain.ReimbursementStatusPending,
	} {
		_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{Status: reimbursementStatus(status)})
		require.NoError(t, err)
	}

	reloaded, err := env.reimbursement.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReimbursementStatusPending, reloaded.Status)
	assert.Empty(t, reloaded.ApprovedBy)
	assert.Nil(t, reloaded.ApprovedByID)
	assert.Empty(t, reloaded.DateApproved)
}

func TestReimbursementService_PatchWhitelist(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Jordan", Amount: money(t, "10")})
	require.NoError(t, err)

	updated, err := env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{
		Amount:   money(t, "12.50"),
		Notes:    strPtr("taxi"),
		DatePaid: strPtr("2026-01-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", updated.Amount)
	assert.Equal(t, "taxi", updated.Notes)
	assert.Empty(t, updated.DatePaid, "paid date is ignored until the reimbursement is paid")
	assert.Equal(t, domain.ReimbursementStatusPending, updated.Status)

	_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{DatePaid: strPtr("31/01/2026")})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "datePaid", vErr.Field)
}

func TestReimbursementService_DatePaidOnlyWithPayout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.AdminUser())
	paid := domain.ReimbursementStatusPaid
	approved := domain.ReimbursementStatusApproved
	rejected := domain.ReimbursementStatusRejected

	t.Run("dropped on unpaid rows and stamped on payout", func(t *testing.T) {
		r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Jordan", Amount: money(t, "10")})
		require.NoError(t, err)

		updated, err := env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{DatePaid: strPtr("2020-01-01")})
		require.NoError(t, err)
		assert.Empty(t, updated.DatePaid)

		updated, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{Status: &rejected, DatePaid: strPtr("2020-01-01")})
		require.NoError(t, err)
		assert.Equal(t, domain.ReimbursementStatusRejected, updated.Status)
		assert.Empty(t, updated.DatePaid)
	})

	t.Run("honoured when moving to paid", func(t *testing.T) {
		r, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Sam", Amount: money(t, "10")})
		require.NoError(t, err)
		_, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{Status: &approved})
		require.NoError(t, err)

		updated, err := env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{Status: &paid, DatePaid: strPtr("2026-01-31")})
		require.NoError(t, err)
		assert.Equal(t, "2026-01-31", updated.DatePaid)

		updated, err = env.reimbursement.Update(ctx, r.ID, &domain.UpdateReimbursementRequest{DatePaid: strPtr("2026-02-01")})
		require.NoError(t, err)
		assert.Equal(t, "2026-02-01", updated.DatePaid)
	})
}

func TestReimbursementService_ClientsAreForbidden(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	client := testutil.CreateTestClient(t, env.db, "Acme", "")
	ctx := testutil.Ctx(testutil.ClientUser(client.ID))

	_, err := env.reimbursement.Create(ctx, &domain.CreateReimbursementRequest{PersonName: "Jordan", Amount: money(t, "10")})
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = env.reimbursement.List(ctx, service.ReimbursementListFilters{}, 1, 20)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestReturnService_AutoComplete(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	ret, err := env.returns.Create(ctx, &domain.CreateReturnRequest{
		Vendor:        "Camera Rentals Co",
		NetReturn:     money(t, "180"),
		RestockingFee: money(t, "20"),
	})
	require.NoError(t, err)

	t.Run("refund while pending is stored without completing", func(t *testing.T) {
		updated, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{RefundReceivedDate: strPtr("2026-02-01")})
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusPending, updated.Status)
		assert.Equal(t, "2026-02-01", updated.RefundReceivedDate)
		assert.Empty(t, updated.ReturnCompletedDate)
	})

	t.Run("refund while in progress completes", func(t *testing.T) {
		_, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{Status: returnStatus(domain.ReturnStatusInProgress)})
		require.NoError(t, err)

		completed, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{RefundReceivedDate: strPtr("2026-02-03")})
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusCompleted, completed.Status)
		assert.Equal(t, todayString(), completed.ReturnCompletedDate)
	})

	t.Run("completed is terminal and not deletable", func(t *testing.T) {
		_, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{Status: returnStatus(domain.ReturnStatusCancelled)})
		var tErr *domain.TransitionError
		require.ErrorAs(t, err, &tErr)

		err = env.returns.Delete(ctx, ret.ID)
		assert.ErrorIs(t, err, service.ErrReturnNotDeletable)
	})
}

func TestReturnService_KeepsSuppliedCompletionDate(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	ret, err := env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: "Props Ltd"})
	require.NoError(t, err)
	_, err = env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{Status: returnStatus(domain.ReturnStatusInProgress)})
	require.NoError(t, err)

	completed, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{
		RefundReceivedDate:  strPtr("2026-02-03"),
		ReturnCompletedDate: strPtr("2026-02-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusCompleted, completed.Status)
	assert.Equal(t, "2026-02-02", completed.ReturnCompletedDate)
}

func TestReturnService_ExplicitStatusSuppressesAutoComplete(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	ret, err := env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: "Props Ltd"})
	require.NoError(t, err)
	_, err = env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{Status: returnStatus(domain.ReturnStatusInProgress)})
	require.NoError(t, err)

	updated, err := env.returns.Update(ctx, ret.ID, &domain.UpdateReturnRequest{
		Status:             returnStatus(domain.ReturnStatusInProgress),
		RefundReceivedDate: strPtr("2026-02-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusInProgress, updated.Status)
	assert.Equal(t, "2026-02-03", updated.RefundReceivedDate)
	assert.Empty(t, updated.ReturnCompletedDate)
}

func TestReturnService_Delete(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	pending, err := env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: "Props Ltd"})
	require.NoError(t, err)
	require.NoError(t, env.returns.Delete(ctx, pending.ID))

	_, err = env.returns.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, service.ErrReturnNotFound)

	started, err := env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: "Props Ltd"})
	require.NoError(t, err)
	_, err = env.returns.Update(ctx, started.ID, &domain.UpdateReturnRequest{Status: returnStatus(domain.ReturnStatusInProgress)})
	require.NoError(t, err)
	assert.ErrorIs(t, env.returns.Delete(ctx, started.ID), service.ErrReturnNotDeletable)
}

func TestReturnService_Validation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := testutil.Ctx(testutil.MemberUser())

	_, err := env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: "Props", NetReturn: money(t, "-5")})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "netReturn", vErr.Field)

	_, err = env.returns.Create(ctx, &domain.CreateReturnRequest{Vendor: " "})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "vendor", vErr.Field)
}

func TestEffectiveReturnStatus(t *testing.T) {
	refund := time.Now()
	tests := []struct {
		name      string
		current   domain.ReturnStatus
		requested *domain.ReturnStatus
		refund    *time.Time
		expected  domain.ReturnStatus
	}{
		{"no change", domain.ReturnStatusPending, nil, nil, domain.ReturnStatusPending},
		{"refund while pending", domain.ReturnStatusPending, nil, &refund, domain.ReturnStatusPending},
		{"refund while in progress", domain.ReturnStatusInProgress, nil, &refund, domain.ReturnStatusCompleted},
		{"explicit status wins", domain.ReturnStatusInProgress, returnStatus(domain.ReturnStatusCancelled), &refund, domain.ReturnStatusCancelled},
		{"same status requested", domain.ReturnStatusInProgress, returnStatus(domain.ReturnStatusInProgress), &refund, domain.ReturnStatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.EffectiveReturnStatus(tt.current, tt.requested, tt.refund))
		})
	}
}
