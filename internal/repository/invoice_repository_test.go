package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createInvoice(t *testing.T, db *gorm.DB, clientID uuid.UUID, number string, status domain.InvoiceStatus) *domain.Invoice {
	t.Helper()
	amount := testutil.Money(t, "100.00")
	invoice := &domain.Invoice{
		ClientID:      clientID,
		Type:          domain.InvoiceTypeCustom,
		InvoiceNumber: number,
		Amount:        amount,
		TaxAmount:     testutil.Money(t, "0"),
		TotalAmount:   amount,
		Currency:      "USD",
		Status:        status,
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestInvoiceRepository_TransitionStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()
	client := testutil.CreateTestClient(t, db, "Acme", "")
	invoice := createInvoice(t, db, client.ID, "INV-0001", domain.InvoiceStatusDraft)

	err := repo.TransitionStatus(ctx, invoice.ID, domain.InvoiceStatusDraft, domain.InvoiceStatusSent, nil)
	require.NoError(t, err)

	// the second writer expecting draft loses
	err = repo.TransitionStatus(ctx, invoice.ID, domain.InvoiceStatusDraft, domain.InvoiceStatusSent, nil)
	assert.True(t, errors.Is(err, repository.ErrStatusChanged))

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, stored.Status)
}

func TestInvoiceRepository_DeleteDraftOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()
	client := testutil.CreateTestClient(t, db, "Acme", "")

	sent := createInvoice(t, db, client.ID, "INV-0001", domain.InvoiceStatusSent)
	draft := createInvoice(t, db, client.ID, "INV-0002", domain.InvoiceStatusDraft)

	assert.ErrorIs(t, repo.DeleteDraft(ctx, sent.ID), repository.ErrStatusChanged)
	require.NoError(t, repo.DeleteDraft(ctx, draft.ID))

	_, err := repo.GetByID(ctx, draft.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInvoiceRepository_ListScopesClientActors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)

	mine := testutil.CreateTestClient(t, db, "Mine", "")
	theirs := testutil.CreateTestClient(t, db, "Theirs", "")
	createInvoice(t, db, mine.ID, "INV-0001", domain.InvoiceStatusSent)
	createInvoice(t, db, mine.ID, "INV-0002", domain.InvoiceStatusDraft)
	createInvoice(t, db, theirs.ID, "INV-0003", domain.InvoiceStatusSent)

	ctx := testutil.Ctx(testutil.ClientUser(mine.ID))
	invoices, total, err := repo.List(ctx, repository.Pagination{}, repository.InvoiceFilters{ExcludeDrafts: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-0001", invoices[0].InvoiceNumber)

	ctx = testutil.Ctx(testutil.AdminUser())
	_, total, err = repo.List(ctx, repository.Pagination{}, repository.InvoiceFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestInvoiceRepository_SortByInvoiceNumberPastFourDigits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	client := testutil.CreateTestClient(t, db, "Acme", "")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, number := range []string{"INV-9998", "INV-9999", "INV-10000"} {
		inv := createInvoice(t, db, client.ID, number, domain.InvoiceStatusSent)
		require.NoError(t, db.Model(inv).UpdateColumn("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	ctx := testutil.Ctx(testutil.MemberUser())
	invoices, _, err := repo.List(ctx, repository.Pagination{}, repository.InvoiceFilters{
		Sort: repository.SortConfig{Field: "invoiceNumber", Order: repository.SortOrderDesc},
	})
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, "INV-10000", invoices[0].InvoiceNumber)
	assert.Equal(t, "INV-9999", invoices[1].InvoiceNumber)
}

func TestInvoiceRepository_ListOutstandingExternal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	client := testutil.CreateTestClient(t, db, "Acme", "")

	withID := createInvoice(t, db, client.ID, "INV-0001", domain.InvoiceStatusSent)
	ext := "in_123"
	require.NoError(t, db.Model(withID).Update("external_gateway_id", ext).Error)
	createInvoice(t, db, client.ID, "INV-0002", domain.InvoiceStatusSent)
	paid := createInvoice(t, db, client.ID, "INV-0003", domain.InvoiceStatusPaid)
	require.NoError(t, db.Model(paid).Update("external_gateway_id", "in_456").Error)

	invoices, err := repo.ListOutstandingExternal(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, withID.ID, invoices[0].ID)
}

func TestInvoiceRepository_ListSentDueBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	client := testutil.CreateTestClient(t, db, "Acme", "")

	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	past := today.AddDate(0, 0, -3)
	future := today.AddDate(0, 0, 3)

	late := createInvoice(t, db, client.ID, "INV-0001", domain.InvoiceStatusSent)
	require.NoError(t, db.Model(late).Update("due_date", past).Error)
	onTime := createInvoice(t, db, client.ID, "INV-0002", domain.InvoiceStatusSent)
	require.NoError(t, db.Model(onTime).Update("due_date", future).Error)

	invoices, err := repo.ListSentDueBefore(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, late.ID, invoices[0].ID)
}

func TestPaymentRepository_OneSucceededPaymentPerInvoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()
	client := testutil.CreateTestClient(t, db, "Acme", "")
	invoice := createInvoice(t, db, client.ID, "INV-0001", domain.InvoiceStatusSent)

	newPayment := func(status domain.PaymentStatus) *domain.Payment {
		return &domain.Payment{
			InvoiceID: invoice.ID,
			ClientID:  client.ID,
			Amount:    testutil.Money(t, "100.00"),
			Currency:  "USD",
			Status:    status,
			PaidAt:    time.Now(),
		}
	}

	require.NoError(t, repo.Create(ctx, newPayment(domain.PaymentStatusFailed)))
	require.NoError(t, repo.Create(ctx, newPayment(domain.PaymentStatusSucceeded)))

	err := repo.Create(ctx, newPayment(domain.PaymentStatusSucceeded))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	exists, err := repo.HasSucceeded(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	payments, err := repo.ListByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}
