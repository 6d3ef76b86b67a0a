package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// PaymentRepository handles database operations for payments.
// The partial unique index idx_payments_invoice_succeeded guarantees at most one
// succeeded payment per invoice; Create returns gorm.ErrDuplicatedKey when it trips.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// HasSucceeded reports whether the invoice already has a succeeded payment
func (r *PaymentRepository) HasSucceeded(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("invoice_id = ? AND status = ?", invoiceID, domain.PaymentStatusSucceeded).
		Count(&count).Error
	return count > 0, err
}

// ListByInvoice returns the payments of an invoice, newest first
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("paid_at DESC").
		Find(&payments).Error
	return payments, err
}
