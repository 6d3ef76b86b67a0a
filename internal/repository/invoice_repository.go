package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ErrStatusChanged is returned by conditional writes when the row no longer has
// the expected status, meaning a concurrent request moved it first.
var ErrStatusChanged = errors.New("status changed concurrently")

// InvoiceFilters narrows invoice list queries
type InvoiceFilters struct {
	ProjectID     *uuid.UUID
	ClientID      *uuid.UUID
	Status        *domain.InvoiceStatus
	Type          *domain.InvoiceType
	ExcludeDrafts bool
	Sort          SortConfig
}

// invoiceSortFields maps API sort fields to columns
var invoiceSortFields = map[string]string{
	"createdAt":     "created_at",
	"dueDate":       "due_date",
	"totalAmount":   "total_amount",
	"invoiceNumber": "created_at", // issue order; the string column sorts INV-10000 before INV-9999
	"status":        "status",
}

// InvoiceRepository handles database operations for invoices
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByExternalID finds an invoice by its payment gateway id
func (r *InvoiceRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Where("external_gateway_id = ?", externalID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateDraft saves edited fields of an invoice that is still a draft.
// Returns ErrStatusChanged when the invoice left draft in the meantime.
func (r *InvoiceRepository) UpdateDraft(ctx context.Context, invoice *domain.Invoice) error {
	result := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, domain.InvoiceStatusDraft).
		Select("type", "amount", "tax_amount", "total_amount", "currency", "due_date", "line_items", "notes", "updated_at").
		Updates(invoice)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// TransitionStatus moves an invoice from one status to another in a single
// conditional write. Extra columns are written in the same statement.
// Returns ErrStatusChanged when the current status is no longer from.
func (r *InvoiceRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.InvoiceStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// DeleteDraft deletes an invoice only while it is a draft
func (r *InvoiceRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, domain.InvoiceStatusDraft).
		Delete(&domain.Invoice{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// List returns a page of invoices matching the filters, scoped to the actor's client
func (r *InvoiceRepository) List(ctx context.Context, page Pagination, filters InvoiceFilters) ([]domain.Invoice, int64, error) {
	var invoices []domain.Invoice
	var total int64

	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&domain.Invoice{})
	query = ApplyClientScope(ctx, query, "client_id")

	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.ExcludeDrafts {
		query = query.Where("status <> ?", domain.InvoiceStatusDraft)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(BuildOrderClause(filters.Sort, invoiceSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&invoices).Error
	return invoices, total, err
}

// ListOutstandingExternal returns sent or overdue invoices that carry a gateway id
func (r *InvoiceRepository) ListOutstandingExternal(ctx context.Context) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusOverdue}).
		Where("external_gateway_id IS NOT NULL AND external_gateway_id <> ''").
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

// ListSentDueBefore returns sent invoices whose due date is before the given day
func (r *InvoiceRepository) ListSentDueBefore(ctx context.Context, day time.Time) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.InvoiceStatusSent).
		Where("due_date IS NOT NULL AND due_date < ?", day).
		Order("due_date ASC").
		Find(&invoices).Error
	return invoices, err
}
