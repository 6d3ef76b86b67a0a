package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ReimbursementFilters narrows reimbursement list queries
type ReimbursementFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.ReimbursementStatus
	Sort      SortConfig
}

// reimbursementSortFields maps API sort fields to columns
var reimbursementSortFields = map[string]string{
	"createdAt":  "created_at",
	"amount":     "amount",
	"personName": "person_name",
	"status":     "status",
}

// ReimbursementRepository handles database operations for reimbursements
type ReimbursementRepository struct {
	db *gorm.DB
}

func NewReimbursementRepository(db *gorm.DB) *ReimbursementRepository {
	return &ReimbursementRepository{db: db}
}

func (r *ReimbursementRepository) Create(ctx context.Context, reimbursement *domain.Reimbursement) error {
	return r.db.WithContext(ctx).Create(reimbursement).Error
}

func (r *ReimbursementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reimbursement, error) {
	var reimbursement domain.Reimbursement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reimbursement).Error
	if err != nil {
		return nil, err
	}
	return &reimbursement, nil
}

// UpdateFromStatus writes the given columns only if the row still has status from.
// Returns ErrStatusChanged otherwise.
func (r *ReimbursementRepository) UpdateFromStatus(ctx context.Context, id uuid.UUID, from domain.ReimbursementStatus, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Reimbursement{}).
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

func (r *ReimbursementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Reimbursement{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReimbursementRepository) List(ctx context.Context, page Pagination, filters ReimbursementFilters) ([]domain.Reimbursement, int64, error) {
	var reimbursements []domain.Reimbursement
	var total int64

	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&domain.Reimbursement{})
	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(BuildOrderClause(filters.Sort, reimbursementSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&reimbursements).Error
	return reimbursements, total, err
}
