package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ReturnFilters narrows vendor return list queries
type ReturnFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.ReturnStatus
	Sort      SortConfig
}

// returnSortFields maps API sort fields to columns
var returnSortFields = map[string]string{
	"createdAt": "created_at",
	"netReturn": "net_return",
	"vendor":    "vendor",
	"status":    "status",
}

// ReturnRepository handles database operations for vendor returns
type ReturnRepository struct {
	db *gorm.DB
}

func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

func (r *ReturnRepository) Create(ctx context.Context, ret *domain.Return) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *ReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Return, error) {
	var ret domain.Return
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// UpdateFromStatus writes the given columns only if the row still has status from.
// Returns ErrStatusChanged otherwise.
func (r *ReturnRepository) UpdateFromStatus(ctx context.Context, id uuid.UUID, from domain.ReturnStatus, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Return{}).
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

// DeleteInStatus deletes a return only while it is in one of the given statuses
func (r *ReturnRepository) DeleteInStatus(ctx context.Context, id uuid.UUID, statuses []domain.ReturnStatus) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, statuses).
		Delete(&domain.Return{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *ReturnRepository) List(ctx context.Context, page Pagination, filters ReturnFilters) ([]domain.Return, int64, error) {
	var returns []domain.Return
	var total int64

	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&domain.Return{})
	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(BuildOrderClause(filters.Sort, returnSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&returns).Error
	return returns, total, err
}
