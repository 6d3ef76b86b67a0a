package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// DeliverableFilters narrows deliverable list queries
type DeliverableFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.DeliverableStatus
	// Statuses limits results to a set of statuses, used for client actors
	Statuses []domain.DeliverableStatus
	Sort     SortConfig
}

// deliverableSortFields maps API sort fields to columns
var deliverableSortFields = map[string]string{
	"updatedAt": "updated_at",
	"createdAt": "created_at",
	"title":     "title",
	"status":    "status",
}

// DeliverableRepository handles database operations for deliverables
type DeliverableRepository struct {
	db *gorm.DB
}

func NewDeliverableRepository(db *gorm.DB) *DeliverableRepository {
	return &DeliverableRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *DeliverableRepository) WithTx(tx *gorm.DB) *DeliverableRepository {
	return &DeliverableRepository{db: tx}
}

func (r *DeliverableRepository) Create(ctx context.Context, deliverable *domain.Deliverable) error {
	return r.db.WithContext(ctx).Create(deliverable).Error
}

func (r *DeliverableRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	var deliverable domain.Deliverable
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&deliverable).Error
	if err != nil {
		return nil, err
	}
	return &deliverable, nil
}

// UpdateDetails saves descriptive fields. The status column is never written here.
func (r *DeliverableRepository) UpdateDetails(ctx context.Context, deliverable *domain.Deliverable) error {
	return r.db.WithContext(ctx).Model(deliverable).
		Select("title", "description", "type", "thumbnail_url", "updated_at").
		Updates(deliverable).Error
}

// TransitionStatus moves a deliverable between statuses in one conditional write.
// Returns ErrStatusChanged when the current status is no longer from.
func (r *DeliverableRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.DeliverableStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).Model(&domain.Deliverable{}).
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

// UpdateFile points the deliverable at its latest file revision
func (r *DeliverableRepository) UpdateFile(ctx context.Context, id uuid.UUID, fileURL string) error {
	return r.db.WithContext(ctx).Model(&domain.Deliverable{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"file_url":   fileURL,
			"updated_at": time.Now(),
		}).Error
}

// DeleteInStatus deletes a deliverable, its versions and comments, but only
// while it is in one of the given statuses.
func (r *DeliverableRepository) DeleteInStatus(ctx context.Context, id uuid.UUID, statuses []domain.DeliverableStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status IN ?", id, statuses).Delete(&domain.Deliverable{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}
		if err := tx.Where("deliverable_id = ?", id).Delete(&domain.DeliverableVersion{}).Error; err != nil {
			return err
		}
		return tx.Where("deliverable_id = ?", id).Delete(&domain.Comment{}).Error
	})
}

// List returns a page of deliverables, scoped to the client actor's projects
func (r *DeliverableRepository) List(ctx context.Context, page Pagination, filters DeliverableFilters) ([]domain.Deliverable, int64, error) {
	var deliverables []domain.Deliverable
	var total int64

	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&domain.Deliverable{})
	query = ApplyProjectClientScope(ctx, query, "project_id")

	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(BuildOrderClause(filters.Sort, deliverableSortFields, "updated_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&deliverables).Error
	return deliverables, total, err
}
