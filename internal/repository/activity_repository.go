package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityRepository handles database operations for the activity feed.
// Entries are append-only, so there is no update or delete.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// ListByProject returns a page of a project's feed, newest first
func (r *ActivityRepository) ListByProject(ctx context.Context, projectID uuid.UUID, clientVisibleOnly bool, page Pagination) ([]domain.Activity, int64, error) {
	var activities []domain.Activity
	var total int64

	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&domain.Activity{}).Where("project_id = ?", projectID)
	if clientVisibleOnly {
		query = query.Where("is_client_visible = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("occurred_at DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&activities).Error
	return activities, total, err
}

// ListByEntity returns the newest entries for one entity
func (r *ActivityRepository) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, clientVisibleOnly bool, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	query := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	if clientVisibleOnly {
		query = query.Where("is_client_visible = ?", true)
	}
	err := query.Order("occurred_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
