package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// DeliverableVersionRepository handles database operations for deliverable versions.
// Versions are insert-only.
type DeliverableVersionRepository struct {
	db *gorm.DB
}

func NewDeliverableVersionRepository(db *gorm.DB) *DeliverableVersionRepository {
	return &DeliverableVersionRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *DeliverableVersionRepository) WithTx(tx *gorm.DB) *DeliverableVersionRepository {
	return &DeliverableVersionRepository{db: tx}
}

// CreateNext assigns the next version number after the current maximum and inserts
// the version. The unique (deliverable_id, version_number) index rejects a racing
// insert with gorm.ErrDuplicatedKey rather than reusing a number.
func (r *DeliverableVersionRepository) CreateNext(ctx context.Context, version *domain.DeliverableVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int
		if err := tx.Model(&domain.DeliverableVersion{}).
			Where("deliverable_id = ?", version.DeliverableID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		version.VersionNumber = current + 1
		return tx.Create(version).Error
	})
}

// ListByDeliverable returns versions newest first
func (r *DeliverableVersionRepository) ListByDeliverable(ctx context.Context, deliverableID uuid.UUID) ([]domain.DeliverableVersion, error) {
	var versions []domain.DeliverableVersion
	err := r.db.WithContext(ctx).
		Where("deliverable_id = ?", deliverableID).
		Order("version_number DESC").
		Find(&versions).Error
	return versions, err
}
