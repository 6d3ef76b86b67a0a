package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// MilestoneRepository handles database operations for project milestones
type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *MilestoneRepository) WithTx(tx *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: tx}
}

func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Milestone, error) {
	var milestone domain.Milestone
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

// MarkPaid flips is_paid. Marking an already paid milestone is a no-op.
func (r *MilestoneRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.Milestone{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_paid":    true,
			"updated_at": time.Now(),
		}).Error
}

func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Milestone, error) {
	var milestones []domain.Milestone
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("due_date ASC, created_at ASC").
		Find(&milestones).Error
	return milestones, err
}
