package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository handles database operations for deliverable comments
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *CommentRepository) WithTx(tx *gorm.DB) *CommentRepository {
	return &CommentRepository{db: tx}
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByDeliverable returns comments oldest first. Internal comments are
// excluded in the query itself when includeInternal is false.
func (r *CommentRepository) ListByDeliverable(ctx context.Context, deliverableID uuid.UUID, includeInternal bool) ([]domain.Comment, error) {
	var comments []domain.Comment
	query := r.db.WithContext(ctx).Where("deliverable_id = ?", deliverableID)
	if !includeInternal {
		query = query.Where("is_internal = ?", false)
	}
	err := query.Order("created_at ASC").Find(&comments).Error
	return comments, err
}
