package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID loads a project with its client and milestones
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("due_date ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetClientID returns the client linked to a project, or nil for an unlinked project
func (r *ProjectRepository) GetClientID(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Select("id", "client_id").Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return project.ClientID, nil
}
