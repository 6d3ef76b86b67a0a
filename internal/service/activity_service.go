package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivityEntry is what a workflow hands to the recorder
type ActivityEntry struct {
	ProjectID     *uuid.UUID
	Type          domain.ActivityType
	EntityType    domain.EntityType
	EntityID      uuid.UUID
	Title         string
	Metadata      map[string]interface{}
	ClientVisible bool
}

// ActivityService is the append-only activity sink shared by every workflow,
// and the reader behind the project activity feed.
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	projectRepo  *repository.ProjectRepository
	gate         *policy.Gate
	logger       *zap.Logger
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(
	activityRepo *repository.ActivityRepository,
	projectRepo *repository.ProjectRepository,
	gate *policy.Gate,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		projectRepo:  projectRepo,
		gate:         gate,
		logger:       logger,
	}
}

// Record appends an entry attributed to the actor in ctx. Failures are logged
// and never fail the calling operation.
func (s *ActivityService) Record(ctx context.Context, entry ActivityEntry) {
	actor, ok := auth.FromContext(ctx)
	if !ok {
		actor = auth.SystemUser()
	}

	activity := &domain.Activity{
		ActorID:         actor.UserID,
		ActorName:       actor.DisplayName,
		ProjectID:       entry.ProjectID,
		ActivityType:    entry.Type,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Title:           entry.Title,
		Metadata:        entry.Metadata,
		IsClientVisible: entry.ClientVisible,
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("activity_type", string(entry.Type)),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err))
	}
}

// ListForEntity returns the newest entries of one entity, filtered for client actors
func (s *ActivityService) ListForEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, clientView bool, limit int) ([]domain.ActivityDTO, error) {
	activities, err := s.activityRepo.ListByEntity(ctx, entityType, entityID, clientView, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return toActivityDTOs(activities), nil
}

// ListByProject returns a page of a project's feed, newest first. Client actors
// only see client-visible entries of their own projects.
func (s *ActivityService) ListByProject(ctx context.Context, projectID uuid.UUID, page, pageSize int) (*domain.PaginatedResponse, error) {
	clientID, err := s.projectRepo.GetClientID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	actor, err := authorize(ctx, s.gate, policy.ActionView, policy.ResourceProject, &policy.Subject{ClientID: clientID}, ErrProjectNotFound)
	if err != nil {
		return nil, err
	}

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	activities, total, err := s.activityRepo.ListByProject(ctx, projectID, actor.IsClient(), p)
	if err != nil {
		return nil, fmt.Errorf("failed to list project activity: %w", err)
	}

	return paginated(toActivityDTOs(activities), total, p), nil
}

func toActivityDTOs(activities []domain.Activity) []domain.ActivityDTO {
	dtos := make([]domain.ActivityDTO, len(activities))
	for i := range activities {
		dtos[i] = mapper.ToActivityDTO(&activities[i])
	}
	return dtos
}

func paginated(data interface{}, total int64, p repository.Pagination) *domain.PaginatedResponse {
	totalPages := int(total) / p.PageSize
	if int(total)%p.PageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
	}
}
