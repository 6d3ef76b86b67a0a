package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deliverable-specific service errors
var (
	ErrDeliverableNotFound     = errors.New("deliverable not found")
	ErrDeliverableFinal        = errors.New("deliverable is final and can no longer change")
	ErrDeliverableNotDeletable = errors.New("deliverable can only be deleted while draft or rejected")
	ErrStorageNotConfigured    = errors.New("file storage is not configured")
)

// detailActivityLimit bounds the feed embedded in a deliverable detail response
const detailActivityLimit = 50

var deletableDeliverableStatuses = []domain.DeliverableStatus{
	domain.DeliverableStatusDraft,
	domain.DeliverableStatusRejected,
}

// DeliverableListFilters are the query filters accepted by List
type DeliverableListFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.DeliverableStatus
	Sort      repository.SortConfig
}

// DeliverableService runs the review workflow for creative deliverables:
// drafting, versioning, client review, finalization and the comment thread.
// Client reads are filtered here; drafts and internal comments never leave it.
type DeliverableService struct {
	db              *gorm.DB
	deliverableRepo *repository.DeliverableRepository
	versionRepo     *repository.DeliverableVersionRepository
	commentRepo     *repository.CommentRepository
	projectRepo     *repository.ProjectRepository
	activity        *ActivityService
	gate            *policy.Gate
	storage         storage.Storage
	limiter         *ratelimit.Limiter
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

// NewDeliverableService creates a DeliverableService. store, limiter and m may be nil.
func NewDeliverableService(
	db *gorm.DB,
	deliverableRepo *repository.DeliverableRepository,
	versionRepo *repository.DeliverableVersionRepository,
	commentRepo *repository.CommentRepository,
	projectRepo *repository.ProjectRepository,
	activity *ActivityService,
	gate *policy.Gate,
	store storage.Storage,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DeliverableService {
	return &DeliverableService{
		db:              db,
		deliverableRepo: deliverableRepo,
		versionRepo:     versionRepo,
		commentRepo:     commentRepo,
		projectRepo:     projectRepo,
		activity:        activity,
		gate:            gate,
		storage:         store,
		limiter:         limiter,
		metrics:         m,
		logger:          logger,
	}
}

// Create stores a new draft deliverable. A file URL on the request becomes version 1.
func (s *DeliverableService) Create(ctx context.Context, req *domain.CreateDeliverableRequest) (*domain.DeliverableDTO, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionCreate, policy.ResourceDeliverable, nil, ErrDeliverableNotFound)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "This field is required")
	}
	if _, err := s.projectRepo.GetClientID(ctx, req.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("projectId", "Project does not exist")
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	fileURL := strings.TrimSpace(req.FileURL)
	deliverable := &domain.Deliverable{
		ProjectID:     req.ProjectID,
		Title:         title,
		Description:   req.Description,
		Type:          req.Type,
		FileURL:       fileURL,
		ThumbnailURL:  req.ThumbnailURL,
		Status:        domain.DeliverableStatusDraft,
		CreatedByID:   actor.UserID,
		CreatedByName: actor.DisplayName,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.deliverableRepo.WithTx(tx).Create(ctx, deliverable); err != nil {
			return fmt.Errorf("failed to create deliverable: %w", err)
		}
		if fileURL == "" {
			return nil
		}
		return s.versionRepo.WithTx(tx).CreateNext(ctx, &domain.DeliverableVersion{
			DeliverableID: deliverable.ID,
			FileURL:       fileURL,
			CreatedByID:   actor.UserID,
			CreatedByName: actor.DisplayName,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deliverable created",
		zap.String("deliverable_id", deliverable.ID.String()),
		zap.String("project_id", deliverable.ProjectID.String()))
	s.record(ctx, deliverable, domain.ActivityTypeDeliverableCreated, "Deliverable \""+deliverable.Title+"\" created", false, nil)

	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// Get returns a deliverable with its versions, comments and activity. Client
// actors get the filtered view.
func (s *DeliverableService) Get(ctx context.Context, id uuid.UUID) (*domain.DeliverableDetailDTO, error) {
	deliverable, actor, err := s.load(ctx, id, policy.ActionView, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}
	clientView := actor.IsClient()

	versions, err := s.versionRepo.ListByDeliverable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	comments, err := s.commentRepo.ListByDeliverable(ctx, id, !clientView)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	activity, err := s.activity.ListForEntity(ctx, domain.EntityDeliverable, id, clientView, detailActivityLimit)
	if err != nil {
		return nil, err
	}

	return &domain.DeliverableDetailDTO{
		DeliverableDTO: mapper.ToDeliverableDTO(deliverable),
		Versions:       toVersionDTOs(versions),
		Comments:       toCommentDTOs(comments, clientView),
		Activity:       activity,
	}, nil
}

// List returns a page of deliverables. Client actors only see their own
// projects' deliverables and never drafts.
func (s *DeliverableService) List(ctx context.Context, filters DeliverableListFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionList, policy.ResourceDeliverable, nil, ErrDeliverableNotFound)
	if err != nil {
		return nil, err
	}

	repoFilters := repository.DeliverableFilters{
		ProjectID: filters.ProjectID,
		Status:    filters.Status,
		Sort:      filters.Sort,
	}
	if actor.IsClient() {
		repoFilters.Statuses = domain.ClientVisibleDeliverableStatuses
	}

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	deliverables, total, err := s.deliverableRepo.List(ctx, p, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverables: %w", err)
	}

	dtos := make([]domain.DeliverableDTO, len(deliverables))
	for i := range deliverables {
		dtos[i] = mapper.ToDeliverableDTO(&deliverables[i])
	}
	return paginated(dtos, total, p), nil
}

// Update edits descriptive fields. Final deliverables are frozen.
func (s *DeliverableService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateDeliverableRequest) (*domain.DeliverableDTO, error) {
	deliverable, _, err := s.load(ctx, id, policy.ActionUpdate, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}
	if deliverable.Status == domain.DeliverableStatusFinal {
		return nil, ErrDeliverableFinal
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.NewValidationError("title", "This field is required")
		}
		deliverable.Title = title
	}
	if req.Description != nil {
		deliverable.Description = *req.Description
	}
	if req.Type != nil {
		deliverable.Type = *req.Type
	}
	if req.ThumbnailURL != nil {
		deliverable.ThumbnailURL = *req.ThumbnailURL
	}

	if err := s.deliverableRepo.UpdateDetails(ctx, deliverable); err != nil {
		return nil, fmt.Errorf("failed to update deliverable: %w", err)
	}

	s.logger.Info("deliverable updated", zap.String("deliverable_id", id.String()))
	s.record(ctx, deliverable, domain.ActivityTypeDeliverableUpdated, "Deliverable \""+deliverable.Title+"\" updated", false, nil)

	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// Delete removes a draft or rejected deliverable with its versions and comments
func (s *DeliverableService) Delete(ctx context.Context, id uuid.UUID) error {
	deliverable, _, err := s.load(ctx, id, policy.ActionDelete, policy.ResourceDeliverable)
	if err != nil {
		return err
	}

	if err := s.deliverableRepo.DeleteInStatus(ctx, id, deletableDeliverableStatuses); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrDeliverableNotDeletable
		}
		return fmt.Errorf("failed to delete deliverable: %w", err)
	}

	s.logger.Info("deliverable deleted", zap.String("deliverable_id", id.String()))
	s.record(ctx, deliverable, domain.ActivityTypeDeliverableDeleted, "Deliverable \""+deliverable.Title+"\" deleted", false, nil)
	return nil
}

// Submit sends a draft deliverable to the client for review
func (s *DeliverableService) Submit(ctx context.Context, id uuid.UUID) (*domain.DeliverableDTO, error) {
	deliverable, _, err := s.load(ctx, id, policy.ActionSubmit, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}

	err = s.transition(ctx, s.deliverableRepo, deliverable, domain.DeliverableStatusInReview,
		map[string]interface{}{"requested_changes": false})
	if err != nil {
		return nil, err
	}
	deliverable.RequestedChanges = false

	s.record(ctx, deliverable, domain.ActivityTypeDeliverableSubmitted, "Deliverable \""+deliverable.Title+"\" submitted for review", true, nil)
	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// Approve records a client approval of an in-review deliverable. An agency
// actor approving an already approved deliverable finalizes it instead.
func (s *DeliverableService) Approve(ctx context.Context, id uuid.UUID, req *domain.ReviewDeliverableRequest) (*domain.DeliverableDTO, error) {
	if actor, ok := auth.FromContext(ctx); ok && actor.IsAgency() {
		current, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.DeliverableStatusApproved {
			return s.MarkFinal(ctx, id)
		}
	}

	deliverable, actor, err := s.load(ctx, id, policy.ActionReview, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}
	if err := domain.DeliverableGuard.Check(deliverable.Status, domain.DeliverableStatusApproved); err != nil {
		return nil, err
	}
	if err := allowAction(ctx, s.limiter, actor, ratelimit.ClassDeliverableReview); err != nil {
		return nil, err
	}

	feedback := ""
	if req != nil && req.Feedback != nil {
		feedback = strings.TrimSpace(*req.Feedback)
	}

	err = s.review(ctx, actor, deliverable, domain.DeliverableStatusApproved, feedback,
		map[string]interface{}{"requested_changes": false})
	if err != nil {
		return nil, err
	}
	deliverable.RequestedChanges = false

	s.record(ctx, deliverable, domain.ActivityTypeDeliverableApproved, "Deliverable \""+deliverable.Title+"\" approved", true,
		map[string]interface{}{"feedback": feedback})
	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// Reject records a rejection of an in-review deliverable. Feedback is
// mandatory for every actor and is checked before anything else.
func (s *DeliverableService) Reject(ctx context.Context, id uuid.UUID, req *domain.ReviewDeliverableRequest) (*domain.DeliverableDTO, error) {
	if req == nil || req.Feedback == nil || strings.TrimSpace(*req.Feedback) == "" {
		return nil, domain.NewValidationError("feedback", "Feedback is required when rejecting a deliverable")
	}
	feedback := strings.TrimSpace(*req.Feedback)

	deliverable, actor, err := s.load(ctx, id, policy.ActionReview, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}
	if err := domain.DeliverableGuard.Check(deliverable.Status, domain.DeliverableStatusRejected); err != nil {
		return nil, err
	}
	if err := allowAction(ctx, s.limiter, actor, ratelimit.ClassDeliverableReview); err != nil {
		return nil, err
	}

	err = s.review(ctx, actor, deliverable, domain.DeliverableStatusRejected, feedback,
		map[string]interface{}{"requested_changes": req.RequestChanges})
	if err != nil {
		return nil, err
	}
	deliverable.RequestedChanges = req.RequestChanges

	s.record(ctx, deliverable, domain.ActivityTypeDeliverableRejected, "Deliverable \""+deliverable.Title+"\" rejected", true,
		map[string]interface{}{"feedback": feedback, "requestChanges": req.RequestChanges})
	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// MarkFinal locks an approved deliverable
func (s *DeliverableService) MarkFinal(ctx context.Context, id uuid.UUID) (*domain.DeliverableDTO, error) {
	deliverable, _, err := s.load(ctx, id, policy.ActionFinalize, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, s.deliverableRepo, deliverable, domain.DeliverableStatusFinal, nil); err != nil {
		return nil, err
	}

	s.record(ctx, deliverable, domain.ActivityTypeDeliverableFinal, "Deliverable \""+deliverable.Title+"\" marked final", true, nil)
	dto := mapper.ToDeliverableDTO(deliverable)
	return &dto, nil
}

// CreateVersion adds the next numbered file revision. A version on a rejected
// deliverable reopens it as a draft.
func (s *DeliverableService) CreateVersion(ctx context.Context, id uuid.UUID, req *domain.CreateVersionRequest) (*domain.DeliverableVersionDTO, error) {
	deliverable, actor, err := s.load(ctx, id, policy.ActionUpdate, policy.ResourceDeliverable)
	if err != nil {
		return nil, err
	}

	fileURL := strings.TrimSpace(req.FileURL)
	if fileURL == "" {
		return nil, domain.NewValidationError("fileUrl", "This field is required")
	}
	if deliverable.Status == domain.DeliverableStatusFinal {
		return nil, ErrDeliverableFinal
	}

	version := &domain.DeliverableVersion{
		DeliverableID: id,
		FileURL:       fileURL,
		Notes:         req.Notes,
		CreatedByID:   actor.UserID,
		CreatedByName: actor.DisplayName,
	}
	reopen := deliverable.Status == domain.DeliverableStatusRejected

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.versionRepo.WithTx(tx).CreateNext(ctx, version); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConcurrentModification
			}
			return fmt.Errorf("failed to create version: %w", err)
		}
		repo := s.deliverableRepo.WithTx(tx)
		if err := repo.UpdateFile(ctx, id, fileURL); err != nil {
			return fmt.Errorf("failed to update deliverable file: %w", err)
		}
		if reopen {
			return s.transition(ctx, repo, deliverable, domain.DeliverableStatusDraft,
				map[string]interface{}{"requested_changes": false})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	deliverable.FileURL = fileURL

	s.logger.Info("deliverable version created",
		zap.String("deliverable_id", id.String()),
		zap.Int("version", version.VersionNumber))
	s.record(ctx, deliverable, domain.ActivityTypeVersionCreated,
		fmt.Sprintf("Version %d of \"%s\" uploaded", version.VersionNumber, deliverable.Title), false,
		map[string]interface{}{"versionNumber": version.VersionNumber})

	dto := mapper.ToDeliverableVersionDTO(version)
	return &dto, nil
}

// UploadVersion stores the file and then creates a version pointing at it. The
// stored object is removed again if the version cannot be created.
func (s *DeliverableService) UploadVersion(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader, notes string) (*domain.DeliverableVersionDTO, error) {
	if _, _, err := s.load(ctx, id, policy.ActionUpdate, policy.ResourceDeliverable); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}

	obj, err := s.storage.Upload(ctx, "deliverables/"+id.String(), filename, contentType, data)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, domain.NewValidationError("file", err.Error())
		}
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	version, err := s.CreateVersion(ctx, id, &domain.CreateVersionRequest{FileURL: obj.Path, Notes: notes})
	if err != nil {
		if delErr := s.storage.Delete(ctx, obj.Path); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", obj.Path), zap.Error(delErr))
		}
		return nil, err
	}
	return version, nil
}

// ListVersions returns a deliverable's versions, newest first
func (s *DeliverableService) ListVersions(ctx context.Context, id uuid.UUID) ([]domain.DeliverableVersionDTO, error) {
	if _, _, err := s.load(ctx, id, policy.ActionView, policy.ResourceDeliverable); err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.ListByDeliverable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return toVersionDTOs(versions), nil
}

// ListComments returns the comment thread oldest first. Internal comments are
// stripped for client actors.
func (s *DeliverableService) ListComments(ctx context.Context, id uuid.UUID) ([]domain.CommentDTO, error) {
	_, actor, err := s.load(ctx, id, policy.ActionList, policy.ResourceComment)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByDeliverable(ctx, id, !actor.IsClient())
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return toCommentDTOs(comments, actor.IsClient()), nil
}

// AddComment posts a comment or a one-level reply. Only agency actors may post internal comments.
func (s *DeliverableService) AddComment(ctx context.Context, id uuid.UUID, req *domain.CreateCommentRequest) (*domain.CommentDTO, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, domain.NewValidationError("body", "This field is required")
	}

	deliverable, actor, err := s.load(ctx, id, policy.ActionCreate, policy.ResourceComment)
	if err != nil {
		return nil, err
	}
	if req.IsInternal {
		if err := s.gate.Authorize(actor, policy.ActionCommentInternal, policy.ResourceComment, nil); err != nil {
			return nil, fmt.Errorf("%w: internal comments are agency only", ErrForbidden)
		}
	}

	if req.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.ParentID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load parent comment: %w", err)
		}
		if err != nil || parent.DeliverableID != id || parent.ParentID != nil ||
			(parent.IsInternal && actor.IsClient()) {
			return nil, domain.NewValidationError("parentId", "Must reference a top-level comment on this deliverable")
		}
	}

	if err := allowAction(ctx, s.limiter, actor, ratelimit.ClassCommentCreate); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		DeliverableID: id,
		ParentID:      req.ParentID,
		AuthorID:      actor.UserID,
		AuthorName:    actor.DisplayName,
		Body:          body,
		IsInternal:    req.IsInternal,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.logger.Info("comment added",
		zap.String("deliverable_id", id.String()),
		zap.String("comment_id", comment.ID.String()),
		zap.Bool("internal", comment.IsInternal))
	s.record(ctx, deliverable, domain.ActivityTypeCommentAdded, actor.DisplayName+" commented on \""+deliverable.Title+"\"", !comment.IsInternal,
		map[string]interface{}{"commentId": comment.ID.String()})

	dto := mapper.ToCommentDTO(comment)
	return &dto, nil
}

// review applies an approve or reject transition and stores the feedback as a
// visible comment in the same transaction
func (s *DeliverableService) review(ctx context.Context, actor *auth.UserContext, deliverable *domain.Deliverable, to domain.DeliverableStatus, feedback string, extra map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, s.deliverableRepo.WithTx(tx), deliverable, to, extra); err != nil {
			return err
		}
		if feedback == "" {
			return nil
		}
		return s.commentRepo.WithTx(tx).Create(ctx, &domain.Comment{
			DeliverableID: deliverable.ID,
			AuthorID:      actor.UserID,
			AuthorName:    actor.DisplayName,
			Body:          feedback,
		})
	})
}

// transition applies a guarded conditional status change and updates deliverable in place
func (s *DeliverableService) transition(ctx context.Context, repo *repository.DeliverableRepository, deliverable *domain.Deliverable, to domain.DeliverableStatus, extra map[string]interface{}) error {
	from := deliverable.Status
	if err := domain.DeliverableGuard.Check(from, to); err != nil {
		return err
	}
	if err := repo.TransitionStatus(ctx, deliverable.ID, from, to, extra); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to update deliverable status: %w", err)
	}
	deliverable.Status = to
	s.metrics.Transition(string(domain.EntityDeliverable), string(from), string(to))
	s.logger.Info("deliverable status changed",
		zap.String("deliverable_id", deliverable.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// load fetches a deliverable and authorizes action against its project's
// client. Drafts are hidden from client actors.
func (s *DeliverableService) load(ctx context.Context, id uuid.UUID, action policy.Action, resource policy.Resource) (*domain.Deliverable, *auth.UserContext, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, nil, ErrUnauthorized
	}
	deliverable, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	clientID, err := s.projectRepo.GetClientID(ctx, deliverable.ProjectID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}

	actor, err := authorize(ctx, s.gate, action, resource, &policy.Subject{ClientID: clientID}, ErrDeliverableNotFound)
	if err != nil {
		return nil, nil, err
	}
	if actor.IsClient() && !deliverable.Status.IsClientVisible() {
		return nil, nil, ErrDeliverableNotFound
	}
	return deliverable, actor, nil
}

func (s *DeliverableService) get(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	deliverable, err := s.deliverableRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliverableNotFound
		}
		return nil, fmt.Errorf("failed to load deliverable: %w", err)
	}
	return deliverable, nil
}

func (s *DeliverableService) record(ctx context.Context, d *domain.Deliverable, activityType domain.ActivityType, title string, clientVisible bool, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["status"] = string(d.Status)
	projectID := d.ProjectID
	s.activity.Record(ctx, ActivityEntry{
		ProjectID:     &projectID,
		Type:          activityType,
		EntityType:    domain.EntityDeliverable,
		EntityID:      d.ID,
		Title:         title,
		Metadata:      metadata,
		ClientVisible: clientVisible,
	})
}

func toVersionDTOs(versions []domain.DeliverableVersion) []domain.DeliverableVersionDTO {
	dtos := make([]domain.DeliverableVersionDTO, len(versions))
	for i := range versions {
		dtos[i] = mapper.ToDeliverableVersionDTO(&versions[i])
	}
	return dtos
}

// toCommentDTOs maps comments, dropping internal ones for client views
func toCommentDTOs(comments []domain.Comment, clientView bool) []domain.CommentDTO {
	dtos := make([]domain.CommentDTO, 0, len(comments))
	for i := range comments {
		if clientView && comments[i].IsInternal {
			continue
		}
		dtos = append(dtos, mapper.ToCommentDTO(&comments[i]))
	}
	return dtos
}
