package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrReimbursementNotFound = errors.New("reimbursement not found")

// ReimbursementListFilters are the query filters accepted by List
type ReimbursementListFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.ReimbursementStatus
	Sort      repository.SortConfig
}

// ReimbursementService owns the reimbursement ledger. Approval and payout are
// gated by role; approval and payment dates are stamped here, never taken from the caller.
type ReimbursementService struct {
	repo     *repository.ReimbursementRepository
	activity *ActivityService
	gate     *policy.Gate
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewReimbursementService(
	repo *repository.ReimbursementRepository,
	activity *ActivityService,
	gate *policy.Gate,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReimbursementService {
	return &ReimbursementService{
		repo:     repo,
		activity: activity,
		gate:     gate,
		metrics:  m,
		logger:   logger,
	}
}

func (s *ReimbursementService) Create(ctx context.Context, req *domain.CreateReimbursementRequest) (*domain.ReimbursementDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionCreate, policy.ResourceReimbursement, nil, ErrReimbursementNotFound); err != nil {
		return nil, err
	}

	personName := strings.TrimSpace(req.PersonName)
	if personName == "" {
		return nil, domain.NewValidationError("personName", "This field is required")
	}
	if req.Amount == nil {
		return nil, domain.NewValidationError("amount", "This field is required")
	}
	if err := validateAmount(*req.Amount); err != nil {
		return nil, err
	}

	reimbursement := &domain.Reimbursement{
		ProjectID:   req.ProjectID,
		ExpenseID:   req.ExpenseID,
		PersonName:  personName,
		Description: req.Description,
		Amount:      *req.Amount,
		Status:      domain.ReimbursementStatusPending,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, reimbursement); err != nil {
		return nil, fmt.Errorf("failed to create reimbursement: %w", err)
	}

	s.logger.Info("reimbursement created",
		zap.String("reimbursement_id", reimbursement.ID.String()),
		zap.String("amount", reimbursement.Amount.StringFixed(2)))
	s.record(ctx, reimbursement, domain.ActivityTypeReimbursementCreated, "Reimbursement for "+personName+" created", nil)

	dto := mapper.ToReimbursementDTO(reimbursement)
	return &dto, nil
}

func (s *ReimbursementService) Get(ctx context.Context, id uuid.UUID) (*domain.ReimbursementDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionView, policy.ResourceReimbursement, nil, ErrReimbursementNotFound); err != nil {
		return nil, err
	}
	reimbursement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToReimbursementDTO(reimbursement)
	return &dto, nil
}

func (s *ReimbursementService) List(ctx context.Context, filters ReimbursementListFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionList, policy.ResourceReimbursement, nil, ErrReimbursementNotFound); err != nil {
		return nil, err
	}

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	reimbursements, total, err := s.repo.List(ctx, p, repository.ReimbursementFilters{
		ProjectID: filters.ProjectID,
		Status:    filters.Status,
		Sort:      filters.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reimbursements: %w", err)
	}

	dtos := make([]domain.ReimbursementDTO, len(reimbursements))
	for i := range reimbursements {
		dtos[i] = mapper.ToReimbursementDTO(&reimbursements[i])
	}
	return paginated(dtos, total, p), nil
}

// Update applies the whitelisted fields. A status change is checked against the
// transition table, and moving to approved or paid requires the payout permission.
func (s *ReimbursementService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateReimbursementRequest) (*domain.ReimbursementDTO, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionUpdate, policy.ResourceReimbursement, nil, ErrReimbursementNotFound)
	if err != nil {
		return nil, err
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.PersonName != nil {
		name := strings.TrimSpace(*req.PersonName)
		if name == "" {
			return nil, domain.NewValidationError("personName", "This field is required")
		}
		updates["person_name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		updates["amount"] = *req.Amount
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	var requestedDatePaid *time.Time
	if req.DatePaid != nil {
		d, err := parseDate("datePaid", *req.DatePaid)
		if err != nil {
			return nil, err
		}
		requestedDatePaid = d
	}

	from := current.Status
	to := from
	if req.Status != nil {
		to = *req.Status
	}

	// A paid date only belongs on a paid reimbursement; otherwise it is dropped
	datePaid := current.DatePaid
	if requestedDatePaid != nil && to == domain.ReimbursementStatusPaid {
		updates["date_paid"] = requestedDatePaid
		datePaid = requestedDatePaid
	}

	if to != from {
		if to == domain.ReimbursementStatusApproved || to == domain.ReimbursementStatusPaid {
			if err := s.gate.Authorize(actor, policy.ActionApprovePayout, policy.ResourceReimbursement, nil); err != nil {
				return nil, fmt.Errorf("%w: %s reimbursements", ErrForbidden, to)
			}
		}
		if err := domain.ReimbursementGuard.Check(from, to); err != nil {
			return nil, err
		}
		for k, v := range reimbursementStamps(actor, to, datePaid) {
			updates[k] = v
		}
		updates["status"] = to
	}

	if len(updates) == 0 {
		dto := mapper.ToReimbursementDTO(current)
		return &dto, nil
	}
	updates["updated_at"] = time.Now()

	if err := s.repo.UpdateFromStatus(ctx, id, from, updates); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("failed to update reimbursement: %w", err)
	}

	updated, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if to != from {
		s.metrics.Transition(string(domain.EntityReimbursement), string(from), string(to))
		s.logger.Info("reimbursement status changed",
			zap.String("reimbursement_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		s.record(ctx, updated, domain.ActivityTypeReimbursementStatus,
			fmt.Sprintf("Reimbursement for %s %s", updated.PersonName, to),
			map[string]interface{}{"from": string(from), "to": string(to)})
	}

	dto := mapper.ToReimbursementDTO(updated)
	return &dto, nil
}

// reimbursementStamps derives the columns written alongside a status change
func reimbursementStamps(actor *auth.UserContext, to domain.ReimbursementStatus, datePaid *time.Time) map[string]interface{} {
	stamps := map[string]interface{}{}
	switch to {
	case domain.ReimbursementStatusApproved:
		stamps["approved_by_id"] = actor.UserID
		stamps["approved_by"] = actor.DisplayName
		stamps["date_approved"] = today()
	case domain.ReimbursementStatusPaid:
		if datePaid == nil {
			stamps["date_paid"] = today()
		}
	case domain.ReimbursementStatusPending:
		stamps["approved_by_id"] = nil
		stamps["approved_by"] = ""
		stamps["date_approved"] = nil
	}
	return stamps
}

func (s *ReimbursementService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := authorize(ctx, s.gate, policy.ActionDelete, policy.ResourceReimbursement, nil, ErrReimbursementNotFound); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReimbursementNotFound
		}
		return fmt.Errorf("failed to delete reimbursement: %w", err)
	}
	s.logger.Info("reimbursement deleted", zap.String("reimbursement_id", id.String()))
	return nil
}

func (s *ReimbursementService) get(ctx context.Context, id uuid.UUID) (*domain.Reimbursement, error) {
	reimbursement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReimbursementNotFound
		}
		return nil, fmt.Errorf("failed to load reimbursement: %w", err)
	}
	return reimbursement, nil
}

func (s *ReimbursementService) record(ctx context.Context, r *domain.Reimbursement, activityType domain.ActivityType, title string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["amount"] = r.Amount.StringFixed(2)
	s.activity.Record(ctx, ActivityEntry{
		ProjectID:  r.ProjectID,
		Type:       activityType,
		EntityType: domain.EntityReimbursement,
		EntityID:   r.ID,
		Title:      title,
		Metadata:   metadata,
	})
}
