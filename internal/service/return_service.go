package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrReturnNotFound     = errors.New("return not found")
	ErrReturnNotDeletable = errors.New("return can only be deleted while pending")
)

// ReturnListFilters are the query filters accepted by List
type ReturnListFilters struct {
	ProjectID *uuid.UUID
	Status    *domain.ReturnStatus
	Sort      repository.SortConfig
}

// ReturnService owns vendor returns. Receiving the refund on an in-progress
// return completes it.
type ReturnService struct {
	repo     *repository.ReturnRepository
	activity *ActivityService
	gate     *policy.Gate
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewReturnService(
	repo *repository.ReturnRepository,
	activity *ActivityService,
	gate *policy.Gate,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReturnService {
	return &ReturnService{
		repo:     repo,
		activity: activity,
		gate:     gate,
		metrics:  m,
		logger:   logger,
	}
}

func (s *ReturnService) Create(ctx context.Context, req *domain.CreateReturnRequest) (*domain.ReturnDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionCreate, policy.ResourceReturn, nil, ErrReturnNotFound); err != nil {
		return nil, err
	}

	vendor := strings.TrimSpace(req.Vendor)
	if vendor == "" {
		return nil, domain.NewValidationError("vendor", "This field is required")
	}
	netReturn, err := nonNegative("netReturn", req.NetReturn)
	if err != nil {
		return nil, err
	}
	restockingFee, err := nonNegative("restockingFee", req.RestockingFee)
	if err != nil {
		return nil, err
	}

	ret := &domain.Return{
		ProjectID:     req.ProjectID,
		ExpenseID:     req.ExpenseID,
		Vendor:        vendor,
		Description:   req.Description,
		Status:        domain.ReturnStatusPending,
		NetReturn:     netReturn,
		RestockingFee: restockingFee,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, ret); err != nil {
		return nil, fmt.Errorf("failed to create return: %w", err)
	}

	s.logger.Info("return created", zap.String("return_id", ret.ID.String()), zap.String("vendor", vendor))
	s.record(ctx, ret, domain.ActivityTypeReturnCreated, "Return to "+vendor+" created", nil)

	dto := mapper.ToReturnDTO(ret)
	return &dto, nil
}

func (s *ReturnService) Get(ctx context.Context, id uuid.UUID) (*domain.ReturnDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionView, policy.ResourceReturn, nil, ErrReturnNotFound); err != nil {
		return nil, err
	}
	ret, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToReturnDTO(ret)
	return &dto, nil
}

func (s *ReturnService) List(ctx context.Context, filters ReturnListFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionList, policy.ResourceReturn, nil, ErrReturnNotFound); err != nil {
		return nil, err
	}

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	returns, total, err := s.repo.List(ctx, p, repository.ReturnFilters{
		ProjectID: filters.ProjectID,
		Status:    filters.Status,
		Sort:      filters.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}

	dtos := make([]domain.ReturnDTO, len(returns))
	for i := range returns {
		dtos[i] = mapper.ToReturnDTO(&returns[i])
	}
	return paginated(dtos, total, p), nil
}

// Update applies the whitelisted fields. A refund date recorded while the
// return is in progress, with no other status requested, completes the return.
func (s *ReturnService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateReturnRequest) (*domain.ReturnDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionUpdate, policy.ResourceReturn, nil, ErrReturnNotFound); err != nil {
		return nil, err
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Vendor != nil {
		vendor := strings.TrimSpace(*req.Vendor)
		if vendor == "" {
			return nil, domain.NewValidationError("vendor", "This field is required")
		}
		updates["vendor"] = vendor
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.NetReturn != nil {
		v, err := nonNegative("netReturn", req.NetReturn)
		if err != nil {
			return nil, err
		}
		updates["net_return"] = v
	}
	if req.RestockingFee != nil {
		v, err := nonNegative("restockingFee", req.RestockingFee)
		if err != nil {
			return nil, err
		}
		updates["restocking_fee"] = v
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	var refundReceived *time.Time
	if req.RefundReceivedDate != nil {
		d, err := parseDate("refundReceivedDate", *req.RefundReceivedDate)
		if err != nil {
			return nil, err
		}
		updates["refund_received_date"] = d
		refundReceived = d
	}
	completedDate := current.ReturnCompletedDate
	if req.ReturnCompletedDate != nil {
		d, err := parseDate("returnCompletedDate", *req.ReturnCompletedDate)
		if err != nil {
			return nil, err
		}
		updates["return_completed_date"] = d
		completedDate = d
	}

	from := current.Status
	to := EffectiveReturnStatus(from, req.Status, refundReceived)
	if to != from {
		if err := domain.ReturnGuard.Check(from, to); err != nil {
			return nil, err
		}
		updates["status"] = to
		if to == domain.ReturnStatusCompleted && completedDate == nil {
			updates["return_completed_date"] = today()
		}
	}

	if len(updates) == 0 {
		dto := mapper.ToReturnDTO(current)
		return &dto, nil
	}
	updates["updated_at"] = time.Now()

	if err := s.repo.UpdateFromStatus(ctx, id, from, updates); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("failed to update return: %w", err)
	}

	updated, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if to != from {
		s.metrics.Transition(string(domain.EntityReturn), string(from), string(to))
		s.logger.Info("return status changed",
			zap.String("return_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		s.record(ctx, updated, domain.ActivityTypeReturnStatus,
			fmt.Sprintf("Return to %s %s", updated.Vendor, to),
			map[string]interface{}{"from": string(from), "to": string(to)})
	}

	dto := mapper.ToReturnDTO(updated)
	return &dto, nil
}

// EffectiveReturnStatus resolves the status a PATCH leads to. An explicit
// status wins, even one equal to the current status. Otherwise a refund date
// received while in_progress completes the return; from any other status it
// is stored without a status change.
func EffectiveReturnStatus(current domain.ReturnStatus, requested *domain.ReturnStatus, refundReceived *time.Time) domain.ReturnStatus {
	if requested != nil {
		return *requested
	}
	if refundReceived != nil && current == domain.ReturnStatusInProgress {
		return domain.ReturnStatusCompleted
	}
	return current
}

// Delete removes a return that has not left pending
func (s *ReturnService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := authorize(ctx, s.gate, policy.ActionDelete, policy.ResourceReturn, nil, ErrReturnNotFound); err != nil {
		return err
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteInStatus(ctx, id, []domain.ReturnStatus{domain.ReturnStatusPending}); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrReturnNotDeletable
		}
		return fmt.Errorf("failed to delete return: %w", err)
	}
	s.logger.Info("return deleted", zap.String("return_id", id.String()))
	return nil
}

func (s *ReturnService) get(ctx context.Context, id uuid.UUID) (*domain.Return, error) {
	ret, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReturnNotFound
		}
		return nil, fmt.Errorf("failed to load return: %w", err)
	}
	return ret, nil
}

func (s *ReturnService) record(ctx context.Context, r *domain.Return, activityType domain.ActivityType, title string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["netReturn"] = r.NetReturn.StringFixed(2)
	s.activity.Record(ctx, ActivityEntry{
		ProjectID:  r.ProjectID,
		Type:       activityType,
		EntityType: domain.EntityReturn,
		EntityID:   r.ID,
		Title:      title,
		Metadata:   metadata,
	})
}

func nonNegative(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if v.IsNegative() {
		return decimal.Zero, domain.NewValidationError(field, "Must be greater than or equal to 0")
	}
	return *v, nil
}
