package handler

import (
	"errors"
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

// ReimbursementHandler handles HTTP requests for team member reimbursements
type ReimbursementHandler struct {
	reimbursementService *service.ReimbursementService
	logger               *zap.Logger
}

// NewReimbursementHandler creates a new reimbursement handler instance
func NewReimbursementHandler(reimbursementService *service.ReimbursementService, logger *zap.Logger) *ReimbursementHandler {
	return &ReimbursementHandler{
		reimbursementService: reimbursementService,
		logger:               logger,
	}
}

// List godoc
// @Summary List reimbursements
// @Tags Reimbursements
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectId query string false "Filter by project" format(uuid)
// @Param status query string false "Filter by status" Enums(pending, approved, rejected, paid)
// @Param sortBy query string false "Sort field" Enums(createdAt, amount, personName, status) default(createdAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ReimbursementDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reimbursements [get]
func (h *ReimbursementHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	var filters service.ReimbursementListFilters
	filters.Sort = parseSort(r)
	var ok bool
	if filters.ProjectID, ok = parseUUIDQuery(w, r, "projectId"); !ok {
		return
	}
	if filters.Status, ok = parseStatusQuery(w, r, domain.ReimbursementGuard); !ok {
		return
	}

	result, err := h.reimbursementService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		h.handleReimbursementError(w, err, "Failed to list reimbursements")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get reimbursement by ID
// @Tags Reimbursements
// @Produce json
// @Param id path string true "Reimbursement ID" format(uuid)
// @Success 200 {object} domain.ReimbursementDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reimbursements/{id} [get]
func (h *ReimbursementHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "reimbursement")
	if !ok {
		return
	}

	reimbursement, err := h.reimbursementService.Get(r.Context(), id)
	if err != nil {
		h.handleReimbursementError(w, err, "Failed to get reimbursement")
		return
	}

	respondJSON(w, http.StatusOK, reimbursement)
}

// Create godoc
// @Summary Create reimbursement
// @Tags Reimbursements
// @Accept json
// @Produce json
// @Param request body domain.CreateReimbursementRequest true "Reimbursement data"
// @Success 201 {object} domain.ReimbursementDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reimbursements [post]
func (h *ReimbursementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReimbursementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reimbursement, err := h.reimbursementService.Create(r.Context(), &req)
	if err != nil {
		h.handleReimbursementError(w, err, "Failed to create reimbursement")
		return
	}

	respondJSON(w, http.StatusCreated, reimbursement)
}

// Update godoc
// @Summary Update reimbursement
// @Description Patch a reimbursement. Only personName, description, amount, status, datePaid and notes are applied.
// @Description Approving or paying requires the approve_payout permission.
// @Tags Reimbursements
// @Accept json
// @Produce json
// @Param id path string true "Reimbursement ID" format(uuid)
// @Param request body domain.UpdateReimbursementRequest true "Fields to change"
// @Success 200 {object} domain.ReimbursementDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reimbursements/{id} [patch]
func (h *ReimbursementHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "reimbursement")
	if !ok {
		return
	}

	var req domain.UpdateReimbursementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reimbursement, err := h.reimbursementService.Update(r.Context(), id, &req)
	if err != nil {
		h.handleReimbursementError(w, err, "Failed to update reimbursement")
		return
	}

	respondJSON(w, http.StatusOK, reimbursement)
}

// Delete godoc
// @Summary Delete reimbursement
// @Tags Reimbursements
// @Param id path string true "Reimbursement ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reimbursements/{id} [delete]
func (h *ReimbursementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "reimbursement")
	if !ok {
		return
	}

	if err := h.reimbursementService.Delete(r.Context(), id); err != nil {
		h.handleReimbursementError(w, err, "Failed to delete reimbursement")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReimbursementHandler) handleReimbursementError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, service.ErrReimbursementNotFound) {
		respondWithError(w, http.StatusNotFound, "Reimbursement not found")
		return
	}
	if !handleServiceError(w, err) {
		respondInternalError(w, h.logger, message, err)
	}
}
