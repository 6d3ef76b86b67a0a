package handler

import (
	"errors"
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

// ReturnHandler handles HTTP requests for vendor returns
type ReturnHandler struct {
	returnService *service.ReturnService
	logger        *zap.Logger
}

// NewReturnHandler creates a new return handler instance
func NewReturnHandler(returnService *service.ReturnService, logger *zap.Logger) *ReturnHandler {
	return &ReturnHandler{
		returnService: returnService,
		logger:        logger,
	}
}

// List godoc
// @Summary List vendor returns
// @Tags Returns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectId query string false "Filter by project" format(uuid)
// @Param status query string false "Filter by status" Enums(pending, in_progress, completed, cancelled)
// @Param sortBy query string false "Sort field" Enums(createdAt, netReturn, vendor, status) default(createdAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ReturnDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /returns [get]
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	var filters service.ReturnListFilters
	filters.Sort = parseSort(r)
	var ok bool
	if filters.ProjectID, ok = parseUUIDQuery(w, r, "projectId"); !ok {
		return
	}
	if filters.Status, ok = parseStatusQuery(w, r, domain.ReturnGuard); !ok {
		return
	}

	result, err := h.returnService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		h.handleReturnError(w, err, "Failed to list returns")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get vendor return by ID
// @Tags Returns
// @Produce json
// @Param id path string true "Return ID" format(uuid)
// @Success 200 {object} domain.ReturnDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /returns/{id} [get]
func (h *ReturnHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "return")
	if !ok {
		return
	}

	ret, err := h.returnService.Get(r.Context(), id)
	if err != nil {
		h.handleReturnError(w, err, "Failed to get return")
		return
	}

	respondJSON(w, http.StatusOK, ret)
}

// Create godoc
// @Summary Create vendor return
// @Tags Returns
// @Accept json
// @Produce json
// @Param request body domain.CreateReturnRequest true "Return data"
// @Success 201 {object} domain.ReturnDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /returns [post]
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReturnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ret, err := h.returnService.Create(r.Context(), &req)
	if err != nil {
		h.handleReturnError(w, err, "Failed to create return")
		return
	}

	respondJSON(w, http.StatusCreated, ret)
}

// Update godoc
// @Summary Update vendor return
// @Description Patch a return. Setting refundReceivedDate on an in-progress return completes it.
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID" format(uuid)
// @Param request body domain.UpdateReturnRequest true "Fields to change"
// @Success 200 {object} domain.ReturnDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /returns/{id} [patch]
func (h *ReturnHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "return")
	if !ok {
		return
	}

	var req domain.UpdateReturnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ret, err := h.returnService.Update(r.Context(), id, &req)
	if err != nil {
		h.handleReturnError(w, err, "Failed to update return")
		return
	}

	respondJSON(w, http.StatusOK, ret)
}

// Delete godoc
// @Summary Delete vendor return
// @Description Only pending returns can be deleted
// @Tags Returns
// @Param id path string true "Return ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /returns/{id} [delete]
func (h *ReturnHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "return")
	if !ok {
		return
	}

	if err := h.returnService.Delete(r.Context(), id); err != nil {
		h.handleReturnError(w, err, "Failed to delete return")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReturnHandler) handleReturnError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, service.ErrReturnNotFound):
		respondWithError(w, http.StatusNotFound, "Return not found")
	case errors.Is(err, service.ErrReturnNotDeletable):
		respondWithError(w, http.StatusConflict, "Return can only be deleted while pending")
	default:
		if !handleServiceError(w, err) {
			respondInternalError(w, h.logger, message, err)
		}
	}
}
