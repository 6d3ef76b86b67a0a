package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk
const multipartMemory = 32 << 20

// DeliverableHandler handles HTTP requests for deliverables, their versions and comments
type DeliverableHandler struct {
	deliverableService *service.DeliverableService
	maxUploadMB        int64
	logger             *zap.Logger
}

// NewDeliverableHandler creates a new deliverable handler instance
func NewDeliverableHandler(deliverableService *service.DeliverableService, maxUploadMB int64, logger *zap.Logger) *DeliverableHandler {
	return &DeliverableHandler{
		deliverableService: deliverableService,
		maxUploadMB:        maxUploadMB,
		logger:             logger,
	}
}

// List godoc
// @Summary List deliverables
// @Description Get paginated list of deliverables. Client users never see drafts.
// @Tags Deliverables
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectId query string false "Filter by project" format(uuid)
// @Param status query string false "Filter by status" Enums(draft, in_review, approved, rejected, final)
// @Param sortBy query string false "Sort field" Enums(updatedAt, createdAt, title, status) default(updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.DeliverableDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables [get]
func (h *DeliverableHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	var filters service.DeliverableListFilters
	filters.Sort = parseSort(r)
	var ok bool
	if filters.ProjectID, ok = parseUUIDQuery(w, r, "projectId"); !ok {
		return
	}
	if filters.Status, ok = parseStatusQuery(w, r, domain.DeliverableGuard); !ok {
		return
	}

	result, err := h.deliverableService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to list deliverables")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get deliverable by ID
// @Description Get a deliverable with its versions, comments and activity
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 200 {object} domain.DeliverableDetailDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id} [get]
func (h *DeliverableHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	deliverable, err := h.deliverableService.Get(r.Context(), id)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to get deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// Create godoc
// @Summary Create deliverable
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param request body domain.CreateDeliverableRequest true "Deliverable data"
// @Success 201 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables [post]
func (h *DeliverableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeliverableRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deliverable, err := h.deliverableService.Create(r.Context(), &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to create deliverable")
		return
	}

	respondJSON(w, http.StatusCreated, deliverable)
}

// Update godoc
// @Summary Update deliverable
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param request body domain.UpdateDeliverableRequest true "Fields to change"
// @Success 200 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Deliverable is final"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id} [patch]
func (h *DeliverableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	var req domain.UpdateDeliverableRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deliverable, err := h.deliverableService.Update(r.Context(), id, &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to update deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// Delete godoc
// @Summary Delete deliverable
// @Description Delete a draft or rejected deliverable
// @Tags Deliverables
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id} [delete]
func (h *DeliverableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	if err := h.deliverableService.Delete(r.Context(), id); err != nil {
		h.handleDeliverableError(w, err, "Failed to delete deliverable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Submit godoc
// @Summary Submit deliverable for review
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 200 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/submit [post]
func (h *DeliverableHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	deliverable, err := h.deliverableService.Submit(r.Context(), id)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to submit deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// Approve godoc
// @Summary Approve deliverable
// @Description Approve a deliverable in review. Optional feedback is stored as a comment.
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param request body domain.ReviewDeliverableRequest false "Review feedback"
// @Success 200 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/approve [post]
func (h *DeliverableHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	var req domain.ReviewDeliverableRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	deliverable, err := h.deliverableService.Approve(r.Context(), id, &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to approve deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// Reject godoc
// @Summary Reject deliverable
// @Description Reject a deliverable in review. Feedback is required.
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param request body domain.ReviewDeliverableRequest true "Review feedback"
// @Success 200 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/reject [post]
func (h *DeliverableHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	var req domain.ReviewDeliverableRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	deliverable, err := h.deliverableService.Reject(r.Context(), id, &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to reject deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// Finalize godoc
// @Summary Finalize deliverable
// @Description Mark an approved deliverable as final
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 200 {object} domain.DeliverableDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/finalize [post]
func (h *DeliverableHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	deliverable, err := h.deliverableService.MarkFinal(r.Context(), id)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to finalize deliverable")
		return
	}

	respondJSON(w, http.StatusOK, deliverable)
}

// ListVersions godoc
// @Summary List deliverable versions
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 200 {array} domain.DeliverableVersionDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/versions [get]
func (h *DeliverableHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	versions, err := h.deliverableService.ListVersions(r.Context(), id)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to list versions")
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// CreateVersion godoc
// @Summary Add deliverable version
// @Description Record a new version pointing at an already stored file
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param request body domain.CreateVersionRequest true "Version data"
// @Success 201 {object} domain.DeliverableVersionDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Deliverable is final"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/versions [post]
func (h *DeliverableHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	var req domain.CreateVersionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	version, err := h.deliverableService.CreateVersion(r.Context(), id, &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to create version")
		return
	}

	respondJSON(w, http.StatusCreated, version)
}

// UploadVersion godoc
// @Summary Upload deliverable version
// @Description Store an uploaded file and record it as a new version
// @Tags Deliverables
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param file formData file true "File to upload"
// @Param notes formData string false "Version notes"
// @Success 201 {object} domain.DeliverableVersionDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/versions/upload [post]
func (h *DeliverableHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	version, err := h.deliverableService.UploadVersion(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file, r.FormValue("notes"))
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to upload version")
		return
	}

	respondJSON(w, http.StatusCreated, version)
}

// ListComments godoc
// @Summary List deliverable comments
// @Description Internal comments are omitted for client users
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Success 200 {array} domain.CommentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/comments [get]
func (h *DeliverableHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	comments, err := h.deliverableService.ListComments(r.Context(), id)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to list comments")
		return
	}

	respondJSON(w, http.StatusOK, comments)
}

// AddComment godoc
// @Summary Comment on deliverable
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID" format(uuid)
// @Param request body domain.CreateCommentRequest true "Comment"
// @Success 201 {object} domain.CommentDTO
// @Failure 400 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliverables/{id}/comments [post]
func (h *DeliverableHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "deliverable")
	if !ok {
		return
	}

	var req domain.CreateCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.deliverableService.AddComment(r.Context(), id, &req)
	if err != nil {
		h.handleDeliverableError(w, err, "Failed to add comment")
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

func (h *DeliverableHandler) handleDeliverableError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, service.ErrDeliverableNotFound):
		respondWithError(w, http.StatusNotFound, "Deliverable not found")
	case errors.Is(err, service.ErrDeliverableFinal):
		respondWithError(w, http.StatusConflict, "Deliverable is final and can no longer change")
	case errors.Is(err, service.ErrDeliverableNotDeletable):
		respondWithError(w, http.StatusConflict, "Deliverable can only be deleted while draft or rejected")
	case errors.Is(err, service.ErrStorageNotConfigured):
		respondWithError(w, http.StatusServiceUnavailable, "File storage is not configured")
	default:
		if !handleServiceError(w, err) {
			respondInternalError(w, h.logger, message, err)
		}
	}
}
