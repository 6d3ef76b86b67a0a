package handler

import (
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

// ActivityHandler handles HTTP requests for the project activity feed
type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

// NewActivityHandler creates a new ActivityHandler instance
func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// ListForProject godoc
// @Summary List project activity
// @Description Get the project's activity feed, newest first. Client users only see client-visible entries.
// @Tags Activities
// @Produce json
// @Param id path string true "Project ID" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ActivityDTO}
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/activity [get]
func (h *ActivityHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "project")
	if !ok {
		return
	}
	page, pageSize := parsePagination(r)

	result, err := h.activityService.ListByProject(r.Context(), projectID, page, pageSize)
	if err != nil {
		if !handleServiceError(w, err) {
			respondInternalError(w, h.logger, "Failed to list activity", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}
