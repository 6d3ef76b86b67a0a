package handler

import (
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"go.uber.org/zap"
)

type AuthHandler struct {
	gate   *policy.Gate
	logger *zap.Logger
}

func NewAuthHandler(gate *policy.Gate, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		gate:   gate,
		logger: logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the current authenticated user with roles, client link and effective permissions
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	perms := h.gate.Permissions(userCtx)
	permissionDTOs := make([]domain.PermissionDTO, len(perms))
	for i, p := range perms {
		permissionDTOs[i] = domain.PermissionDTO{Resource: string(p.Resource), Action: string(p.Action)}
	}

	respondJSON(w, http.StatusOK, domain.AuthUserDTO{
		ID:          userCtx.UserID,
		Name:        userCtx.DisplayName,
		Email:       userCtx.Email,
		Roles:       userCtx.RolesAsStrings(),
		ClientID:    userCtx.ClientID,
		IsAgency:    userCtx.IsAgency(),
		Permissions: permissionDTOs,
	})
}
