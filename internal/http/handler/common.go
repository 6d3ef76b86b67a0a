package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

var validate = validator.New()

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	errors := make(map[string]string)
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			fieldName := toJSONFieldName(fe.Field())
			errors[fieldName] = formatValidationError(fe)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: errors,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	if strings.HasSuffix(field, "ID") {
		field = strings.TrimSuffix(field, "ID") + "Id"
	}
	if strings.HasSuffix(field, "URL") {
		field = strings.TrimSuffix(field, "URL") + "Url"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondAPIError(w, status, getErrorType(status), message, nil)
}

func respondAPIError(w http.ResponseWriter, status int, errorType, detail string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   errorType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Errors: fields,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimited
	default:
		return domain.ErrorTypeInternal
	}
}

// handleServiceError maps the errors shared by every service onto the API
// error taxonomy. It reports false when err is not one of them so callers can
// handle their own sentinels first and fall through here.
func handleServiceError(w http.ResponseWriter, err error) bool {
	var validationErr *domain.ValidationError
	var transitionErr *domain.TransitionError

	switch {
	case errors.As(err, &validationErr):
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeValidation, "One or more fields failed validation",
			map[string]string{validationErr.Field: validationErr.Message})
	case errors.As(err, &transitionErr):
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeInvalidTransition, transitionErr.Error(), nil)
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "You do not have permission to perform this action")
	case errors.Is(err, service.ErrClientNotFound):
		respondWithError(w, http.StatusNotFound, "Client not found")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, service.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "The resource was modified by another request, reload and retry")
	case errors.Is(err, service.ErrRateLimited):
		respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded, try again later")
	case errors.Is(err, service.ErrGatewayNotConfigured):
		respondAPIError(w, http.StatusServiceUnavailable, domain.ErrorTypeUpstream, "Payment gateway is not configured", nil)
	case errors.Is(err, service.ErrGatewayUnavailable):
		respondAPIError(w, http.StatusInternalServerError, domain.ErrorTypeUpstream, "Payment gateway request failed", nil)
	default:
		return false
	}
	return true
}

// respondInternalError logs err and sends a generic 500
func respondInternalError(w http.ResponseWriter, logger *zap.Logger, message string, err error) {
	logger.Error(message, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, message)
}

// decodeAndValidate decodes a JSON body into req and runs struct validation.
// It writes the 400 response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	return decodeBody(w, r, req, false)
}

// decodeOptionalBody is decodeAndValidate for endpoints whose body may be omitted
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	return decodeBody(w, r, req, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, req interface{}, allowEmpty bool) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// parseIDParam parses the {id} URL parameter
func parseIDParam(w http.ResponseWriter, r *http.Request, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID format", entity))
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads page and pageSize, clamping pageSize to maxPageSize
func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// parseSort reads sortBy and sortOrder. Unknown fields fall back to the list's default column.
func parseSort(r *http.Request) repository.SortConfig {
	return repository.SortConfig{
		Field: r.URL.Query().Get("sortBy"),
		Order: repository.ParseSortOrder(r.URL.Query().Get("sortOrder")),
	}
}

// parseUUIDQuery parses an optional UUID query parameter
func parseUUIDQuery(w http.ResponseWriter, r *http.Request, key string) (*uuid.UUID, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, true
	}
	id, err := uuid.Parse(value)
	if err != nil {
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeValidation, "Invalid query parameter",
			map[string]string{key: "Must be a valid UUID"})
		return nil, false
	}
	return &id, true
}

// parseStatusQuery parses an optional status query parameter against the entity's guard
func parseStatusQuery[S ~string](w http.ResponseWriter, r *http.Request, guard domain.StatusGuard[S]) (*S, bool) {
	value := r.URL.Query().Get("status")
	if value == "" {
		return nil, true
	}
	status := S(value)
	if !guard.Known(status) {
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeValidation, "Invalid query parameter",
			map[string]string{"status": "Unknown status"})
		return nil, false
	}
	return &status, true
}
