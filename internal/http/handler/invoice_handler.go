package handler

import (
	"errors"
	"net/http"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/service"
	"go.uber.org/zap"
)

// InvoiceHandler handles HTTP requests for invoices and their reconciliation
type InvoiceHandler struct {
	invoiceService        *service.InvoiceService
	reconciliationService *service.ReconciliationService
	logger                *zap.Logger
}

// NewInvoiceHandler creates a new invoice handler instance
func NewInvoiceHandler(
	invoiceService *service.InvoiceService,
	reconciliationService *service.ReconciliationService,
	logger *zap.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:        invoiceService,
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// List godoc
// @Summary List invoices
// @Description Get paginated list of invoices. Client users only see non-draft invoices of their own client.
// @Tags Invoices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectId query string false "Filter by project" format(uuid)
// @Param clientId query string false "Filter by client" format(uuid)
// @Param status query string false "Filter by status" Enums(draft, sent, paid, overdue, cancelled)
// @Param sortBy query string false "Sort field" Enums(createdAt, dueDate, totalAmount, invoiceNumber, status) default(createdAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Param type query string false "Filter by type" Enums(deposit, milestone, custom)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.InvoiceDTO}
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices [get]
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	var filters service.InvoiceListFilters
	filters.Sort = parseSort(r)
	var ok bool
	if filters.ProjectID, ok = parseUUIDQuery(w, r, "projectId"); !ok {
		return
	}
	if filters.ClientID, ok = parseUUIDQuery(w, r, "clientId"); !ok {
		return
	}
	if filters.Status, ok = parseStatusQuery(w, r, domain.InvoiceGuard); !ok {
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		invoiceType := domain.InvoiceType(t)
		filters.Type = &invoiceType
	}

	result, err := h.invoiceService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to list invoices")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get invoice by ID
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(r.Context(), id)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to get invoice")
		return
	}

	respondJSON(w, http.StatusOK, invoice)
}

// ListPayments godoc
// @Summary List invoice payments
// @Description Payments recorded against the invoice by reconciliation, newest first
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {array} domain.PaymentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	payments, err := h.reconciliationService.ListPayments(r.Context(), id)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to list payments")
		return
	}

	respondJSON(w, http.StatusOK, payments)
}

// Create godoc
// @Summary Create invoice
// @Description Create a draft invoice. The invoice number is allocated from the shared sequence.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body domain.CreateInvoiceRequest true "Invoice data"
// @Success 201 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices [post]
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInvoiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.Create(r.Context(), &req)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to create invoice")
		return
	}

	respondJSON(w, http.StatusCreated, invoice)
}

// Update godoc
// @Summary Update draft invoice
// @Description Patch a draft invoice. Only amount, taxAmount, currency, dueDate, notes, lineItems and type are applied.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Param request body domain.UpdateInvoiceRequest true "Fields to change"
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Invoice is not a draft"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [patch]
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	var req domain.UpdateInvoiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.Update(r.Context(), id, &req)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to update invoice")
		return
	}

	respondJSON(w, http.StatusOK, invoice)
}

// Delete godoc
// @Summary Delete draft invoice
// @Tags Invoices
// @Param id path string true "Invoice ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Invoice is not a draft"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	if err := h.invoiceService.Delete(r.Context(), id); err != nil {
		h.handleInvoiceError(w, err, "Failed to delete invoice")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Send godoc
// @Summary Send invoice
// @Description Move a draft invoice to sent, creating it at the payment gateway when the client has a gateway customer
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 500 {object} domain.APIError "Gateway failure"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/send [post]
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Send(r.Context(), id)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to send invoice")
		return
	}

	respondJSON(w, http.StatusOK, invoice)
}

// Void godoc
// @Summary Void invoice
// @Description Cancel a sent or overdue invoice, voiding it at the gateway first when it is linked
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 500 {object} domain.APIError "Gateway failure"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/void [post]
func (h *InvoiceHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Void(r.Context(), id)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to void invoice")
		return
	}

	respondJSON(w, http.StatusOK, invoice)
}

// Import godoc
// @Summary Import gateway invoice
// @Description Create a local invoice mirroring an existing payment gateway invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body domain.ImportInvoiceRequest true "Gateway invoice reference"
// @Success 201 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Already imported"
// @Failure 503 {object} domain.APIError "Gateway not configured"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/import [post]
func (h *InvoiceHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req domain.ImportInvoiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.ImportFromGateway(r.Context(), &req)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to import invoice")
		return
	}

	respondJSON(w, http.StatusCreated, invoice)
}

// Sync godoc
// @Summary Reconcile invoices with the gateway
// @Description Pull the gateway status of every linked unpaid invoice and record payments. Admin only.
// @Tags Invoices
// @Produce json
// @Success 200 {object} domain.ReconciliationResultDTO
// @Failure 403 {object} domain.APIError
// @Failure 503 {object} domain.APIError "Gateway not configured"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/sync [post]
func (h *InvoiceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciliationService.Run(r.Context(), service.TriggerManual)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to reconcile invoices")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GenerateForProject godoc
// @Summary Generate project invoices
// @Description Create draft deposit and milestone invoices from the project's budget and unpaid milestones
// @Tags Invoices
// @Produce json
// @Param id path string true "Project ID" format(uuid)
// @Success 201 {array} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/invoices/generate [post]
func (h *InvoiceHandler) GenerateForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "project")
	if !ok {
		return
	}

	invoices, err := h.invoiceService.GenerateFromProject(r.Context(), projectID)
	if err != nil {
		h.handleInvoiceError(w, err, "Failed to generate invoices")
		return
	}

	respondJSON(w, http.StatusCreated, invoices)
}

func (h *InvoiceHandler) handleInvoiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, service.ErrInvoiceNotFound):
		respondWithError(w, http.StatusNotFound, "Invoice not found")
	case errors.Is(err, service.ErrInvoiceNotDraft):
		respondWithError(w, http.StatusConflict, "Invoice can only be changed while in draft")
	case errors.Is(err, service.ErrInvoiceAlreadyImported):
		respondWithError(w, http.StatusConflict, "This gateway invoice has already been imported")
	case errors.Is(err, service.ErrProjectNoBudget):
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeValidation, "Project has no budget",
			map[string]string{"budget": "Project budget must be set"})
	case errors.Is(err, service.ErrProjectNoClient):
		respondAPIError(w, http.StatusBadRequest, domain.ErrorTypeValidation, "Project has no client",
			map[string]string{"clientId": "Project must be linked to a client"})
	default:
		if !handleServiceError(w, err) {
			respondInternalError(w, h.logger, message, err)
		}
	}
}
