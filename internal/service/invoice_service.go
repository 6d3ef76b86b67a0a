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
	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice-specific service errors
var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceNotDraft        = errors.New("invoice can only be changed while in draft")
	ErrInvoiceAlreadyImported = errors.New("gateway invoice was already imported")
	ErrProjectNoBudget        = errors.New("project has no budget")
	ErrProjectNoClient        = errors.New("project has no linked client")
)

// defaultLineDescription labels the synthetic line used when an invoice has no line items
const defaultLineDescription = "Services"

var hundred = decimal.NewFromInt(100)

// InvoiceSettings holds the workflow knobs the invoice service needs
type InvoiceSettings struct {
	DefaultCurrency          string
	DefaultDepositPercentage decimal.Decimal
	DaysUntilDue             int
}

// InvoiceService owns the invoice lifecycle: creation, draft editing, sending,
// voiding, overdue marking, generation from a project and gateway import.
type InvoiceService struct {
	db          *gorm.DB
	invoiceRepo *repository.InvoiceRepository
	projectRepo *repository.ProjectRepository
	clientRepo  *repository.ClientRepository
	numberSeq   *NumberSequenceService
	activity    *ActivityService
	gate        *policy.Gate
	gateway     gateway.Gateway
	limiter     *ratelimit.Limiter
	metrics     *metrics.Metrics
	settings    InvoiceSettings
	logger      *zap.Logger
}

// NewInvoiceService creates an InvoiceService. gw may be nil when the payment
// gateway is disabled; limiter and m may be nil.
func NewInvoiceService(
	db *gorm.DB,
	invoiceRepo *repository.InvoiceRepository,
	projectRepo *repository.ProjectRepository,
	clientRepo *repository.ClientRepository,
	numberSeq *NumberSequenceService,
	activity *ActivityService,
	gate *policy.Gate,
	gw gateway.Gateway,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	settings InvoiceSettings,
	logger *zap.Logger,
) *InvoiceService {
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = "USD"
	}
	if settings.DefaultDepositPercentage.IsZero() {
		settings.DefaultDepositPercentage = decimal.NewFromInt(50)
	}
	return &InvoiceService{
		db:          db,
		invoiceRepo: invoiceRepo,
		projectRepo: projectRepo,
		clientRepo:  clientRepo,
		numberSeq:   numberSeq,
		activity:    activity,
		gate:        gate,
		gateway:     gw,
		limiter:     limiter,
		metrics:     m,
		settings:    settings,
		logger:      logger,
	}
}

// InvoiceListFilters are the query filters accepted by List
type InvoiceListFilters struct {
	ProjectID *uuid.UUID
	ClientID  *uuid.UUID
	Status    *domain.InvoiceStatus
	Type      *domain.InvoiceType
	Sort      repository.SortConfig
}

// Create validates the input, allocates an invoice number and stores a draft invoice
func (s *InvoiceService) Create(ctx context.Context, req *domain.CreateInvoiceRequest) (*domain.InvoiceDTO, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionCreate, policy.ResourceInvoice, nil, ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}

	if req.Amount == nil {
		return nil, domain.NewValidationError("amount", "This field is required")
	}
	amount := *req.Amount
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	taxAmount := decimal.Zero
	if req.TaxAmount != nil {
		taxAmount = *req.TaxAmount
	}
	if err := validateTax(taxAmount); err != nil {
		return nil, err
	}

	var dueDate *time.Time
	if req.DueDate != nil {
		d, err := parseDate("dueDate", *req.DueDate)
		if err != nil {
			return nil, err
		}
		dueDate = d
	}

	lineItems, err := buildLineItems(req.LineItems, amount)
	if err != nil {
		return nil, err
	}

	if _, err := s.clientRepo.GetByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("clientId", "Client does not exist")
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if req.ProjectID != nil {
		if err := s.checkProjectClient(ctx, *req.ProjectID, req.ClientID); err != nil {
			return nil, err
		}
	}

	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}

	invoiceType := req.Type
	if invoiceType == "" {
		invoiceType = domain.InvoiceTypeCustom
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	number, err := s.numberSeq.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ClientID:      req.ClientID,
		ProjectID:     req.ProjectID,
		MilestoneID:   req.MilestoneID,
		Type:          invoiceType,
		InvoiceNumber: number,
		Amount:        amount,
		TaxAmount:     taxAmount,
		TotalAmount:   amount.Add(taxAmount),
		Currency:      currency,
		Status:        domain.InvoiceStatusDraft,
		DueDate:       dueDate,
		LineItems:     lineItems,
		Notes:         req.Notes,
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total", invoice.TotalAmount.StringFixed(2)))

	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceCreated, "Invoice "+invoice.InvoiceNumber+" created", false, nil)

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// Get returns one invoice. Client actors only see their own, non-draft invoices.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	invoice, _, err := s.loadVisible(ctx, id, policy.ActionView)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// List returns a page of invoices scoped to the actor
func (s *InvoiceService) List(ctx context.Context, filters InvoiceListFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionList, policy.ResourceInvoice, nil, ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	invoices, total, err := s.invoiceRepo.List(ctx, p, repository.InvoiceFilters{
		ProjectID:     filters.ProjectID,
		ClientID:      filters.ClientID,
		Status:        filters.Status,
		Type:          filters.Type,
		ExcludeDrafts: actor.IsClient(),
		Sort:          filters.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	return paginated(mapper.ToInvoiceDTOs(invoices), total, p), nil
}

// Update edits a draft invoice. The total is recomputed from the stored value of
// whichever of amount and tax was not supplied.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateInvoiceRequest) (*domain.InvoiceDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionUpdate, policy.ResourceInvoice, nil, ErrInvoiceNotFound); err != nil {
		return nil, err
	}

	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.InvoiceStatusDraft {
		return nil, ErrInvoiceNotDraft
	}

	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		invoice.Amount = *req.Amount
	}
	if req.TaxAmount != nil {
		if err := validateTax(*req.TaxAmount); err != nil {
			return nil, err
		}
		invoice.TaxAmount = *req.TaxAmount
	}
	if req.Amount != nil || req.TaxAmount != nil {
		invoice.TotalAmount = invoice.Amount.Add(invoice.TaxAmount)
	}
	if req.DueDate != nil {
		d, err := parseDate("dueDate", *req.DueDate)
		if err != nil {
			return nil, err
		}
		invoice.DueDate = d
	}
	if req.Currency != nil {
		invoice.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}
	if req.Type != nil {
		invoice.Type = *req.Type
	}
	switch {
	case req.LineItems != nil:
		items, err := buildLineItems(*req.LineItems, invoice.Amount)
		if err != nil {
			return nil, err
		}
		invoice.LineItems = items
	case req.Amount != nil && !lineItemsTotal(invoice.LineItems).Equal(invoice.Amount.Round(2)):
		// The gateway bills the lines, so they must follow the amount
		if !isSyntheticLine(invoice.LineItems) {
			return nil, domain.NewValidationError("lineItems", "Line items must be supplied again when the amount changes")
		}
		items, err := buildLineItems(nil, invoice.Amount)
		if err != nil {
			return nil, err
		}
		invoice.LineItems = items
	}

	if err := s.invoiceRepo.UpdateDraft(ctx, invoice); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, ErrInvoiceNotDraft
		}
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	s.logger.Info("invoice updated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("total", invoice.TotalAmount.StringFixed(2)))
	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceUpdated, "Invoice "+invoice.InvoiceNumber+" updated", false, nil)

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// Delete removes a draft invoice. Its number is not reused.
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := authorize(ctx, s.gate, policy.ActionDelete, policy.ResourceInvoice, nil, ErrInvoiceNotFound); err != nil {
		return err
	}

	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status != domain.InvoiceStatusDraft {
		return ErrInvoiceNotDraft
	}

	if err := s.invoiceRepo.DeleteDraft(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrInvoiceNotDraft
		}
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	s.logger.Info("invoice deleted",
		zap.String("invoice_id", id.String()),
		zap.String("invoice_number", invoice.InvoiceNumber))
	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceDeleted, "Invoice "+invoice.InvoiceNumber+" deleted", false, nil)
	return nil
}

// Send moves a draft invoice to sent. When the gateway is enabled and the client
// is linked to a gateway customer, the invoice is raised there first; a gateway
// failure leaves the local invoice untouched.
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionSend, policy.ResourceInvoice, nil, ErrInvoiceNotFound); err != nil {
		return nil, err
	}

	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.InvoiceGuard.Check(invoice.Status, domain.InvoiceStatusSent); err != nil {
		return nil, err
	}

	extra := map[string]interface{}{}
	if s.gateway != nil && invoice.ExternalGatewayID == nil {
		client, err := s.clientRepo.GetByID(ctx, invoice.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to load client: %w", err)
		}
		if client.GatewayCustomerID != nil && *client.GatewayCustomerID != "" {
			ext, err := s.gateway.CreateInvoice(ctx, s.gatewayParams(invoice, *client.GatewayCustomerID))
			if err != nil {
				s.logger.Warn("gateway invoice creation failed",
					zap.String("invoice_id", invoice.ID.String()),
					zap.Error(err))
				return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
			}
			extra["external_gateway_id"] = ext.ID
			extra["external_gateway_url"] = ext.HostedURL
			invoice.ExternalGatewayID = &ext.ID
			invoice.ExternalGatewayURL = &ext.HostedURL
		}
	}

	if err := s.transition(ctx, invoice, domain.InvoiceStatusSent, extra); err != nil {
		return nil, err
	}

	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceSent, "Invoice "+invoice.InvoiceNumber+" sent", true, nil)
	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// Void cancels a sent or overdue invoice. A gateway invoice is voided at the
// gateway first; if that fails the local record is left as it was.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionVoid, policy.ResourceInvoice, nil, ErrInvoiceNotFound); err != nil {
		return nil, err
	}

	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.InvoiceGuard.Check(invoice.Status, domain.InvoiceStatusCancelled); err != nil {
		return nil, err
	}

	if invoice.ExternalGatewayID != nil && *invoice.ExternalGatewayID != "" {
		if s.gateway == nil {
			return nil, ErrGatewayNotConfigured
		}
		if _, err := s.gateway.VoidInvoice(ctx, *invoice.ExternalGatewayID); err != nil {
			s.logger.Warn("gateway void failed, local invoice unchanged",
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("external_id", *invoice.ExternalGatewayID),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
	}

	if err := s.transition(ctx, invoice, domain.InvoiceStatusCancelled, nil); err != nil {
		return nil, err
	}

	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceVoided, "Invoice "+invoice.InvoiceNumber+" voided", true, nil)
	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// MarkOverdue moves every sent invoice whose due date is before the calendar day
// of now to overdue and returns how many moved. Invoices changed concurrently are skipped.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	invoices, err := s.invoiceRepo.ListSentDueBefore(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	moved := 0
	for i := range invoices {
		invoice := &invoices[i]
		err := s.transition(ctx, invoice, domain.InvoiceStatusOverdue, nil)
		if errors.Is(err, ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return moved, err
		}
		moved++
		s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceOverdue, "Invoice "+invoice.InvoiceNumber+" is overdue", true, nil)
	}

	if moved > 0 {
		s.logger.Info("marked invoices overdue", zap.Int("count", moved))
	}
	return moved, nil
}

// GenerateFromProject creates draft invoices from a project's budget: a deposit,
// one invoice per milestone with a positive payment amount and, only when the
// project has no milestones, a remainder. Non-positive amounts are skipped.
func (s *InvoiceService) GenerateFromProject(ctx context.Context, projectID uuid.UUID) ([]domain.InvoiceDTO, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionGenerate, policy.ResourceProject, nil, ErrProjectNotFound)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.Budget == nil || !project.Budget.IsPositive() {
		return nil, ErrProjectNoBudget
	}
	if project.ClientID == nil {
		return nil, ErrProjectNoClient
	}

	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}

	drafts := PlanProjectInvoices(project, s.settings.DefaultDepositPercentage)
	if len(drafts) == 0 {
		return []domain.InvoiceDTO{}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		numberSeq := s.numberSeq.WithTx(tx)
		invoiceRepo := s.invoiceRepo.WithTx(tx)
		for i := range drafts {
			number, err := numberSeq.NextInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			drafts[i].InvoiceNumber = number
			drafts[i].Currency = s.settings.DefaultCurrency
			if err := invoiceRepo.Create(ctx, &drafts[i]); err != nil {
				return fmt.Errorf("failed to create %s invoice: %w", drafts[i].Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("generated project invoices",
		zap.String("project_id", projectID.String()),
		zap.Int("count", len(drafts)))
	for i := range drafts {
		s.recordInvoice(ctx, &drafts[i], domain.ActivityTypeInvoiceCreated, "Invoice "+drafts[i].InvoiceNumber+" generated", false,
			map[string]interface{}{"type": string(drafts[i].Type)})
	}

	return mapper.ToInvoiceDTOs(drafts), nil
}

// PlanProjectInvoices computes the draft invoices for a project without storing them.
// The deposit is budget × deposit_percentage / 100; the remainder is only planned
// when the project has no milestones.
func PlanProjectInvoices(project *domain.Project, defaultDeposit decimal.Decimal) []domain.Invoice {
	if project.Budget == nil || project.ClientID == nil {
		return nil
	}
	budget := *project.Budget
	pct := defaultDeposit
	if project.DepositPercentage != nil {
		pct = *project.DepositPercentage
	}

	deposit := budget.Mul(pct).Div(hundred).Round(2)

	var drafts []domain.Invoice
	add := func(t domain.InvoiceType, amount decimal.Decimal, description string, milestoneID *uuid.UUID) {
		if !amount.IsPositive() {
			return
		}
		drafts = append(drafts, domain.Invoice{
			ClientID:    *project.ClientID,
			ProjectID:   &project.ID,
			MilestoneID: milestoneID,
			Type:        t,
			Amount:      amount,
			TaxAmount:   decimal.Zero,
			TotalAmount: amount,
			Status:      domain.InvoiceStatusDraft,
			LineItems: datatypes.JSONSlice[domain.LineItem]{
				domain.NewLineItem(description, decimal.NewFromInt(1), amount),
			},
		})
	}

	add(domain.InvoiceTypeDeposit, deposit, fmt.Sprintf("Deposit (%s%%) for %s", pct.String(), project.Name), nil)

	milestoneTotal := decimal.Zero
	for i := range project.Milestones {
		m := &project.Milestones[i]
		milestoneTotal = milestoneTotal.Add(m.PaymentAmount)
		add(domain.InvoiceTypeMilestone, m.PaymentAmount, "Milestone: "+m.Title, &m.ID)
	}

	if len(project.Milestones) == 0 {
		remainder := budget.Sub(deposit).Sub(milestoneTotal)
		add(domain.InvoiceTypeCustom, remainder, "Remaining balance for "+project.Name, nil)
	}

	return drafts
}

// ImportFromGateway creates a local invoice mirroring a gateway invoice. The
// gateway id is the idempotency key: importing it twice is a conflict.
func (s *InvoiceService) ImportFromGateway(ctx context.Context, req *domain.ImportInvoiceRequest) (*domain.InvoiceDTO, error) {
	actor, err := authorize(ctx, s.gate, policy.ActionImport, policy.ResourceInvoice, nil, ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return nil, domain.NewValidationError("externalId", "This field is required")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	existing, err := s.invoiceRepo.GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		s.logger.Info("gateway invoice already imported",
			zap.String("external_id", externalID),
			zap.String("invoice_number", existing.InvoiceNumber))
		return nil, ErrInvoiceAlreadyImported
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to check existing import: %w", err)
	}

	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}

	ext, err := s.gateway.GetInvoice(ctx, externalID)
	if err != nil {
		s.logger.Warn("gateway invoice fetch failed", zap.String("external_id", externalID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	client, err := s.clientRepo.GetByGatewayCustomerID(ctx, ext.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("externalId", "Gateway customer is not linked to any client")
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}
	if req.ProjectID != nil {
		if err := s.checkProjectClient(ctx, *req.ProjectID, client.ID); err != nil {
			return nil, err
		}
	}

	number, err := s.numberSeq.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	amount := gateway.FromMinorUnits(ext.AmountDue)
	status := MapGatewayStatus(ext.Status)
	currency := strings.ToUpper(ext.Currency)
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	invoice := &domain.Invoice{
		ClientID:           client.ID,
		ProjectID:          req.ProjectID,
		Type:               domain.InvoiceTypeCustom,
		InvoiceNumber:      number,
		Amount:             amount,
		TaxAmount:          decimal.Zero,
		TotalAmount:        amount,
		Currency:           currency,
		Status:             status,
		DueDate:            ext.DueDate,
		ExternalGatewayID:  &externalID,
		ExternalGatewayURL: nonEmpty(ext.HostedURL),
		LineItems:          gatewayLineItems(ext, amount),
	}
	if status == domain.InvoiceStatusPaid {
		invoice.PaidAt = ext.PaidAt
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrInvoiceAlreadyImported
		}
		return nil, fmt.Errorf("failed to create imported invoice: %w", err)
	}

	s.logger.Info("invoice imported from gateway",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("external_id", externalID),
		zap.String("status", string(status)))
	s.recordInvoice(ctx, invoice, domain.ActivityTypeInvoiceImported, "Invoice "+invoice.InvoiceNumber+" imported", false,
		map[string]interface{}{"externalId": externalID})

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// MapGatewayStatus translates the gateway's invoice vocabulary into local statuses
func MapGatewayStatus(status gateway.InvoiceStatus) domain.InvoiceStatus {
	switch status {
	case gateway.StatusPaid:
		return domain.InvoiceStatusPaid
	case gateway.StatusVoid:
		return domain.InvoiceStatusCancelled
	case gateway.StatusUncollectible:
		return domain.InvoiceStatusOverdue
	default: // draft, open
		return domain.InvoiceStatusSent
	}
}

func gatewayLineItems(ext *gateway.Invoice, amount decimal.Decimal) datatypes.JSONSlice[domain.LineItem] {
	if len(ext.Lines) == 0 {
		return datatypes.JSONSlice[domain.LineItem]{
			domain.NewLineItem(defaultLineDescription, decimal.NewFromInt(1), amount),
		}
	}
	items := make(datatypes.JSONSlice[domain.LineItem], 0, len(ext.Lines))
	for _, l := range ext.Lines {
		description := l.Description
		if description == "" {
			description = defaultLineDescription
		}
		items = append(items, domain.LineItem{
			Description: description,
			Quantity:    decimal.NewFromInt(l.Quantity),
			UnitPrice:   gateway.FromMinorUnits(l.UnitAmount),
			Total:       gateway.FromMinorUnits(l.Amount),
		})
	}
	return items
}

func (s *InvoiceService) gatewayParams(invoice *domain.Invoice, customerID string) gateway.CreateInvoiceParams {
	lines := make([]gateway.Line, 0, len(invoice.LineItems)+1)
	for _, item := range invoice.LineItems {
		lines = append(lines, gateway.Line{
			Description: item.Description,
			Quantity:    1,
			UnitAmount:  gateway.ToMinorUnits(item.Total),
			Amount:      gateway.ToMinorUnits(item.Total),
		})
	}
	if invoice.TaxAmount.IsPositive() {
		tax := gateway.ToMinorUnits(invoice.TaxAmount)
		lines = append(lines, gateway.Line{Description: "Tax", Quantity: 1, UnitAmount: tax, Amount: tax})
	}

	days := s.settings.DaysUntilDue
	if invoice.DueDate != nil {
		if d := int(invoice.DueDate.Sub(today()).Hours() / 24); d > 0 {
			days = d
		}
	}

	return gateway.CreateInvoiceParams{
		CustomerID:   customerID,
		Currency:     invoice.Currency,
		Description:  invoice.Notes,
		DaysUntilDue: days,
		Lines:        lines,
		Metadata: map[string]string{
			"invoice_id":     invoice.ID.String(),
			"invoice_number": invoice.InvoiceNumber,
		},
		IdempotencyKey: "invoice:" + invoice.ID.String(),
	}
}

// transition applies a guarded, conditional status change and updates invoice in place
func (s *InvoiceService) transition(ctx context.Context, invoice *domain.Invoice, to domain.InvoiceStatus, extra map[string]interface{}) error {
	from := invoice.Status
	if err := domain.InvoiceGuard.Check(from, to); err != nil {
		return err
	}
	if err := s.invoiceRepo.TransitionStatus(ctx, invoice.ID, from, to, extra); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	invoice.Status = to
	s.metrics.Transition(string(domain.EntityInvoice), string(from), string(to))
	s.logger.Info("invoice status changed",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// loadVisible loads an invoice and applies the actor's read scope
func (s *InvoiceService) loadVisible(ctx context.Context, id uuid.UUID, action policy.Action) (*domain.Invoice, *auth.UserContext, error) {
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	actor, err := authorize(ctx, s.gate, action, policy.ResourceInvoice, &policy.Subject{ClientID: &invoice.ClientID}, ErrInvoiceNotFound)
	if err != nil {
		return nil, nil, err
	}
	if actor.IsClient() && invoice.Status == domain.InvoiceStatusDraft {
		return nil, nil, ErrInvoiceNotFound
	}
	return invoice, actor, nil
}

func (s *InvoiceService) getInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return invoice, nil
}

func (s *InvoiceService) checkProjectClient(ctx context.Context, projectID, clientID uuid.UUID) error {
	projectClient, err := s.projectRepo.GetClientID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewValidationError("projectId", "Project does not exist")
		}
		return fmt.Errorf("failed to load project: %w", err)
	}
	if projectClient != nil && *projectClient != clientID {
		return domain.NewValidationError("projectId", "Project belongs to a different client")
	}
	return nil
}

func (s *InvoiceService) checkRate(ctx context.Context, actor *auth.UserContext) error {
	return allowAction(ctx, s.limiter, actor, ratelimit.ClassInvoiceCreate)
}

func (s *InvoiceService) recordInvoice(ctx context.Context, invoice *domain.Invoice, activityType domain.ActivityType, title string, clientVisible bool, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["invoiceNumber"] = invoice.InvoiceNumber
	metadata["status"] = string(invoice.Status)
	metadata["totalAmount"] = invoice.TotalAmount.StringFixed(2)

	s.activity.Record(ctx, ActivityEntry{
		ProjectID:     invoice.ProjectID,
		Type:          activityType,
		EntityType:    domain.EntityInvoice,
		EntityID:      invoice.ID,
		Title:         title,
		Metadata:      metadata,
		ClientVisible: clientVisible,
	})
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount", "Must be greater than 0")
	}
	return nil
}

func validateTax(tax decimal.Decimal) error {
	if tax.IsNegative() {
		return domain.NewValidationError("taxAmount", "Must be greater than or equal to 0")
	}
	return nil
}

// buildLineItems validates inputs and computes line totals, which must add up
// to amount. No input yields a single synthetic line equal to amount.
func buildLineItems(inputs []domain.LineItemInput, amount decimal.Decimal) (datatypes.JSONSlice[domain.LineItem], error) {
	if len(inputs) == 0 {
		return datatypes.JSONSlice[domain.LineItem]{
			domain.NewLineItem(defaultLineDescription, decimal.NewFromInt(1), amount),
		}, nil
	}
	items := make(datatypes.JSONSlice[domain.LineItem], 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("lineItems[%d].description", i), "This field is required")
		}
		if in.Quantity.IsNegative() {
			return nil, domain.NewValidationError(fmt.Sprintf("lineItems[%d].quantity", i), "Must be greater than or equal to 0")
		}
		items = append(items, domain.NewLineItem(in.Description, in.Quantity, in.UnitPrice))
	}
	if sum := lineItemsTotal(items); !sum.Equal(amount.Round(2)) {
		return nil, domain.NewValidationError("lineItems",
			fmt.Sprintf("Line item totals (%s) must equal the amount (%s)", sum.StringFixed(2), amount.StringFixed(2)))
	}
	return items, nil
}

// lineItemsTotal sums line totals at the two-decimal precision the gateway bills in
func lineItemsTotal(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total.Round(2))
	}
	return sum
}

func isSyntheticLine(items []domain.LineItem) bool {
	if len(items) == 0 {
		return true
	}
	return len(items) == 1 &&
		items[0].Description == defaultLineDescription &&
		items[0].Quantity.Equal(decimal.NewFromInt(1))
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
