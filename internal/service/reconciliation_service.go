package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/mapper"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciliation outcomes reported per invoice
const (
	OutcomeUpdatedToPaid = "updated_to_paid"
	OutcomeUnchanged     = "unchanged"
	OutcomeError         = "error"
)

// Reconciliation triggers
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// ReconciliationService brings local invoices, payments and milestones in line
// with the payment gateway. Runs are safe to repeat and to overlap: the partial
// unique index on succeeded payments is what prevents a double payment.
type ReconciliationService struct {
	db            *gorm.DB
	invoiceRepo   *repository.InvoiceRepository
	paymentRepo   *repository.PaymentRepository
	milestoneRepo *repository.MilestoneRepository
	activity      *ActivityService
	gate          *policy.Gate
	gateway       gateway.Gateway
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewReconciliationService creates a ReconciliationService. gw may be nil when
// the gateway is disabled, in which case Run returns ErrGatewayNotConfigured.
func NewReconciliationService(
	db *gorm.DB,
	invoiceRepo *repository.InvoiceRepository,
	paymentRepo *repository.PaymentRepository,
	milestoneRepo *repository.MilestoneRepository,
	activity *ActivityService,
	gate *policy.Gate,
	gw gateway.Gateway,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		db:            db,
		invoiceRepo:   invoiceRepo,
		paymentRepo:   paymentRepo,
		milestoneRepo: milestoneRepo,
		activity:      activity,
		gate:          gate,
		gateway:       gw,
		metrics:       m,
		logger:        logger,
	}
}

// Run checks every sent or overdue invoice that has a gateway id. A failure on
// one invoice is recorded as an error outcome and never stops the batch.
func (s *ReconciliationService) Run(ctx context.Context, trigger string) (*domain.ReconciliationResultDTO, error) {
	if _, err := authorize(ctx, s.gate, policy.ActionSync, policy.ResourceReconciliation, nil, ErrForbidden); err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	s.metrics.ReconciliationRun(trigger)

	invoices, err := s.invoiceRepo.ListOutstandingExternal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding invoices: %w", err)
	}

	result := &domain.ReconciliationResultDTO{
		Results: make([]domain.ReconciliationOutcomeDTO, 0, len(invoices)),
	}

	for i := range invoices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := s.reconcileInvoice(ctx, &invoices[i])
		result.TotalChecked++
		switch outcome.Outcome {
		case OutcomeUpdatedToPaid:
			result.UpdatedToPaid++
		case OutcomeError:
			result.Errors++
		}
		if outcome.PaymentCreated {
			result.PaymentsCreated++
		}
		s.metrics.ReconciliationOutcome(outcome.Outcome)
		result.Results = append(result.Results, outcome)
	}

	s.logger.Info("reconciliation finished",
		zap.String("trigger", trigger),
		zap.Int("total_checked", result.TotalChecked),
		zap.Int("updated_to_paid", result.UpdatedToPaid),
		zap.Int("payments_created", result.PaymentsCreated),
		zap.Int("errors", result.Errors))

	return result, nil
}

// ListPayments returns the payments recorded against an invoice, newest first.
// Visibility follows the invoice: clients see only their own non-draft invoices.
func (s *ReconciliationService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]domain.PaymentDTO, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	actor, err := authorize(ctx, s.gate, policy.ActionView, policy.ResourceInvoice, &policy.Subject{ClientID: &invoice.ClientID}, ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}
	if actor.IsClient() && invoice.Status == domain.InvoiceStatusDraft {
		return nil, ErrInvoiceNotFound
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	dtos := make([]domain.PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = mapper.ToPaymentDTO(&payments[i])
	}
	return dtos, nil
}

func (s *ReconciliationService) reconcileInvoice(ctx context.Context, invoice *domain.Invoice) domain.ReconciliationOutcomeDTO {
	outcome := domain.ReconciliationOutcomeDTO{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ExternalID:    *invoice.ExternalGatewayID,
		Outcome:       OutcomeUnchanged,
	}
	log := s.logger.With(
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", outcome.InvoiceNumber),
		zap.String("external_id", outcome.ExternalID))

	ext, err := s.gateway.GetInvoice(ctx, outcome.ExternalID)
	if err != nil {
		log.Warn("reconciliation gateway lookup failed", zap.Error(err))
		outcome.Outcome = OutcomeError
		outcome.Error = err.Error()
		return outcome
	}
	outcome.GatewayStatus = string(ext.Status)

	if ext.Status != gateway.StatusPaid {
		log.Debug("invoice unchanged at gateway", zap.String("gateway_status", outcome.GatewayStatus))
		return outcome
	}

	// A payment in another currency cannot settle this invoice
	if ext.Currency != "" && !strings.EqualFold(ext.Currency, invoice.Currency) {
		log.Warn("gateway currency differs from invoice currency",
			zap.String("invoice_currency", invoice.Currency),
			zap.String("gateway_currency", ext.Currency))
		outcome.Outcome = OutcomeError
		outcome.Error = fmt.Sprintf("gateway currency %s does not match invoice currency %s",
			strings.ToUpper(ext.Currency), invoice.Currency)
		return outcome
	}

	created, err := s.applyPaid(ctx, invoice, ext)
	if err != nil {
		log.Error("failed to apply gateway payment", zap.Error(err))
		outcome.Outcome = OutcomeError
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Outcome = OutcomeUpdatedToPaid
	outcome.PaymentCreated = created
	log.Info("invoice reconciled to paid", zap.Bool("payment_created", created))

	s.metrics.Transition(string(domain.EntityInvoice), string(invoice.Status), string(domain.InvoiceStatusPaid))
	invoice.Status = domain.InvoiceStatusPaid
	s.activity.Record(ctx, ActivityEntry{
		ProjectID:  invoice.ProjectID,
		Type:       domain.ActivityTypeInvoicePaid,
		EntityType: domain.EntityInvoice,
		EntityID:   invoice.ID,
		Title:      "Invoice " + invoice.InvoiceNumber + " paid",
		Metadata: map[string]interface{}{
			"invoiceNumber":  invoice.InvoiceNumber,
			"externalId":     outcome.ExternalID,
			"paymentCreated": created,
		},
		ClientVisible: true,
	})
	return outcome
}

// applyPaid records the payment, marks the invoice paid and flips the linked
// milestone in one transaction. It reports whether a payment row was inserted.
func (s *ReconciliationService) applyPaid(ctx context.Context, invoice *domain.Invoice, ext *gateway.Invoice) (bool, error) {
	paidAt := time.Now().UTC()
	if ext.PaidAt != nil {
		paidAt = ext.PaidAt.UTC()
	}
	amount := gateway.FromMinorUnits(ext.AmountPaid)
	if ext.AmountPaid == 0 {
		amount = invoice.TotalAmount
	}
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		invoiceRepo := s.invoiceRepo.WithTx(tx)

		exists, err := paymentRepo.HasSucceeded(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("failed to check existing payment: %w", err)
		}
		if !exists {
			payment := &domain.Payment{
				InvoiceID: invoice.ID,
				ClientID:  invoice.ClientID,
				ProjectID: invoice.ProjectID,
				Amount:    amount,
				Currency:  invoice.Currency,
				Status:    domain.PaymentStatusSucceeded,
				PaidAt:    paidAt,
			}
			// A savepoint keeps a lost insert race from aborting the outer transaction.
			err := tx.Transaction(func(sp *gorm.DB) error {
				return paymentRepo.WithTx(sp).Create(ctx, payment)
			})
			switch {
			case err == nil:
				created = true
			case errors.Is(err, gorm.ErrDuplicatedKey):
				// another run recorded the payment first
			default:
				return fmt.Errorf("failed to create payment: %w", err)
			}
		}

		err = invoiceRepo.TransitionStatus(ctx, invoice.ID, invoice.Status, domain.InvoiceStatusPaid,
			map[string]interface{}{"paid_at": paidAt})
		if errors.Is(err, repository.ErrStatusChanged) {
			current, getErr := invoiceRepo.GetByID(ctx, invoice.ID)
			if getErr != nil {
				return fmt.Errorf("failed to reload invoice: %w", getErr)
			}
			if current.Status != domain.InvoiceStatusPaid {
				return &domain.TransitionError{Entity: "invoice", From: string(current.Status), To: string(domain.InvoiceStatusPaid)}
			}
			err = nil
		}
		if err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}

		if invoice.MilestoneID != nil {
			if err := s.milestoneRepo.WithTx(tx).MarkPaid(ctx, *invoice.MilestoneID); err != nil {
				return fmt.Errorf("failed to mark milestone paid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	invoice.PaidAt = &paidAt
	return created, nil
}
