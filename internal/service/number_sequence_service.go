package service

import (
	"context"
	"fmt"

	"github.com/loopwork-studio/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceSequence is the sequence name invoice numbers are drawn from
const InvoiceSequence = "invoice"

// NumberSequenceService hands out formatted, never-reused invoice numbers.
//
// Format: {PREFIX}-{SEQUENCE}, zero-padded to four digits
// Example: INV-0001, INV-0042
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	prefix string
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	prefix string,
	logger *zap.Logger,
) *NumberSequenceService {
	if prefix == "" {
		prefix = "INV"
	}
	return &NumberSequenceService{
		repo:   repo,
		prefix: prefix,
		logger: logger,
	}
}

// WithTx returns a service that allocates inside the given transaction
func (s *NumberSequenceService) WithTx(tx *gorm.DB) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repository.NewNumberSequenceRepository(tx),
		prefix: s.prefix,
		logger: s.logger,
	}
}

// NextInvoiceNumber allocates the next invoice number
func (s *NumberSequenceService) NextInvoiceNumber(ctx context.Context) (string, error) {
	next, err := s.repo.NextValue(ctx, InvoiceSequence)
	if err != nil {
		s.logger.Error("failed to allocate invoice number", zap.Error(err))
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}

	number := FormatInvoiceNumber(s.prefix, next)
	s.logger.Debug("allocated invoice number", zap.String("invoiceNumber", number))
	return number, nil
}

// FormatInvoiceNumber renders a sequence value as PREFIX-0001. Values past 9999
// keep growing in width rather than wrapping.
func FormatInvoiceNumber(prefix string, value int64) string {
	return fmt.Sprintf("%s-%04d", prefix, value)
}
