package jobs

import (
	"context"
	"time"

	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"go.uber.org/zap"
)

const (
	ReconciliationJobName = "invoice_reconciliation"
	OverdueJobName        = "invoice_overdue"
)

// Reconciler is the part of the reconciliation service the job needs
type Reconciler interface {
	Run(ctx context.Context, trigger string) (*domain.ReconciliationResultDTO, error)
}

// OverdueMarker is the part of the invoice service the overdue sweep needs
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// ReconciliationJob pulls invoice state from the payment gateway as the system user.
type ReconciliationJob struct {
	reconciler Reconciler
	trigger    string
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewReconciliationJob creates the job. trigger is recorded on every run.
func NewReconciliationJob(reconciler Reconciler, trigger string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *ReconciliationJob {
	return &ReconciliationJob{
		reconciler: reconciler,
		trigger:    trigger,
		timeout:    timeout,
		metrics:    m,
		logger:     logger,
	}
}

// Run executes one reconciliation pass. Called by the scheduler.
func (j *ReconciliationJob) Run() {
	ctx, cancel := context.WithTimeout(systemContext(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.reconciler.Run(ctx, j.trigger)
	j.metrics.JobFinished(ReconciliationJobName, start, err)
	if err != nil {
		j.logger.Error("reconciliation job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("reconciliation job completed",
		zap.Int("checked", result.TotalChecked),
		zap.Int("updated_to_paid", result.UpdatedToPaid),
		zap.Int("payments_created", result.PaymentsCreated),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", time.Since(start)))
}

// OverdueJob moves sent invoices past their due date to overdue.
type OverdueJob struct {
	invoices OverdueMarker
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewOverdueJob(invoices OverdueMarker, m *metrics.Metrics, logger *zap.Logger) *OverdueJob {
	return &OverdueJob{
		invoices: invoices,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
}

// Run executes one overdue sweep. Called by the scheduler.
func (j *OverdueJob) Run() {
	ctx, cancel := context.WithTimeout(systemContext(), time.Minute)
	defer cancel()

	start := time.Now()
	moved, err := j.invoices.MarkOverdue(ctx, j.now())
	j.metrics.JobFinished(OverdueJobName, start, err)
	if err != nil {
		j.logger.Error("overdue job failed", zap.Error(err), zap.Int("moved", moved))
		return
	}
	j.logger.Info("overdue job completed", zap.Int("moved", moved))
}

// Register adds both jobs to the scheduler. An empty cron expression disables a job.
func Register(s *Scheduler, reconciliation *ReconciliationJob, reconciliationCron string, overdue *OverdueJob, overdueCron string) error {
	if err := s.AddJob(ReconciliationJobName, reconciliationCron, reconciliation.Run); err != nil {
		return err
	}
	return s.AddJob(OverdueJobName, overdueCron, overdue.Run)
}

func systemContext() context.Context {
	return auth.WithUserContext(context.Background(), auth.SystemUser())
}
