package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/jobs"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	trigger string
	actor   *auth.UserContext
	err     error
}

func (f *fakeReconciler) Run(ctx context.Context, trigger string) (*domain.ReconciliationResultDTO, error) {
	f.trigger = trigger
	f.actor, _ = auth.FromContext(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReconciliationResultDTO{TotalChecked: 3, UpdatedToPaid: 1}, nil
}

type fakeOverdue struct {
	now   time.Time
	actor *auth.UserContext
}

func (f *fakeOverdue) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	f.now = now
	f.actor, _ = auth.FromContext(ctx)
	return 2, nil
}

func TestReconciliationJob_RunsAsSystemUser(t *testing.T) {
	rec := &fakeReconciler{}
	job := jobs.NewReconciliationJob(rec, service.TriggerScheduled, time.Second, nil, zap.NewNop())

	job.Run()

	assert.Equal(t, service.TriggerScheduled, rec.trigger)
	require.NotNil(t, rec.actor)
	assert.True(t, rec.actor.IsAdmin())
}

func TestReconciliationJob_FailureDoesNotPanic(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("gateway down")}
	job := jobs.NewReconciliationJob(rec, service.TriggerScheduled, time.Second, nil, zap.NewNop())

	assert.NotPanics(t, job.Run)
}

func TestReconciliationJob_AgainstService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gate := policy.NewGate(policy.Options{})
	logger := zap.NewNop()
	activity := service.NewActivityService(repository.NewActivityRepository(db), repository.NewProjectRepository(db), gate, logger)
	svc := service.NewReconciliationService(db, repository.NewInvoiceRepository(db), repository.NewPaymentRepository(db),
		repository.NewMilestoneRepository(db), activity, gate, testutil.NewFakeGateway(), nil, logger)

	rec := &recordingReconciler{inner: svc}
	jobs.NewReconciliationJob(rec, service.TriggerScheduled, time.Second, nil, logger).Run()

	require.NoError(t, rec.err, "the system user may run reconciliation")
	require.NotNil(t, rec.result)
	assert.Equal(t, 0, rec.result.TotalChecked)
}

type recordingReconciler struct {
	inner  jobs.Reconciler
	result *domain.ReconciliationResultDTO
	err    error
}

func (r *recordingReconciler) Run(ctx context.Context, trigger string) (*domain.ReconciliationResultDTO, error) {
	r.result, r.err = r.inner.Run(ctx, trigger)
	return r.result, r.err
}

func TestOverdueJob_Run(t *testing.T) {
	marker := &fakeOverdue{}
	before := time.Now()

	jobs.NewOverdueJob(marker, nil, zap.NewNop()).Run()

	assert.False(t, marker.now.Before(before))
	require.NotNil(t, marker.actor)
	assert.True(t, marker.actor.IsAdmin())
}

func TestScheduler_AddJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("sweep", "0 5 0 * * *", func() {}))
	assert.Error(t, s.AddJob("sweep", "0 5 0 * * *", func() {}), "duplicate names are rejected")
	assert.Error(t, s.AddJob("broken", "not a cron", func() {}))
	require.NoError(t, s.AddJob("disabled", "", func() {}))

	assert.Equal(t, []string{"sweep"}, s.JobNames())

	require.NoError(t, s.RemoveJob("sweep"))
	assert.Error(t, s.RemoveJob("sweep"))
	assert.Empty(t, s.JobNames())
}

func TestRegister(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	rec := jobs.NewReconciliationJob(&fakeReconciler{}, service.TriggerScheduled, time.Second, nil, zap.NewNop())
	overdue := jobs.NewOverdueJob(&fakeOverdue{}, nil, zap.NewNop())

	require.NoError(t, jobs.Register(s, rec, "0 */15 * * * *", overdue, ""))
	assert.Equal(t, []string{jobs.ReconciliationJobName}, s.JobNames())
}
