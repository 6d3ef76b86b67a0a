package service_test

import (
	"testing"

	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db            *gorm.DB
	gateway       *testutil.FakeGateway
	invoices      *service.InvoiceService
	reconcile     *service.ReconciliationService
	deliverables  *service.DeliverableService
	reimbursement *service.ReimbursementService
	returns       *service.ReturnService
	activity      *service.ActivityService
}

type envOptions struct {
	noGateway           bool
	allowAgencyApproval bool
	limiter             *ratelimit.Limiter
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	gate := policy.NewGate(policy.Options{AllowAgencyApproval: opts.allowAgencyApproval})

	fake := testutil.NewFakeGateway()
	var gw gateway.Gateway = fake
	if opts.noGateway {
		gw = nil
	}

	invoiceRepo := repository.NewInvoiceRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	activity := service.NewActivityService(repository.NewActivityRepository(db), projectRepo, gate, logger)
	numberSeq := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), "INV", logger)

	return &testEnv{
		db:       db,
		gateway:  fake,
		activity: activity,
		invoices: service.NewInvoiceService(db, invoiceRepo, projectRepo, repository.NewClientRepository(db),
			numberSeq, activity, gate, gw, opts.limiter, nil,
			service.InvoiceSettings{DefaultCurrency: "USD", DefaultDepositPercentage: decimal.NewFromInt(50), DaysUntilDue: 14},
			logger),
		reconcile: service.NewReconciliationService(db, invoiceRepo, repository.NewPaymentRepository(db),
			repository.NewMilestoneRepository(db), activity, gate, gw, nil, logger),
		deliverables: service.NewDeliverableService(db, repository.NewDeliverableRepository(db),
			repository.NewDeliverableVersionRepository(db), repository.NewCommentRepository(db), projectRepo,
			activity, gate, nil, opts.limiter, nil, logger),
		reimbursement: service.NewReimbursementService(repository.NewReimbursementRepository(db), activity, gate, nil, logger),
		returns:       service.NewReturnService(repository.NewReturnRepository(db), activity, gate, nil, logger),
	}
}
