package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/http/handler"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/storage"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type handlerEnv struct {
	db             *gorm.DB
	gateway        *testutil.FakeGateway
	gate           *policy.Gate
	invoices       *handler.InvoiceHandler
	deliverables   *handler.DeliverableHandler
	reimbursements *handler.ReimbursementHandler
	returns        *handler.ReturnHandler
	activity       *handler.ActivityHandler
	auth           *handler.AuthHandler
}

func newHandlerEnv(t *testing.T, store storage.Storage) *handlerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	gate := policy.NewGate(policy.Options{})
	fake := testutil.NewFakeGateway()
	var gw gateway.Gateway = fake

	invoiceRepo := repository.NewInvoiceRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	activity := service.NewActivityService(repository.NewActivityRepository(db), projectRepo, gate, logger)
	numberSeq := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), "INV", logger)

	invoiceService := service.NewInvoiceService(db, invoiceRepo, projectRepo, repository.NewClientRepository(db),
		numberSeq, activity, gate, gw, nil, nil,
		service.InvoiceSettings{DefaultCurrency: "USD", DefaultDepositPercentage: decimal.NewFromInt(50), DaysUntilDue: 14},
		logger)
	reconcileService := service.NewReconciliationService(db, invoiceRepo, repository.NewPaymentRepository(db),
		repository.NewMilestoneRepository(db), activity, gate, gw, nil, logger)
	deliverableService := service.NewDeliverableService(db, repository.NewDeliverableRepository(db),
		repository.NewDeliverableVersionRepository(db), repository.NewCommentRepository(db), projectRepo,
		activity, gate, store, nil, nil, logger)

	return &handlerEnv{
		db:             db,
		gateway:        fake,
		gate:           gate,
		invoices:       handler.NewInvoiceHandler(invoiceService, reconcileService, logger),
		deliverables:   handler.NewDeliverableHandler(deliverableService, 1, logger),
		reimbursements: handler.NewReimbursementHandler(service.NewReimbursementService(repository.NewReimbursementRepository(db), activity, gate, nil, logger), logger),
		returns:        handler.NewReturnHandler(service.NewReturnService(repository.NewReturnRepository(db), activity, gate, nil, logger), logger),
		activity:       handler.NewActivityHandler(activity, logger),
		auth:           handler.NewAuthHandler(gate, logger),
	}
}

// newRequest builds a request carrying the actor and, when id is non-empty, the chi {id} parameter
func newRequest(t *testing.T, method, target string, body interface{}, actor *auth.UserContext, id string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return withActorAndID(req, actor, id)
}

func withActorAndID(req *http.Request, actor *auth.UserContext, id string) *http.Request {
	ctx := req.Context()
	if actor != nil {
		ctx = auth.WithUserContext(ctx, actor)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
	return apiErr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
