package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/config"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/http/handler"
	"github.com/loopwork-studio/agency-api/internal/http/middleware"
	"github.com/loopwork-studio/agency-api/internal/http/router"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "agency-api", Environment: "test"},
		Auth: config.AuthConfig{JWTSecret: "router-test-secret", Issuer: "agency-api"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"https://portal.example"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		Security:  config.SecurityConfig{ContentTypeNosniff: true, FrameOptions: "DENY"},
		RateLimit: config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100},
		Server:    config.ServerConfig{EnableMetrics: true},
	}
}

func setupRouter(t *testing.T, checks map[string]router.ReadinessCheck) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry, cfg.App.Environment)
	gate := policy.NewGate(policy.Options{})

	projectRepo := repository.NewProjectRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	activity := service.NewActivityService(repository.NewActivityRepository(db), projectRepo, gate, logger)
	numberSeq := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), "INV", logger)
	invoices := service.NewInvoiceService(db, invoiceRepo, projectRepo, repository.NewClientRepository(db),
		numberSeq, activity, gate, nil, nil, m,
		service.InvoiceSettings{DefaultCurrency: "USD", DefaultDepositPercentage: decimal.NewFromInt(50), DaysUntilDue: 14},
		logger)
	reconcile := service.NewReconciliationService(db, invoiceRepo, repository.NewPaymentRepository(db),
		repository.NewMilestoneRepository(db), activity, gate, nil, m, logger)
	deliverables := service.NewDeliverableService(db, repository.NewDeliverableRepository(db),
		repository.NewDeliverableVersionRepository(db), repository.NewCommentRepository(db), projectRepo,
		activity, gate, nil, nil, m, logger)

	rt := router.NewRouter(cfg, logger, db,
		auth.NewMiddleware(cfg, logger),
		middleware.NewRateLimiter(&cfg.RateLimit, m, logger),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		checks,
		router.Handlers{
			Invoice:       handler.NewInvoiceHandler(invoices, reconcile, logger),
			Deliverable:   handler.NewDeliverableHandler(deliverables, 1, logger),
			Reimbursement: handler.NewReimbursementHandler(service.NewReimbursementService(repository.NewReimbursementRepository(db), activity, gate, m, logger), logger),
			Return:        handler.NewReturnHandler(service.NewReturnService(repository.NewReturnRepository(db), activity, gate, m, logger), logger),
			Activity:      handler.NewActivityHandler(activity, logger),
			Auth:          handler.NewAuthHandler(gate, logger),
		},
	)
	return rt.Setup(), cfg
}

func bearer(t *testing.T, cfg *config.Config, user *auth.UserContext) string {
	t.Helper()
	token, err := auth.IssueToken(&cfg.Auth, user, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	h, _ := setupRouter(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_ReadinessReportsFailingDependency(t *testing.T) {
	h, _ := setupRouter(t, map[string]router.ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body struct {
		Status string                       `json:"status"`
		Checks map[string]map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"]["status"])
	assert.Equal(t, "connection refused", body.Checks["redis"]["error"])
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := setupRouter(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Authentication(t *testing.T) {
	h, cfg := setupRouter(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", bearer(t, cfg, testutil.MemberUser()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var me domain.AuthUserDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.True(t, me.IsAgency)
}

func TestRouter_AgencyOnlyRoutes(t *testing.T) {
	h, cfg := setupRouter(t, nil)
	client := bearer(t, cfg, testutil.ClientUser(uuid.New()))
	member := bearer(t, cfg, testutil.MemberUser())

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"client lists reimbursements", http.MethodGet, "/api/v1/reimbursements", client, http.StatusForbidden},
		{"client lists returns", http.MethodGet, "/api/v1/returns", client, http.StatusForbidden},
		{"client creates invoice", http.MethodPost, "/api/v1/invoices", client, http.StatusForbidden},
		{"member runs sync", http.MethodPost, "/api/v1/invoices/sync", member, http.StatusForbidden},
		{"member lists returns", http.MethodGet, "/api/v1/returns", member, http.StatusOK},
		{"client lists invoices", http.MethodGet, "/api/v1/invoices", client, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			req.Header.Set("Authorization", tt.token)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/invoices", nil)
	req.Header.Set("Origin", "https://portal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://portal.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
