package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) IncrementAndCheck(context.Context, string, time.Duration, int) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("connection refused")
}

func TestLimiter_DeniesAfterClassLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[ratelimit.Class]int{
		ratelimit.ClassInvoiceCreate: 2,
	}, zap.NewNop(), m)

	ctx := context.Background()
	actor := uuid.New()

	assert.True(t, limiter.AllowClass(ctx, actor, ratelimit.ClassInvoiceCreate).Allowed)
	assert.True(t, limiter.AllowClass(ctx, actor, ratelimit.ClassInvoiceCreate).Allowed)
	assert.False(t, limiter.AllowClass(ctx, actor, ratelimit.ClassInvoiceCreate).Allowed)

	// a different actor has its own budget
	assert.True(t, limiter.AllowClass(ctx, uuid.New(), ratelimit.ClassInvoiceCreate).Allowed)

	count, err := promtestutil.GatherAndCount(reg, "agency_rate_limit_denied_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLimiter_ClassesDoNotShareBudget(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[ratelimit.Class]int{
		ratelimit.ClassCommentCreate:     1,
		ratelimit.ClassDeliverableReview: 1,
	}, zap.NewNop(), nil)

	ctx := context.Background()
	actor := uuid.New()

	assert.True(t, limiter.AllowClass(ctx, actor, ratelimit.ClassCommentCreate).Allowed)
	assert.True(t, limiter.AllowClass(ctx, actor, ratelimit.ClassDeliverableReview).Allowed)
	assert.False(t, limiter.AllowClass(ctx, actor, ratelimit.ClassCommentCreate).Allowed)
}

func TestLimiter_UnconfiguredClassIsUnlimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil, zap.NewNop(), nil)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.AllowClass(context.Background(), uuid.New(), ratelimit.ClassInvoiceCreate).Allowed)
	}
}

func TestLimiter_FailsOpenWhenStoreErrors(t *testing.T) {
	limiter := ratelimit.NewLimiter(failingStore{}, map[ratelimit.Class]int{
		ratelimit.ClassInvoiceCreate: 1,
	}, zap.NewNop(), nil)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.AllowClass(context.Background(), uuid.New(), ratelimit.ClassInvoiceCreate).Allowed)
	}
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Now()
	denied := ratelimit.Result{Allowed: false, ResetAt: now.Add(20 * time.Second)}
	assert.Equal(t, 20*time.Second, denied.RetryAfter(now))
	assert.Zero(t, ratelimit.Result{Allowed: true}.RetryAfter(now))
}
