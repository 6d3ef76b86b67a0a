// Package ratelimit bounds how often one actor may perform a class of
// mutating action. Counting is delegated to a CounterStore so a process-local
// map and a shared Redis counter are interchangeable.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"go.uber.org/zap"
)

// Window is the fixed counting window for every action class
const Window = time.Minute

// Class names a group of actions that share one budget per actor
type Class string

const (
	ClassInvoiceCreate     Class = "invoice.create"
	ClassDeliverableReview Class = "deliverable.review"
	ClassCommentCreate     Class = "comment.create"
)

// Result is the outcome of one counted call
type Result struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter is how long the caller should wait before the window resets
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// CounterStore increments the counter for key and reports whether it is still within limit.
// The first call for a key (or the first after its window expired) starts a new window.
type CounterStore interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Result, error)
}

// Limiter applies per-class limits over a CounterStore
type Limiter struct {
	store   CounterStore
	limits  map[Class]int
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewLimiter creates a limiter. limits maps each class to its per-window maximum.
func NewLimiter(store CounterStore, limits map[Class]int, logger *zap.Logger, m *metrics.Metrics) *Limiter {
	return &Limiter{
		store:   store,
		limits:  limits,
		logger:  logger,
		metrics: m,
	}
}

// Key builds the counter key for an actor and class
func Key(actorID uuid.UUID, class Class) string {
	return fmt.Sprintf("ratelimit:%s:%s", class, actorID)
}

// Allow counts one call for (actor, class) against maxPerWindow.
// Store failures are logged and the call is allowed.
func (l *Limiter) Allow(ctx context.Context, actorID uuid.UUID, class Class, maxPerWindow int) Result {
	res, err := l.store.IncrementAndCheck(ctx, Key(actorID, class), Window, maxPerWindow)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("class", string(class)),
			zap.String("actor_id", actorID.String()),
			zap.Error(err),
		)
		return Result{Allowed: true, Limit: maxPerWindow}
	}
	if !res.Allowed {
		l.metrics.RateLimitDenied(string(class))
		l.logger.Info("rate limit exceeded",
			zap.String("class", string(class)),
			zap.String("actor_id", actorID.String()),
			zap.Int("count", res.Count),
			zap.Int("limit", maxPerWindow),
		)
	}
	return res
}

// AllowClass counts one call using the configured limit for the class.
// Classes without a configured limit are not limited.
func (l *Limiter) AllowClass(ctx context.Context, actorID uuid.UUID, class Class) Result {
	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return Result{Allowed: true}
	}
	return l.Allow(ctx, actorID, class, limit)
}
