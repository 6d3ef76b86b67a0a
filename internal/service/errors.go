package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
)

// Common service errors
var (
	// ErrUnauthorized is returned when there is no authenticated actor
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the actor's role may not perform the action
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited is returned when the actor exceeded the limit for an action class
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrConcurrentModification is returned when a conditional write lost a race
	ErrConcurrentModification = errors.New("resource was modified concurrently")

	// ErrGatewayNotConfigured is returned when an operation needs the payment gateway but it is disabled
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

	// ErrGatewayUnavailable wraps failures of payment gateway calls
	ErrGatewayUnavailable = errors.New("payment gateway request failed")

	ErrClientNotFound  = errors.New("client not found")
	ErrProjectNotFound = errors.New("project not found")
)

// authorize resolves the actor from ctx and consults the gate. A client actor
// targeting something outside its projects gets notFound instead of a
// forbidden error so the record's existence is not disclosed.
func authorize(ctx context.Context, gate *policy.Gate, action policy.Action, resource policy.Resource, subject *policy.Subject, notFound error) (*auth.UserContext, error) {
	actor, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	err := gate.Authorize(actor, action, resource, subject)
	switch {
	case err == nil:
		return actor, nil
	case errors.Is(err, policy.ErrNotVisible):
		return nil, notFound
	case errors.Is(err, policy.ErrUnauthenticated):
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrForbidden, action, resource)
	}
}

const dateLayout = "2006-01-02"

// parseDate parses a YYYY-MM-DD value. An empty string yields nil.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, domain.NewValidationError(field, "Must be a valid date (YYYY-MM-DD)")
	}
	return &t, nil
}

// today returns the current UTC calendar date at midnight
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// allowAction consults the per-actor limiter for one action class. A nil limiter allows everything.
func allowAction(ctx context.Context, limiter *ratelimit.Limiter, actor *auth.UserContext, class ratelimit.Class) error {
	if limiter == nil || actor == nil {
		return nil
	}
	if !limiter.AllowClass(ctx, actor.UserID, class).Allowed {
		return ErrRateLimited
	}
	return nil
}
