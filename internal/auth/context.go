package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
)

// SystemUserID identifies the system actor used by API-key calls and scheduled jobs
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Roles       []domain.UserRoleType
	// ClientID links a client-role user to the client organisation they belong to
	ClientID *uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// SystemUser returns the actor used for API-key requests and background jobs
func SystemUser() *UserContext {
	return &UserContext{
		UserID:      SystemUserID,
		DisplayName: "System",
		Email:       "system@loopwork.studio",
		Roles:       []domain.UserRoleType{domain.RoleAdmin},
	}
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin checks if user is an agency admin
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(domain.RoleAdmin)
}

// IsAgency checks if user is agency staff (admin or member)
func (u *UserContext) IsAgency() bool {
	return u.HasAnyRole(domain.RoleAdmin, domain.RoleMember)
}

// IsClient checks if user is restricted to the client portal.
// A user holding an agency role is never treated as a client.
func (u *UserContext) IsClient() bool {
	return !u.IsAgency() && u.HasRole(domain.RoleClient)
}

// OwnsClient reports whether a client-role user belongs to the given client
func (u *UserContext) OwnsClient(clientID *uuid.UUID) bool {
	if u.ClientID == nil || clientID == nil {
		return false
	}
	return *u.ClientID == *clientID
}

// RolesAsStrings returns roles as a slice of strings
func (u *UserContext) RolesAsStrings() []string {
	result := make([]string, len(u.Roles))
	for i, role := range u.Roles {
		result[i] = string(role)
	}
	return result
}
