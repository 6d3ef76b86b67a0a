package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/database"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection serializes concurrent callers the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Money parses a decimal literal or fails the test
func Money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// CreateTestClient creates a client, optionally linked to a gateway customer
func CreateTestClient(t *testing.T, db *gorm.DB, name string, gatewayCustomerID string) *domain.Client {
	t.Helper()
	client := &domain.Client{Name: name, Email: "billing@example.com"}
	if gatewayCustomerID != "" {
		client.GatewayCustomerID = &gatewayCustomerID
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// CreateTestProject creates a project. An empty budget leaves it unset.
func CreateTestProject(t *testing.T, db *gorm.DB, clientID *uuid.UUID, budget string) *domain.Project {
	t.Helper()
	project := &domain.Project{Name: "Test Project", ClientID: clientID}
	if budget != "" {
		b := Money(t, budget)
		project.Budget = &b
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateTestMilestone creates a milestone on a project
func CreateTestMilestone(t *testing.T, db *gorm.DB, projectID uuid.UUID, title, amount string) *domain.Milestone {
	t.Helper()
	milestone := &domain.Milestone{ProjectID: projectID, Title: title, PaymentAmount: Money(t, amount)}
	require.NoError(t, db.Create(milestone).Error)
	return milestone
}

// AdminUser returns an agency admin actor
func AdminUser() *auth.UserContext {
	return &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Avery Admin",
		Email:       "avery@loopwork.studio",
		Roles:       []domain.UserRoleType{domain.RoleAdmin},
	}
}

// MemberUser returns an agency member actor
func MemberUser() *auth.UserContext {
	return &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Morgan Member",
		Email:       "morgan@loopwork.studio",
		Roles:       []domain.UserRoleType{domain.RoleMember},
	}
}

// ClientUser returns a client-portal actor linked to the given client
func ClientUser(clientID uuid.UUID) *auth.UserContext {
	return &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Casey Client",
		Email:       "casey@example.com",
		Roles:       []domain.UserRoleType{domain.RoleClient},
		ClientID:    &clientID,
	}
}

// Ctx returns a background context carrying the given actor
func Ctx(user *auth.UserContext) context.Context {
	return auth.WithUserContext(context.Background(), user)
}
