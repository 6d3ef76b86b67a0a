package repository

import (
	"context"
	"strings"

	"github.com/loopwork-studio/agency-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not ask for a page size
const DefaultPageSize = 50

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config
// fieldMap maps API field names to database column names
// Returns the default sort if field is not in whitelist
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// Pagination normalizes page and page size for list queries
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps page to >= 1 and page size to 1..MaxPageSize
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ApplyClientScope restricts a query on a table with a client_id column to the
// client actor's own rows. Agency actors and the system actor see everything.
// A client actor without a client link sees nothing.
func ApplyClientScope(ctx context.Context, query *gorm.DB, column string) *gorm.DB {
	user, ok := auth.FromContext(ctx)
	if !ok || !user.IsClient() {
		return query
	}
	if user.ClientID == nil {
		return query.Where("1 = 0")
	}
	return query.Where(column+" = ?", *user.ClientID)
}

// ApplyProjectClientScope restricts a query on a table with a project_id column to
// projects owned by the client actor's client.
func ApplyProjectClientScope(ctx context.Context, query *gorm.DB, projectColumn string) *gorm.DB {
	user, ok := auth.FromContext(ctx)
	if !ok || !user.IsClient() {
		return query
	}
	if user.ClientID == nil {
		return query.Where("1 = 0")
	}
	return query.Where(projectColumn+" IN (SELECT id FROM projects WHERE client_id = ?)", *user.ClientID)
}
