package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Money is rendered as a fixed two-decimal string,
// dates as YYYY-MM-DD and timestamps as RFC 3339.

type LineItemDTO struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Total       string `json:"total"`
}

type InvoiceDTO struct {
	ID                 uuid.UUID     `json:"id"`
	InvoiceNumber      string        `json:"invoiceNumber"`
	ClientID           uuid.UUID     `json:"clientId"`
	ProjectID          *uuid.UUID    `json:"projectId,omitempty"`
	MilestoneID        *uuid.UUID    `json:"milestoneId,omitempty"`
	Type               InvoiceType   `json:"type"`
	Status             InvoiceStatus `json:"status"`
	Amount             string        `json:"amount"`
	TaxAmount          string        `json:"taxAmount"`
	TotalAmount        string        `json:"totalAmount"`
	Currency           string        `json:"currency"`
	DueDate            string        `json:"dueDate,omitempty"`
	PaidAt             string        `json:"paidAt,omitempty"`
	ExternalGatewayID  string        `json:"externalGatewayId,omitempty"`
	ExternalGatewayURL string        `json:"externalGatewayUrl,omitempty"`
	LineItems          []LineItemDTO `json:"lineItems"`
	Notes              string        `json:"notes,omitempty"`
	CreatedAt          string        `json:"createdAt"`
	UpdatedAt          string        `json:"updatedAt"`
}

type PaymentDTO struct {
	ID              uuid.UUID     `json:"id"`
	InvoiceID       uuid.UUID     `json:"invoiceId"`
	Amount          string        `json:"amount"`
	Currency        string        `json:"currency"`
	Status          PaymentStatus `json:"status"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
	PaidAt          string        `json:"paidAt"`
}

// ReconciliationOutcomeDTO is the result for one invoice in a reconciliation run
type ReconciliationOutcomeDTO struct {
	InvoiceID      uuid.UUID `json:"invoiceId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	ExternalID     string    `json:"externalId"`
	GatewayStatus  string    `json:"gatewayStatus,omitempty"`
	Outcome        string    `json:"outcome"`
	PaymentCreated bool      `json:"paymentCreated"`
	Error          string    `json:"error,omitempty"`
}

// ReconciliationResultDTO summarizes a reconciliation run
type ReconciliationResultDTO struct {
	TotalChecked    int                        `json:"totalChecked"`
	UpdatedToPaid   int                        `json:"updatedToPaid"`
	PaymentsCreated int                        `json:"paymentsCreated"`
	Errors          int                        `json:"errors"`
	Results         []ReconciliationOutcomeDTO `json:"results"`
}

type DeliverableDTO struct {
	ID               uuid.UUID         `json:"id"`
	ProjectID        uuid.UUID         `json:"projectId"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	Type             DeliverableType   `json:"type"`
	FileURL          string            `json:"fileUrl,omitempty"`
	ThumbnailURL     string            `json:"thumbnailUrl,omitempty"`
	Status           DeliverableStatus `json:"status"`
	RequestedChanges bool              `json:"requestedChanges"`
	CreatedByID      uuid.UUID         `json:"createdById"`
	CreatedByName    string            `json:"createdByName,omitempty"`
	CreatedAt        string            `json:"createdAt"`
	UpdatedAt        string            `json:"updatedAt"`
}

// DeliverableDetailDTO is a deliverable with its versions, comments and feed
type DeliverableDetailDTO struct {
	DeliverableDTO
	Versions []DeliverableVersionDTO `json:"versions"`
	Comments []CommentDTO            `json:"comments"`
	Activity []ActivityDTO           `json:"activity"`
}

type DeliverableVersionDTO struct {
	ID            uuid.UUID `json:"id"`
	DeliverableID uuid.UUID `json:"deliverableId"`
	VersionNumber int       `json:"versionNumber"`
	FileURL       string    `json:"fileUrl"`
	Notes         string    `json:"notes,omitempty"`
	CreatedByID   uuid.UUID `json:"createdById"`
	CreatedByName string    `json:"createdByName,omitempty"`
	CreatedAt     string    `json:"createdAt"`
}

type CommentDTO struct {
	ID            uuid.UUID  `json:"id"`
	DeliverableID uuid.UUID  `json:"deliverableId"`
	ParentID      *uuid.UUID `json:"parentId,omitempty"`
	AuthorID      uuid.UUID  `json:"authorId"`
	AuthorName    string     `json:"authorName,omitempty"`
	Body          string     `json:"body"`
	IsInternal    bool       `json:"isInternal"`
	CreatedAt     string     `json:"createdAt"`
}

type ReimbursementDTO struct {
	ID           uuid.UUID           `json:"id"`
	ProjectID    *uuid.UUID          `json:"projectId,omitempty"`
	ExpenseID    *uuid.UUID          `json:"expenseId,omitempty"`
	PersonName   string              `json:"personName"`
	Description  string              `json:"description,omitempty"`
	Amount       string              `json:"amount"`
	Status       ReimbursementStatus `json:"status"`
	ApprovedByID *uuid.UUID          `json:"approvedById,omitempty"`
	ApprovedBy   string              `json:"approvedBy,omitempty"`
	DateApproved string              `json:"dateApproved,omitempty"`
	DatePaid     string              `json:"datePaid,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	CreatedAt    string              `json:"createdAt"`
	UpdatedAt    string              `json:"updatedAt"`
}

type ReturnDTO struct {
	ID                  uuid.UUID    `json:"id"`
	ProjectID           *uuid.UUID   `json:"projectId,omitempty"`
	ExpenseID           *uuid.UUID   `json:"expenseId,omitempty"`
	Vendor              string       `json:"vendor"`
	Description         string       `json:"description,omitempty"`
	Status              ReturnStatus `json:"status"`
	NetReturn           string       `json:"netReturn"`
	RestockingFee       string       `json:"restockingFee"`
	ReturnCompletedDate string       `json:"returnCompletedDate,omitempty"`
	RefundReceivedDate  string       `json:"refundReceivedDate,omitempty"`
	Notes               string       `json:"notes,omitempty"`
	CreatedAt           string       `json:"createdAt"`
	UpdatedAt           string       `json:"updatedAt"`
}

type ActivityDTO struct {
	ID              uuid.UUID              `json:"id"`
	ActorID         uuid.UUID              `json:"actorId"`
	ActorName       string                 `json:"actorName,omitempty"`
	ProjectID       *uuid.UUID             `json:"projectId,omitempty"`
	ActivityType    ActivityType           `json:"activityType"`
	EntityType      EntityType             `json:"entityType"`
	EntityID        uuid.UUID              `json:"entityId"`
	Title           string                 `json:"title"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsClientVisible bool                   `json:"isClientVisible"`
	OccurredAt      string                 `json:"occurredAt"`
}

// PermissionDTO is one resource/action pair the current user may perform
type PermissionDTO struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// AuthUserDTO describes the authenticated user and what they may do
type AuthUserDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Roles       []string        `json:"roles"`
	ClientID    *uuid.UUID      `json:"clientId,omitempty"`
	IsAgency    bool            `json:"isAgency"`
	Permissions []PermissionDTO `json:"permissions"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// API Response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// Request DTOs
//
// Amounts accept a JSON number or a decimal string. Dates are YYYY-MM-DD strings
// and are parsed by the services so a bad date yields a field-level error.

type LineItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type CreateInvoiceRequest struct {
	ClientID    uuid.UUID        `json:"clientId" validate:"required"`
	ProjectID   *uuid.UUID       `json:"projectId,omitempty"`
	MilestoneID *uuid.UUID       `json:"milestoneId,omitempty"`
	Type        InvoiceType      `json:"type,omitempty" validate:"omitempty,oneof=deposit milestone custom"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	TaxAmount   *decimal.Decimal `json:"taxAmount,omitempty"`
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	DueDate     *string          `json:"dueDate,omitempty"`
	LineItems   []LineItemInput  `json:"lineItems,omitempty" validate:"omitempty,dive"`
	Notes       string           `json:"notes,omitempty"`
}

// UpdateInvoiceRequest holds the patchable invoice fields. Absent keys are nil
// and leave the stored value alone; any other key in the body is ignored.
type UpdateInvoiceRequest struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	TaxAmount *decimal.Decimal `json:"taxAmount,omitempty"`
	Currency  *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	DueDate   *string          `json:"dueDate,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	LineItems *[]LineItemInput `json:"lineItems,omitempty" validate:"omitempty,dive"`
	Type      *InvoiceType     `json:"type,omitempty" validate:"omitempty,oneof=deposit milestone custom"`
}

type ImportInvoiceRequest struct {
	ExternalID string     `json:"externalId" validate:"required,max=100"`
	ProjectID  *uuid.UUID `json:"projectId,omitempty"`
}

type CreateDeliverableRequest struct {
	ProjectID    uuid.UUID       `json:"projectId" validate:"required"`
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description,omitempty"`
	Type         DeliverableType `json:"type" validate:"required,oneof=image video audio document text"`
	FileURL      string          `json:"fileUrl,omitempty" validate:"max=500"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty" validate:"max=500"`
}

type UpdateDeliverableRequest struct {
	Title        *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string          `json:"description,omitempty"`
	Type         *DeliverableType `json:"type,omitempty" validate:"omitempty,oneof=image video audio document text"`
	ThumbnailURL *string          `json:"thumbnailUrl,omitempty" validate:"omitempty,max=500"`
}

// ReviewDeliverableRequest is the body of approve and reject
type ReviewDeliverableRequest struct {
	Feedback       *string `json:"feedback,omitempty" validate:"omitempty,max=5000"`
	RequestChanges bool    `json:"requestChanges,omitempty"`
}

type CreateVersionRequest struct {
	FileURL string `json:"fileUrl" validate:"max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=5000"`
}

type CreateCommentRequest struct {
	Body       string     `json:"body" validate:"required,max=5000"`
	ParentID   *uuid.UUID `json:"parentId,omitempty"`
	IsInternal bool       `json:"isInternal,omitempty"`
}

type CreateReimbursementRequest struct {
	ProjectID   *uuid.UUID       `json:"projectId,omitempty"`
	ExpenseID   *uuid.UUID       `json:"expenseId,omitempty"`
	PersonName  string           `json:"personName" validate:"required,max=200"`
	Description string           `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Notes       string           `json:"notes,omitempty"`
}

// UpdateReimbursementRequest is the reimbursement PATCH whitelist
type UpdateReimbursementRequest struct {
	PersonName  *string              `json:"personName,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description,omitempty"`
	Amount      *decimal.Decimal     `json:"amount,omitempty"`
	Status      *ReimbursementStatus `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected paid"`
	DatePaid    *string              `json:"datePaid,omitempty"`
	Notes       *string              `json:"notes,omitempty"`
}

type CreateReturnRequest struct {
	ProjectID     *uuid.UUID       `json:"projectId,omitempty"`
	ExpenseID     *uuid.UUID       `json:"expenseId,omitempty"`
	Vendor        string           `json:"vendor" validate:"required,max=200"`
	Description   string           `json:"description,omitempty"`
	NetReturn     *decimal.Decimal `json:"netReturn,omitempty"`
	RestockingFee *decimal.Decimal `json:"restockingFee,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

// UpdateReturnRequest is the vendor return PATCH whitelist
type UpdateReturnRequest struct {
	Vendor              *string          `json:"vendor,omitempty" validate:"omitempty,min=1,max=200"`
	Description         *string          `json:"description,omitempty"`
	Status              *ReturnStatus    `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	NetReturn           *decimal.Decimal `json:"netReturn,omitempty"`
	RestockingFee       *decimal.Decimal `json:"restockingFee,omitempty"`
	RefundReceivedDate  *string          `json:"refundReceivedDate,omitempty"`
	ReturnCompletedDate *string          `json:"returnCompletedDate,omitempty"`
	Notes               *string          `json:"notes,omitempty"`
}
