package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// UserRoleType represents a role a user can have
type UserRoleType string

const (
	RoleAdmin  UserRoleType = "admin"
	RoleMember UserRoleType = "member"
	RoleClient UserRoleType = "client"
)

// IsAgency reports whether the role belongs to agency staff
func (r UserRoleType) IsAgency() bool {
	return r == RoleAdmin || r == RoleMember
}

// IsValidRole checks if a role string is known
func IsValidRole(role string) bool {
	switch UserRoleType(role) {
	case RoleAdmin, RoleMember, RoleClient:
		return true
	}
	return false
}

// Client is an organisation the agency works for
type Client struct {
	BaseModel
	Name              string  `gorm:"type:varchar(200);not null"`
	Email             string  `gorm:"type:varchar(255)"`
	GatewayCustomerID *string `gorm:"type:varchar(100);uniqueIndex;column:gateway_customer_id"`
}

// Project groups deliverables, milestones and invoices for one client
type Project struct {
	BaseModel
	Name              string           `gorm:"type:varchar(200);not null"`
	ClientID          *uuid.UUID       `gorm:"type:uuid;index;column:client_id"`
	Client            *Client          `gorm:"foreignKey:ClientID"`
	Budget            *decimal.Decimal `gorm:"type:numeric(14,2)"`
	DepositPercentage *decimal.Decimal `gorm:"type:numeric(5,2);column:deposit_percentage"`
	Milestones        []Milestone      `gorm:"foreignKey:ProjectID"`
}

// Milestone is a project sub-goal that may carry a payment amount
type Milestone struct {
	BaseModel
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index;column:project_id"`
	Title         string          `gorm:"type:varchar(200);not null"`
	PaymentAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:payment_amount"`
	IsPaid        bool            `gorm:"not null;default:false;column:is_paid"`
	DueDate       *time.Time      `gorm:"type:date;column:due_date"`
}

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceType represents why an invoice was raised
type InvoiceType string

const (
	InvoiceTypeDeposit   InvoiceType = "deposit"
	InvoiceTypeMilestone InvoiceType = "milestone"
	InvoiceTypeCustom    InvoiceType = "custom"
)

// LineItem is one priced row within an invoice. Stored inline on the invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// NewLineItem builds a line item with its computed total
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) LineItem {
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       quantity.Mul(unitPrice),
	}
}

// Invoice is a bill raised against a client
type Invoice struct {
	BaseModel
	ClientID           uuid.UUID                     `gorm:"type:uuid;not null;index;column:client_id"`
	ProjectID          *uuid.UUID                    `gorm:"type:uuid;index;column:project_id"`
	MilestoneID        *uuid.UUID                    `gorm:"type:uuid;index;column:milestone_id"`
	Type               InvoiceType                   `gorm:"type:varchar(20);not null;default:'custom'"`
	InvoiceNumber      string                        `gorm:"type:varchar(20);not null;uniqueIndex;column:invoice_number"`
	Amount             decimal.Decimal               `gorm:"type:numeric(14,2);not null"`
	TaxAmount          decimal.Decimal               `gorm:"type:numeric(14,2);not null;default:0;column:tax_amount"`
	TotalAmount        decimal.Decimal               `gorm:"type:numeric(14,2);not null;column:total_amount"`
	Currency           string                        `gorm:"type:varchar(3);not null;default:'USD'"`
	Status             InvoiceStatus                 `gorm:"type:varchar(20);not null;default:'draft';index"`
	DueDate            *time.Time                    `gorm:"type:date;column:due_date"`
	PaidAt             *time.Time                    `gorm:"column:paid_at"`
	ExternalGatewayID  *string                       `gorm:"type:varchar(100);uniqueIndex;column:external_gateway_id"`
	ExternalGatewayURL *string                       `gorm:"type:varchar(500);column:external_gateway_url"`
	LineItems          datatypes.JSONSlice[LineItem] `gorm:"column:line_items"`
	Notes              string                        `gorm:"type:text"`
}

// PaymentStatus represents the state of a recorded payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records money received against an invoice. At most one succeeded
// payment may exist per invoice.
type Payment struct {
	BaseModel
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;column:invoice_id;uniqueIndex:idx_payments_invoice_succeeded,where:status = 'succeeded'"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index;column:client_id"`
	ProjectID       *uuid.UUID      `gorm:"type:uuid;index;column:project_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null"`
	PaymentIntentID *string         `gorm:"type:varchar(100);column:payment_intent_id"`
	PaidAt          time.Time       `gorm:"not null;column:paid_at"`
}

// NumberSequence holds the last value handed out for a named sequence
type NumberSequence struct {
	Name      string    `gorm:"type:varchar(50);primaryKey"`
	LastValue int64     `gorm:"not null;default:0;column:last_value"`
	UpdatedAt time.Time `gorm:"not null"`
}

// DeliverableType represents the media type of a deliverable
type DeliverableType string

const (
	DeliverableTypeImage    DeliverableType = "image"
	DeliverableTypeVideo    DeliverableType = "video"
	DeliverableTypeAudio    DeliverableType = "audio"
	DeliverableTypeDocument DeliverableType = "document"
	DeliverableTypeText     DeliverableType = "text"
)

// DeliverableStatus represents the review state of a deliverable
type DeliverableStatus string

const (
	DeliverableStatusDraft    DeliverableStatus = "draft"
	DeliverableStatusInReview DeliverableStatus = "in_review"
	DeliverableStatusApproved DeliverableStatus = "approved"
	DeliverableStatusRejected DeliverableStatus = "rejected"
	DeliverableStatusFinal    DeliverableStatus = "final"
)

// ClientVisibleDeliverableStatuses are the statuses a client actor may see
var ClientVisibleDeliverableStatuses = []DeliverableStatus{
	DeliverableStatusInReview,
	DeliverableStatusApproved,
	DeliverableStatusRejected,
	DeliverableStatusFinal,
}

// IsClientVisible reports whether a client actor may read a deliverable in this status
func (s DeliverableStatus) IsClientVisible() bool {
	for _, v := range ClientVisibleDeliverableStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Deliverable is a piece of work submitted to the client for review
type Deliverable struct {
	BaseModel
	ProjectID        uuid.UUID         `gorm:"type:uuid;not null;index;column:project_id"`
	Title            string            `gorm:"type:varchar(200);not null"`
	Description      string            `gorm:"type:text"`
	Type             DeliverableType   `gorm:"type:varchar(20);not null"`
	FileURL          string            `gorm:"type:varchar(500);column:file_url"`
	ThumbnailURL     string            `gorm:"type:varchar(500);column:thumbnail_url"`
	Status           DeliverableStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	RequestedChanges bool              `gorm:"not null;default:false;column:requested_changes"`
	CreatedByID      uuid.UUID         `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedByName    string            `gorm:"type:varchar(200);column:created_by_name"`
}

// DeliverableVersion is an immutable file revision of a deliverable
type DeliverableVersion struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeliverableID uuid.UUID `gorm:"type:uuid;not null;column:deliverable_id;uniqueIndex:idx_deliverable_versions_number"`
	VersionNumber int       `gorm:"not null;column:version_number;uniqueIndex:idx_deliverable_versions_number"`
	FileURL       string    `gorm:"type:varchar(500);not null;column:file_url"`
	Notes         string    `gorm:"type:text"`
	CreatedByID   uuid.UUID `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedByName string    `gorm:"type:varchar(200);column:created_by_name"`
	CreatedAt     time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (v *DeliverableVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Comment is a note on a deliverable. Replies reference a top-level parent.
type Comment struct {
	BaseModel
	DeliverableID uuid.UUID  `gorm:"type:uuid;not null;index;column:deliverable_id"`
	ParentID      *uuid.UUID `gorm:"type:uuid;index;column:parent_id"`
	AuthorID      uuid.UUID  `gorm:"type:uuid;not null;column:author_id"`
	AuthorName    string     `gorm:"type:varchar(200);column:author_name"`
	Body          string     `gorm:"type:text;not null"`
	IsInternal    bool       `gorm:"not null;default:false;column:is_internal"`
}

// ReimbursementStatus represents the payout state of a reimbursement
type ReimbursementStatus string

const (
	ReimbursementStatusPending  ReimbursementStatus = "pending"
	ReimbursementStatusApproved ReimbursementStatus = "approved"
	ReimbursementStatusRejected ReimbursementStatus = "rejected"
	ReimbursementStatusPaid     ReimbursementStatus = "paid"
)

// Reimbursement is money owed back to a person who paid out of pocket
type Reimbursement struct {
	BaseModel
	ProjectID    *uuid.UUID          `gorm:"type:uuid;index;column:project_id"`
	ExpenseID    *uuid.UUID          `gorm:"type:uuid;column:expense_id"`
	PersonName   string              `gorm:"type:varchar(200);not null;column:person_name"`
	Description  string              `gorm:"type:text"`
	Amount       decimal.Decimal     `gorm:"type:numeric(14,2);not null"`
	Status       ReimbursementStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedByID *uuid.UUID          `gorm:"type:uuid;column:approved_by_id"`
	ApprovedBy   string              `gorm:"type:varchar(200);column:approved_by"`
	DateApproved *time.Time          `gorm:"type:date;column:date_approved"`
	DatePaid     *time.Time          `gorm:"type:date;column:date_paid"`
	Notes        string              `gorm:"type:text"`
}

// ReturnStatus represents the processing state of a vendor return
type ReturnStatus string

const (
	ReturnStatusPending    ReturnStatus = "pending"
	ReturnStatusInProgress ReturnStatus = "in_progress"
	ReturnStatusCompleted  ReturnStatus = "completed"
	ReturnStatusCancelled  ReturnStatus = "cancelled"
)

// Return is goods sent back to a vendor for a refund
type Return struct {
	BaseModel
	ProjectID           *uuid.UUID      `gorm:"type:uuid;index;column:project_id"`
	ExpenseID           *uuid.UUID      `gorm:"type:uuid;column:expense_id"`
	Vendor              string          `gorm:"type:varchar(200);not null"`
	Description         string          `gorm:"type:text"`
	Status              ReturnStatus    `gorm:"type:varchar(20);not null;default:'pending';index"`
	NetReturn           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:net_return"`
	RestockingFee       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:restocking_fee"`
	ReturnCompletedDate *time.Time      `gorm:"type:date;column:return_completed_date"`
	RefundReceivedDate  *time.Time      `gorm:"type:date;column:refund_received_date"`
	Notes               string          `gorm:"type:text"`
}

// ActivityType classifies an activity feed entry
type ActivityType string

const (
	ActivityTypeInvoiceCreated       ActivityType = "invoice_created"
	ActivityTypeInvoiceUpdated       ActivityType = "invoice_updated"
	ActivityTypeInvoiceSent          ActivityType = "invoice_sent"
	ActivityTypeInvoiceVoided        ActivityType = "invoice_voided"
	ActivityTypeInvoiceDeleted       ActivityType = "invoice_deleted"
	ActivityTypeInvoiceImported      ActivityType = "invoice_imported"
	ActivityTypeInvoiceOverdue       ActivityType = "invoice_overdue"
	ActivityTypeInvoicePaid          ActivityType = "invoice_paid"
	ActivityTypeDeliverableCreated   ActivityType = "deliverable_created"
	ActivityTypeDeliverableUpdated   ActivityType = "deliverable_updated"
	ActivityTypeDeliverableDeleted   ActivityType = "deliverable_deleted"
	ActivityTypeDeliverableSubmitted ActivityType = "deliverable_submitted"
	ActivityTypeDeliverableApproved  ActivityType = "deliverable_approved"
	ActivityTypeDeliverableRejected  ActivityType = "deliverable_rejected"
	ActivityTypeDeliverableFinal     ActivityType = "deliverable_final"
	ActivityTypeVersionCreated       ActivityType = "version_created"
	ActivityTypeCommentAdded         ActivityType = "comment_added"
	ActivityTypeReimbursementCreated ActivityType = "reimbursement_created"
	ActivityTypeReimbursementStatus  ActivityType = "reimbursement_status_changed"
	ActivityTypeReturnCreated        ActivityType = "return_created"
	ActivityTypeReturnStatus         ActivityType = "return_status_changed"
)

// EntityType names the kind of record an activity refers to
type EntityType string

const (
	EntityInvoice       EntityType = "invoice"
	EntityDeliverable   EntityType = "deliverable"
	EntityReimbursement EntityType = "reimbursement"
	EntityReturn        EntityType = "return"
)

// Activity is an append-only feed entry. Entries are never updated.
type Activity struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ActorID         uuid.UUID         `gorm:"type:uuid;not null;column:actor_id"`
	ActorName       string            `gorm:"type:varchar(200);column:actor_name"`
	ProjectID       *uuid.UUID        `gorm:"type:uuid;index;column:project_id"`
	ActivityType    ActivityType      `gorm:"type:varchar(50);not null;column:activity_type"`
	EntityType      EntityType        `gorm:"type:varchar(50);not null;index:idx_activities_entity;column:entity_type"`
	EntityID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_activities_entity;column:entity_id"`
	Title           string            `gorm:"type:varchar(300);not null"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata"`
	IsClientVisible bool              `gorm:"not null;default:false;column:is_client_visible"`
	OccurredAt      time.Time         `gorm:"not null;index;column:occurred_at"`
}

// BeforeCreate assigns an ID and timestamp when unset
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now()
	}
	return nil
}
