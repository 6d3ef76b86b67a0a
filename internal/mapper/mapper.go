package mapper

import (
	"time"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	timestampLayout = time.RFC3339
	dateLayout      = "2006-01-02"
)

// FormatMoney renders an amount with two decimal places
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToLineItemDTO converts a LineItem to LineItemDTO
func ToLineItemDTO(item domain.LineItem) domain.LineItemDTO {
	return domain.LineItemDTO{
		Description: item.Description,
		Quantity:    item.Quantity.String(),
		UnitPrice:   FormatMoney(item.UnitPrice),
		Total:       FormatMoney(item.Total),
	}
}

// ToInvoiceDTO converts Invoice to InvoiceDTO
func ToInvoiceDTO(invoice *domain.Invoice) domain.InvoiceDTO {
	items := make([]domain.LineItemDTO, 0, len(invoice.LineItems))
	for _, item := range invoice.LineItems {
		items = append(items, ToLineItemDTO(item))
	}

	return domain.InvoiceDTO{
		ID:                 invoice.ID,
		InvoiceNumber:      invoice.InvoiceNumber,
		ClientID:           invoice.ClientID,
		ProjectID:          invoice.ProjectID,
		MilestoneID:        invoice.MilestoneID,
		Type:               invoice.Type,
		Status:             invoice.Status,
		Amount:             FormatMoney(invoice.Amount),
		TaxAmount:          FormatMoney(invoice.TaxAmount),
		TotalAmount:        FormatMoney(invoice.TotalAmount),
		Currency:           invoice.Currency,
		DueDate:            formatDate(invoice.DueDate),
		PaidAt:             formatTimestamp(invoice.PaidAt),
		ExternalGatewayID:  deref(invoice.ExternalGatewayID),
		ExternalGatewayURL: deref(invoice.ExternalGatewayURL),
		LineItems:          items,
		Notes:              invoice.Notes,
		CreatedAt:          formatTimestamp(&invoice.CreatedAt),
		UpdatedAt:          formatTimestamp(&invoice.UpdatedAt),
	}
}

// ToInvoiceDTOs converts a slice of invoices
func ToInvoiceDTOs(invoices []domain.Invoice) []domain.InvoiceDTO {
	dtos := make([]domain.InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = ToInvoiceDTO(&invoices[i])
	}
	return dtos
}

// ToPaymentDTO converts Payment to PaymentDTO
func ToPaymentDTO(payment *domain.Payment) domain.PaymentDTO {
	return domain.PaymentDTO{
		ID:              payment.ID,
		InvoiceID:       payment.InvoiceID,
		Amount:          FormatMoney(payment.Amount),
		Currency:        payment.Currency,
		Status:          payment.Status,
		PaymentIntentID: deref(payment.PaymentIntentID),
		PaidAt:          formatTimestamp(&payment.PaidAt),
	}
}

// ToDeliverableDTO converts Deliverable to DeliverableDTO
func ToDeliverableDTO(d *domain.Deliverable) domain.DeliverableDTO {
	return domain.DeliverableDTO{
		ID:               d.ID,
		ProjectID:        d.ProjectID,
		Title:            d.Title,
		Description:      d.Description,
		Type:             d.Type,
		FileURL:          d.FileURL,
		ThumbnailURL:     d.ThumbnailURL,
		Status:           d.Status,
		RequestedChanges: d.RequestedChanges,
		CreatedByID:      d.CreatedByID,
		CreatedByName:    d.CreatedByName,
		CreatedAt:        formatTimestamp(&d.CreatedAt),
		UpdatedAt:        formatTimestamp(&d.UpdatedAt),
	}
}

// ToDeliverableVersionDTO converts DeliverableVersion to DeliverableVersionDTO
func ToDeliverableVersionDTO(v *domain.DeliverableVersion) domain.DeliverableVersionDTO {
	return domain.DeliverableVersionDTO{
		ID:            v.ID,
		DeliverableID: v.DeliverableID,
		VersionNumber: v.VersionNumber,
		FileURL:       v.FileURL,
		Notes:         v.Notes,
		CreatedByID:   v.CreatedByID,
		CreatedByName: v.CreatedByName,
		CreatedAt:     formatTimestamp(&v.CreatedAt),
	}
}

// ToCommentDTO converts Comment to CommentDTO
func ToCommentDTO(c *domain.Comment) domain.CommentDTO {
	return domain.CommentDTO{
		ID:            c.ID,
		DeliverableID: c.DeliverableID,
		ParentID:      c.ParentID,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		Body:          c.Body,
		IsInternal:    c.IsInternal,
		CreatedAt:     formatTimestamp(&c.CreatedAt),
	}
}

// ToReimbursementDTO converts Reimbursement to ReimbursementDTO
func ToReimbursementDTO(r *domain.Reimbursement) domain.ReimbursementDTO {
	return domain.ReimbursementDTO{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		ExpenseID:    r.ExpenseID,
		PersonName:   r.PersonName,
		Description:  r.Description,
		Amount:       FormatMoney(r.Amount),
		Status:       r.Status,
		ApprovedByID: r.ApprovedByID,
		ApprovedBy:   r.ApprovedBy,
		DateApproved: formatDate(r.DateApproved),
		DatePaid:     formatDate(r.DatePaid),
		Notes:        r.Notes,
		CreatedAt:    formatTimestamp(&r.CreatedAt),
		UpdatedAt:    formatTimestamp(&r.UpdatedAt),
	}
}

// ToReturnDTO converts Return to ReturnDTO
func ToReturnDTO(r *domain.Return) domain.ReturnDTO {
	return domain.ReturnDTO{
		ID:                  r.ID,
		ProjectID:           r.ProjectID,
		ExpenseID:           r.ExpenseID,
		Vendor:              r.Vendor,
		Description:         r.Description,
		Status:              r.Status,
		NetReturn:           FormatMoney(r.NetReturn),
		RestockingFee:       FormatMoney(r.RestockingFee),
		ReturnCompletedDate: formatDate(r.ReturnCompletedDate),
		RefundReceivedDate:  formatDate(r.RefundReceivedDate),
		Notes:               r.Notes,
		CreatedAt:           formatTimestamp(&r.CreatedAt),
		UpdatedAt:           formatTimestamp(&r.UpdatedAt),
	}
}

// ToActivityDTO converts Activity to ActivityDTO
func ToActivityDTO(a *domain.Activity) domain.ActivityDTO {
	return domain.ActivityDTO{
		ID:              a.ID,
		ActorID:         a.ActorID,
		ActorName:       a.ActorName,
		ProjectID:       a.ProjectID,
		ActivityType:    a.ActivityType,
		EntityType:      a.EntityType,
		EntityID:        a.EntityID,
		Title:           a.Title,
		Metadata:        a.Metadata,
		IsClientVisible: a.IsClientVisible,
		OccurredAt:      formatTimestamp(&a.OccurredAt),
	}
}
