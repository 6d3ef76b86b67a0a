package domain

// StatusGuard holds the permitted next statuses for one entity kind.
// It has no knowledge of actors; role checks happen before it is consulted.
type StatusGuard[S ~string] struct {
	entity string
	next   map[S][]S
}

// NewStatusGuard creates a guard for an entity kind from a transition table
func NewStatusGuard[S ~string](entity string, table map[S][]S) StatusGuard[S] {
	return StatusGuard[S]{entity: entity, next: table}
}

// Allowed reports whether from -> to is in the table
func (g StatusGuard[S]) Allowed(from, to S) bool {
	validNext, ok := g.next[from]
	if !ok {
		return false
	}
	for _, s := range validNext {
		if s == to {
			return true
		}
	}
	return false
}

// Check returns a *TransitionError carrying both statuses when from -> to is not permitted
func (g StatusGuard[S]) Check(from, to S) error {
	if g.Allowed(from, to) {
		return nil
	}
	return &TransitionError{Entity: g.entity, From: string(from), To: string(to)}
}

// Next returns the statuses reachable from the given one
func (g StatusGuard[S]) Next(from S) []S {
	return g.next[from]
}

// Known reports whether s is a status of this entity kind
func (g StatusGuard[S]) Known(s S) bool {
	_, ok := g.next[s]
	return ok
}

// IsTerminal reports whether no transition leaves the given status
func (g StatusGuard[S]) IsTerminal(s S) bool {
	return len(g.next[s]) == 0
}

var InvoiceGuard = NewStatusGuard("invoice", map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusSent},
	InvoiceStatusSent:      {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue:   {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
})

var DeliverableGuard = NewStatusGuard("deliverable", map[DeliverableStatus][]DeliverableStatus{
	DeliverableStatusDraft:    {DeliverableStatusInReview},
	DeliverableStatusInReview: {DeliverableStatusApproved, DeliverableStatusRejected},
	DeliverableStatusApproved: {DeliverableStatusFinal},
	DeliverableStatusRejected: {DeliverableStatusDraft}, // reopened by a new version
	DeliverableStatusFinal:    {},
})

var ReimbursementGuard = NewStatusGuard("reimbursement", map[ReimbursementStatus][]ReimbursementStatus{
	ReimbursementStatusPending:  {ReimbursementStatusApproved, ReimbursementStatusRejected},
	ReimbursementStatusApproved: {ReimbursementStatusPaid, ReimbursementStatusRejected},
	ReimbursementStatusRejected: {ReimbursementStatusPending},
	ReimbursementStatusPaid:     {},
})

var ReturnGuard = NewStatusGuard("return", map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:    {ReturnStatusInProgress, ReturnStatusCancelled},
	ReturnStatusInProgress: {ReturnStatusCompleted, ReturnStatusCancelled},
	ReturnStatusCompleted:  {},
	ReturnStatusCancelled:  {},
})
