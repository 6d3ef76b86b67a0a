// Package policy centralizes the "can this actor do this to that resource"
// decision. Services consult the Gate before the status transition guard.
package policy

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
)

var (
	// ErrUnauthenticated is returned when there is no actor
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the actor's role may not perform the action
	ErrForbidden = errors.New("forbidden")
	// ErrNotVisible is returned when a client actor targets a resource outside its projects.
	// Callers report it as not found so unrelated records are not disclosed.
	ErrNotVisible = errors.New("resource not visible to actor")
)

// Action describes the kind of operation an actor wants to perform
type Action string

const (
	ActionView            Action = "view"
	ActionList            Action = "list"
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionSend            Action = "send"
	ActionSubmit          Action = "submit"
	ActionReview          Action = "review"
	ActionFinalize        Action = "finalize"
	ActionVoid            Action = "void"
	ActionImport          Action = "import"
	ActionSync            Action = "sync"
	ActionGenerate        Action = "generate"
	ActionApprovePayout   Action = "approve_payout"
	ActionCommentInternal Action = "comment_internal"
)

// Resource names a policy-protected resource type
type Resource string

const (
	ResourceInvoice        Resource = "invoice"
	ResourceDeliverable    Resource = "deliverable"
	ResourceComment        Resource = "comment"
	ResourceReimbursement  Resource = "reimbursement"
	ResourceReturn         Resource = "return"
	ResourceProject        Resource = "project"
	ResourceReconciliation Resource = "reconciliation"
)

// Subject carries the ownership facts of one resource instance.
// A nil subject means a collection-level check such as list or create.
type Subject struct {
	ClientID *uuid.UUID
}

// Policy lists which actions each role class may perform on one resource type
type Policy struct {
	Admin  []Action // admin only
	Agency []Action // admin and member
	Client []Action // client actors, limited to their own projects
}

// Options toggles policy decisions that vary per deployment
type Options struct {
	AllowAgencyApproval bool
}

// Gate is the central authorization checkpoint
type Gate struct {
	policies map[Resource]Policy
}

// NewGate creates a gate with the default agency policies
func NewGate(opts Options) *Gate {
	g := &Gate{policies: make(map[Resource]Policy)}

	g.Register(ResourceInvoice, Policy{
		Agency: []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionSend, ActionVoid, ActionImport},
		Client: []Action{ActionList, ActionView},
	})

	deliverableAgency := []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionSubmit, ActionFinalize}
	if opts.AllowAgencyApproval {
		deliverableAgency = append(deliverableAgency, ActionReview)
	}
	g.Register(ResourceDeliverable, Policy{
		Agency: deliverableAgency,
		Client: []Action{ActionList, ActionView, ActionReview},
	})

	g.Register(ResourceComment, Policy{
		Agency: []Action{ActionList, ActionCreate, ActionCommentInternal},
		Client: []Action{ActionList, ActionCreate},
	})

	g.Register(ResourceReimbursement, Policy{
		Agency: []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionApprovePayout},
	})
	g.Register(ResourceReturn, Policy{
		Agency: []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete},
	})

	g.Register(ResourceProject, Policy{
		Agency: []Action{ActionView, ActionGenerate},
		Client: []Action{ActionView},
	})

	g.Register(ResourceReconciliation, Policy{
		Admin: []Action{ActionSync},
	})

	return g
}

// Register adds or replaces the policy for a resource type
func (g *Gate) Register(resource Resource, p Policy) {
	g.policies[resource] = p
}

// Authorize returns nil when the actor may perform the action, ErrForbidden on a
// role failure, and ErrNotVisible when a client targets a resource it does not own.
func (g *Gate) Authorize(actor *auth.UserContext, action Action, resource Resource, subject *Subject) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	p, ok := g.policies[resource]
	if !ok {
		return ErrForbidden
	}

	if actor.IsAdmin() && (contains(p.Admin, action) || contains(p.Agency, action)) {
		return nil
	}
	if actor.IsAgency() && contains(p.Agency, action) {
		return nil
	}
	if actor.IsClient() && contains(p.Client, action) {
		if subject == nil || actor.OwnsClient(subject.ClientID) {
			return nil
		}
		return ErrNotVisible
	}
	return ErrForbidden
}

// Can is a convenience wrapper returning bool instead of error
func (g *Gate) Can(actor *auth.UserContext, action Action, resource Resource, subject *Subject) bool {
	return g.Authorize(actor, action, resource, subject) == nil
}

// Permission is one resource/action pair an actor may perform
type Permission struct {
	Resource Resource
	Action   Action
}

// Permissions lists every resource/action pair the actor may perform on
// resources it owns, ordered by resource then action.
func (g *Gate) Permissions(actor *auth.UserContext) []Permission {
	own := &Subject{}
	if actor != nil {
		own.ClientID = actor.ClientID
	}

	var perms []Permission
	for resource, p := range g.policies {
		seen := make(map[Action]bool)
		for _, group := range [][]Action{p.Admin, p.Agency, p.Client} {
			for _, action := range group {
				if seen[action] {
					continue
				}
				seen[action] = true
				if g.Can(actor, action, resource, own) {
					perms = append(perms, Permission{Resource: resource, Action: action})
				}
			}
		}
	}

	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
	return perms
}

func contains(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
