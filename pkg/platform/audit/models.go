// Package audit records the actions that move money or grant trust:
// escrow transitions, moderation outcomes, invitation lifecycle changes.
package audit

import (
	"context"
	"time"

	"parley/pkg/domain"
)

// Action identifies what happened. The string is the stored value; renaming
// an action is a data migration.
type Action string

const (
	// Invitation lifecycle
	ActionInviteCreated   Action = "invite_created"
	ActionInviteAccepted  Action = "invite_accepted"
	ActionInviteDeclined  Action = "invite_declined"
	ActionCounterProposed Action = "counter_proposed"

	// Escrow
	ActionEscrowAuthorized Action = "escrow_authorized"
	ActionEscrowCaptured   Action = "escrow_captured"
	ActionEscrowCancelled  Action = "escrow_cancelled"

	// Verification and moderation
	ActionVerificationStarted   Action = "verification_started"
	ActionVerificationSubmitted Action = "verification_submitted"
	ActionVerificationApproved  Action = "verification_approved"
	ActionVerificationRejected  Action = "verification_rejected"

	// Identity
	ActionUserCreated Action = "user_created"
	ActionUserUpdated Action = "user_updated"
)

// Category splits events by persistence guarantee. Compliance events are
// written fail-closed on the caller's path; operations events go through the
// async worker and may be dropped under pressure.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

var actionCategories = map[Action]Category{
	ActionInviteAccepted:       CategoryCompliance,
	ActionInviteDeclined:       CategoryCompliance,
	ActionEscrowAuthorized:     CategoryCompliance,
	ActionEscrowCaptured:       CategoryCompliance,
	ActionEscrowCancelled:      CategoryCompliance,
	ActionVerificationApproved: CategoryCompliance,
	ActionVerificationRejected: CategoryCompliance,

	ActionInviteCreated:         CategoryOperations,
	ActionCounterProposed:       CategoryOperations,
	ActionVerificationStarted:   CategoryOperations,
	ActionVerificationSubmitted: CategoryOperations,
	ActionUserCreated:           CategoryOperations,
	ActionUserUpdated:           CategoryOperations,
}

// Category returns the action's category; unknown actions are operations.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is one audit trail entry. Subject names the entity acted on when it
// is not the user (an invitation ID, an escrow reference). ActorID is set
// when someone acts on the user's behalf, a moderator approving a
// verification for instance.
type Event struct {
	Timestamp time.Time
	UserID    domain.UserID
	Action    Action
	Subject   string
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
