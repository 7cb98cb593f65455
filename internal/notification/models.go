// Package notification delivers short user-facing messages produced by the
// invitation workflow (moderation outcomes, escrow events, counter offers).
package notification

import (
	"context"
	"time"

	"parley/pkg/domain"
)

// Kind classifies a notification for client-side rendering.
type Kind string

const (
	KindVerificationApproved Kind = "verification_approved"
	KindVerificationRejected Kind = "verification_rejected"
	KindInviteAccepted       Kind = "invite_accepted"
	KindInviteDeclined       Kind = "invite_declined"
	KindCounterReceived      Kind = "counter_received"
	KindEscrowCaptured       Kind = "escrow_captured"
)

// Notification is one message addressed to a user.
type Notification struct {
	ID        domain.RequestID  `json:"id"`
	UserID    domain.UserID     `json:"userId"`
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Sink receives notifications. Append must not block the caller's workflow on
// downstream delivery; implementations that fan out to a broker do so after
// the local write succeeds.
type Sink interface {
	Append(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]*Notification, error)
}
