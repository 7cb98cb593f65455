// Package verification implements the per-(user, platform) identity
// verification state machine. Users generate a short code, place it on their
// external profile, and submit the profile URL; a human moderator resolves
// the request out of band via the moderation processor.
package verification

import (
	"errors"
	"time"

	"parley/pkg/domain"
)

// ErrInvalidProfileURL marks a submitted URL that does not match the
// platform's canonical profile shape. Recoverable, re-prompt the user.
var ErrInvalidProfileURL = errors.New("invalid profile url")

// Status enumerates the verification record lifecycle.
//
//	unverified -> pending -> verified
//	unverified -> pending -> failed -> (restart) unverified
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusFailed     Status = "failed"
)

// Record tracks one user's verification state for one platform. There is at
// most one record per (user, platform); restarting discards the prior code.
type Record struct {
	UserID      domain.UserID
	Platform    domain.SocialPlatform
	ProfileURL  string
	Code        string
	Status      Status
	RequestedAt time.Time
	ResolvedAt  *time.Time
}

// RequestStatus enumerates a queue entry's moderation state. Approved entries
// are deleted from the queue; rejected entries are retained.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Request is one moderation queue entry awaiting human review.
type Request struct {
	ID          domain.RequestID
	UserID      domain.UserID
	Platform    domain.SocialPlatform
	ProfileURL  string
	Code        string
	Status      RequestStatus
	RequestedAt time.Time
	ResolvedAt  *time.Time
}
