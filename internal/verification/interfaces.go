package verification

import (
	"context"

	"parley/pkg/domain"
)

//go:generate mockgen -source=interfaces.go -destination=../moderation/mocks_test.go -package=moderation

// RecordStore persists verification records, keyed by (user, platform).
//
// Error Contract:
// - Return sentinel.ErrNotFound when no record exists for the key
// - Upsert replaces the record for its key unconditionally
type RecordStore interface {
	Get(ctx context.Context, userID domain.UserID, platform domain.SocialPlatform) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]*Record, error)
}

// RequestQueue is the shared moderation queue. It is accessed by concurrent
// moderator sessions, so resolution must be an atomic check-then-write:
// ResolveIfPending compares the stored status before mutating, which is what
// prevents two moderators double-processing one request.
//
// Error Contract:
// - Return sentinel.ErrNotFound when the request does not exist
// - ResolveIfPending returns sentinel.ErrInvalidState when the request is
//   already resolved, without mutating anything
type RequestQueue interface {
	Enqueue(ctx context.Context, request *Request) error
	Get(ctx context.Context, id domain.RequestID) (*Request, error)
	// List returns entries ordered most recent first.
	List(ctx context.Context) ([]*Request, error)
	// ResolveIfPending atomically flips a pending request to next and returns
	// the entry as it was before the flip.
	ResolveIfPending(ctx context.Context, id domain.RequestID, next RequestStatus) (*Request, error)
	// Reopen returns a claimed request to pending. Compensation path for
	// moderation side effects that failed mid-flight.
	Reopen(ctx context.Context, id domain.RequestID) error
	Delete(ctx context.Context, id domain.RequestID) error
}
