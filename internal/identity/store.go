package identity

import (
	"context"

	"parley/pkg/domain"
)

// Store is the identity collaborator interface consumed by the workflow.
//
// Error Contract:
// - Return sentinel.ErrNotFound when the user does not exist
// - Return sentinel.ErrConflict when a create collides on id or handle
// - Return wrapped errors with context for infrastructure failures
type Store interface {
	Get(ctx context.Context, id domain.UserID) (*UserRecord, error)
	GetByHandle(ctx context.Context, handle string) (*UserRecord, error)
	Create(ctx context.Context, record *UserRecord) error
	Put(ctx context.Context, id domain.UserID, patch Patch) error
}
