// Package domain holds shared value types: typed identifiers and the social
// platform enum. Construct values via the Parse functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "parley/pkg/domain-errors"
)

// UserID identifies a user record in the identity store.
type UserID uuid.UUID

// RequestID identifies a verification request in the request queue.
type RequestID uuid.UUID

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID(uuid.Nil), dErrors.Wrap(dErrors.CodeInvalidInput, "invalid user id", err)
	}
	return UserID(u), nil
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RequestID(uuid.Nil), dErrors.Wrap(dErrors.CodeInvalidInput, "invalid request id", err)
	}
	return RequestID(u), nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// JSON carries IDs as canonical uuid strings.

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(data []byte) error {
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id RequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RequestID) UnmarshalText(data []byte) error {
	parsed, err := ParseRequestID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
