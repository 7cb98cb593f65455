package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator adapters
// return these (optionally wrapped) so services can translate them into
// domain errors at the boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write lost against a concurrent mutation
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrExpired: token/code past its validity window
// - ErrAlreadyUsed: one-shot resource already consumed
// - ErrUnavailable: collaborator temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
