// Package escrow models a single payment hold's lifecycle: a three-state
// escrow that is authorized before the conversation, then either captured on
// completion or voided on cancel. The state machine is pure; the only
// external call point is the PaymentGateway capability.
package escrow

import "time"

// Status enumerates the escrow lifecycle.
//
//	pending -> authorized -> captured
//	pending -> cancelled
//	authorized -> cancelled
//
// captured and cancelled are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCaptured || s == StatusCancelled
}

// StatusChange is one entry in the escrow history.
type StatusChange struct {
	Status Status
	At     time.Time
}

// State is a snapshot of a ledger for display and persistence.
type State struct {
	Offer            Amount
	Status           Status
	GatewayReference string
	History          []StatusChange
}
