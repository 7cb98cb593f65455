package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parley/pkg/platform/sentinel"
)

// ErrAuthorizationFailed signals the gateway refused the hold. The ledger is
// cancelled; the caller may retry with a fresh ledger or abandon the escrow.
var ErrAuthorizationFailed = errors.New("authorization failed")

// Ledger tracks one escrow through its lifecycle. It is owned exclusively by
// the negotiation session that created it and is single-writer: callers must
// not share a Ledger across goroutines.
type Ledger struct {
	offer   Amount
	policy  FeePolicy
	gateway PaymentGateway

	status  Status
	ref     string
	history []StatusChange
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger opens a pending escrow for the given offer.
func NewLedger(offer Amount, policy FeePolicy, gateway PaymentGateway, opts ...Option) (*Ledger, error) {
	if offer < 0 {
		return nil, fmt.Errorf("offer must not be negative, got %d", offer)
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	l := &Ledger{
		offer:   offer,
		policy:  policy,
		gateway: gateway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.status = StatusPending
	l.history = append(l.history, StatusChange{Status: StatusPending, At: l.now()})
	return l, nil
}

// FeePreview returns the breakdown that will be charged by Authorize. It is a
// pure function of the offer and policy, so the display always matches the
// hold.
func (l *Ledger) FeePreview() Breakdown {
	return l.policy.Breakdown(l.offer)
}

// Authorize places the hold for offer plus the authorize-side fee.
//
// Valid only from pending. On gateway refusal the ledger moves to cancelled
// and ErrAuthorizationFailed is returned. If ctx expires before the gateway
// resolves, the ledger stays pending so the caller can retry or abandon; a
// hold is never recorded on an ambiguous outcome.
func (l *Ledger) Authorize(ctx context.Context) error {
	if l.status != StatusPending {
		return fmt.Errorf("authorize from %s: %w", l.status, sentinel.ErrInvalidState)
	}

	total := l.policy.Breakdown(l.offer).TotalCharged
	ref, err := l.gateway.Authorize(ctx, total)
	if err != nil {
		if ctx.Err() != nil {
			// Outcome unknown at the gateway; no transition.
			return fmt.Errorf("authorize hold of %d: %w", total, err)
		}
		l.transition(StatusCancelled)
		return fmt.Errorf("hold of %d refused: %v: %w", total, err, ErrAuthorizationFailed)
	}
	if ref == "" {
		// Ambiguous success is treated as failure, never guessed at.
		l.transition(StatusCancelled)
		return fmt.Errorf("gateway returned no reference: %w", ErrAuthorizationFailed)
	}

	l.ref = ref
	l.transition(StatusAuthorized)
	return nil
}

// Cancel voids the escrow. Valid from pending or authorized; the local
// transition always succeeds, then any held funds are voided at the gateway.
// A void failure is propagated for reconciliation but the ledger stays
// cancelled.
func (l *Ledger) Cancel(ctx context.Context) error {
	switch l.status {
	case StatusPending:
		l.transition(StatusCancelled)
		return nil
	case StatusAuthorized:
		ref := l.ref
		l.transition(StatusCancelled)
		if err := l.gateway.Void(ctx, ref); err != nil {
			return fmt.Errorf("void hold %s: %w", ref, err)
		}
		return nil
	default:
		return fmt.Errorf("cancel from %s: %w", l.status, sentinel.ErrInvalidState)
	}
}

// Capture executes the final charge after event completion and returns the
// recipient payout (offer minus the payout-side fee).
//
// Valid only from authorized. A gateway failure leaves the ledger authorized
// so the capture can be retried.
func (l *Ledger) Capture(ctx context.Context) (Amount, error) {
	if l.status != StatusAuthorized {
		return 0, fmt.Errorf("capture from %s: %w", l.status, sentinel.ErrInvalidState)
	}
	if err := l.gateway.Capture(ctx, l.ref); err != nil {
		return 0, fmt.Errorf("capture hold %s: %w", l.ref, err)
	}
	l.transition(StatusCaptured)
	return l.policy.Payout(l.offer), nil
}

// Status returns the current lifecycle state.
func (l *Ledger) Status() Status { return l.status }

// Reference returns the gateway reference recorded at authorization.
func (l *Ledger) Reference() string { return l.ref }

// Offer returns the negotiated offer amount (fees excluded).
func (l *Ledger) Offer() Amount { return l.offer }

// State returns a defensive snapshot for display and persistence.
func (l *Ledger) State() State {
	history := make([]StatusChange, len(l.history))
	copy(history, l.history)
	return State{
		Offer:            l.offer,
		Status:           l.status,
		GatewayReference: l.ref,
		History:          history,
	}
}

func (l *Ledger) transition(next Status) {
	l.status = next
	l.history = append(l.history, StatusChange{Status: next, At: l.now()})
}
