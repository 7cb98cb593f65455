// Package proposal defines the negotiable terms of an invitation and the
// codec that round-trips them through a shareable, URL-safe token. The
// package is pure: no storage, no clocks, no network.
package proposal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"parley/pkg/domain"
	pstrings "parley/pkg/platform/strings"
)

// Domain sentinels. Services wrap these; handlers translate them to coded
// errors.
var (
	// ErrInvalidProposal marks an incomplete proposal: empty topics or an
	// unresolved parameter. Recoverable, re-prompt the author.
	ErrInvalidProposal = errors.New("invalid proposal")
	// ErrMalformedToken marks a corrupted or tampered token. Terminal for
	// that link.
	ErrMalformedToken = errors.New("malformed token")
)

// EventType selects how the conversation target is measured.
type EventType string

const (
	// EventTypeLength targets a written exchange of a given word count,
	// completed within a time period measured in days.
	EventTypeLength EventType = "length"
	// EventTypeTime targets a live conversation of a given duration in
	// minutes.
	EventTypeTime EventType = "time"
)

// ParamKind discriminates the Param sum type.
type ParamKind string

const (
	ParamFixed  ParamKind = "fixed"
	ParamCustom ParamKind = "custom"
)

// Param is a numeric term that is either one of the preset choices or a
// custom value the author typed. Both variants carry a concrete value; a
// custom choice without a backing number is not representable, which keeps
// "forgot to check the custom field" bugs out of the model.
type Param struct {
	Kind  ParamKind
	Value int
}

// Fixed returns a preset-valued parameter.
func Fixed(v int) Param { return Param{Kind: ParamFixed, Value: v} }

// Custom returns a custom-valued parameter.
func Custom(v int) Param { return Param{Kind: ParamCustom, Value: v} }

// Resolved reports whether the parameter carries a usable value.
func (p Param) Resolved() bool {
	return (p.Kind == ParamFixed || p.Kind == ParamCustom) && p.Value > 0
}

// EventTerms describes the conversation target.
//
// TimePeriodDays is only meaningful when Type is EventTypeLength; it is
// ignored (and left zero) for timed conversations.
type EventTerms struct {
	Type           EventType
	Parameter      Param
	TimePeriodDays Param
}

// PaymentTerms is the inviter's offer. Amounts are integer cents so fee
// arithmetic stays exact.
type PaymentTerms struct {
	AmountCents int64
	Method      string
}

// Proposal is the full set of negotiable terms for one invitation exchange.
// A Proposal value is immutable once encoded; counters produce new values.
type Proposal struct {
	Topics        []string
	Event         EventTerms
	Payment       PaymentTerms
	Verify        []domain.SocialPlatform
	InviterHandle string
	RecipientName string
	// Turn increases by one per counter hop so stale tokens are detectable
	// when both parties branch concurrently.
	Turn int
}

// Normalize trims topics, drops empties, and de-duplicates while preserving
// order. Call before Validate.
func (p *Proposal) Normalize() {
	p.Topics = pstrings.DedupeAndTrim(p.Topics)
}

// Validate enforces the completeness rule: a proposal can only be finalized
// for sharing when topics are non-empty and every applicable numeric term is
// resolved to a concrete value.
func (p *Proposal) Validate() error {
	if len(p.Topics) == 0 {
		return fmt.Errorf("topics must not be empty: %w", ErrInvalidProposal)
	}
	// Topics ride the token as one comma-joined value, so a comma inside a
	// topic would decode as two.
	for _, topic := range p.Topics {
		if strings.Contains(topic, ",") {
			return fmt.Errorf("topic %q must not contain a comma: %w", topic, ErrInvalidProposal)
		}
	}
	switch p.Event.Type {
	case EventTypeLength, EventTypeTime:
	default:
		return fmt.Errorf("unknown event type %q: %w", p.Event.Type, ErrInvalidProposal)
	}
	if !p.Event.Parameter.Resolved() {
		return fmt.Errorf("event parameter unresolved: %w", ErrInvalidProposal)
	}
	if p.Event.Type == EventTypeLength && !p.Event.TimePeriodDays.Resolved() {
		return fmt.Errorf("time period unresolved: %w", ErrInvalidProposal)
	}
	if p.Payment.AmountCents < 0 {
		return fmt.Errorf("payment offer must not be negative: %w", ErrInvalidProposal)
	}
	for _, v := range p.Verify {
		if !v.IsValid() {
			return fmt.Errorf("unsupported verification platform %q: %w", v, ErrInvalidProposal)
		}
	}
	return nil
}

// Equal reports deep equality of the negotiable terms and identity fields.
func (p Proposal) Equal(other Proposal) bool {
	return slices.Equal(p.Topics, other.Topics) &&
		p.Event == other.Event &&
		p.Payment == other.Payment &&
		slices.Equal(p.Verify, other.Verify) &&
		p.InviterHandle == other.InviterHandle &&
		p.RecipientName == other.RecipientName &&
		p.Turn == other.Turn
}
