package proposal

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"parley/pkg/domain"
)

// Wire format: a flat set of query parameters, each value percent-encoded.
// Structured sub-values (payment, event) are embedded as escaped JSON.
//
//	name=Jane&topics=AI+ethics,Climate&verify=linkedin,twitter
//	&payment={"amount":50,"method":"card"}
//	&event={"type":"length","parameter":500,"timePeriod":3}
//	&invitedBy=sam&isInvitation=true&turn=1
//
// The token is the encoded query string itself, so it can ride in any URL
// without server-side session state.

type paymentWire struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method,omitempty"`
}

type eventWire struct {
	Type             string `json:"type"`
	Parameter        any    `json:"parameter"`
	CustomWordCount  *int   `json:"customWordCount,omitempty"`
	CustomTimePeriod *int   `json:"customTimePeriod,omitempty"`
	CustomDuration   *int   `json:"customDuration,omitempty"`
	TimePeriod       any    `json:"timePeriod,omitempty"`
}

const customSentinel = "custom"

// Encode serializes a complete proposal into a URL-safe token.
//
// Errors: ErrInvalidProposal when topics are empty or any applicable numeric
// term is unresolved. Encode never partially succeeds.
func Encode(p Proposal) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	v := url.Values{}
	v.Set("name", p.RecipientName)
	v.Set("topics", strings.Join(p.Topics, ","))
	if len(p.Verify) > 0 {
		ids := make([]string, len(p.Verify))
		for i, plat := range p.Verify {
			ids[i] = plat.String()
		}
		v.Set("verify", strings.Join(ids, ","))
	}
	if p.Payment.AmountCents > 0 || p.Payment.Method != "" {
		pay, err := json.Marshal(paymentWire{
			Amount: centsToUnits(p.Payment.AmountCents),
			Method: p.Payment.Method,
		})
		if err != nil {
			return "", fmt.Errorf("marshal payment: %w", err)
		}
		v.Set("payment", string(pay))
	}

	ev, err := json.Marshal(encodeEvent(p.Event))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	v.Set("event", string(ev))
	v.Set("invitedBy", p.InviterHandle)
	v.Set("isInvitation", "true")
	v.Set("turn", strconv.Itoa(p.Turn))

	return v.Encode(), nil
}

// Decode parses a token back into a Proposal. Missing optional fields
// (verify, payment) default to empty/zero; unparseable structured sub-values
// fail with ErrMalformedToken.
//
// Law: Decode(Encode(p)) == p for any complete proposal p.
func Decode(token string) (Proposal, error) {
	values, err := url.ParseQuery(token)
	if err != nil {
		return Proposal{}, fmt.Errorf("parse token: %w", ErrMalformedToken)
	}
	if values.Get("isInvitation") != "true" {
		return Proposal{}, fmt.Errorf("missing invitation marker: %w", ErrMalformedToken)
	}

	p := Proposal{
		RecipientName: values.Get("name"),
		InviterHandle: values.Get("invitedBy"),
	}

	for _, t := range strings.Split(values.Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			p.Topics = append(p.Topics, t)
		}
	}

	if raw := values.Get("verify"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			plat, err := domain.ParseSocialPlatform(strings.TrimSpace(id))
			if err != nil {
				return Proposal{}, fmt.Errorf("verify platform %q: %w", id, ErrMalformedToken)
			}
			p.Verify = append(p.Verify, plat)
		}
	}

	if raw := values.Get("payment"); raw != "" {
		var pay paymentWire
		if err := json.Unmarshal([]byte(raw), &pay); err != nil {
			return Proposal{}, fmt.Errorf("payment value: %w", ErrMalformedToken)
		}
		if pay.Amount < 0 {
			return Proposal{}, fmt.Errorf("negative payment amount: %w", ErrMalformedToken)
		}
		p.Payment = PaymentTerms{AmountCents: unitsToCents(pay.Amount), Method: pay.Method}
	}

	raw := values.Get("event")
	if raw == "" {
		return Proposal{}, fmt.Errorf("missing event terms: %w", ErrMalformedToken)
	}
	var ev eventWire
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Proposal{}, fmt.Errorf("event value: %w", ErrMalformedToken)
	}
	event, err := decodeEvent(ev)
	if err != nil {
		return Proposal{}, err
	}
	p.Event = event

	if raw := values.Get("turn"); raw != "" {
		turn, err := strconv.Atoi(raw)
		if err != nil || turn < 0 {
			return Proposal{}, fmt.Errorf("turn marker: %w", ErrMalformedToken)
		}
		p.Turn = turn
	}

	return p, nil
}

func encodeEvent(e EventTerms) eventWire {
	w := eventWire{Type: string(e.Type)}

	if e.Parameter.Kind == ParamCustom {
		w.Parameter = customSentinel
		v := e.Parameter.Value
		if e.Type == EventTypeTime {
			w.CustomDuration = &v
		} else {
			w.CustomWordCount = &v
		}
	} else {
		w.Parameter = e.Parameter.Value
	}

	if e.Type == EventTypeLength {
		if e.TimePeriodDays.Kind == ParamCustom {
			w.TimePeriod = customSentinel
			v := e.TimePeriodDays.Value
			w.CustomTimePeriod = &v
		} else {
			w.TimePeriod = e.TimePeriodDays.Value
		}
	}
	return w
}

func decodeEvent(w eventWire) (EventTerms, error) {
	e := EventTerms{Type: EventType(w.Type)}
	switch e.Type {
	case EventTypeLength, EventTypeTime:
	default:
		return EventTerms{}, fmt.Errorf("event type %q: %w", w.Type, ErrMalformedToken)
	}

	custom := w.CustomWordCount
	if e.Type == EventTypeTime {
		custom = w.CustomDuration
	}
	param, err := decodeParam(w.Parameter, custom)
	if err != nil {
		return EventTerms{}, fmt.Errorf("event parameter: %w", err)
	}
	e.Parameter = param

	if e.Type == EventTypeLength {
		period, err := decodeParam(w.TimePeriod, w.CustomTimePeriod)
		if err != nil {
			return EventTerms{}, fmt.Errorf("time period: %w", err)
		}
		e.TimePeriodDays = period
	}
	return e, nil
}

// decodeParam folds the JSON representation (number, or "custom" plus a side
// field) back into the Param sum type.
func decodeParam(raw any, custom *int) (Param, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v <= 0 {
			return Param{}, ErrMalformedToken
		}
		return Fixed(int(v)), nil
	case string:
		if v != customSentinel || custom == nil || *custom <= 0 {
			return Param{}, ErrMalformedToken
		}
		return Custom(*custom), nil
	default:
		return Param{}, ErrMalformedToken
	}
}

func centsToUnits(cents int64) float64 { return float64(cents) / 100 }

func unitsToCents(units float64) int64 { return int64(math.Round(units * 100)) }
