// Package negotiation orchestrates the invite protocol: a proposal is
// encoded into a shareable token, the recipient accepts, declines or
// counters, and escrow plus verification fan-out happen at the right
// moments. It is the only package with cross-cutting business rules; the
// codec, the ledger and the verification workflow stay independent.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parley/internal/escrow"
	"parley/internal/identity"
	"parley/internal/notification"
	"parley/internal/platform/metrics"
	"parley/internal/proposal"
	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	"parley/pkg/platform/sentinel"
)

// ErrPaymentNotAuthorized blocks accepting a paid invitation before its
// escrow hold exists. Recoverable: authorize, then accept again.
var ErrPaymentNotAuthorized = errors.New("payment not authorized")

// ErrStaleProposal reports a concurrent-edit conflict: the presented turn is
// behind the thread head. The caller must re-fetch the live proposal.
var ErrStaleProposal = errors.New("stale proposal")

// SessionState tracks where one exchange stands. Countering keeps the
// session offered; only accept and decline are terminal.
type SessionState string

const (
	SessionOffered  SessionState = "offered"
	SessionAccepted SessionState = "accepted"
	SessionDeclined SessionState = "declined"
)

// Session is one live exchange. mu serializes the protocol moves: both
// parties can act on the same session concurrently, and each move must see
// the thread head its stale-turn check ran against.
type Session struct {
	ID          domain.RequestID
	InviterID   domain.UserID
	RecipientID domain.UserID
	Thread      *Thread
	Ledger      *escrow.Ledger
	State       SessionState
	Token       string

	mu sync.Mutex
}

// View is a consistent read of the session's mutable fields.
type View struct {
	ID     domain.RequestID
	State  SessionState
	Token  string
	Turn   int
	Escrow escrow.Status
}

// Snapshot reads the mutable fields under the session lock.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:     s.ID,
		State:  s.State,
		Token:  s.Token,
		Turn:   s.Thread.Turn(),
		Escrow: s.Ledger.Status(),
	}
}

// Verifier is the slice of the verification workflow the engine drives on
// accept.
type Verifier interface {
	Start(ctx context.Context, userID domain.UserID, platform domain.SocialPlatform) (string, error)
}

// Auditor is the slice of the audit publisher the engine needs.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
	Track(ctx context.Context, event audit.Event)
}

// Changes is a counter-proposal patch. Only negotiable terms appear here:
// the identity fields of a proposal never change across counters.
type Changes struct {
	Topics         []string
	EventParameter *proposal.Param
	TimePeriodDays *proposal.Param
	PaymentCents   *int64
}

// Engine runs the negotiation protocol over in-process sessions.
type Engine struct {
	gateway       escrow.PaymentGateway
	fees          escrow.FeePolicy
	verifier      Verifier
	identities    identity.Store
	notifications notification.Sink
	auditor       Auditor
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	authTimeout   time.Duration

	mu       sync.RWMutex
	sessions map[domain.RequestID]*Session
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithFeePolicy(policy escrow.FeePolicy) Option {
	return func(e *Engine) { e.fees = policy }
}

// WithAuthorizeTimeout bounds how long AuthorizePayment waits on the
// gateway before leaving the hold pending for a retry.
func WithAuthorizeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.authTimeout = d }
}

func New(gateway escrow.PaymentGateway, verifier Verifier, identities identity.Store, notifications notification.Sink, auditor Auditor, opts ...Option) (*Engine, error) {
	if gateway == nil || verifier == nil || identities == nil || notifications == nil || auditor == nil {
		return nil, fmt.Errorf("negotiation: all collaborators are required")
	}
	e := &Engine{
		gateway:       gateway,
		fees:          escrow.DefaultFeePolicy(),
		verifier:      verifier,
		identities:    identities,
		notifications: notifications,
		auditor:       auditor,
		logger:        slog.New(slog.DiscardHandler),
		now:           time.Now,
		authTimeout:   30 * time.Second,
		sessions:      make(map[domain.RequestID]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CreateInvite finalizes the inviter's proposal into a shareable token and
// opens a session holding its escrow ledger. The proposal must be complete.
func (e *Engine) CreateInvite(ctx context.Context, inviterID domain.UserID, p proposal.Proposal) (*Session, error) {
	inviter, err := e.identities.Get(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("load inviter: %w", err)
	}
	if p.InviterHandle == "" {
		p.InviterHandle = inviter.Handle
	}
	if p.Turn == 0 {
		p.Turn = 1
	}
	p.Normalize()

	token, err := proposal.Encode(p)
	if err != nil {
		return nil, err
	}

	ledger, err := escrow.NewLedger(escrow.Amount(p.Payment.AmountCents), e.fees, e.gateway, escrow.WithClock(e.now))
	if err != nil {
		return nil, fmt.Errorf("open escrow ledger: %w", err)
	}

	session := &Session{
		ID:        domain.NewRequestID(),
		InviterID: inviterID,
		Thread:    newThread(Entry{Proposal: p, Origin: OriginOffer, By: inviterID, At: e.now()}),
		Ledger:    ledger,
		State:     SessionOffered,
		Token:     token,
	}
	e.mu.Lock()
	e.sessions[session.ID] = session
	e.mu.Unlock()

	e.auditor.Track(ctx, audit.Event{
		UserID:  inviterID,
		Action:  audit.ActionInviteCreated,
		Subject: session.ID.String(),
	})
	if e.metrics != nil {
		e.metrics.InvitesCreated.Inc()
	}
	e.logger.InfoContext(ctx, "invite created",
		"session_id", session.ID, "inviter_id", inviterID, "turn", p.Turn,
		"offer_cents", p.Payment.AmountCents)
	return session, nil
}

// DecodeInvite turns a received token back into its proposal.
func (e *Engine) DecodeInvite(token string) (proposal.Proposal, error) {
	return proposal.Decode(token)
}

// Session returns the live session.
func (e *Engine) Session(id domain.RequestID) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	return session, nil
}

// PreviewFees shows the inviter the full charge before authorization.
func (e *Engine) PreviewFees(id domain.RequestID) (escrow.Breakdown, error) {
	session, err := e.Session(id)
	if err != nil {
		return escrow.Breakdown{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.Ledger.FeePreview(), nil
}

// AuthorizePayment places the escrow hold for the session's live offer. A
// gateway stall is cut off at the configured timeout, leaving the ledger
// pending so the inviter can retry.
func (e *Engine) AuthorizePayment(ctx context.Context, id domain.RequestID) error {
	session, err := e.Session(id)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.authTimeout)
	defer cancel()
	if err := session.Ledger.Authorize(ctx); err != nil {
		if e.metrics != nil {
			e.metrics.EscrowAuthorizeFailures.Inc()
		}
		return err
	}

	if err := e.auditor.Emit(ctx, audit.Event{
		UserID:   session.InviterID,
		Action:   audit.ActionEscrowAuthorized,
		Subject:  session.Ledger.Reference(),
		Decision: "authorized",
	}); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.EscrowAuthorized.Inc()
	}
	e.logger.InfoContext(ctx, "escrow authorized",
		"session_id", session.ID, "reference", session.Ledger.Reference())
	return nil
}

// Accept closes the exchange in the recipient's favor. A paid offer needs
// its escrow hold in place first; verification requests for every platform
// the live proposal asks for are started on the recipient's behalf.
func (e *Engine) Accept(ctx context.Context, id domain.RequestID, recipientID domain.UserID) error {
	session, err := e.Session(id)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.State != SessionOffered {
		return fmt.Errorf("session is %s: %w", session.State, sentinel.ErrInvalidState)
	}

	head := session.Thread.Head().Proposal
	if head.Payment.AmountCents > 0 && session.Ledger.Status() != escrow.StatusAuthorized {
		return fmt.Errorf("offer of %d cents has no escrow hold: %w",
			head.Payment.AmountCents, ErrPaymentNotAuthorized)
	}

	// The audit emit is fail-closed and runs before the state flip: a
	// refused emit leaves the session offered so the recipient can accept
	// again once the trail is writable.
	if err := e.auditor.Emit(ctx, audit.Event{
		UserID:   recipientID,
		Action:   audit.ActionInviteAccepted,
		Subject:  session.ID.String(),
		Decision: "accepted",
	}); err != nil {
		return err
	}

	session.State = SessionAccepted
	session.RecipientID = recipientID

	for _, platform := range head.Verify {
		if _, err := e.verifier.Start(ctx, recipientID, platform); err != nil {
			// Verification is recoverable from the profile page; accepting
			// the invitation is not rolled back over it.
			e.logger.WarnContext(ctx, "verification fan-out failed",
				"session_id", session.ID, "platform", platform, "error", err)
		}
	}
	e.notify(ctx, session.InviterID, notification.KindInviteAccepted,
		fmt.Sprintf("%s accepted your invitation.", head.RecipientName), session)
	if e.metrics != nil {
		e.metrics.InvitesAccepted.Inc()
	}
	e.logger.InfoContext(ctx, "invite accepted",
		"session_id", session.ID, "recipient_id", recipientID)
	return nil
}

// Decline closes the exchange. An escrow hold already authorized is voided;
// a void failure is surfaced for reconciliation but the decline stands.
func (e *Engine) Decline(ctx context.Context, id domain.RequestID, userID domain.UserID) error {
	session, err := e.Session(id)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.State != SessionOffered {
		return fmt.Errorf("session is %s: %w", session.State, sentinel.ErrInvalidState)
	}
	session.State = SessionDeclined

	var cancelErr error
	if !session.Ledger.Status().Terminal() {
		cancelErr = session.Ledger.Cancel(ctx)
		if e.metrics != nil {
			e.metrics.EscrowCancelled.Inc()
		}
	}

	if err := e.auditor.Emit(ctx, audit.Event{
		UserID:   userID,
		Action:   audit.ActionInviteDeclined,
		Subject:  session.ID.String(),
		Decision: "declined",
	}); err != nil {
		return err
	}
	e.notify(ctx, session.InviterID, notification.KindInviteDeclined,
		"Your invitation was declined.", session)
	if e.metrics != nil {
		e.metrics.InvitesDeclined.Inc()
	}
	e.logger.InfoContext(ctx, "invite declined",
		"session_id", session.ID, "user_id", userID)

	if cancelErr != nil {
		return fmt.Errorf("declined, but escrow void needs reconciliation: %w", cancelErr)
	}
	return nil
}

// Counter produces the next proposal in the thread with only negotiable
// fields changed and the turn advanced. presentedTurn is the turn the
// counter-party was looking at; if the thread has moved past it the counter
// is refused as stale.
func (e *Engine) Counter(ctx context.Context, id domain.RequestID, actorID domain.UserID, presentedTurn int, changes Changes) (*Session, error) {
	session, err := e.Session(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.State != SessionOffered {
		return nil, fmt.Errorf("session is %s: %w", session.State, sentinel.ErrInvalidState)
	}
	if presentedTurn != session.Thread.Turn() {
		if e.metrics != nil {
			e.metrics.StaleProposals.Inc()
		}
		return nil, fmt.Errorf("turn %d is behind thread turn %d: %w",
			presentedTurn, session.Thread.Turn(), ErrStaleProposal)
	}

	head := session.Thread.Head().Proposal
	next := head
	next.Topics = append([]string{}, head.Topics...)
	next.Verify = append([]domain.SocialPlatform{}, head.Verify...)
	if changes.Topics != nil {
		next.Topics = changes.Topics
	}
	if changes.EventParameter != nil {
		next.Event.Parameter = *changes.EventParameter
	}
	if changes.TimePeriodDays != nil {
		next.Event.TimePeriodDays = *changes.TimePeriodDays
	}
	if changes.PaymentCents != nil {
		next.Payment.AmountCents = *changes.PaymentCents
	}
	next.Turn = head.Turn + 1
	next.Normalize()

	token, err := proposal.Encode(next)
	if err != nil {
		return nil, err
	}

	// The hold covers the superseded offer; the new amount needs its own.
	if next.Payment.AmountCents != head.Payment.AmountCents {
		if !session.Ledger.Status().Terminal() && session.Ledger.Status() != escrow.StatusPending {
			if err := session.Ledger.Cancel(ctx); err != nil {
				return nil, fmt.Errorf("void superseded hold: %w", err)
			}
		}
		ledger, err := escrow.NewLedger(escrow.Amount(next.Payment.AmountCents), e.fees, e.gateway, escrow.WithClock(e.now))
		if err != nil {
			return nil, fmt.Errorf("open escrow ledger: %w", err)
		}
		session.Ledger = ledger
	}

	if err := session.Thread.push(Entry{Proposal: next, Origin: OriginCounter, By: actorID, At: e.now()}); err != nil {
		return nil, err
	}
	session.Token = token

	e.auditor.Track(ctx, audit.Event{
		UserID:  actorID,
		Action:  audit.ActionCounterProposed,
		Subject: session.ID.String(),
	})
	if target := e.counterparty(session, actorID); !target.IsNil() {
		e.notify(ctx, target, notification.KindCounterReceived,
			"You received a counter offer.", session)
	}
	if e.metrics != nil {
		e.metrics.CountersProposed.Inc()
	}
	e.logger.InfoContext(ctx, "counter proposed",
		"session_id", session.ID, "actor_id", actorID, "turn", next.Turn,
		"offer_cents", next.Payment.AmountCents)
	return session, nil
}

// CapturePayout executes the final charge after the event completed. Only
// an accepted session with an authorized hold can capture.
func (e *Engine) CapturePayout(ctx context.Context, id domain.RequestID) (escrow.Amount, error) {
	session, err := e.Session(id)
	if err != nil {
		return 0, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.State != SessionAccepted {
		return 0, fmt.Errorf("session is %s: %w", session.State, sentinel.ErrInvalidState)
	}

	payout, err := session.Ledger.Capture(ctx)
	if err != nil {
		return 0, err
	}

	if err := e.auditor.Emit(ctx, audit.Event{
		UserID:   session.RecipientID,
		Action:   audit.ActionEscrowCaptured,
		Subject:  session.Ledger.Reference(),
		Decision: "captured",
	}); err != nil {
		return payout, err
	}
	e.notify(ctx, session.RecipientID, notification.KindEscrowCaptured,
		fmt.Sprintf("Your payout of %d cents is on its way.", payout), session)
	if e.metrics != nil {
		e.metrics.EscrowCaptured.Inc()
	}
	e.logger.InfoContext(ctx, "escrow captured",
		"session_id", session.ID, "payout_cents", payout)
	return payout, nil
}

func (e *Engine) counterparty(session *Session, actorID domain.UserID) domain.UserID {
	if actorID == session.InviterID {
		return session.RecipientID
	}
	return session.InviterID
}

// notify is best effort.
func (e *Engine) notify(ctx context.Context, userID domain.UserID, kind notification.Kind, message string, session *Session) {
	err := e.notifications.Append(ctx, &notification.Notification{
		ID:        domain.NewRequestID(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		Meta:      map[string]string{"session_id": session.ID.String()},
		CreatedAt: e.now(),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "notification append failed",
			"session_id", session.ID, "error", err)
	}
}
