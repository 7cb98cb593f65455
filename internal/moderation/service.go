// Package moderation resolves pending verification requests. A human
// moderator checks that the code is visible on the submitted profile and
// approves or rejects; this service makes that resolution atomic across the
// queue, the verification records and the identity store.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parley/internal/identity"
	"parley/internal/notification"
	"parley/internal/platform/metrics"
	"parley/internal/verification"
	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	"parley/pkg/platform/sentinel"
)

// ErrAlreadyResolved reports that another moderator resolved the request
// first. The losing call performed no writes.
var ErrAlreadyResolved = errors.New("request already resolved")

// Auditor is the slice of the audit publisher the processor needs.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Processor applies moderation decisions. The queue's ResolveIfPending is
// the claim that serializes concurrent moderators; every later step either
// completes or reopens the claim.
type Processor struct {
	records       verification.RecordStore
	queue         verification.RequestQueue
	identities    identity.Store
	notifications notification.Sink
	auditor       Auditor
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func New(records verification.RecordStore, queue verification.RequestQueue, identities identity.Store, notifications notification.Sink, auditor Auditor, opts ...Option) (*Processor, error) {
	if records == nil || queue == nil || identities == nil || notifications == nil || auditor == nil {
		return nil, fmt.Errorf("moderation: all collaborators are required")
	}
	p := &Processor{
		records:       records,
		queue:         queue,
		identities:    identities,
		notifications: notifications,
		auditor:       auditor,
		logger:        slog.New(slog.DiscardHandler),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// List returns the queue, most recent submission first.
func (p *Processor) List(ctx context.Context) ([]*verification.Request, error) {
	return p.queue.List(ctx)
}

// Approve marks the request's platform as verified: the profile link lands
// on the user's public record, the verification record flips to verified,
// and the queue entry is removed. The whole sequence is crash-safe around
// the claim; any failure after it reopens the entry for another pass.
func (p *Processor) Approve(ctx context.Context, id domain.RequestID, moderator string) error {
	request, err := p.claim(ctx, id, verification.RequestApproved)
	if err != nil {
		return err
	}

	// The record flips to verified before the link goes public. A failure
	// between the two leaves a verified record without its link, which the
	// reopened entry repairs; the reverse order could publish a link for a
	// record still unverified.
	if err := p.updateRecord(ctx, request, verification.StatusVerified); err != nil {
		return p.reopen(ctx, id, err)
	}

	patch := identity.Patch{
		SocialLinks: map[domain.SocialPlatform]string{request.Platform: request.ProfileURL},
	}
	if err := p.identities.Put(ctx, request.UserID, patch); err != nil {
		return p.reopen(ctx, id, fmt.Errorf("publish verified link: %w", err))
	}

	if err := p.auditor.Emit(ctx, audit.Event{
		UserID:   request.UserID,
		Action:   audit.ActionVerificationApproved,
		Subject:  request.Platform.String(),
		Decision: "approved",
		ActorID:  moderator,
	}); err != nil {
		return p.reopen(ctx, id, err)
	}

	if err := p.queue.Delete(ctx, id); err != nil {
		// The decision stands; a leftover resolved entry is visible in
		// the admin list and can be cleaned up there.
		p.logger.ErrorContext(ctx, "approved request not removed from queue",
			"request_id", id, "error", err)
	}

	p.notify(ctx, request, notification.KindVerificationApproved,
		fmt.Sprintf("Your %s profile is now verified.", request.Platform))
	if p.metrics != nil {
		p.metrics.ModerationApproved.Inc()
	}
	p.logger.InfoContext(ctx, "verification approved",
		"request_id", id, "user_id", request.UserID,
		"platform", request.Platform, "moderator", moderator)
	return nil
}

// Reject marks the verification as failed. The queue entry is retained with
// status rejected so the decision is reviewable; the user may restart.
func (p *Processor) Reject(ctx context.Context, id domain.RequestID, moderator, reason string) error {
	request, err := p.claim(ctx, id, verification.RequestRejected)
	if err != nil {
		return err
	}

	if err := p.updateRecord(ctx, request, verification.StatusFailed); err != nil {
		return p.reopen(ctx, id, err)
	}

	if err := p.auditor.Emit(ctx, audit.Event{
		UserID:   request.UserID,
		Action:   audit.ActionVerificationRejected,
		Subject:  request.Platform.String(),
		Decision: "rejected",
		Reason:   reason,
		ActorID:  moderator,
	}); err != nil {
		return p.reopen(ctx, id, err)
	}

	p.notify(ctx, request, notification.KindVerificationRejected,
		fmt.Sprintf("Your %s verification was not approved. You can restart with a new code.", request.Platform))
	if p.metrics != nil {
		p.metrics.ModerationRejected.Inc()
	}
	p.logger.InfoContext(ctx, "verification rejected",
		"request_id", id, "user_id", request.UserID,
		"platform", request.Platform, "moderator", moderator, "reason", reason)
	return nil
}

// claim flips the queue entry out of pending, or reports why it cannot.
func (p *Processor) claim(ctx context.Context, id domain.RequestID, next verification.RequestStatus) (*verification.Request, error) {
	request, err := p.queue.ResolveIfPending(ctx, id, next)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, fmt.Errorf("request %s: %w", id, ErrAlreadyResolved)
		}
		return nil, err
	}
	return request, nil
}

func (p *Processor) updateRecord(ctx context.Context, request *verification.Request, status verification.Status) error {
	record, err := p.records.Get(ctx, request.UserID, request.Platform)
	if err != nil {
		return fmt.Errorf("load verification record: %w", err)
	}
	resolved := p.now()
	record.Status = status
	record.ProfileURL = request.ProfileURL
	record.ResolvedAt = &resolved
	if err := p.records.Upsert(ctx, record); err != nil {
		return fmt.Errorf("save verification record: %w", err)
	}
	return nil
}

func (p *Processor) reopen(ctx context.Context, id domain.RequestID, cause error) error {
	if err := p.queue.Reopen(ctx, id); err != nil {
		p.logger.ErrorContext(ctx, "failed to reopen claimed request",
			"request_id", id, "error", err)
	}
	return cause
}

// notify is best effort; a lost notification never fails a decision.
func (p *Processor) notify(ctx context.Context, request *verification.Request, kind notification.Kind, message string) {
	err := p.notifications.Append(ctx, &notification.Notification{
		ID:      domain.NewRequestID(),
		UserID:  request.UserID,
		Kind:    kind,
		Message: message,
		Meta: map[string]string{
			"platform":   request.Platform.String(),
			"request_id": request.ID.String(),
		},
		CreatedAt: p.now(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "notification append failed",
			"request_id", request.ID, "error", err)
	}
}
