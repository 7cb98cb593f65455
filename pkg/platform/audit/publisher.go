package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Publisher routes events to the store with per-category semantics: Emit is
// the fail-closed path for compliance events, Track the best-effort path for
// operations events.
type Publisher struct {
	store  Store
	inbox  chan<- Event
	logger *slog.Logger
	now    func() time.Time
}

type PublisherOption func(*Publisher)

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

// NewPublisher wires the synchronous store and the async inbox consumed by
// the worker. inbox may be nil, in which case Track degrades to a
// synchronous append.
func NewPublisher(store Store, inbox chan<- Event, opts ...PublisherOption) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("audit: store is required")
	}
	p := &Publisher{
		store:  store,
		inbox:  inbox,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit synchronously persists a compliance event. On error the calling
// operation must fail: an escrow capture without its audit entry is worse
// than a refused capture.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.UserID.IsNil() {
		return fmt.Errorf("audit: event requires a user id")
	}
	if event.Action == "" {
		return fmt.Errorf("audit: event requires an action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit persistence failed",
			"action", event.Action, "user_id", event.UserID, "error", err)
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	return nil
}

// Track hands an operations event to the async worker. A full inbox drops
// the event with a log line rather than stalling the caller.
func (p *Publisher) Track(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.inbox == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit append failed",
				"action", event.Action, "error", err)
		}
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", event.Action, "user_id", event.UserID)
	}
}
