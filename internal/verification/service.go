package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parley/internal/platform/metrics"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

// Workflow drives the verification state machine. It gates submissions on
// URL shape only; the live check that the code appears on the profile is the
// moderator's responsibility.
type Workflow struct {
	records RecordStore
	queue   RequestQueue
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newCode func() (string, error)
}

// Option configures the Workflow.
type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithCodeGenerator injects a code source for tests.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(w *Workflow) { w.newCode = gen }
}

// New constructs the workflow over its two stores.
func New(records RecordStore, queue RequestQueue, opts ...Option) (*Workflow, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("request queue is required")
	}
	w := &Workflow{
		records: records,
		queue:   queue,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start issues a fresh verification code for (user, platform), discarding any
// prior unverified/pending/failed code. A verified record is never reset
// here: replacing a verified identity requires moderation, so Start refuses.
func (w *Workflow) Start(ctx context.Context, userID domain.UserID, platform domain.SocialPlatform) (string, error) {
	if !platform.IsValid() {
		return "", fmt.Errorf("platform %q: %w", platform, sentinel.ErrInvalidState)
	}

	existing, err := w.records.Get(ctx, userID, platform)
	if err != nil && !isNotFound(err) {
		return "", fmt.Errorf("load verification record: %w", err)
	}
	if existing != nil && existing.Status == StatusVerified {
		return "", fmt.Errorf("platform %s already verified: %w", platform, sentinel.ErrInvalidState)
	}

	code, err := w.newCode()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	record := &Record{
		UserID:      userID,
		Platform:    platform,
		Code:        code,
		Status:      StatusUnverified,
		RequestedAt: w.now(),
	}
	if err := w.records.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("save verification record: %w", err)
	}

	if w.metrics != nil {
		w.metrics.VerificationsStarted.Inc()
	}
	w.logger.InfoContext(ctx, "verification started",
		"user_id", userID, "platform", platform)
	return code, nil
}

// Submit validates the profile URL shape, enqueues a moderation request, and
// moves the record to pending.
func (w *Workflow) Submit(ctx context.Context, userID domain.UserID, platform domain.SocialPlatform, profileURL string) (*Request, error) {
	if err := ValidateProfileURL(platform, profileURL); err != nil {
		return nil, err
	}

	record, err := w.records.Get(ctx, userID, platform)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("verification not started for %s: %w", platform, sentinel.ErrInvalidState)
		}
		return nil, fmt.Errorf("load verification record: %w", err)
	}
	if record.Status == StatusVerified {
		return nil, fmt.Errorf("platform %s already verified: %w", platform, sentinel.ErrInvalidState)
	}

	request := &Request{
		ID:          domain.NewRequestID(),
		UserID:      userID,
		Platform:    platform,
		ProfileURL:  profileURL,
		Code:        record.Code,
		Status:      RequestPending,
		RequestedAt: w.now(),
	}
	if err := w.queue.Enqueue(ctx, request); err != nil {
		return nil, fmt.Errorf("enqueue verification request: %w", err)
	}

	record.Status = StatusPending
	record.ProfileURL = profileURL
	if err := w.records.Upsert(ctx, record); err != nil {
		// Keep queue and record consistent: without the record update the
		// entry would be moderated against a stale state.
		if delErr := w.queue.Delete(ctx, request.ID); delErr != nil {
			w.logger.ErrorContext(ctx, "orphaned verification request",
				"request_id", request.ID, "error", delErr)
		}
		return nil, fmt.Errorf("save verification record: %w", err)
	}

	if w.metrics != nil {
		w.metrics.VerificationsSubmitted.Inc()
	}
	w.logger.InfoContext(ctx, "verification submitted",
		"user_id", userID, "platform", platform, "request_id", request.ID)
	return request, nil
}

// StatusFor lists the user's verification records across platforms.
func (w *Workflow) StatusFor(ctx context.Context, userID domain.UserID) ([]*Record, error) {
	records, err := w.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	return records, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
