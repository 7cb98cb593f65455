package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"parley/internal/identity"
	"parley/internal/notification"
	"parley/internal/verification"
	queuestore "parley/internal/verification/store/queue"
	recordstore "parley/internal/verification/store/record"
	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	auditmem "parley/pkg/platform/audit/store/memory"
	"parley/pkg/platform/sentinel"
)

type fixture struct {
	processor     *Processor
	records       *recordstore.InMemoryStore
	queue         *queuestore.InMemoryQueue
	identities    *identity.InMemoryStore
	notifications *notification.MemorySink
	auditStore    *auditmem.InMemoryStore

	userID  domain.UserID
	request *verification.Request
}

// newFixture seeds a user with a pending linkedin verification awaiting
// moderation.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		records:       recordstore.NewInMemoryStore(),
		queue:         queuestore.NewInMemoryQueue(),
		identities:    identity.NewInMemoryStore(),
		notifications: notification.NewMemorySink(),
		auditStore:    auditmem.NewInMemoryStore(),
		userID:        domain.NewUserID(),
	}

	publisher, err := audit.NewPublisher(f.auditStore, nil)
	require.NoError(t, err)

	f.processor, err = New(f.records, f.queue, f.identities, f.notifications, publisher)
	require.NoError(t, err)

	require.NoError(t, f.identities.Create(ctx, &identity.UserRecord{
		ID:     f.userID,
		Handle: "jane",
	}))
	require.NoError(t, f.records.Upsert(ctx, &verification.Record{
		UserID:     f.userID,
		Platform:   domain.PlatformLinkedIn,
		ProfileURL: "https://linkedin.com/in/jane-doe",
		Code:       "AB2C",
		Status:     verification.StatusPending,
	}))
	f.request = &verification.Request{
		ID:          domain.NewRequestID(),
		UserID:      f.userID,
		Platform:    domain.PlatformLinkedIn,
		ProfileURL:  "https://linkedin.com/in/jane-doe",
		Code:        "AB2C",
		Status:      verification.RequestPending,
		RequestedAt: time.Now(),
	}
	require.NoError(t, f.queue.Enqueue(ctx, f.request))
	return f
}

func TestProcessorApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("verifies the record, publishes the link, removes the entry", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.processor.Approve(ctx, f.request.ID, "mod-1"))

		record, err := f.records.Get(ctx, f.userID, domain.PlatformLinkedIn)
		require.NoError(t, err)
		assert.Equal(t, verification.StatusVerified, record.Status)
		require.NotNil(t, record.ResolvedAt)

		user, err := f.identities.Get(ctx, f.userID)
		require.NoError(t, err)
		assert.Equal(t, "https://linkedin.com/in/jane-doe", user.SocialLinks[domain.PlatformLinkedIn])

		_, err = f.queue.Get(ctx, f.request.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		events, err := f.auditStore.ListByUser(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionVerificationApproved, events[0].Action)
		assert.Equal(t, "mod-1", events[0].ActorID)

		notes, err := f.notifications.ListByUser(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, notification.KindVerificationApproved, notes[0].Kind)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := newFixture(t)
		err := f.processor.Approve(ctx, domain.NewRequestID(), "mod-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("second moderator loses the race", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.processor.Reject(ctx, f.request.ID, "mod-1", "code not found"))

		err := f.processor.Approve(ctx, f.request.ID, "mod-2")
		assert.ErrorIs(t, err, ErrAlreadyResolved)

		record, err := f.records.Get(ctx, f.userID, domain.PlatformLinkedIn)
		require.NoError(t, err)
		assert.Equal(t, verification.StatusFailed, record.Status, "losing call performs no writes")
		user, err := f.identities.Get(ctx, f.userID)
		require.NoError(t, err)
		assert.Empty(t, user.SocialLinks)
	})

	t.Run("identity failure reopens the claim", func(t *testing.T) {
		f := newFixture(t)
		publisher, err := audit.NewPublisher(f.auditStore, nil)
		require.NoError(t, err)
		processor, err := New(f.records, f.queue, failingIdentityStore{}, f.notifications, publisher)
		require.NoError(t, err)

		require.Error(t, processor.Approve(ctx, f.request.ID, "mod-1"))

		queued, err := f.queue.Get(ctx, f.request.ID)
		require.NoError(t, err)
		assert.Equal(t, verification.RequestPending, queued.Status, "claim is rolled back for a retry")
	})

	t.Run("audit failure reopens the claim", func(t *testing.T) {
		f := newFixture(t)
		processor, err := New(f.records, f.queue, f.identities, f.notifications, failingAuditor{})
		require.NoError(t, err)

		require.Error(t, processor.Approve(ctx, f.request.ID, "mod-1"))

		queued, err := f.queue.Get(ctx, f.request.ID)
		require.NoError(t, err)
		assert.Equal(t, verification.RequestPending, queued.Status)
	})

	t.Run("record store failure reopens the claim", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		records := NewMockRecordStore(ctrl)
		queue := NewMockRequestQueue(ctrl)

		userID := domain.NewUserID()
		requestID := domain.NewRequestID()
		request := &verification.Request{
			ID:         requestID,
			UserID:     userID,
			Platform:   domain.PlatformTwitter,
			ProfileURL: "https://twitter.com/janedoe",
			Status:     verification.RequestPending,
		}

		identities := identity.NewInMemoryStore()
		require.NoError(t, identities.Create(ctx, &identity.UserRecord{ID: userID, Handle: "janedoe"}))

		publisher, err := audit.NewPublisher(auditmem.NewInMemoryStore(), nil)
		require.NoError(t, err)
		processor, err := New(records, queue, identities, notification.NewMemorySink(), publisher)
		require.NoError(t, err)

		queue.EXPECT().ResolveIfPending(gomock.Any(), requestID, verification.RequestApproved).Return(request, nil)
		records.EXPECT().Get(gomock.Any(), userID, domain.PlatformTwitter).Return(nil, errors.New("storage offline"))
		queue.EXPECT().Reopen(gomock.Any(), requestID).Return(nil)

		assert.Error(t, processor.Approve(ctx, requestID, "mod-1"))

		// The record never flipped to verified, so no link may have gone
		// public.
		user, err := identities.Get(ctx, userID)
		require.NoError(t, err)
		assert.NotContains(t, user.SocialLinks, domain.PlatformTwitter)
	})
}

func TestProcessorReject(t *testing.T) {
	ctx := context.Background()

	t.Run("retains the entry and fails the record", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.processor.Reject(ctx, f.request.ID, "mod-1", "code not visible"))

		queued, err := f.queue.Get(ctx, f.request.ID)
		require.NoError(t, err)
		assert.Equal(t, verification.RequestRejected, queued.Status)
		assert.NotNil(t, queued.ResolvedAt)

		record, err := f.records.Get(ctx, f.userID, domain.PlatformLinkedIn)
		require.NoError(t, err)
		assert.Equal(t, verification.StatusFailed, record.Status)

		user, err := f.identities.Get(ctx, f.userID)
		require.NoError(t, err)
		assert.Empty(t, user.SocialLinks, "rejection never touches the public link map")

		events, err := f.auditStore.ListByUser(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionVerificationRejected, events[0].Action)
		assert.Equal(t, "code not visible", events[0].Reason)

		notes, err := f.notifications.ListByUser(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, notification.KindVerificationRejected, notes[0].Kind)
	})

	t.Run("rejecting an approved request is refused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.processor.Approve(ctx, f.request.ID, "mod-1"))

		err := f.processor.Reject(ctx, f.request.ID, "mod-2", "late")
		// The approved entry was deleted from the queue.
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestProcessorList(t *testing.T) {
	f := newFixture(t)
	requests, err := f.processor.List(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, f.request.ID, requests[0].ID)
}

type failingIdentityStore struct{}

func (failingIdentityStore) Get(context.Context, domain.UserID) (*identity.UserRecord, error) {
	return nil, errors.New("identity offline")
}
func (failingIdentityStore) GetByHandle(context.Context, string) (*identity.UserRecord, error) {
	return nil, errors.New("identity offline")
}
func (failingIdentityStore) Create(context.Context, *identity.UserRecord) error {
	return errors.New("identity offline")
}
func (failingIdentityStore) Put(context.Context, domain.UserID, identity.Patch) error {
	return errors.New("identity offline")
}

type failingAuditor struct{}

func (failingAuditor) Emit(context.Context, audit.Event) error {
	return errors.New("audit store offline")
}
