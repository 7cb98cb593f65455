//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	"parley/pkg/platform/audit/store/postgres"
	"parley/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func event(userID domain.UserID, action audit.Action, at time.Time) audit.Event {
	return audit.Event{
		Timestamp: at.UTC().Truncate(time.Microsecond),
		UserID:    userID,
		Action:    action,
		Subject:   "linkedin",
		Decision:  "approved",
		ActorID:   "moderator-1",
	}
}

func (s *StoreSuite) TestAppendAndListByUser() {
	ctx := context.Background()
	userID := domain.NewUserID()
	first := event(userID, audit.ActionVerificationSubmitted, time.Now().Add(-time.Minute))
	second := event(userID, audit.ActionVerificationApproved, time.Now())
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, event(domain.NewUserID(), audit.ActionInviteAccepted, time.Now())))

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	// Chronological order.
	s.Equal(audit.ActionVerificationSubmitted, events[0].Action)
	s.Equal(audit.ActionVerificationApproved, events[1].Action)
	s.Equal("moderator-1", events[1].ActorID)
}

func (s *StoreSuite) TestListRecent() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e := event(domain.NewUserID(), audit.ActionInviteCreated, time.Now().Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Append(ctx, e))
	}

	events, err := s.store.ListRecent(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.True(events[0].Timestamp.After(events[2].Timestamp))
}
