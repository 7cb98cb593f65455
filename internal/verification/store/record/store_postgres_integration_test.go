//go:build integration

package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"parley/internal/verification"
	"parley/internal/verification/store/record"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
	"parley/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *record.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = record.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func newRecord(userID domain.UserID, platform domain.SocialPlatform) *verification.Record {
	return &verification.Record{
		UserID:      userID,
		Platform:    platform,
		Code:        "WXYZ",
		Status:      verification.StatusPending,
		RequestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestUpsertAndGet() {
	ctx := context.Background()
	userID := domain.NewUserID()
	rec := newRecord(userID, domain.PlatformLinkedIn)
	s.Require().NoError(s.store.Upsert(ctx, rec))

	got, err := s.store.Get(ctx, userID, domain.PlatformLinkedIn)
	s.Require().NoError(err)
	s.Equal("WXYZ", got.Code)
	s.Equal(verification.StatusPending, got.Status)
	s.Nil(got.ResolvedAt)
}

func (s *PostgresStoreSuite) TestUpsertReplaces() {
	ctx := context.Background()
	userID := domain.NewUserID()
	rec := newRecord(userID, domain.PlatformLinkedIn)
	s.Require().NoError(s.store.Upsert(ctx, rec))

	resolved := time.Now().UTC().Truncate(time.Microsecond)
	rec.ProfileURL = "https://linkedin.com/in/sam"
	rec.Status = verification.StatusVerified
	rec.ResolvedAt = &resolved
	s.Require().NoError(s.store.Upsert(ctx, rec))

	got, err := s.store.Get(ctx, userID, domain.PlatformLinkedIn)
	s.Require().NoError(err)
	s.Equal(verification.StatusVerified, got.Status)
	s.Equal("https://linkedin.com/in/sam", got.ProfileURL)
	s.Require().NotNil(got.ResolvedAt)
	s.WithinDuration(resolved, *got.ResolvedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestGetUnknown() {
	_, err := s.store.Get(context.Background(), domain.NewUserID(), domain.PlatformLinkedIn)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByUser() {
	ctx := context.Background()
	userID := domain.NewUserID()
	s.Require().NoError(s.store.Upsert(ctx, newRecord(userID, domain.PlatformTwitter)))
	s.Require().NoError(s.store.Upsert(ctx, newRecord(userID, domain.PlatformLinkedIn)))
	s.Require().NoError(s.store.Upsert(ctx, newRecord(domain.NewUserID(), domain.PlatformLinkedIn)))

	records, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	// Ordered by platform name.
	s.Equal(domain.PlatformLinkedIn, records[0].Platform)
	s.Equal(domain.PlatformTwitter, records[1].Platform)
}
