package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/identity"
	"parley/internal/moderation"
	"parley/internal/moderation/handler"
	"parley/internal/notification"
	"parley/internal/platform/metrics"
	"parley/internal/platform/middleware"
	"parley/internal/verification"
	queuestore "parley/internal/verification/store/queue"
	recordstore "parley/internal/verification/store/record"
	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	auditmem "parley/pkg/platform/audit/store/memory"
	"parley/pkg/testutil"
)

type fixture struct {
	router     chi.Router
	workflow   *verification.Workflow
	identities *identity.InMemoryStore

	userID         domain.UserID
	moderatorToken string
	userToken      string
}

// testMetrics is shared across tests: metrics.New registers collectors on the
// default Prometheus registry, which panics on duplicate registration.
var testMetrics = metrics.New()

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		identities: identity.NewInMemoryStore(),
		userID:     domain.NewUserID(),
	}
	records := recordstore.NewInMemoryStore()
	queue := queuestore.NewInMemoryQueue()

	var err error
	f.workflow, err = verification.New(records, queue, verification.WithLogger(logger))
	require.NoError(t, err)

	publisher, err := audit.NewPublisher(auditmem.NewInMemoryStore(), nil)
	require.NoError(t, err)
	processor, err := moderation.New(records, queue, f.identities, notification.NewMemorySink(), publisher,
		moderation.WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, f.identities.Create(context.Background(),
		&identity.UserRecord{ID: f.userID, Handle: "jane"}))

	moderatorID := domain.NewUserID()
	validator := &testutil.StaticValidator{Tokens: map[string]middleware.JWTClaims{
		"mod-token":  {UserID: moderatorID.String(), Role: middleware.RoleModerator},
		"user-token": {UserID: f.userID.String(), Role: "user"},
	}}
	f.moderatorToken = "mod-token"
	f.userToken = "user-token"

	r := chi.NewRouter()
	handler.New(processor, logger, testMetrics, validator).Register(r)
	f.router = r
	return f
}

// submit walks the user half of the workflow so the queue holds one request.
func (f *fixture) submit(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, err := f.workflow.Start(ctx, f.userID, domain.PlatformLinkedIn)
	require.NoError(t, err)
	request, err := f.workflow.Submit(ctx, f.userID, domain.PlatformLinkedIn, "https://linkedin.com/in/jane-doe")
	require.NoError(t, err)
	return request.ID.String()
}

func TestListRequiresModeratorRole(t *testing.T) {
	f := newFixture(t)

	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/moderation/requests"), f.userToken)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestListPendingRequests(t *testing.T) {
	f := newFixture(t)
	requestID := f.submit(t)

	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/moderation/requests"), f.moderatorToken)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusOK(t, rr)
	views := testutil.UnmarshalResponse[[]map[string]any](t, rr)
	require.Len(t, *views, 1)
	assert.Equal(t, requestID, (*views)[0]["id"])
	assert.Equal(t, "pending", (*views)[0]["status"])
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	requestID := f.submit(t)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/moderation/requests/"+requestID+"/approve"), f.moderatorToken)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	user, err := f.identities.Get(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, "https://linkedin.com/in/jane-doe", user.SocialLinks[domain.PlatformLinkedIn])
}

func TestRejectThenApproveConflicts(t *testing.T) {
	f := newFixture(t)
	requestID := f.submit(t)

	req := testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/moderation/requests/"+requestID+"/reject",
			map[string]string{"reason": "code not visible"}), f.moderatorToken)
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusNoContent)

	req = testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/moderation/requests/"+requestID+"/approve"), f.moderatorToken)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestApproveUnknownRequest(t *testing.T) {
	f := newFixture(t)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/moderation/requests/"+domain.NewRequestID().String()+"/approve"),
		f.moderatorToken)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
