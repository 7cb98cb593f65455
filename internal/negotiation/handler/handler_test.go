package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/identity"
	"parley/internal/negotiation"
	"parley/internal/negotiation/handler"
	"parley/internal/notification"
	"parley/internal/payment"
	"parley/internal/platform/metrics"
	"parley/internal/verification"
	queuestore "parley/internal/verification/store/queue"
	recordstore "parley/internal/verification/store/record"
	"parley/pkg/domain"
	"parley/pkg/platform/audit"
	auditmem "parley/pkg/platform/audit/store/memory"
	"parley/pkg/testutil"
)

type fixture struct {
	router      chi.Router
	gateway     *payment.SandboxGateway
	inviterID   domain.UserID
	recipientID domain.UserID
}

// testMetrics is shared across tests: metrics.New registers collectors on the
// default Prometheus registry, which panics on duplicate registration.
var testMetrics = metrics.New()

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		gateway:     payment.NewSandboxGateway(),
		inviterID:   domain.NewUserID(),
		recipientID: domain.NewUserID(),
	}

	identities := identity.NewInMemoryStore()
	require.NoError(t, identities.Create(ctx, &identity.UserRecord{ID: f.inviterID, Handle: "sam"}))
	require.NoError(t, identities.Create(ctx, &identity.UserRecord{ID: f.recipientID, Handle: "jane"}))

	verifier, err := verification.New(recordstore.NewInMemoryStore(), queuestore.NewInMemoryQueue())
	require.NoError(t, err)
	publisher, err := audit.NewPublisher(auditmem.NewInMemoryStore(), nil)
	require.NoError(t, err)

	engine, err := negotiation.New(f.gateway, verifier, identities, notification.NewMemorySink(), publisher,
		negotiation.WithLogger(logger))
	require.NoError(t, err)

	validator := testutil.NewStaticValidator(map[string]string{
		f.inviterID.String():   "user",
		f.recipientID.String(): "user",
	})

	r := chi.NewRouter()
	handler.New(engine, logger, testMetrics, validator).Register(r)
	f.router = r
	return f
}

func offerBody() map[string]any {
	return map[string]any{
		"topics":         []string{"AI ethics"},
		"eventType":      "length",
		"eventParameter": 500,
		"timePeriodDays": 3,
		"paymentCents":   5000,
		"paymentMethod":  "card",
		"verify":         []string{"linkedin"},
		"recipientName":  "Jane",
	}
}

func (f *fixture) createInvite(t *testing.T) map[string]any {
	t.Helper()
	req := testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/invites", offerBody()), f.inviterID.String())
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[map[string]any](t, rr)
}

func TestCreateInvite(t *testing.T) {
	f := newFixture(t)

	view := f.createInvite(t)
	assert.NotEmpty(t, view["sessionId"])
	assert.NotEmpty(t, view["token"])
	assert.Equal(t, float64(1), view["turn"])
	assert.Equal(t, "offered", view["state"])
}

func TestCreateInviteIncompleteProposal(t *testing.T) {
	f := newFixture(t)

	body := offerBody()
	body["topics"] = []string{}
	req := testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/invites", body), f.inviterID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
}

func TestDecodeInvite(t *testing.T) {
	f := newFixture(t)
	view := f.createInvite(t)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodGet, "/invites/decode?token="+url.QueryEscape(view["token"].(string))),
		f.recipientID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "invitedBy", "sam")
	testutil.AssertJSONContains(t, rr, "name", "Jane")
	testutil.AssertJSONContains(t, rr, "paymentCents", float64(5000))
}

func TestDecodeTamperedToken(t *testing.T) {
	f := newFixture(t)
	f.createInvite(t)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodGet, "/invites/decode?token=not-a-token"),
		f.recipientID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestFeesAuthorizeAcceptFlow(t *testing.T) {
	f := newFixture(t)
	view := f.createInvite(t)
	sessionID := view["sessionId"].(string)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodGet, "/sessions/"+sessionID+"/fees"), f.inviterID.String())
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "offer", float64(5000))
	testutil.AssertJSONContains(t, rr, "totalCharged", float64(5500))

	req = testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/sessions/"+sessionID+"/authorize"), f.inviterID.String())
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusNoContent)

	req = testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/sessions/"+sessionID+"/accept"), f.recipientID.String())
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusNoContent)

	req = testutil.WithBearer(
		testutil.NewRequest(t, http.MethodGet, "/sessions/"+sessionID), f.inviterID.String())
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "state", "accepted")
}

func TestAcceptBeforeAuthorizeConflicts(t *testing.T) {
	f := newFixture(t)
	view := f.createInvite(t)
	sessionID := view["sessionId"].(string)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodPost, "/sessions/"+sessionID+"/accept"), f.recipientID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestCounterAdvancesTurn(t *testing.T) {
	f := newFixture(t)
	view := f.createInvite(t)
	sessionID := view["sessionId"].(string)

	req := testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/counter",
			map[string]any{"turn": 1, "paymentCents": 7500}), f.recipientID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "turn", float64(2))
}

func TestCounterStaleTurnConflicts(t *testing.T) {
	f := newFixture(t)
	view := f.createInvite(t)
	sessionID := view["sessionId"].(string)

	req := testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/counter",
			map[string]any{"turn": 1, "paymentCents": 7500}), f.recipientID.String())
	testutil.AssertStatusOK(t, testutil.DoRequest(f.router, req))

	// The inviter counters against the superseded turn.
	req = testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/counter",
			map[string]any{"turn": 1, "paymentCents": 6000}), f.inviterID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)

	req := testutil.WithBearer(
		testutil.NewRequest(t, http.MethodGet, "/sessions/"+domain.NewRequestID().String()),
		f.inviterID.String())
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
