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

	"parley/internal/notification"
	"parley/internal/notification/handler"
	"parley/internal/platform/metrics"
	"parley/pkg/domain"
	"parley/pkg/testutil"
)

func TestInbox(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := notification.NewMemorySink()
	userID := domain.NewUserID()
	otherID := domain.NewUserID()
	validator := testutil.NewStaticValidator(map[string]string{userID.String(): "user"})

	r := chi.NewRouter()
	handler.New(sink, logger, metrics.New(), validator).Register(r)

	testutil.Given(t, "notifications for two users", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, sink.Append(ctx, &notification.Notification{
			ID:      domain.NewRequestID(),
			UserID:  userID,
			Kind:    notification.KindInviteAccepted,
			Message: "Jane accepted your invitation",
		}))
		require.NoError(t, sink.Append(ctx, &notification.Notification{
			ID:      domain.NewRequestID(),
			UserID:  otherID,
			Kind:    notification.KindCounterReceived,
			Message: "you received a counter offer",
		}))
	})

	testutil.When(t, "the user lists their inbox", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/notifications"), userID.String())
		rr := testutil.DoRequest(r, req)

		testutil.AssertStatusOK(t, rr)
		items := testutil.UnmarshalResponse[[]map[string]any](t, rr)
		require.Len(t, *items, 1)
		assert.Equal(t, "Jane accepted your invitation", (*items)[0]["message"])
	})

	testutil.Then(t, "unauthenticated requests are refused", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/notifications"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}
