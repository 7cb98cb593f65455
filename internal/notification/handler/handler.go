package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/notification"
	"parley/internal/platform/metrics"
	"parley/internal/platform/middleware"
	"parley/internal/transport/http/shared"
	"parley/pkg/domain"
	dErrors "parley/pkg/domain-errors"
)

// Handler serves a user's notification inbox.
type Handler struct {
	sink         notification.Sink
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(sink notification.Sink, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		sink:         sink,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/", h.handleList)

	r.Mount("/notifications", router)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := domain.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	items, err := h.sink.ListByUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "notification listing failed",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list notifications"))
		return
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	shared.WriteJSON(w, http.StatusOK, items)
}
