package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/moderation"
	"parley/internal/platform/metrics"
	"parley/internal/platform/middleware"
	"parley/internal/transport/http/shared"
	"parley/pkg/domain"
	dErrors "parley/pkg/domain-errors"
	"parley/pkg/platform/sentinel"
)

// Handler exposes the moderation queue to moderator accounts.
type Handler struct {
	processor    *moderation.Processor
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(processor *moderation.Processor, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		processor:    processor,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the moderation routes behind the moderator gate.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Use(middleware.RequireModerator(h.logger))
	router.Get("/", h.handleList)
	router.Post("/{id}/approve", h.handleApprove)
	router.Post("/{id}/reject", h.handleReject)

	r.Mount("/moderation/requests", router)
}

type requestView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Platform    string     `json:"platform"`
	ProfileURL  string     `json:"profileUrl"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requests, err := h.processor.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "moderation list failed",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list requests"))
		return
	}

	views := make([]requestView, 0, len(requests))
	for _, request := range requests {
		views = append(views, requestView{
			ID:          request.ID.String(),
			UserID:      request.UserID.String(),
			Platform:    request.Platform.String(),
			ProfileURL:  request.ProfileURL,
			Code:        request.Code,
			Status:      string(request.Status),
			RequestedAt: request.RequestedAt,
			ResolvedAt:  request.ResolvedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	if err := h.processor.Approve(ctx, id, middleware.GetUserID(ctx)); err != nil {
		h.writeDecisionError(w, r, "approve", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	if err := h.processor.Reject(ctx, id, middleware.GetUserID(ctx), req.Reason); err != nil {
		h.writeDecisionError(w, r, "reject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (domain.RequestID, bool) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return domain.RequestID{}, false
	}
	return id, true
}

func (h *Handler) writeDecisionError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeNotFound, "request not found", err))
	case errors.Is(err, moderation.ErrAlreadyResolved):
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "request already resolved", err))
	default:
		h.logger.ErrorContext(ctx, "moderation decision failed",
			"op", op, "request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to resolve request"))
	}
}
