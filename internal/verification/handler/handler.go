package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/platform/metrics"
	"parley/internal/platform/middleware"
	"parley/internal/transport/http/shared"
	"parley/internal/verification"
	"parley/pkg/domain"
	dErrors "parley/pkg/domain-errors"
	"parley/pkg/platform/sentinel"
)

// Handler exposes the verification workflow to the profile surface.
type Handler struct {
	workflow     *verification.Workflow
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(workflow *verification.Workflow, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		workflow:     workflow,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Post("/{platform}/start", h.handleStart)
	router.Post("/{platform}/submit", h.handleSubmit)
	router.Get("/", h.handleStatus)

	r.Mount("/verification", router)
}

type startResponse struct {
	Code string `json:"code"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	platform, err := domain.ParseSocialPlatform(chi.URLParam(r, "platform"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unsupported platform"))
		return
	}

	code, err := h.workflow.Start(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "platform already verified", err))
			return
		}
		h.logger.ErrorContext(ctx, "verification start failed",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to start verification"))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, startResponse{Code: code})
}

type submitRequest struct {
	ProfileURL string `json:"profileUrl"`
}

type submitResponse struct {
	RequestID string `json:"requestId"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	platform, err := domain.ParseSocialPlatform(chi.URLParam(r, "platform"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unsupported platform"))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	request, err := h.workflow.Submit(ctx, userID, platform, req.ProfileURL)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidProfileURL):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeValidation, "profile url does not match the platform", err))
		case errors.Is(err, sentinel.ErrInvalidState):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "verification not in a submittable state", err))
		default:
			h.logger.ErrorContext(ctx, "verification submit failed",
				"request_id", middleware.GetRequestID(ctx), "error", err)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to submit verification"))
		}
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, submitResponse{RequestID: request.ID.String()})
}

type recordView struct {
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	ProfileURL  string     `json:"profileUrl,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	records, err := h.workflow.StatusFor(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification status failed",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load verification status"))
		return
	}

	views := make([]recordView, 0, len(records))
	for _, record := range records {
		views = append(views, recordView{
			Platform:    record.Platform.String(),
			Status:      string(record.Status),
			ProfileURL:  record.ProfileURL,
			RequestedAt: record.RequestedAt,
			ResolvedAt:  record.ResolvedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID, err := domain.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "user id missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.UserID{}, false
	}
	return userID, true
}
