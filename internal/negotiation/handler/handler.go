package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/escrow"
	"parley/internal/negotiation"
	"parley/internal/platform/metrics"
	"parley/internal/platform/middleware"
	"parley/internal/proposal"
	"parley/internal/transport/http/shared"
	"parley/pkg/domain"
	dErrors "parley/pkg/domain-errors"
	"parley/pkg/platform/sentinel"
)

// Handler exposes the negotiation protocol: creating invites and moving a
// session through authorize, accept, decline, counter and capture.
type Handler struct {
	engine       *negotiation.Engine
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(engine *negotiation.Engine, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		engine:       engine,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the invite and session routes.
func (h *Handler) Register(r chi.Router) {
	invites := h.newRouter()
	invites.Post("/", h.handleCreate)
	invites.Get("/decode", h.handleDecode)
	r.Mount("/invites", invites)

	sessions := h.newRouter()
	sessions.Get("/{id}", h.handleSession)
	sessions.Get("/{id}/fees", h.handleFees)
	sessions.Post("/{id}/authorize", h.handleAuthorize)
	sessions.Post("/{id}/accept", h.handleAccept)
	sessions.Post("/{id}/decline", h.handleDecline)
	sessions.Post("/{id}/counter", h.handleCounter)
	sessions.Post("/{id}/capture", h.handleCapture)
	r.Mount("/sessions", sessions)
}

func (h *Handler) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	return router
}

type proposalBody struct {
	Topics         []string `json:"topics"`
	EventType      string   `json:"eventType"`
	EventParameter int      `json:"eventParameter"`
	TimePeriodDays int      `json:"timePeriodDays,omitempty"`
	PaymentCents   int64    `json:"paymentCents"`
	PaymentMethod  string   `json:"paymentMethod,omitempty"`
	Verify         []string `json:"verify,omitempty"`
	RecipientName  string   `json:"recipientName"`
}

func (b proposalBody) toProposal() (proposal.Proposal, error) {
	p := proposal.Proposal{
		Topics: b.Topics,
		Event: proposal.EventTerms{
			Type:      proposal.EventType(b.EventType),
			Parameter: proposal.Fixed(b.EventParameter),
		},
		Payment:       proposal.PaymentTerms{AmountCents: b.PaymentCents, Method: b.PaymentMethod},
		RecipientName: b.RecipientName,
	}
	if p.Event.Type == proposal.EventTypeLength {
		p.Event.TimePeriodDays = proposal.Fixed(b.TimePeriodDays)
	}
	for _, raw := range b.Verify {
		platform, err := domain.ParseSocialPlatform(raw)
		if err != nil {
			return proposal.Proposal{}, err
		}
		p.Verify = append(p.Verify, platform)
	}
	return p, nil
}

type sessionView struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Turn      int    `json:"turn"`
	State     string `json:"state"`
	Escrow    string `json:"escrowStatus"`
}

func viewOf(session *negotiation.Session) sessionView {
	view := session.Snapshot()
	return sessionView{
		SessionID: view.ID.String(),
		Token:     view.Token,
		Turn:      view.Turn,
		State:     string(view.State),
		Escrow:    string(view.Escrow),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var body proposalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := body.toProposal()
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "unsupported platform in verify list", err))
		return
	}

	session, err := h.engine.CreateInvite(ctx, userID, p)
	if err != nil {
		switch {
		case errors.Is(err, proposal.ErrInvalidProposal):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeValidation, "proposal is incomplete", err))
		case errors.Is(err, sentinel.ErrNotFound):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeNotFound, "inviter not found", err))
		default:
			h.logger.ErrorContext(ctx, "invite creation failed",
				"request_id", middleware.GetRequestID(ctx), "error", err)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to create invite"))
		}
		return
	}
	shared.WriteJSON(w, http.StatusCreated, viewOf(session))
}

type decodedView struct {
	Topics         []string `json:"topics"`
	EventType      string   `json:"eventType"`
	EventParameter int      `json:"eventParameter"`
	TimePeriodDays int      `json:"timePeriodDays,omitempty"`
	PaymentCents   int64    `json:"paymentCents"`
	Verify         []string `json:"verify,omitempty"`
	InviterHandle  string   `json:"invitedBy"`
	RecipientName  string   `json:"name"`
	Turn           int      `json:"turn"`
}

func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token query parameter is required"))
		return
	}

	p, err := h.engine.DecodeInvite(token)
	if err != nil {
		// A tampered or truncated link is indistinguishable from a missing
		// invitation for the recipient.
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeNotFound, "invitation not found", err))
		return
	}

	view := decodedView{
		Topics:         p.Topics,
		EventType:      string(p.Event.Type),
		EventParameter: p.Event.Parameter.Value,
		TimePeriodDays: p.Event.TimePeriodDays.Value,
		PaymentCents:   p.Payment.AmountCents,
		InviterHandle:  p.InviterHandle,
		RecipientName:  p.RecipientName,
		Turn:           p.Turn,
	}
	for _, platform := range p.Verify {
		view.Verify = append(view.Verify, platform.String())
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.engine.Session(id)
	if err != nil {
		h.writeSessionError(w, r, "get", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleFees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	breakdown, err := h.engine.PreviewFees(id)
	if err != nil {
		h.writeSessionError(w, r, "fees", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.engine.AuthorizePayment(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, escrow.ErrAuthorizationFailed):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "payment authorization refused", err))
		case errors.Is(err, context.DeadlineExceeded):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeTimeout, "payment gateway timed out, retry", err))
		default:
			h.writeSessionError(w, r, "authorize", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	if err := h.engine.Accept(r.Context(), id, userID); err != nil {
		if errors.Is(err, negotiation.ErrPaymentNotAuthorized) {
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "authorize the payment before accepting", err))
			return
		}
		h.writeSessionError(w, r, "accept", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	if err := h.engine.Decline(r.Context(), id, userID); err != nil {
		h.writeSessionError(w, r, "decline", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type counterBody struct {
	Turn           int      `json:"turn"`
	Topics         []string `json:"topics,omitempty"`
	EventParameter *int     `json:"eventParameter,omitempty"`
	TimePeriodDays *int     `json:"timePeriodDays,omitempty"`
	PaymentCents   *int64   `json:"paymentCents,omitempty"`
}

func (h *Handler) handleCounter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var body counterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	changes := negotiation.Changes{Topics: body.Topics}
	if body.EventParameter != nil {
		p := proposal.Fixed(*body.EventParameter)
		changes.EventParameter = &p
	}
	if body.TimePeriodDays != nil {
		p := proposal.Fixed(*body.TimePeriodDays)
		changes.TimePeriodDays = &p
	}
	changes.PaymentCents = body.PaymentCents

	session, err := h.engine.Counter(ctx, id, userID, body.Turn, changes)
	if err != nil {
		switch {
		case errors.Is(err, negotiation.ErrStaleProposal):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "proposal is stale, re-fetch the thread", err))
		case errors.Is(err, proposal.ErrInvalidProposal):
			shared.WriteError(w, dErrors.Wrap(dErrors.CodeValidation, "counter proposal is incomplete", err))
		default:
			h.writeSessionError(w, r, "counter", err)
		}
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(session))
}

type captureView struct {
	PayoutCents int64 `json:"payoutCents"`
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	payout, err := h.engine.CapturePayout(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, r, "capture", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, captureView{PayoutCents: int64(payout)})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (domain.RequestID, bool) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return domain.RequestID{}, false
	}
	return id, true
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

func (h *Handler) writeSessionError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeNotFound, "session not found", err))
	case errors.Is(err, sentinel.ErrInvalidState):
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeConflict, "session is not in a state for this operation", err))
	default:
		h.logger.ErrorContext(ctx, "session operation failed",
			"op", op, "request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "operation failed"))
	}
}
