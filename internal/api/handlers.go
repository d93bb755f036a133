// Package api exposes the HTTP surface of the sync service: webhook intake, the OAuth
// login flow and operator endpoints under /v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"example.com/stravasync/internal/dispatch"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/oauthstate"
	"example.com/stravasync/internal/webhook"
)

// Authenticator runs the provider OAuth authorization-code flow.
type Authenticator interface {
	AuthCodeURL(state string) string
	Scope() string
	Exchange(ctx context.Context, code string) (domain.Athlete, domain.Credential, error)
}

// WebhookAcceptor validates and records inbound webhook events.
type WebhookAcceptor interface {
	Accept(ctx context.Context, event *domain.WebhookEvent) (bool, error)
}

// Store is the read and registration surface used by the handlers.
type Store interface {
	GetAthlete(ctx context.Context, athleteID int64) (*domain.Athlete, error)
	RegisterAthlete(ctx context.Context, athlete domain.Athlete, c domain.Credential) error
	GetActivity(ctx context.Context, id int64) (*domain.Activity, error)
	ListActivitiesByAthlete(ctx context.Context, athleteID int64) ([]domain.Activity, error)
}

// Dependencies groups the collaborators a Handler needs.
type Dependencies struct {
	Store       Store
	OAuth       Authenticator
	States      oauthstate.Store
	Webhooks    WebhookAcceptor
	Dispatcher  dispatch.Dispatcher
	VerifyToken string
	Logger      *zap.Logger
}

// Handler coordinates HTTP requests with the sync engine.
type Handler struct {
	store       Store
	oauth       Authenticator
	states      oauthstate.Store
	webhooks    WebhookAcceptor
	dispatcher  dispatch.Dispatcher
	verifyToken string
	logger      *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		store:       deps.Store,
		oauth:       deps.OAuth,
		states:      deps.States,
		webhooks:    deps.Webhooks,
		dispatcher:  deps.Dispatcher,
		verifyToken: deps.VerifyToken,
		logger:      logging.OrNop(deps.Logger),
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "pong"})
}

func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, err := webhook.Verify(h.verifyToken, q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		h.logger.Warn("webhook verification rejected", zap.String("mode", q.Get("hub.mode")))
		writeError(w, http.StatusForbidden, "invalid_verification", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	var event domain.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	event.ID = 0

	accepted, err := h.webhooks.Accept(r.Context(), &event)
	if err != nil {
		h.logger.Error("failed to record webhook event", zap.Int64("athlete_id", event.OwnerID),
			zap.Int64("activity_id", event.ObjectID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "unable to record event")
		return
	}
	if accepted {
		// A lost task is recovered by the sweeper since the event row is still pending.
		if err := h.dispatcher.Submit(r.Context(), dispatch.NewWebhookTask(event)); err != nil {
			h.logger.Warn("failed to dispatch webhook task", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Webhook: event})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error("failed to issue oauth state", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "unable to start login")
		return
	}
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) exchangeToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		writeError(w, http.StatusBadRequest, "authorization_denied", reason)
		return
	}
	if q.Get("scope") != h.oauth.Scope() {
		writeDomainError(w, domain.ErrInvalidScope)
		return
	}
	if err := h.states.Consume(r.Context(), q.Get("state")); err != nil {
		writeDomainError(w, err)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing code")
		return
	}

	athlete, credential, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "exchange_failed", err.Error())
		return
	}

	existing, err := h.store.GetAthlete(r.Context(), athlete.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := h.store.RegisterAthlete(r.Context(), athlete, credential); err != nil {
		h.logger.Error("failed to register athlete", zap.Int64("athlete_id", athlete.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "unable to register athlete")
		return
	}

	if existing == nil {
		if err := h.dispatcher.Submit(r.Context(), dispatch.NewBackfillTask(athlete.ID)); err != nil {
			h.logger.Warn("failed to dispatch initial backfill", zap.Int64("athlete_id", athlete.ID), zap.Error(err))
		}
	}
	h.logger.Info("athlete authorized", zap.Int64("athlete_id", athlete.ID), zap.Bool("first_login", existing == nil))
	writeJSON(w, http.StatusOK, AthleteResponse{Athlete: athlete})
}

func (h *Handler) getAthlete(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := int64Param(w, r, "athleteID")
	if !ok {
		return
	}
	athlete, err := h.store.GetAthlete(r.Context(), athleteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if athlete == nil {
		writeDomainError(w, domain.ErrCredentialNotFound)
		return
	}
	writeJSON(w, http.StatusOK, AthleteResponse{Athlete: *athlete})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	activityID, ok := int64Param(w, r, "activityID")
	if !ok {
		return
	}
	activity, err := h.store.GetActivity(r.Context(), activityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if activity == nil {
		writeDomainError(w, domain.ErrActivityNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := int64Param(w, r, "athleteID")
	if !ok {
		return
	}
	activities, err := h.store.ListActivitiesByAthlete(r.Context(), athleteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	routes := make([]domain.Route, 0, len(activities))
	for _, a := range activities {
		if a.Polyline == "" {
			continue
		}
		routes = append(routes, domain.Route{Polyline: a.Polyline, Date: a.StartDateLocal})
	}
	writeJSON(w, http.StatusOK, routes)
}

func (h *Handler) triggerBackfill(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := int64Param(w, r, "athleteID")
	if !ok {
		return
	}
	athlete, err := h.store.GetAthlete(r.Context(), athleteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if athlete == nil {
		writeDomainError(w, domain.ErrCredentialNotFound)
		return
	}

	task := dispatch.NewBackfillTask(athleteID)
	if err := h.dispatcher.Submit(r.Context(), task); err != nil {
		h.logger.Warn("failed to dispatch backfill", zap.Int64("athlete_id", athleteID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "dispatch_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, BackfillResponse{TaskID: task.ID.String(), AthleteID: athleteID})
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || value <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return value, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidVerification):
		writeError(w, http.StatusForbidden, "invalid_verification", err.Error())
	case errors.Is(err, domain.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, "invalid_scope", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "not_found", "athlete not found")
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
