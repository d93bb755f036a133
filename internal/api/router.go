package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"example.com/stravasync/internal/auth"
)

// Router builds the chi router. Only /v1 requires an operator bearer token; the
// provider and the browser reach the remaining routes unauthenticated.
func (h *Handler) Router(authMiddleware auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		h.requestLogger,
	)

	r.Get("/healthz", healthz)
	r.Get("/ping", ping)
	r.Get("/login", h.login)
	r.Get("/exchange_token", h.exchangeToken)
	r.Get("/webhook", h.verifyWebhook)
	r.Post("/webhook", h.receiveWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Wrap)
		r.With(auth.RequireScope(auth.ScopeSyncRead)).Get("/activities/{activityID}", h.getActivity)
		r.With(auth.RequireScope(auth.ScopeSyncRead)).Get("/athletes/{athleteID}", h.getAthlete)
		r.With(auth.RequireScope(auth.ScopeSyncRead)).Get("/athletes/{athleteID}/routes", h.listRoutes)
		r.With(auth.RequireScope(auth.ScopeSyncWrite)).Post("/athletes/{athleteID}/backfill", h.triggerBackfill)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
