package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scholarship-portal/internal/config"
	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/transport/http/handler"
	appmiddleware "github.com/scholarship-portal/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps, svcs *Services) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.RequestLogger(log.Named("http")))
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics(deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	staffOnly := appmiddleware.RequireRole(domain.RoleCSO)
	scholarOnly := appmiddleware.RequireRole(domain.RoleScholar)

	// 5 requests/second, burst of 10, on the public sign-in endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(svcs.Accounts)
	accountH := handler.NewAccountHandler(svcs.Accounts)
	notifH := handler.NewNotificationHandler(svcs.Notifications, svcs.Broadcast, log.Named("sse"))
	scholarshipH := handler.NewScholarshipHandler(svcs.Scholarships, svcs.Broadcast, log.Named("sse"))

	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Get("/sessions/verify", sessionH.Verify)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/accounts/me", accountH.Me)
			r.With(scholarOnly).Put("/accounts/me", accountH.UpdateMe)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/stream", notifH.Stream)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.With(staffOnly).Post("/notifications", notifH.Create)

			r.With(scholarOnly).Post("/scholarships", scholarshipH.Submit)
			r.With(scholarOnly).Get("/scholarships/me", scholarshipH.Mine)
			r.Get("/scholarships/{id}/attachments", scholarshipH.Attachments)

			// Staff-only routes
			r.Group(func(r chi.Router) {
				r.Use(staffOnly)

				r.Get("/scholarships", scholarshipH.List)
				r.Get("/scholarships/stream", scholarshipH.Stream)
				r.Get("/scholarships/statistics", scholarshipH.Statistics)
				r.Post("/scholarships/{id}/verify", scholarshipH.Verify)
				r.Put("/scholarships/{id}/revoke", scholarshipH.Revoke)
			})
		})
	})

	return r
}
