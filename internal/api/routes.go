package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.HandleRegister)
		r.Post("/login", s.HandleLogin)
		r.Post("/verify-email", s.HandleVerifyEmail)
		r.Post("/resend-verification", s.HandleResendVerification)
		r.Post("/forgot-password", s.HandleForgotPassword)
		r.Post("/reset-password", s.HandleResetPassword)

		// Session-scoped
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/me", s.HandleGetCurrentAccount)
			r.Post("/logout", s.HandleLogout)
			r.Post("/regenerate-api-key", s.HandleRegenerateAPIKey)
		})
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Use(s.adminMiddleware)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.HandleListAccounts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetAccount)
				r.Patch("/role", s.HandleUpdateAccountRole)
				r.Delete("/", s.HandleDeleteAccount)

				r.Get("/subscription", s.HandleGetSubscription)
				r.Post("/subscription/renew", s.HandleRenewSubscription)
				r.Post("/subscription/cancel", s.HandleCancelSubscription)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", s.HandleListSubscriptions)
			r.Get("/stats", s.HandleSubscriptionStats)
			r.Get("/expiring", s.HandleListExpiringSubscriptions)
			r.Post("/sweep", s.HandleSweepSubscriptions)
		})

		r.Get("/audit-logs", s.HandleListAuditLogs)
	})

	// Instance routes (API-key authenticated)
	r.Route("/instances", func(r chi.Router) {
		r.With(s.apiKeyMiddleware(true)).Post("/", s.HandleCreateInstance)
		r.With(s.apiKeyMiddleware(false)).Get("/", s.HandleListInstances)

		r.Route("/{instanceName}", func(r chi.Router) {
			r.Use(s.apiKeyMiddleware(false))
			r.Get("/", s.HandleGetInstance)
			r.Delete("/", s.HandleDeleteInstance)
			r.Patch("/connection", s.HandleUpdateConnectionState)
		})
	})
}
