package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/audit"
	"github.com/msggate/control-plane/internal/auth"
	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
	"github.com/msggate/control-plane/internal/subscription"
	"github.com/msggate/control-plane/internal/validation"
)

type contextKey string

const (
	accountKey   contextKey = "account"
	principalKey contextKey = "principal"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	authSvc   *auth.Service
	resolver  *auth.Resolver
	subs      *subscription.Manager
	auditor   *audit.Recorder
	validator *validation.Validator
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, authSvc *auth.Service, subs *subscription.Manager, auditor *audit.Recorder) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		authSvc:   authSvc,
		resolver:  auth.NewResolver(&cfg.Auth, store),
		subs:      subs,
		auditor:   auditor,
		validator: validation.NewValidator(),
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "apikey"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the configured router, used by tests
func (s *RESTServer) Router() http.Handler {
	return s.router
}

// sessionMiddleware authenticates dashboard requests by session token
func (s *RESTServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		account, err := s.authSvc.VerifySession(r.Context(), parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware requires an administrative session
func (s *RESTServer) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := s.currentAccount(r)
		if account == nil || !account.Role.IsAdmin() {
			s.respondError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware authenticates gateway API requests by resolving the
// apikey header to a principal. globalScope marks routes reserved for
// the master key.
func (s *RESTServer) apiKeyMiddleware(globalScope bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := s.resolver.Resolve(r.Context(), auth.Request{
				APIKey:       r.Header.Get("apikey"),
				InstanceName: chi.URLParam(r, "instanceName"),
				GlobalScope:  globalScope,
			})
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingGlobalKey):
					log.Error().Msg("Master API key not configured")
					s.respondError(w, http.StatusInternalServerError, "server misconfigured")
				case errors.Is(err, auth.ErrMissingCredentials):
					s.respondError(w, http.StatusUnauthorized, "missing api key")
				case errors.Is(err, auth.ErrUnauthorized):
					s.respondError(w, http.StatusForbidden, "insufficient privileges")
				default:
					s.respondError(w, http.StatusUnauthorized, "invalid api key")
				}
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// currentAccount returns the session account, or nil
func (s *RESTServer) currentAccount(r *http.Request) *models.Account {
	account, _ := r.Context().Value(accountKey).(*models.Account)
	return account
}

// currentPrincipal returns the resolved API-key principal
func (s *RESTServer) currentPrincipal(r *http.Request) models.Principal {
	principal, ok := r.Context().Value(principalKey).(models.Principal)
	if !ok {
		return models.Anonymous()
	}
	return principal
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
