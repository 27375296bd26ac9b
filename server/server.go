// Package server exposes the identity service over HTTP: the OAuth2 token
// endpoint, the bearer-protected admin API for tenants, clients, users, and
// claims, password reset, JWKS, health, and metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/hashing"
	"github.com/nident/identity-server/internal/config"
	"github.com/nident/identity-server/internal/resettoken"
	"github.com/nident/identity-server/token"
)

type Server struct {
	router      chi.Router
	config      *config.Config
	repos       auth.Repos
	grants      *auth.GrantService
	hasher      *hashing.Hasher
	keyPair     *token.KeyPair
	resetTokens *resettoken.Store
	origins     *originPolicy
	logger      zerolog.Logger
}

func New(
	cfg *config.Config,
	repos auth.Repos,
	grants *auth.GrantService,
	hasher *hashing.Hasher,
	keyPair *token.KeyPair,
	resetTokens *resettoken.Store,
	logger zerolog.Logger,
) (*Server, error) {
	origins, err := newOriginPolicy(cfg.AllowedOrigin)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      cfg,
		repos:       repos,
		grants:      grants,
		hasher:      hasher,
		keyPair:     keyPair,
		resetTokens: resetTokens,
		origins:     origins,
		logger:      logger,
	}

	// Bootstrap: ensure the system tenant, admin client, and admin user
	// exist so the admin API is reachable on a fresh store.
	if err := s.initialiseSystem(); err != nil {
		return nil, err
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.HealthHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/.well-known/jwks.json", s.JWKSHandler())

	r.Post("/token", s.TokenHandler())
	r.Options("/token", s.PreflightHandler())

	r.Post("/password-reset", s.PasswordResetRedeemHandler())
	r.Options("/password-reset", s.PreflightHandler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", s.ListTenantsHandler())
			r.Route("/{tenantID}", func(r chi.Router) {
				r.Put("/", s.SaveTenantHandler())
				r.Get("/", s.GetTenantHandler())
				r.Delete("/", s.DeleteTenantHandler())

				r.Route("/clients", func(r chi.Router) {
					r.Get("/", s.ListClientsHandler())
					r.Route("/{clientID}", func(r chi.Router) {
						r.Put("/", s.SaveClientHandler())
						r.Get("/", s.GetClientHandler())
						r.Delete("/", s.DeleteClientHandler())
					})
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.ListUsersHandler())
					r.Route("/{userID}", func(r chi.Router) {
						r.Put("/", s.SaveUserHandler())
						r.Get("/", s.GetUserHandler())
						r.Delete("/", s.DeleteUserHandler())

						r.Put("/password", s.SetPasswordHandler())
						r.Post("/password-reset", s.IssuePasswordResetHandler())

						r.Route("/claims", func(r chi.Router) {
							r.Get("/", s.ListClaimsHandler())
							r.Put("/{claimKey}", s.SetClaimHandler())
							r.Delete("/{claimKey}", s.RemoveClaimHandler())
						})
					})
				})
			})
		})
	})

	s.router = r
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.keyPair.ToJWKS())
	}
}
