package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/internal/metrics"
)

// ContextKey is a dedicated type for context keys to avoid collisions.
type ContextKey string

const contextKeyPrincipal ContextKey = "principal"

// PrincipalFromContext returns the authenticated principal injected by
// RequireAuth.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(*auth.Principal)
	return p, ok
}

// RequireAuth validates the bearer access token and injects the resolved
// principal into the request context. Every failure is a uniform 401.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			s.unauthorized(w)
			return
		}

		principal, err := s.grants.Authenticate(rawToken)
		if err != nil {
			s.unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	metrics.AuthRejected.Inc()
	w.Header().Set("WWW-Authenticate", `Bearer realm="identity"`)
	writeError(w, http.StatusUnauthorized, "invalid_token", "missing or invalid access token")
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
