package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/clients"
	"github.com/nident/identity-server/internal/metrics"
)

// TokenHandler implements the OAuth2 token endpoint for the password and
// refresh_token grants.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}

		params := auth.TokenParameters{
			GrantType:    r.PostFormValue("grant_type"),
			ClientID:     r.PostFormValue("client_id"),
			ClientSecret: r.PostFormValue("client_secret"),
			Username:     r.PostFormValue("username"),
			Password:     r.PostFormValue("password"),
			RefreshToken: r.PostFormValue("refresh_token"),
		}
		// HTTP Basic client authentication takes precedence over form
		// credentials (RFC 6749 §2.3.1).
		if id, secret, ok := r.BasicAuth(); ok {
			params.ClientID = id
			params.ClientSecret = secret
		}

		response, err := s.grants.Token(params)
		if err != nil {
			code := grantErrorCode(err)
			if code == "" {
				s.logger.Error().Err(err).Str("grant_type", params.GrantType).Msg("token grant failed")
				writeError(w, http.StatusInternalServerError, "server_error", "internal error")
				return
			}
			metrics.GrantsRejected.WithLabelValues(params.GrantType, code).Inc()
			writeError(w, http.StatusBadRequest, code, grantErrorDescription(code))
			return
		}

		metrics.GrantsIssued.WithLabelValues(params.GrantType).Inc()
		s.applyCORS(w, r, s.lookupClient(params.ClientID))
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, response)
	}
}

// lookupClient fetches the client for CORS decoration. The grant already
// succeeded, so a lookup failure only means no CORS headers.
func (s *Server) lookupClient(clientID string) *clients.Client {
	client, err := s.repos.Clients.Get(clientID)
	if err != nil {
		return nil
	}
	return client
}

// grantErrorCode maps grant-engine failures onto wire error codes. Empty
// means the failure is internal rather than a client error.
func grantErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidClient):
		return "invalid_client"
	case errors.Is(err, auth.ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, auth.ErrUnauthorizedClient):
		return "unauthorized_client"
	default:
		return ""
	}
}

// grantErrorDescription keeps rejection text uniform so responses cannot be
// used to probe which credential check failed.
func grantErrorDescription(code string) string {
	switch code {
	case "invalid_client":
		return "client authentication failed"
	case "invalid_grant":
		return "the provided grant is invalid"
	case "unauthorized_client":
		return "the client is not authorized for this grant type"
	default:
		return ""
	}
}
