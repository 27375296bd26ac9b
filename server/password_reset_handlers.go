package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/users"
)

type issueResetResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresIn  int    `json:"expires_in"`
}

type redeemResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// IssuePasswordResetHandler mints a single-use reset token for a user. The
// token is handed to the caller (an admin or a mail-sending service); this
// service never delivers it to the end user itself.
func (s *Server) IssuePasswordResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID")
		if _, err := s.repos.Users.GetByID(tenantID, userID); errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		} else if err != nil {
			s.internalError(w, err)
			return
		}

		tok, err := s.resetTokens.Issue(tenantID, userID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, issueResetResponse{
			ResetToken: tok,
			ExpiresIn:  int(s.config.ResetTokenLifetime.Seconds()),
		})
	}
}

// PasswordResetRedeemHandler consumes a reset token and sets the new
// password. Unknown, expired, and already-used tokens are indistinguishable.
func (s *Server) PasswordResetRedeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redeemResetRequest
		if err := decodeJSON(r, &req); err != nil || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "token and password are required")
			return
		}

		tenantID, userID, ok := s.resetTokens.Redeem(req.Token)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_token", "reset token is invalid or expired")
			return
		}

		hash, err := s.hasher.ComputeHash(req.Password)
		if err != nil {
			s.internalError(w, err)
			return
		}
		err = s.repos.Users.SetPasswordHash(tenantID, userID, hash)
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_token", "reset token is invalid or expired")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		s.applyCORS(w, r, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}
