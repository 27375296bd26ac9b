package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/users"
)

type saveUserRequest struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type setClaimRequest struct {
	Value string `json:"value"`
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.repos.Users.List(chi.URLParam(r, "tenantID"))
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) SaveUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if req.Login == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "login and email are required")
			return
		}

		user := &users.User{
			ID:       chi.URLParam(r, "userID"),
			TenantID: chi.URLParam(r, "tenantID"),
			Login:    req.Login,
			Name:     req.Name,
			Email:    req.Email,
		}
		created, err := s.repos.Users.Save(user)
		if err != nil {
			s.writeUserSaveError(w, err)
			return
		}
		writeJSON(w, savedStatus(created), user)
	}
}

func (s *Server) writeUserSaveError(w http.ResponseWriter, err error) {
	var dupLogin *users.DuplicateLoginError
	var dupEmail *users.DuplicateEmailError
	switch {
	case errors.As(err, &dupLogin):
		writeError(w, http.StatusConflict, "duplicate_login", dupLogin.Error())
	case errors.As(err, &dupEmail):
		writeError(w, http.StatusConflict, "duplicate_email", dupEmail.Error())
	default:
		s.internalError(w, err)
	}
}

func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.repos.Users.GetByID(chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"))
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repos.Users.Delete(chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID")); err != nil {
			s.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) SetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setPasswordRequest
		if err := decodeJSON(r, &req); err != nil || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
			return
		}

		hash, err := s.hasher.ComputeHash(req.Password)
		if err != nil {
			s.internalError(w, err)
			return
		}
		err = s.repos.Users.SetPasswordHash(chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"), hash)
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListClaimsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID")
		if _, err := s.repos.Users.GetByID(tenantID, userID); errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		} else if err != nil {
			s.internalError(w, err)
			return
		}

		claims, err := s.repos.Users.ClaimsForUser(tenantID, userID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claims)
	}
}

func (s *Server) SetClaimHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setClaimRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}

		claim := users.Claim{Key: chi.URLParam(r, "claimKey"), Value: req.Value}
		if err := claim.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_claim_key", err.Error())
			return
		}

		created, err := s.repos.Users.SetUserClaim(chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"), claim)
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, savedStatus(created), claim)
	}
}

func (s *Server) RemoveClaimHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.repos.Users.RemoveUserClaim(chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"), chi.URLParam(r, "claimKey"))
		if err != nil {
			s.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
