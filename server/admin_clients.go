package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/clients"
)

type saveClientRequest struct {
	Name                 string   `json:"name"`
	ApplicationType      string   `json:"applicationType"`
	Secret               string   `json:"secret,omitempty"`
	AllowedOrigin        string   `json:"allowedOrigin,omitempty"`
	Active               bool     `json:"active"`
	RefreshTokenLifetime int      `json:"refreshTokenLifetime,omitempty"`
	Grants               []string `json:"grants,omitempty"`
}

func (s *Server) ListClientsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.repos.Clients.List(chi.URLParam(r, "tenantID"))
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) SaveClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveClientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		applicationType := clients.ApplicationType(req.ApplicationType)
		if applicationType != clients.ApplicationTypeConfidential && applicationType != clients.ApplicationTypePublic {
			writeError(w, http.StatusBadRequest, "invalid_request", "applicationType must be Confidential or Public")
			return
		}

		client := &clients.Client{
			ID:                   chi.URLParam(r, "clientID"),
			TenantID:             chi.URLParam(r, "tenantID"),
			Name:                 req.Name,
			ApplicationType:      applicationType,
			AllowedOrigin:        req.AllowedOrigin,
			Active:               req.Active,
			RefreshTokenLifetime: req.RefreshTokenLifetime,
			Grants:               req.Grants,
		}

		// The secret is write-only: hashed when supplied, carried over
		// from the stored client when omitted.
		if req.Secret != "" {
			hash, err := s.hasher.ComputeHash(req.Secret)
			if err != nil {
				s.internalError(w, err)
				return
			}
			client.SecretHash = hash
		} else if existing, err := s.repos.Clients.Get(client.ID); err == nil && existing.TenantID == client.TenantID {
			client.SecretHash = existing.SecretHash
		}

		created, err := s.repos.Clients.Save(client)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, savedStatus(created), client)
	}
}

func (s *Server) GetClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.repos.Clients.Get(chi.URLParam(r, "clientID"))
		if errors.Is(err, clients.ErrNotFound) || (err == nil && client.TenantID != chi.URLParam(r, "tenantID")) {
			writeError(w, http.StatusNotFound, "not_found", "unknown client")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func (s *Server) DeleteClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repos.Clients.Delete(chi.URLParam(r, "tenantID"), chi.URLParam(r, "clientID")); err != nil {
			s.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
