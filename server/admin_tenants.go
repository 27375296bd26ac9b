package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/tenants"
)

type saveTenantRequest struct {
	Name string `json:"name"`
}

func (s *Server) ListTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.repos.Tenants.List()
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) SaveTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveTenantRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}

		tenant := &tenants.Tenant{ID: chi.URLParam(r, "tenantID"), Name: req.Name}
		created, err := s.repos.Tenants.Save(tenant)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, savedStatus(created), tenant)
	}
}

func (s *Server) GetTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.repos.Tenants.Get(chi.URLParam(r, "tenantID"))
		if errors.Is(err, tenants.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown tenant")
			return
		}
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tenant)
	}
}

func (s *Server) DeleteTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repos.Tenants.Delete(chi.URLParam(r, "tenantID")); err != nil {
			s.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// savedStatus distinguishes insert from update on upsert endpoints.
func savedStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("store operation failed")
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}
