package server

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/clients"
	"github.com/nident/identity-server/tenants"
	"github.com/nident/identity-server/users"
)

// initialiseSystem creates the bootstrap tenant, admin client, and admin
// user when they are missing. The client and user are only created when
// their credentials are configured; without them a fresh store simply has
// no way into the admin API, which is the safe default.
func (s *Server) initialiseSystem() error {
	cfg := s.config
	if cfg.BootstrapTenantID == "" {
		return nil
	}

	if err := s.ensureBootstrapTenant(); err != nil {
		return errors.Wrap(err, "[Server.initialiseSystem] tenant")
	}
	if cfg.BootstrapClientSecret != "" {
		if err := s.ensureBootstrapClient(); err != nil {
			return errors.Wrap(err, "[Server.initialiseSystem] client")
		}
	}
	if cfg.BootstrapAdminPass != "" {
		if err := s.ensureBootstrapAdmin(); err != nil {
			return errors.Wrap(err, "[Server.initialiseSystem] admin user")
		}
	}
	return nil
}

func (s *Server) ensureBootstrapTenant() error {
	_, err := s.repos.Tenants.Get(s.config.BootstrapTenantID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, tenants.ErrNotFound) {
		return err
	}

	tenant := &tenants.Tenant{ID: s.config.BootstrapTenantID, Name: "System"}
	if _, err := s.repos.Tenants.Save(tenant); err != nil {
		return err
	}
	s.logger.Info().Str("tenant", tenant.ID).Msg("created bootstrap tenant")
	return nil
}

func (s *Server) ensureBootstrapClient() error {
	_, err := s.repos.Clients.Get(s.config.BootstrapClientID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, clients.ErrNotFound) {
		return err
	}

	secretHash, err := s.hasher.ComputeHash(s.config.BootstrapClientSecret)
	if err != nil {
		return err
	}
	client := &clients.Client{
		ID:              s.config.BootstrapClientID,
		TenantID:        s.config.BootstrapTenantID,
		Name:            "Admin Client",
		ApplicationType: clients.ApplicationTypeConfidential,
		SecretHash:      secretHash,
		Active:          true,
	}
	if _, err := s.repos.Clients.Save(client); err != nil {
		return err
	}
	s.logger.Info().Str("client", client.ID).Msg("created bootstrap client")
	return nil
}

func (s *Server) ensureBootstrapAdmin() error {
	cfg := s.config
	_, err := s.repos.Users.GetByLogin(cfg.BootstrapTenantID, cfg.BootstrapAdminLogin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return err
	}

	admin := &users.User{
		ID:       uuid.NewString(),
		TenantID: cfg.BootstrapTenantID,
		Login:    cfg.BootstrapAdminLogin,
		Name:     "Administrator",
		Email:    cfg.BootstrapAdminLogin + "@" + cfg.BootstrapTenantID + ".local",
	}
	if _, err := s.repos.Users.Save(admin); err != nil {
		return err
	}

	passwordHash, err := s.hasher.ComputeHash(cfg.BootstrapAdminPass)
	if err != nil {
		return err
	}
	if err := s.repos.Users.SetPasswordHash(admin.TenantID, admin.ID, passwordHash); err != nil {
		return err
	}
	s.logger.Info().Str("login", admin.Login).Str("tenant", admin.TenantID).Msg("created bootstrap admin user")
	return nil
}
