package server

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/internal/config"
)

func bootstrapConfig() *config.Config {
	return &config.Config{
		AllowedOrigin:         "*",
		ResetTokenLifetime:    time.Hour,
		BootstrapTenantID:     "system",
		BootstrapClientID:     "admin-client",
		BootstrapClientSecret: "bootstrap-secret",
		BootstrapAdminLogin:   "admin",
		BootstrapAdminPass:    "bootstrap-password",
	}
}

func TestBootstrapCreatesAdminIdentities(t *testing.T) {
	ts := newTestServer(t, bootstrapConfig())

	form := url.Values{
		"grant_type":    {auth.GrantTypePassword},
		"client_id":     {"admin-client"},
		"client_secret": {"bootstrap-secret"},
		"username":      {"admin"},
		"password":      {"bootstrap-password"},
	}
	rec := ts.do(tokenRequest(form))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var issued auth.TokenResponse
	decodeBody(t, rec, &issued)
	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants", nil, issued.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ts := newTestServer(t, bootstrapConfig())

	admin, err := ts.repos.Users.GetByLogin("system", "admin")
	require.NoError(t, err)

	// A second start over the same stores must not recreate anything.
	require.NoError(t, ts.initialiseSystem())

	again, err := ts.repos.Users.GetByLogin("system", "admin")
	require.NoError(t, err)
	require.Equal(t, admin.ID, again.ID)
}

func TestBootstrapSkippedWithoutCredentials(t *testing.T) {
	cfg := bootstrapConfig()
	cfg.BootstrapClientSecret = ""
	cfg.BootstrapAdminPass = ""
	ts := newTestServer(t, cfg)

	_, err := ts.repos.Tenants.Get("system")
	require.NoError(t, err, "tenant is still ensured")

	list, err := ts.repos.Clients.List("system")
	require.NoError(t, err)
	require.Empty(t, list)
}
