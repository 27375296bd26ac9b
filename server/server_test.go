package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/clients"
	"github.com/nident/identity-server/clients/fakerepo"
	"github.com/nident/identity-server/hashing"
	"github.com/nident/identity-server/internal/config"
	"github.com/nident/identity-server/internal/resettoken"
	"github.com/nident/identity-server/tenants"
	"github.com/nident/identity-server/tenants/repofakes"
	"github.com/nident/identity-server/token"
	fakeuserrepo "github.com/nident/identity-server/users/repofake"
	"github.com/nident/identity-server/users"
)

const (
	testTenantID     = "tenant-1"
	testClientID     = "client-1"
	testClientSecret = "shhh-client"
	testUserID       = "user-1"
	testLogin        = "jdoe"
	testEmail        = "jdoe@example.com"
	testPassword     = "correct-horse"
)

var testHashParams = hashing.Params{Time: 1, Memory: 8 * 1024, Parallelism: 1, KeyLength: 32}

type testServer struct {
	*Server
	repos  auth.Repos
	config *config.Config
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{AllowedOrigin: "*", ResetTokenLifetime: time.Hour}
	}

	keyPair, err := token.GenerateKeyPair("test-key", 2048)
	require.NoError(t, err)
	codec, err := token.NewCodec(keyPair)
	require.NoError(t, err)

	hasher := hashing.New(testHashParams, 4)
	repos := auth.Repos{
		Tenants: repofakes.NewFakeTenantRepo(),
		Clients: fakerepo.NewFakeClientRepo(),
		Users:   fakeuserrepo.NewFakeUserRepo(),
	}
	grants, err := auth.NewGrantService(repos, hasher, codec, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	srv, err := New(cfg, repos, grants, hasher, keyPair, resettoken.NewStore(cfg.ResetTokenLifetime), zerolog.Nop())
	require.NoError(t, err)

	return &testServer{Server: srv, repos: repos, config: cfg}
}

// seedIdentity installs a tenant, an active confidential client, and a user
// with a known password.
func (ts *testServer) seedIdentity(t *testing.T) {
	t.Helper()

	_, err := ts.repos.Tenants.Save(&tenants.Tenant{ID: testTenantID, Name: "Acme"})
	require.NoError(t, err)

	secretHash, err := ts.hasher.ComputeHash(testClientSecret)
	require.NoError(t, err)
	_, err = ts.repos.Clients.Save(&clients.Client{
		ID:              testClientID,
		TenantID:        testTenantID,
		Name:            "Acme Web",
		ApplicationType: clients.ApplicationTypeConfidential,
		SecretHash:      secretHash,
		Active:          true,
	})
	require.NoError(t, err)

	_, err = ts.repos.Users.Save(&users.User{
		ID:       testUserID,
		TenantID: testTenantID,
		Login:    testLogin,
		Name:     "Jane Doe",
		Email:    testEmail,
	})
	require.NoError(t, err)
	passwordHash, err := ts.hasher.ComputeHash(testPassword)
	require.NoError(t, err)
	require.NoError(t, ts.repos.Users.SetPasswordHash(testTenantID, testUserID, passwordHash))
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func passwordGrantForm() url.Values {
	return url.Values{
		"grant_type":    {auth.GrantTypePassword},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {testLogin},
		"password":      {testPassword},
	}
}

// grantTokens runs a password grant and returns the issued token pair.
func (ts *testServer) grantTokens(t *testing.T) auth.TokenResponse {
	t.Helper()
	rec := ts.do(tokenRequest(passwordGrantForm()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func jsonRequest(t *testing.T, method, path string, body any, bearer string) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var response errorResponse
	decodeBody(t, rec, &response)
	return response.Error
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJWKSHandler(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var jwks token.JWKS
	decodeBody(t, rec, &jwks)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "test-key", jwks.Keys[0].Kid)
}
