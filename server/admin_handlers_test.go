package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nident/identity-server/tenants"
	"github.com/nident/identity-server/users"
)

func adminToken(t *testing.T, ts *testServer) string {
	t.Helper()
	return ts.grantTokens(t).AccessToken
}

func TestAdminRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)

	t.Run("missing header", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/tenants", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants", nil, "not.a.token"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token of deleted user", func(t *testing.T) {
		bearer := adminToken(t, ts)
		require.NoError(t, ts.repos.Users.Delete(testTenantID, testUserID))
		rec := ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants", nil, bearer))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTenantLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/acme-two", saveTenantRequest{Name: "Acme Two"}, bearer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/acme-two", saveTenantRequest{Name: "Acme 2"}, bearer))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants/acme-two", nil, bearer))
	require.Equal(t, http.StatusOK, rec.Code)
	var tenant tenants.Tenant
	decodeBody(t, rec, &tenant)
	require.Equal(t, "Acme 2", tenant.Name)

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants", nil, bearer))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []tenants.Tenant
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)

	rec = ts.do(jsonRequest(t, http.MethodDelete, "/admin/tenants/acme-two", nil, bearer))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants/acme-two", nil, bearer))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveTenantRejectsEmptyName(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/acme-two", saveTenantRequest{}, bearer))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	create := saveClientRequest{
		Name:            "Mobile App",
		ApplicationType: "Confidential",
		Secret:          "mobile-secret",
		Active:          true,
	}
	rec := ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/"+testTenantID+"/clients/mobile", create, bearer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The stored hash never leaves the server.
	var rendered map[string]any
	decodeBody(t, rec, &rendered)
	require.NotContains(t, rendered, "secretHash")
	require.NotContains(t, rendered, "secret")

	// An update without a secret keeps the stored hash.
	update := create
	update.Secret = ""
	update.Name = "Mobile App v2"
	rec = ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/"+testTenantID+"/clients/mobile", update, bearer))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := ts.repos.Clients.Get("mobile")
	require.NoError(t, err)
	require.Equal(t, "Mobile App v2", stored.Name)
	require.True(t, ts.hasher.VerifyHash(stored.SecretHash, "mobile-secret"))

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants/"+testTenantID+"/clients", nil, bearer))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodDelete, "/admin/tenants/"+testTenantID+"/clients/mobile", nil, bearer))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants/"+testTenantID+"/clients/mobile", nil, bearer))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveClientRejectsUnknownApplicationType(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/"+testTenantID+"/clients/bad", saveClientRequest{
		Name:            "Bad",
		ApplicationType: "Hybrid",
	}, bearer))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)
	base := "/admin/tenants/" + testTenantID + "/users/"

	rec := ts.do(jsonRequest(t, http.MethodPut, base+"user-2", saveUserRequest{
		Login: "asmith", Name: "Alex Smith", Email: "asmith@example.com",
	}, bearer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The password hash never appears in a rendition.
	rec = ts.do(jsonRequest(t, http.MethodGet, base+"user-2", nil, bearer))
	require.Equal(t, http.StatusOK, rec.Code)
	var rendered map[string]any
	decodeBody(t, rec, &rendered)
	require.NotContains(t, rendered, "passwordHash")

	rec = ts.do(jsonRequest(t, http.MethodDelete, base+"user-2", nil, bearer))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodGet, base+"user-2", nil, bearer))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveUserDuplicateConflicts(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)
	base := "/admin/tenants/" + testTenantID + "/users/"

	t.Run("duplicate login", func(t *testing.T) {
		rec := ts.do(jsonRequest(t, http.MethodPut, base+"user-2", saveUserRequest{
			Login: testLogin, Email: "other@example.com",
		}, bearer))
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "duplicate_login", errorCode(t, rec))
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := ts.do(jsonRequest(t, http.MethodPut, base+"user-2", saveUserRequest{
			Login: "someone-else", Email: testEmail,
		}, bearer))
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "duplicate_email", errorCode(t, rec))
	})

	t.Run("same login in another tenant is fine", func(t *testing.T) {
		rec := ts.do(jsonRequest(t, http.MethodPut, "/admin/tenants/other-tenant/users/user-9", saveUserRequest{
			Login: testLogin, Email: testEmail,
		}, bearer))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func TestClaimLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)
	base := "/admin/tenants/" + testTenantID + "/users/" + testUserID + "/claims/"

	rec := ts.do(jsonRequest(t, http.MethodPut, base+"role", setClaimRequest{Value: "admin"}, bearer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(jsonRequest(t, http.MethodPut, base+"role", setClaimRequest{Value: "editor"}, bearer))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(jsonRequest(t, http.MethodGet, "/admin/tenants/"+testTenantID+"/users/"+testUserID+"/claims", nil, bearer))
	require.Equal(t, http.StatusOK, rec.Code)
	var claims []users.Claim
	decodeBody(t, rec, &claims)
	require.Equal(t, []users.Claim{{Key: "role", Value: "editor"}}, claims)

	rec = ts.do(jsonRequest(t, http.MethodDelete, base+"role", nil, bearer))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetClaimRejectsReservedPrefix(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut,
		"/admin/tenants/"+testTenantID+"/users/"+testUserID+"/claims/"+users.ReservedClaimPrefix+"role",
		setClaimRequest{Value: "admin"}, bearer))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_claim_key", errorCode(t, rec))
}

func TestSetClaimForUnknownUser(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut,
		"/admin/tenants/"+testTenantID+"/users/ghost/claims/role",
		setClaimRequest{Value: "admin"}, bearer))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPut,
		"/admin/tenants/"+testTenantID+"/users/"+testUserID+"/password",
		setPasswordRequest{Password: "new-password"}, bearer))
	require.Equal(t, http.StatusNoContent, rec.Code)

	form := passwordGrantForm()
	rec = ts.do(tokenRequest(form))
	require.Equal(t, http.StatusBadRequest, rec.Code, "old password must stop working")

	form.Set("password", "new-password")
	rec = ts.do(tokenRequest(form))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
