package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPost,
		"/admin/tenants/"+testTenantID+"/users/"+testUserID+"/password-reset", nil, bearer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var issued issueResetResponse
	decodeBody(t, rec, &issued)
	require.NotEmpty(t, issued.ResetToken)
	require.Greater(t, issued.ExpiresIn, 0)

	rec = ts.do(jsonRequest(t, http.MethodPost, "/password-reset", redeemResetRequest{
		Token: issued.ResetToken, Password: "reset-password",
	}, ""))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	form := passwordGrantForm()
	form.Set("password", "reset-password")
	rec = ts.do(tokenRequest(form))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("token is single use", func(t *testing.T) {
		rec := ts.do(jsonRequest(t, http.MethodPost, "/password-reset", redeemResetRequest{
			Token: issued.ResetToken, Password: "another-password",
		}, ""))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_token", errorCode(t, rec))
	})
}

func TestPasswordResetUnknownToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(jsonRequest(t, http.MethodPost, "/password-reset", redeemResetRequest{
		Token: "does-not-exist", Password: "whatever",
	}, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_token", errorCode(t, rec))
}

func TestPasswordResetForUnknownUser(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedIdentity(t)
	bearer := adminToken(t, ts)

	rec := ts.do(jsonRequest(t, http.MethodPost,
		"/admin/tenants/"+testTenantID+"/users/ghost/password-reset", nil, bearer))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
