package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core/user"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	env.createUser(t, "bursar", user.RoleAdminBursar)
	testutil.CreateUser(t, env.svcs.UserRepo, "Gone", "gone", "gone@test.rw", "Pa$$w0rd!", []string{user.RoleAdminOwner}, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", "x"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("bursar", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("gone", "Pa$$w0rd!"),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by email", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/login", "", login("BURSAR@test.rw", "Pa$$w0rd!"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		claims := new(Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(env.svcs.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "bursar", claims.Username)
		assert.True(t, claims.IsAdmin)
		assert.Equal(t, []string{user.RoleAdminBursar}, claims.Roles)
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)
	owner := env.createUser(t, "owner", user.RoleAdminOwner)

	runHTTPTests(t, env, []httpTest{
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/users/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
	})

	rec := env.do(http.MethodGet, "/v1/users/me", env.token(t, owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got user.User
	unmarshal(t, rec, &got)
	assert.Equal(t, owner.ID, got.ID)
	assert.Equal(t, owner.Username, got.Username)
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	owner := env.createUser(t, "owner", user.RoleAdminOwner)

	rec := env.do(http.MethodPost, "/v1/users/token-refresh", env.token(t, owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	// a session older than the refresh window must log in again
	claims := env.srv.auth.claimsFor(owner, time.Now().Add(-env.svcs.Conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix())
	stale, err := env.srv.auth.GenerateToken(claims)
	require.NoError(t, err)
	rec = env.do(http.MethodPost, "/v1/users/token-refresh", stale)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"})}, rec)
}

func TestOrdering_Bind(t *testing.T) {
	env := setup(t)
	req, rec := newAuthRequest(http.MethodGet, "/?ordering=number,-created_at,,-", "")
	ctx := env.srv.app.NewContext(req, rec)

	var ord Ordering
	ord.Bind(ctx)
	require.Len(t, ord.Orderings, 2)
	assert.Equal(t, "number", ord.Orderings[0].Field)
	assert.True(t, ord.Orderings[0].Ascending)
	assert.Equal(t, "created_at", ord.Orderings[1].Field)
	assert.False(t, ord.Orderings[1].Ascending)
}
