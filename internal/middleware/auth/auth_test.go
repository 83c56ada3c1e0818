package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/blacklist"
	"github.com/photoshare/backend/internal/models"
	"github.com/photoshare/backend/internal/token"
)

var testSecret = []byte("test_secret")

func newAuthenticator(t *testing.T) (*Authenticator, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := &Authenticator{
		DB:     db,
		Codec:  &token.Codec{Secret: testSecret},
		Tokens: &blacklist.RedisStore{Client: client},
	}
	return a, db
}

func doRequest(bearer string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireAuthError(t *testing.T, err error, code int, detail string) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	require.Equal(t, detail, he.Message)
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireUserAcceptsValidToken(t *testing.T) {
	a, db := newAuthenticator(t)
	require.NoError(t, db.Create(&models.User{
		Username: "test_user", Email: "user@example.com", PasswordHash: "x",
		Role: models.RoleUser, IsActive: true,
	}).Error)

	raw, err := a.Codec.IssueAccess("user@example.com")
	require.NoError(t, err)

	c, rec := doRequest(raw)
	require.NoError(t, a.RequireUser(func(c echo.Context) error {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		require.Equal(t, "user@example.com", user.Email)
		require.Equal(t, raw, CurrentToken(c))
		return c.NoContent(http.StatusOK)
	})(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUserRejectsMissingOrMalformedHeader(t *testing.T) {
	a, _ := newAuthenticator(t)

	for _, bearer := range []string{"", "invalid.token.value"} {
		c, rec := doRequest(bearer)
		err := a.RequireUser(okHandler)(c)
		requireAuthError(t, err, http.StatusUnauthorized, MsgInvalidCredentials)
		require.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	}
}

func TestRequireUserRejectsExpiredToken(t *testing.T) {
	a, db := newAuthenticator(t)
	require.NoError(t, db.Create(&models.User{
		Username: "test_user", Email: "user@example.com", PasswordHash: "x",
		Role: models.RoleUser, IsActive: true,
	}).Error)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	c, _ := doRequest(expired)
	// Expired reads exactly like invalid, nothing leaks about which it was.
	requireAuthError(t, a.RequireUser(okHandler)(c), http.StatusUnauthorized, MsgInvalidCredentials)
}

func TestRequireUserRejectsRevokedToken(t *testing.T) {
	a, db := newAuthenticator(t)
	require.NoError(t, db.Create(&models.User{
		Username: "test_user", Email: "user@example.com", PasswordHash: "x",
		Role: models.RoleUser, IsActive: true,
	}).Error)

	raw, err := a.Codec.IssueAccess("user@example.com")
	require.NoError(t, err)
	require.NoError(t, a.Tokens.Revoke(context.Background(), raw, time.Minute))

	c, _ := doRequest(raw)
	requireAuthError(t, a.RequireUser(okHandler)(c), http.StatusUnauthorized, MsgTokenRevoked)
}

func TestRequireUserRejectsUnknownSubject(t *testing.T) {
	a, _ := newAuthenticator(t)

	raw, err := a.Codec.IssueAccess("ghost@example.com")
	require.NoError(t, err)

	c, _ := doRequest(raw)
	requireAuthError(t, a.RequireUser(okHandler)(c), http.StatusUnauthorized, MsgInvalidCredentials)
}

// A ban does not cut off already-issued access tokens; it is enforced
// at login and refresh.
func TestRequireUserAdmitsDeactivatedAccount(t *testing.T) {
	a, db := newAuthenticator(t)
	require.NoError(t, db.Create(&models.User{
		Username: "banned", Email: "banned@example.com", PasswordHash: "x",
		Role: models.RoleUser, IsActive: false,
	}).Error)

	raw, err := a.Codec.IssueAccess("banned@example.com")
	require.NoError(t, err)

	c, rec := doRequest(raw)
	require.NoError(t, a.RequireUser(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	a, _ := newAuthenticator(t)

	cases := []struct {
		role    string
		allowed []string
		wantOK  bool
	}{
		{models.RoleUser, []string{models.RoleAdmin}, false},
		{models.RoleUser, []string{models.RoleModerator, models.RoleAdmin}, false},
		{models.RoleModerator, []string{models.RoleModerator, models.RoleAdmin}, true},
		{models.RoleAdmin, []string{models.RoleModerator, models.RoleAdmin}, true},
		{models.RoleAdmin, []string{models.RoleAdmin}, true},
	}

	for _, tc := range cases {
		c, rec := doRequest("")
		c.Set("user", models.User{ID: 1, Role: tc.role})

		err := a.RequireRoles(tc.allowed...)(okHandler)(c)
		if tc.wantOK {
			require.NoError(t, err, "role %s against %v", tc.role, tc.allowed)
			require.Equal(t, http.StatusOK, rec.Code)
		} else {
			requireAuthError(t, err, http.StatusForbidden, MsgPermissionDenied)
		}
	}
}

func TestRequireRolesWithoutAuthenticatedUser(t *testing.T) {
	a, _ := newAuthenticator(t)

	c, _ := doRequest("")
	err := a.RequireRoles(models.RoleAdmin)(okHandler)(c)
	requireAuthError(t, err, http.StatusUnauthorized, MsgInvalidCredentials)
}
