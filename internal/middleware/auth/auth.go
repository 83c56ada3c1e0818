package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/blacklist"
	"github.com/photoshare/backend/internal/logging"
	"github.com/photoshare/backend/internal/models"
	"github.com/photoshare/backend/internal/token"
)

const (
	userContextKey  = "user"
	tokenContextKey = "accessToken"

	MsgInvalidCredentials = "Could not validate credentials"
	MsgTokenRevoked       = "Token has been revoked"
	MsgPermissionDenied   = "You do not have permission to perform this action"
)

// Authenticator resolves a bearer token to an account. It rejects
// malformed, expired and revoked tokens, and tokens whose subject no
// longer resolves to a stored user. The active flag is deliberately not
// checked here: bans are enforced at login and refresh.
type Authenticator struct {
	DB     *gorm.DB
	Codec  *token.Codec
	Tokens blacklist.Store
}

func (a *Authenticator) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "require_user")

		raw, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, MsgInvalidCredentials)
		}

		claims, err := a.Codec.Decode(raw)
		if err != nil {
			l.Warn("auth_rejected", "status", 401, "reason", "invalid_token")
			return unauthorized(c, MsgInvalidCredentials)
		}
		if claims.Expired(time.Now()) {
			l.Warn("auth_rejected", "status", 401, "reason", "token_expired")
			return unauthorized(c, MsgInvalidCredentials)
		}

		revoked, err := a.Tokens.IsRevoked(ctx, raw)
		if err != nil {
			l.Error("auth_failed", "status", 500, "reason", "blacklist_error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		if revoked {
			l.Warn("auth_rejected", "status", 401, "reason", "token_revoked")
			return unauthorized(c, MsgTokenRevoked)
		}

		var user models.User
		if err := a.DB.Where("email = ?", claims.Email).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				l.Error("auth_failed", "status", 500, "reason", "db_error", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			l.Warn("auth_rejected", "status", 401, "reason", "unknown_subject")
			return unauthorized(c, MsgInvalidCredentials)
		}

		c.Set(userContextKey, user)
		c.Set(tokenContextKey, raw)
		return next(c)
	}
}

// RequireRoles gates a route to the given role set. It must run after
// RequireUser.
func (a *Authenticator) RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(userContextKey).(models.User)
			if !ok {
				return unauthorized(c, MsgInvalidCredentials)
			}
			for _, r := range roles {
				if user.Role == r {
					return next(c)
				}
			}
			l := logging.FromContext(c.Request().Context())
			l.Warn("authorization_denied", "status", 403, "user_id", user.ID, "role", user.Role)
			return echo.NewHTTPError(http.StatusForbidden, MsgPermissionDenied)
		}
	}
}

func CurrentUser(c echo.Context) (models.User, bool) {
	user, ok := c.Get(userContextKey).(models.User)
	return user, ok
}

func CurrentToken(c echo.Context) string {
	raw, _ := c.Get(tokenContextKey).(string)
	return raw
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
