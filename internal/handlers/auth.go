package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/blacklist"
	"github.com/photoshare/backend/internal/events"
	"github.com/photoshare/backend/internal/hash"
	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
	"github.com/photoshare/backend/internal/token"
)

// Advisory lock key for the first-admin check. Two concurrent signups
// must not both observe an empty users table.
const firstAdminLockID = 54911

type AuthHandler struct {
	DB       *gorm.DB
	Codec    *token.Codec
	Tokens   blacklist.Store
	Producer *events.Producer
}

func (h *AuthHandler) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		l.Warn("signup_failed", "status", 409, "reason", "email_exists")
		return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		l.Warn("signup_failed", "status", 409, "reason", "username_exists")
		return echo.NewHTTPError(http.StatusConflict, "User with this username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		IsActive:     true,
	}

	// The first account ever created becomes admin. The count and the
	// insert run in one transaction; on Postgres an advisory lock keeps
	// concurrent signups from both seeing count == 0.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", firstAdminLockID).Error; err != nil {
				return err
			}
		}
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		} else {
			user.Role = models.RoleUser
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publishUserEvent(c, "user_registered", &user)

	l.Info("signup_success", "status", 201, "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	if err != nil || !hash.CheckPassword(user.PasswordHash, req.Password) {
		// Unknown account and wrong password are indistinguishable on purpose.
		l.Warn("login_failed", "status", 401, "reason", "bad_credentials")
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}

	if !user.IsActive {
		l.Warn("login_failed", "status", 403, "reason", "deactivated", "user_id", user.ID)
		return echo.NewHTTPError(http.StatusForbidden, "User account is deactivated")
	}

	access, refresh, err := h.issuePair(user.Email)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	h.publishUserEvent(c, "user_logged_in", &user)

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	claims, err := h.Codec.Decode(req.RefreshToken)
	if err != nil || claims.Expired(time.Now()) {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid_token")
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	var user models.User
	if err := h.DB.Where("email = ?", claims.Email).First(&user).Error; err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "unknown_subject")
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	if !user.IsActive {
		l.Warn("refresh_failed", "status", 403, "reason", "deactivated", "user_id", user.ID)
		return echo.NewHTTPError(http.StatusForbidden, "User account is deactivated")
	}

	// Rotation: a fresh pair every time. The old refresh token is
	// stateless and runs out on its own.
	access, refresh, err := h.issuePair(user.Email)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	l.Info("refresh_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// Logout runs behind the authenticator, so the presented token is known
// to be valid. It is denylisted for its remaining lifetime; a token
// without exp or already past it stores nothing.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	raw := authmw.CurrentToken(c)
	claims, err := h.Codec.Decode(raw)
	if err != nil {
		l.Warn("logout_failed", "status", 401, "reason", "invalid_token")
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	ttl := time.Until(time.Unix(claims.Exp, 0))
	if err := h.Tokens.Revoke(ctx, raw, ttl); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "blacklist_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("logout_success")
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) issuePair(email string) (access, refresh string, err error) {
	access, err = h.Codec.IssueAccess(email)
	if err != nil {
		return "", "", err
	}
	refresh, err = h.Codec.IssueRefresh(email)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (h *AuthHandler) publishUserEvent(c echo.Context, kind string, user *models.User) {
	event := map[string]interface{}{
		"type":     kind,
		"user_id":  user.ID,
		"username": user.Username,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, fmt.Sprint(user.ID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}
