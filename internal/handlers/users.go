package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
)

type UserHandler struct {
	DB *gorm.DB
}

type profileResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	PhotosCount int64     `json:"photos_count"`
}

// Me returns the authenticated user's full profile, email included.
func (h *UserHandler) Me(c echo.Context) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	count, err := h.photosCount(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, profileResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
		PhotosCount: count,
	})
}

// PublicProfile is readable without authentication and never exposes
// the email.
func (h *UserHandler) PublicProfile(c echo.Context) error {
	username := c.Param("username")

	var user models.User
	if err := h.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound,
				fmt.Sprintf("User with username '%s' not found", username))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	count, err := h.photosCount(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, profileResponse{
		ID:          user.ID,
		Username:    user.Username,
		CreatedAt:   user.CreatedAt,
		PhotosCount: count,
	})
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_update_me")

	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Username != nil && *req.Username != user.Username {
		var existing models.User
		if err := h.DB.Where("username = ?", *req.Username).First(&existing).Error; err == nil {
			l.Warn("update_failed", "status", 409, "reason", "username_exists")
			return echo.NewHTTPError(http.StatusConflict, "User with this username already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		user.Username = *req.Username
	}

	if req.Email != nil && *req.Email != user.Email {
		var existing models.User
		if err := h.DB.Where("email = ?", *req.Email).First(&existing).Error; err == nil {
			l.Warn("update_failed", "status", 409, "reason", "email_exists")
			return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		user.Email = *req.Email
	}

	if err := h.DB.Save(&user).Error; err != nil {
		l.Error("update_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	count, err := h.photosCount(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("update_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, profileResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
		PhotosCount: count,
	})
}

func (h *UserHandler) photosCount(userID uint) (int64, error) {
	var count int64
	err := h.DB.Model(&models.Photo{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
