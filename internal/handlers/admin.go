package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
)

type AdminHandler struct {
	DB *gorm.DB
}

type userStatusResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"role"`
}

func (h *AdminHandler) ActivateUser(c echo.Context) error {
	return h.setUserStatus(c, true)
}

func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	return h.setUserStatus(c, false)
}

// setUserStatus toggles the active flag of the user named by the path
// identifier (numeric id or username). Admins cannot toggle themselves.
func (h *AdminHandler) setUserStatus(c echo.Context, active bool) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_user_status")

	admin, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	identifier := c.Param("identifier")
	user, err := h.userByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("status_change_failed", "status", 404, "identifier", identifier)
			return echo.NewHTTPError(http.StatusNotFound, notFoundDetail(identifier))
		}
		l.Error("status_change_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if user.ID == admin.ID {
		l.Warn("status_change_failed", "status", 400, "reason", "self_modification")
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot change your own account status")
	}

	if err := h.DB.Model(user).Update("is_active", active).Error; err != nil {
		l.Error("status_change_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	user.IsActive = active

	l.Info("status_change_success", "user_id", user.ID, "is_active", active)
	return c.JSON(http.StatusOK, userStatusResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsActive: user.IsActive,
		Role:     user.Role,
	})
}

func (h *AdminHandler) userByIdentifier(identifier string) (*models.User, error) {
	var user models.User
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		if err := h.DB.First(&user, uint(id)).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err := h.DB.Where("username = ?", identifier).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func notFoundDetail(identifier string) string {
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		return fmt.Sprintf("User with ID %d not found", id)
	}
	return fmt.Sprintf("User with username '%s' not found", identifier)
}
