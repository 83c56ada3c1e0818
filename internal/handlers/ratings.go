package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
)

type RatingHandler struct {
	DB *gorm.DB
}

func (h *RatingHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ratings_create")

	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "photo id must be numeric")
	}

	var req struct {
		Score int `json:"score"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Score < 1 || req.Score > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "score must be between 1 and 5")
	}

	var photo models.Photo
	if err := h.DB.First(&photo, uint(photoID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Photo not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if photo.UserID == user.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot rate your own photo")
	}

	var existing models.Rating
	err = h.DB.Where("photo_id = ? AND user_id = ?", photo.ID, user.ID).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "You have already rated this photo")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	rating := models.Rating{
		Score:   req.Score,
		UserID:  user.ID,
		PhotoID: photo.ID,
	}
	if err := h.DB.Create(&rating).Error; err != nil {
		l.Error("create_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("create_success", "rating_id", rating.ID, "photo_id", photo.ID, "score", rating.Score)
	return c.JSON(http.StatusCreated, rating)
}

func (h *RatingHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ratings_delete")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rating id must be numeric")
	}

	var rating models.Rating
	if err := h.DB.First(&rating, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Rating not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.DB.Delete(&rating).Error; err != nil {
		l.Error("delete_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("delete_success", "rating_id", rating.ID)
	return c.NoContent(http.StatusNoContent)
}
