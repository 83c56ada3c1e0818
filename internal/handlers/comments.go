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

type CommentHandler struct {
	DB *gorm.DB
}

func (h *CommentHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comments_create")

	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "photo id must be numeric")
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	var photo models.Photo
	if err := h.DB.First(&photo, uint(photoID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Photo not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	comment := models.Comment{
		Text:    req.Text,
		UserID:  user.ID,
		PhotoID: photo.ID,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		l.Error("create_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("create_success", "comment_id", comment.ID, "photo_id", photo.ID)
	return c.JSON(http.StatusCreated, comment)
}

// Update is author-only: moderators edit nothing, they delete.
func (h *CommentHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comments_update")

	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	comment, err := h.commentByParam(c)
	if err != nil {
		return err
	}
	if comment.UserID != user.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only edit your own comments")
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	if err := h.DB.Model(comment).Update("text", req.Text).Error; err != nil {
		l.Error("update_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	comment.Text = req.Text

	l.Info("update_success", "comment_id", comment.ID)
	return c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comments_delete")

	comment, err := h.commentByParam(c)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(comment).Error; err != nil {
		l.Error("delete_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("delete_success", "comment_id", comment.ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *CommentHandler) commentByParam(c echo.Context) (*models.Comment, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "comment id must be numeric")
	}

	var comment models.Comment
	if err := h.DB.First(&comment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &comment, nil
}
