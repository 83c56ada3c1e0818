package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/events"
	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
	"github.com/photoshare/backend/internal/service/media"
	"github.com/photoshare/backend/internal/service/qr"
	"github.com/photoshare/backend/internal/service/search"
	"github.com/photoshare/backend/internal/util"
)

const (
	maxTagsPerPhoto = 5
	uploadFolder    = "photoshare"
)

type PhotoHandler struct {
	DB       *gorm.DB
	Media    media.Store
	ES       *elasticsearch.Client
	Producer *events.Producer
}

type photoResponse struct {
	ID            uint      `json:"id"`
	UserID        uint      `json:"user_id"`
	URL           string    `json:"url"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	AverageRating *float64  `json:"average_rating"`
	RatingsCount  int       `json:"ratings_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type photoListResponse struct {
	Items []photoResponse `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Pages int64           `json:"pages"`
}

func toPhotoResponse(p *models.Photo) photoResponse {
	tags := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = t.Name
	}
	resp := photoResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		URL:          p.URL,
		Description:  p.Description,
		Tags:         tags,
		RatingsCount: len(p.Ratings),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if avg, ok := averageRating(p); ok {
		resp.AverageRating = &avg
	}
	return resp
}

func averageRating(p *models.Photo) (float64, bool) {
	if len(p.Ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Score
	}
	return float64(sum) / float64(len(p.Ratings)), true
}

func (h *PhotoHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "photos_upload")

	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if ct := fh.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	}

	src, err := fh.Open()
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "cannot open upload", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	defer src.Close()

	uploaded, err := h.Media.Upload(ctx, src, uploadFolder)
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "media_host_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to upload image")
	}

	photo := models.Photo{
		UserID:      user.ID,
		URL:         uploaded.URL,
		PublicID:    uploaded.PublicID,
		Description: c.FormValue("description"),
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		tags, err := getOrCreateTags(tx, parseTags(c.FormValue("tags")))
		if err != nil {
			return err
		}
		photo.Tags = tags
		return tx.Create(&photo).Error
	})
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexPhoto(c, &photo)
	h.publishPhotoEvent(c, "photo_uploaded", &photo)

	l.Info("upload_success", "status", 201, "photo_id", photo.ID, "user_id", user.ID)
	return c.JSON(http.StatusCreated, toPhotoResponse(&photo))
}

func (h *PhotoHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)
	if page < 1 {
		page = 1
	}

	var photos []models.Photo
	if err := h.DB.
		Preload("Tags").Preload("Ratings").
		Order("created_at DESC").
		Offset(from).Limit(size).
		Find(&photos).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var total int64
	if err := h.DB.Model(&models.Photo{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	items := make([]photoResponse, len(photos))
	for i := range photos {
		items[i] = toPhotoResponse(&photos[i])
	}
	return c.JSON(http.StatusOK, photoListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: (total + int64(size) - 1) / int64(size),
	})
}

// Search combines relational filters with an in-memory post-filter over
// the derived average-rating field. Rating bounds and rating sort
// cannot be pushed into SQL, so when they are requested the matching
// rows are loaded first and filtered, sorted and paged in memory.
func (h *PhotoHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	_, size = util.Calculate(page, size)
	if page < 1 {
		page = 1
	}

	sortBy := c.QueryParam("sort_by")
	if sortBy == "" {
		sortBy = "created_at"
	}
	if sortBy != "created_at" && sortBy != "rating" {
		return echo.NewHTTPError(http.StatusBadRequest, "sort_by must be created_at or rating")
	}
	sortOrder := c.QueryParam("sort_order")
	if sortOrder == "" {
		sortOrder = "desc"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return echo.NewHTTPError(http.StatusBadRequest, "sort_order must be asc or desc")
	}

	minRating, hasMin, err := ratingBound(c.QueryParam("min_rating"))
	if err != nil {
		return err
	}
	maxRating, hasMax, err := ratingBound(c.QueryParam("max_rating"))
	if err != nil {
		return err
	}

	query := h.DB.Model(&models.Photo{}).Preload("Tags").Preload("Ratings")

	if keyword := c.QueryParam("keyword"); keyword != "" {
		query = query.Where("photos.description LIKE ?", "%"+keyword+"%")
	}
	if tag := c.QueryParam("tag"); tag != "" {
		query = query.
			Joins("JOIN photo_tags ON photo_tags.photo_id = photos.id").
			Joins("JOIN tags ON tags.id = photo_tags.tag_id").
			Where("tags.name = ?", strings.ToLower(tag))
	}
	if rawID := c.QueryParam("user_id"); rawID != "" {
		id, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id must be numeric")
		}
		query = query.Where("photos.user_id = ?", uint(id))
	}
	if from := c.QueryParam("date_from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_from must be RFC3339")
		}
		query = query.Where("photos.created_at >= ?", t)
	}
	if to := c.QueryParam("date_to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_to must be RFC3339")
		}
		query = query.Where("photos.created_at <= ?", t)
	}

	var photos []models.Photo
	if err := query.Order("photos.created_at DESC").Find(&photos).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if hasMin || hasMax {
		filtered := photos[:0]
		for i := range photos {
			avg, ok := averageRating(&photos[i])
			if !ok {
				avg = 0
			}
			if hasMin && avg < minRating {
				continue
			}
			if hasMax && avg > maxRating {
				continue
			}
			filtered = append(filtered, photos[i])
		}
		photos = filtered
	}

	if sortBy == "rating" {
		sort.SliceStable(photos, func(i, j int) bool {
			ai, _ := averageRating(&photos[i])
			aj, _ := averageRating(&photos[j])
			if sortOrder == "desc" {
				return ai > aj
			}
			return ai < aj
		})
	} else if sortOrder == "asc" {
		sort.SliceStable(photos, func(i, j int) bool {
			return photos[i].CreatedAt.Before(photos[j].CreatedAt)
		})
	}

	total := int64(len(photos))
	start := (page - 1) * size
	if start > len(photos) {
		start = len(photos)
	}
	end := start + size
	if end > len(photos) {
		end = len(photos)
	}
	pageItems := photos[start:end]

	items := make([]photoResponse, len(pageItems))
	for i := range pageItems {
		items[i] = toPhotoResponse(&pageItems[i])
	}
	return c.JSON(http.StatusOK, photoListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: (total + int64(size) - 1) / int64(size),
	})
}

func (h *PhotoHandler) Get(c echo.Context) error {
	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPhotoResponse(photo))
}

func (h *PhotoHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "photos_update")

	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}
	if err := h.requireOwnerOrAdmin(c, photo); err != nil {
		return err
	}

	var req struct {
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Description != nil {
			photo.Description = *req.Description
			if err := tx.Model(photo).Update("description", *req.Description).Error; err != nil {
				return err
			}
		}
		if req.Tags != nil {
			tags, err := getOrCreateTags(tx, normalizeTags(req.Tags))
			if err != nil {
				return err
			}
			if err := tx.Model(photo).Association("Tags").Replace(tags); err != nil {
				return err
			}
			photo.Tags = tags
		}
		return nil
	})
	if err != nil {
		l.Error("update_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexPhoto(c, photo)

	l.Info("update_success", "photo_id", photo.ID)
	return c.JSON(http.StatusOK, toPhotoResponse(photo))
}

func (h *PhotoHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "photos_delete")

	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}
	if err := h.requireOwnerOrAdmin(c, photo); err != nil {
		return err
	}

	// Media-host deletion is best effort: the DB row is the record of
	// truth and an orphaned asset is preferable to a dangling row.
	if err := h.Media.Destroy(ctx, photo.PublicID); err != nil {
		l.Warn("media_destroy_failed", "photo_id", photo.ID, "error", err)
	}

	if err := h.DB.Select("Tags", "Comments", "Ratings", "Transformations").Delete(photo).Error; err != nil {
		l.Error("delete_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if h.ES != nil {
		if err := search.Delete(ctx, h.ES, photo.ID); err != nil {
			l.Warn("es_delete_failed", "photo_id", photo.ID, "error", err)
		}
	}
	h.publishPhotoEvent(c, "photo_deleted", photo)

	l.Info("delete_success", "photo_id", photo.ID)
	return c.NoContent(http.StatusNoContent)
}

type transformRequest struct {
	Transformation string `json:"transformation"`
	Size           int    `json:"size"`
	Radius         int    `json:"radius"`
	BlurStrength   int    `json:"blur_strength"`
}

func (h *PhotoHandler) Transform(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "photos_transform")

	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}

	var req transformRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if _, ok := media.AvailableTransformations[req.Transformation]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Invalid transformation. Available: %s", strings.Join(transformationNames(), ", ")))
	}

	transformation, params := buildTransformation(&req)

	transformedURL, err := h.Media.TransformURL(photo.PublicID, transformation)
	if err != nil {
		l.Error("transform_failed", "status", 500, "reason", "media_host_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to transform image")
	}

	qrDataURI, err := qr.GenerateDataURI(transformedURL)
	if err != nil {
		l.Error("transform_failed", "status", 500, "reason", "qr_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	paramsJSON, _ := json.Marshal(params)
	record := models.PhotoTransformation{
		PhotoID:  photo.ID,
		URL:      transformedURL,
		PublicID: fmt.Sprintf("%s_%s_%s", photo.PublicID, req.Transformation, uuid.NewString()[:8]),
		Params:   string(paramsJSON),
		QRCode:   qrDataURI,
	}
	if err := h.DB.Create(&record).Error; err != nil {
		l.Error("transform_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("transform_success", "photo_id", photo.ID, "kind", req.Transformation)
	return c.JSON(http.StatusCreated, record)
}

func (h *PhotoHandler) Transformations(c echo.Context) error {
	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}

	var records []models.PhotoTransformation
	if err := h.DB.
		Where("photo_id = ?", photo.ID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, records)
}

func (h *PhotoHandler) QRCode(c echo.Context) error {
	photo, err := h.photoByParam(c)
	if err != nil {
		return err
	}

	png, err := qr.Generate(photo.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *PhotoHandler) photoByParam(c echo.Context) (*models.Photo, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "photo id must be numeric")
	}

	var photo models.Photo
	if err := h.DB.Preload("Tags").Preload("Ratings").First(&photo, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Photo not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &photo, nil
}

func (h *PhotoHandler) requireOwnerOrAdmin(c echo.Context, photo *models.Photo) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgInvalidCredentials)
	}
	if photo.UserID != user.ID && user.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Not enough permissions")
	}
	return nil
}

func (h *PhotoHandler) indexPhoto(c echo.Context, photo *models.Photo) {
	if h.ES == nil {
		return
	}
	if err := search.Index(c.Request().Context(), h.ES, photo); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es_index_failed", "photo_id", photo.ID, "error", err)
	}
}

func (h *PhotoHandler) publishPhotoEvent(c echo.Context, kind string, photo *models.Photo) {
	event := map[string]interface{}{
		"type":     kind,
		"photo_id": photo.ID,
		"user_id":  photo.UserID,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, events.TopicPhotoEvents, fmt.Sprint(photo.ID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func buildTransformation(req *transformRequest) (string, map[string]interface{}) {
	switch req.Transformation {
	case "circle":
		size := req.Size
		if size == 0 {
			size = 200
		}
		return media.CircleCrop(size), map[string]interface{}{"type": "circle", "size": size}
	case "rounded":
		radius := req.Radius
		if radius == 0 {
			radius = 20
		}
		return media.RoundedCorners(radius), map[string]interface{}{"type": "rounded", "radius": radius}
	case "grayscale":
		return media.Grayscale(), map[string]interface{}{"type": "grayscale"}
	case "sepia":
		return media.Sepia(), map[string]interface{}{"type": "sepia"}
	default:
		strength := req.BlurStrength
		if strength == 0 {
			strength = 500
		}
		return media.Blur(strength), map[string]interface{}{"type": "blur", "strength": strength}
	}
}

func transformationNames() []string {
	names := make([]string, 0, len(media.AvailableTransformations))
	for name := range media.AvailableTransformations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return normalizeTags(strings.Split(raw, ","))
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, maxTagsPerPhoto)
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		tags = append(tags, t)
		if len(tags) == maxTagsPerPhoto {
			break
		}
	}
	return tags
}

func getOrCreateTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		err := tx.Where("name = ?", name).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func ratingBound(raw string) (float64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 1 || v > 5 {
		return 0, false, echo.NewHTTPError(http.StatusBadRequest, "rating bounds must be between 1 and 5")
	}
	return v, true, nil
}
