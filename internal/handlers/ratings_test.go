package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photoshare/backend/internal/models"
)

func (env *testEnv) doRateRequest(as models.User, photoID uint, score int) (int, *models.Rating, error) {
	rec, c := env.doJSONRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/ratings/%d", photoID),
		map[string]int{"score": score}, "")
	c.SetParamNames("photo_id")
	c.SetParamValues(fmt.Sprint(photoID))
	c.Set("user", as)

	if err := env.Ratings.Create(c); err != nil {
		return 0, nil, err
	}
	var rating models.Rating
	if err := json.Unmarshal(rec.Body.Bytes(), &rating); err != nil {
		return rec.Code, nil, err
	}
	return rec.Code, &rating, nil
}

func TestCreateRating(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", "owner@example.com", "password", models.RoleUser, true)
	rater := env.createUser("rater", "rater@example.com", "password", models.RoleUser, true)
	photo := env.createPhoto(owner.ID, "rated photo")

	code, rating, err := env.doRateRequest(rater, photo.ID, 5)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, 5, rating.Score)
	require.Equal(t, rater.ID, rating.UserID)
	require.Equal(t, photo.ID, rating.PhotoID)
}

func TestCreateRatingValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", "owner@example.com", "password", models.RoleUser, true)
	rater := env.createUser("rater", "rater@example.com", "password", models.RoleUser, true)
	photo := env.createPhoto(owner.ID, "rated photo")

	for _, score := range []int{0, 6, -1} {
		_, _, err := env.doRateRequest(rater, photo.ID, score)
		requireHTTPError(t, err, http.StatusBadRequest, "score must be between 1 and 5")
	}

	_, _, err := env.doRateRequest(rater, 999, 3)
	requireHTTPError(t, err, http.StatusNotFound, "Photo not found")
}

func TestCannotRateOwnPhoto(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", "owner@example.com", "password", models.RoleUser, true)
	photo := env.createPhoto(owner.ID, "my own photo")

	_, _, err := env.doRateRequest(owner, photo.ID, 5)
	requireHTTPError(t, err, http.StatusBadRequest, "You cannot rate your own photo")
}

func TestCannotRateTwice(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", "owner@example.com", "password", models.RoleUser, true)
	rater := env.createUser("rater", "rater@example.com", "password", models.RoleUser, true)
	photo := env.createPhoto(owner.ID, "rated photo")

	_, _, err := env.doRateRequest(rater, photo.ID, 4)
	require.NoError(t, err)

	_, _, err = env.doRateRequest(rater, photo.ID, 2)
	requireHTTPError(t, err, http.StatusConflict, "You have already rated this photo")

	// A second account still rates freely.
	other := env.createUser("other", "other@example.com", "password", models.RoleUser, true)
	_, _, err = env.doRateRequest(other, photo.ID, 2)
	require.NoError(t, err)
}

func TestDeleteRating(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", "owner@example.com", "password", models.RoleUser, true)
	rater := env.createUser("rater", "rater@example.com", "password", models.RoleUser, true)
	photo := env.createPhoto(owner.ID, "rated photo")

	_, rating, err := env.doRateRequest(rater, photo.ID, 3)
	require.NoError(t, err)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/ratings/1", nil, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(rating.ID))
	require.NoError(t, env.Ratings.Delete(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Rating{}).Count(&count).Error)
	require.Zero(t, count)

	_, c = env.doJSONRequest(http.MethodDelete, "/api/v1/ratings/999", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("999")
	requireHTTPError(t, env.Ratings.Delete(c), http.StatusNotFound, "Rating not found")
}
