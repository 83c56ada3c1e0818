package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/blacklist"
	"github.com/photoshare/backend/internal/config"
	"github.com/photoshare/backend/internal/events"
	"github.com/photoshare/backend/internal/hash"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
	"github.com/photoshare/backend/internal/service/media"
	"github.com/photoshare/backend/internal/token"
)

type fakeMedia struct {
	uploads   int
	destroyed []string
}

func (f *fakeMedia) Upload(_ context.Context, file io.Reader, _ string) (*media.UploadResult, error) {
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	f.uploads++
	return &media.UploadResult{
		URL:      "https://res.example.com/image/upload/photoshare/test.jpg",
		PublicID: "photoshare/test",
	}, nil
}

func (f *fakeMedia) Destroy(_ context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func (f *fakeMedia) TransformURL(publicID, transformation string) (string, error) {
	return "https://res.example.com/image/upload/" + transformation + "/" + publicID, nil
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Codec  *token.Codec
	Tokens *blacklist.RedisStore
	MW     *authmw.Authenticator
	Media  *fakeMedia

	A        *AuthHandler
	Users    *UserHandler
	Admin    *AdminHandler
	Photos   *PhotoHandler
	Comments *CommentHandler
	Ratings  *RatingHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := &blacklist.RedisStore{Client: client}
	codec := &token.Codec{Secret: []byte("test_secret")}
	mediaStore := &fakeMedia{}
	var prod *events.Producer

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Codec:  codec,
		Tokens: tokens,
		MW:     &authmw.Authenticator{DB: db, Codec: codec, Tokens: tokens},
		Media:  mediaStore,

		A:        &AuthHandler{DB: db, Codec: codec, Tokens: tokens, Producer: prod},
		Users:    &UserHandler{DB: db},
		Admin:    &AdminHandler{DB: db},
		Photos:   &PhotoHandler{DB: db, Media: mediaStore, Producer: prod},
		Comments: &CommentHandler{DB: db},
		Ratings:  &RatingHandler{DB: db},
	}
	env.E.HTTPErrorHandler = HTTPErrorHandler
	return env
}

func (env *testEnv) doJSONRequest(method, path string, payload interface{}, bearer string) (*httptest.ResponseRecorder, echo.Context) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(env.T, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doMultipartRequest(path string, fields map[string]string, fileName string, fileBody []byte, bearer string) (*httptest.ResponseRecorder, echo.Context) {
	return env.doMultipartFileRequest(path, fields, fileName, "image/png", fileBody, bearer)
}

func (env *testEnv) doMultipartFileRequest(path string, fields map[string]string, fileName, contentType string, fileBody []byte, bearer string) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(env.T, err)
	_, err = part.Write(fileBody)
	require.NoError(env.T, err)
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(username, email, password, role string, active bool) models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		IsActive:     active,
	}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) accessToken(email string) string {
	raw, err := env.Codec.IssueAccess(email)
	require.NoError(env.T, err)
	return raw
}

// authed runs a handler behind the session authenticator, the way the
// router wires protected routes.
func (env *testEnv) authed(h echo.HandlerFunc) echo.HandlerFunc {
	return env.MW.RequireUser(h)
}

func (env *testEnv) createPhoto(userID uint, description string, tags ...string) models.Photo {
	photo := models.Photo{
		UserID:      userID,
		URL:         "https://res.example.com/image/upload/photoshare/seed.jpg",
		PublicID:    "photoshare/seed-" + description,
		Description: description,
	}
	for _, name := range tags {
		var tag models.Tag
		err := env.DB.Where("name = ?", name).First(&tag).Error
		if err != nil {
			tag = models.Tag{Name: name}
			require.NoError(env.T, env.DB.Create(&tag).Error)
		}
		photo.Tags = append(photo.Tags, tag)
	}
	require.NoError(env.T, env.DB.Create(&photo).Error)
	return photo
}

func requireHTTPError(t *testing.T, err error, code int, detail string) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	if detail != "" {
		require.Equal(t, detail, he.Message)
	}
}
