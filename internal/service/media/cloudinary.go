package media

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Store abstracts the external media host so handlers can be tested
// without network access.
type Store interface {
	Upload(ctx context.Context, file io.Reader, folder string) (*UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
	TransformURL(publicID, transformation string) (string, error)
}

type UploadResult struct {
	URL      string
	PublicID string
}

// AvailableTransformations maps the named transformation kinds exposed
// by the API to their descriptions.
var AvailableTransformations = map[string]string{
	"circle":    "Circular crop",
	"rounded":   "Rounded corners",
	"grayscale": "Black and white",
	"sepia":     "Sepia tone",
	"blur":      "Blur effect",
}

func CircleCrop(size int) string {
	return fmt.Sprintf("c_fill,g_face,h_%d,w_%d/r_max", size, size)
}

func RoundedCorners(radius int) string {
	return fmt.Sprintf("r_%d", radius)
}

func Grayscale() string {
	return "e_grayscale"
}

func Sepia() string {
	return "e_sepia"
}

func Blur(strength int) string {
	return fmt.Sprintf("e_blur:%d", strength)
}

type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, file io.Reader, folder string) (*UploadResult, error) {
	resp, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

func (s *CloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: %s", resp.Result)
	}
	return nil
}

func (s *CloudinaryStore) TransformURL(publicID, transformation string) (string, error) {
	img, err := s.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("cloudinary image: %w", err)
	}
	img.Transformation = transformation
	url, err := img.String()
	if err != nil {
		return "", fmt.Errorf("cloudinary url: %w", err)
	}
	return url, nil
}
