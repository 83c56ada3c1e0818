package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/photoshare/backend/internal/models"
)

const PhotoIndex = "photos"

// PhotoDoc is the Elasticsearch projection of a photo.
type PhotoDoc struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

func DocFromPhoto(p *models.Photo) PhotoDoc {
	tags := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = t.Name
	}
	return PhotoDoc{
		ID:          p.ID,
		UserID:      p.UserID,
		URL:         p.URL,
		Description: p.Description,
		Tags:        tags,
		CreatedAt:   p.CreatedAt,
	}
}

// Index writes or overwrites the document for a photo.
func Index(ctx context.Context, es *elasticsearch.Client, photo *models.Photo) error {
	doc := DocFromPhoto(photo)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index photo: %w", err)
	}

	res, err := es.Index(
		PhotoIndex,
		&buf,
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(photo.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index photo: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index photo: %s", res.Status())
	}
	return nil
}

func Delete(ctx context.Context, es *elasticsearch.Client, photoID uint) error {
	res, err := es.Delete(
		PhotoIndex,
		strconv.FormatUint(uint64(photoID), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete photo doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete photo doc: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi-match over descriptions and tags.
func Search(ctx context.Context, es *elasticsearch.Client, query string, from, size int) (int64, []PhotoDoc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"description^2", "tags"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(PhotoIndex),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source PhotoDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	docs := make([]PhotoDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
