package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/photoshare/backend/internal/logging"
	"github.com/photoshare/backend/internal/service/search"
	"github.com/photoshare/backend/internal/util"
)

// SearchHandler serves full-text search over photo descriptions and
// tags from Elasticsearch. Rating-bounded search stays on the photos
// endpoint, which owns the relational filters.
type SearchHandler struct {
	ES *elasticsearch.Client
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not available")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	ctx := c.Request().Context()
	total, docs, err := search.Search(ctx, h.ES, q, from, size)
	if err != nil {
		logging.FromContext(ctx).Error("search_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "photos": docs})
}
