package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/repo"
	"github.com/ndmitriev/estore/internal/util"
)

type SearchHandler struct {
	Repo  *repo.GormRepo
	Index ProductIndex
}

// Handler serves free-text catalog search. Hits come back as ranked
// ids from the index and are rehydrated from the product table, so a
// stale index entry can at worst omit a product, never invent one.
func (h *SearchHandler) Handler(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	ctx := c.Request().Context()
	ids := h.Index.Search(ctx, q, from, size)

	products, err := h.Repo.ProductsByIDs(ctx, ids)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"total": len(products), "products": products})
}
