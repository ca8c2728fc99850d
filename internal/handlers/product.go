package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ndmitriev/estore/internal/jwtmiddleware"
	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/repo"
	"github.com/ndmitriev/estore/internal/util"
)

type ProductHandler struct {
	Repo      *repo.GormRepo
	Sink      ActivitySink
	Index     ProductIndex
	JWTSecret []byte
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       uint            `json:"stock"`
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	product, err := h.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	userID := jwtmiddleware.OptionalID(c, h.JWTSecret)
	h.Sink.PublishActivity(ctx, "view_product", userID, map[string]any{
		"product_id": product.ID,
		"name":       product.Name,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Repo.ListProducts(c.Request().Context(), offset, limit)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.Name == "" || req.Price.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "name required, price must be >= 0")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
	}

	ctx := c.Request().Context()
	if err := h.Repo.CreateProduct(ctx, &product); err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	// Index write happens after the row is committed; the row stays
	// authoritative if it fails.
	h.Index.Upsert(ctx, &product)

	userID := jwtmiddleware.OptionalID(c, h.JWTSecret)
	h.Sink.PublishActivity(ctx, "product_created", userID, map[string]any{
		"product_id": product.ID,
		"name":       product.Name,
	})

	return c.JSON(http.StatusCreated, product)
}

// productPatch uses pointer fields so an absent key leaves the stored
// value alone instead of zeroing it.
type productPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *uint            `json:"stock"`
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req productPatch
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.Name != nil && *req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name must not be empty")
	}
	if req.Price != nil && req.Price.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}

	ctx := c.Request().Context()
	product, err := h.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if err := h.Repo.SaveProduct(ctx, product); err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.Index.Upsert(ctx, product)

	userID := jwtmiddleware.OptionalID(c, h.JWTSecret)
	h.Sink.PublishActivity(ctx, "product_updated", userID, map[string]any{
		"product_id": product.ID,
		"name":       product.Name,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.Index.Remove(ctx, id)

	userID := jwtmiddleware.OptionalID(c, h.JWTSecret)
	h.Sink.PublishActivity(ctx, "product_deleted", userID, map[string]any{
		"product_id": id,
	})

	return c.NoContent(http.StatusNoContent)
}
