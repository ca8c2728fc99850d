package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/service/order"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ActivitySink receives best-effort user activity records.
type ActivitySink interface {
	PublishActivity(ctx context.Context, eventType string, userID *uint, payload map[string]any)
}

// ProductIndex mirrors catalog mutations into the search backend.
type ProductIndex interface {
	Upsert(ctx context.Context, product *models.Product)
	Remove(ctx context.Context, productID uint)
	Search(ctx context.Context, query string, from, size int) []uint
}

// CartStore is the session cart collaborator consumed by checkout.
type CartStore interface {
	Get(ctx context.Context, userID uint) (map[uint]uint, error)
	Add(ctx context.Context, userID, productID, quantity uint) error
	Remove(ctx context.Context, userID, productID uint) error
	Clear(ctx context.Context, userID uint) error
}

func errorResponse(c echo.Context, code int, err error) error {
	return c.JSON(code, Response{
		Status:  "error",
		Message: err.Error(),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func serviceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, order.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
