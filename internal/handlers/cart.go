package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/jwtmiddleware"
)

type CartHandler struct {
	Cart      CartStore
	JWTSecret []byte
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := jwtmiddleware.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	cart, err := h.Cart.Get(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	items := make([]map[string]any, 0, len(cart))
	for pid, qty := range cart {
		items = append(items, map[string]any{"product_id": pid, "quantity": qty})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := jwtmiddleware.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	if err := h.Cart.Add(c.Request().Context(), userID, req.ProductID, req.Quantity); err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID, err := jwtmiddleware.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	productID, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.Cart.Remove(c.Request().Context(), userID, productID); err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := jwtmiddleware.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	if err := h.Cart.Clear(c.Request().Context(), userID); err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}
