package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/jwtmiddleware"
	"github.com/ndmitriev/estore/internal/logging"
	"github.com/ndmitriev/estore/internal/repo"
	"github.com/ndmitriev/estore/internal/service/order"
	"github.com/ndmitriev/estore/internal/util"
)

type OrderHandler struct {
	Svc       *order.Service
	Cart      CartStore
	JWTSecret []byte
}

// Checkout turns the caller's cart into an order. The cart is cleared
// only after the order has committed; a failed checkout leaves it
// intact for retry.
func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	userID, err := jwtmiddleware.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	cart, err := h.Cart.Get(ctx, userID)
	if err != nil {
		l.Error("checkout_error", "reason", "cart unavailable", "error", err)
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	lines := make([]repo.CheckoutLine, 0, len(cart))
	for pid, qty := range cart {
		lines = append(lines, repo.CheckoutLine{ProductID: pid, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	ord, err := h.Svc.Checkout(ctx, userID, lines)
	if err != nil {
		l.Warn("checkout_error", "user_id", userID, "error", err)
		return serviceError(err)
	}

	if err := h.Cart.Clear(ctx, userID); err != nil {
		l.Warn("cart_clear_failed", "user_id", userID, "order_id", ord.ID, "error", err)
	}

	l.Info("checkout_success", "user_id", userID, "order_id", ord.ID, "total", ord.TotalAmount)
	return c.JSON(http.StatusCreated, ord)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, role, err := jwtmiddleware.Claims(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ord, err := h.Svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	if ord.UserID != userID && role != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	return c.JSON(http.StatusOK, ord)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Svc.ListOrders(c.Request().Context(), offset, limit)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// UpdateStatus is the administrative transition. The status value is
// an open string on purpose: no transition table is enforced here.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	ord, err := h.Svc.SetStatus(ctx, id, status)
	if err != nil {
		l.Warn("update_status_error", "order_id", id, "error", err)
		return serviceError(err)
	}

	l.Info("update_status_success", "order_id", ord.ID, "status", ord.Status)
	return c.JSON(http.StatusOK, ord)
}
