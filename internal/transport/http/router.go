package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/handlers"
	"github.com/ndmitriev/estore/internal/jwtmiddleware"
)

type Deps struct {
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	TrackHandler   *handlers.TrackHandler
	JWTSecret      []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	adminOnly := jwtmiddleware.RequireAdmin(d.JWTSecret)

	products := e.Group("/api/product")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct, adminOnly)
	products.PATCH("/:id", d.ProductHandler.PatchProduct, adminOnly)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, adminOnly)

	e.GET("/api/search", d.SearchHandler.Handler)

	cart := e.Group("/api/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("/:id", d.CartHandler.RemoveFromCart)
	cart.DELETE("", d.CartHandler.ClearCart)

	orders := e.Group("/api/order")
	orders.POST("/checkout", d.OrderHandler.Checkout)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.GET("/:id/track", d.TrackHandler.Track)

	admin := e.Group("/api/admin", adminOnly)
	admin.GET("/orders", d.OrderHandler.ListOrders)
	admin.POST("/orders/:id/status", d.OrderHandler.UpdateStatus)
}
