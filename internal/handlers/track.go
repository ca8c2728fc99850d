package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ndmitriev/estore/internal/jwtmiddleware"
	"github.com/ndmitriev/estore/internal/logging"
	"github.com/ndmitriev/estore/internal/notify"
	"github.com/ndmitriev/estore/internal/service/order"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type TrackHandler struct {
	Svc       *order.Service
	Hub       *notify.Hub
	JWTSecret []byte
}

// Track upgrades the connection and streams order_update messages for
// one order until the client goes away. There is no replay: the
// initial "joined" frame carries the current status, later changes
// arrive through the hub.
func (h *TrackHandler) Track(c echo.Context) error {
	userID, role, err := jwtmiddleware.Claims(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	ord, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		return serviceError(err)
	}
	if ord.UserID != userID && role != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("handler", "order.track", "order_id", id)
	sub := h.Hub.Subscribe(id)
	defer h.Hub.Unsubscribe(id, sub)
	defer conn.Close()

	joined := wsMessage{Event: "joined", Data: notify.Update{OrderID: ord.ID, Status: ord.Status}}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(joined); err != nil {
		return nil
	}

	// Drain the client side so close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case u, ok := <-sub.C():
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(wsMessage{Event: "order_update", Data: u}); err != nil {
				l.Debug("subscriber dropped", "error", err)
				return nil
			}
		case <-done:
			return nil
		}
	}
}
