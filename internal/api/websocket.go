package api

import (
	"errors"
	"net/http"

	"github.com/annel0/geocoin/internal/location"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxLocationMessage = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Сервер обслуживает одну локальную сессию
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLocationSocket принимает поток измерений геолокации от браузера.
// Каждое сообщение: {"lat":..,"lng":..} или {"error":"permission_denied"}.
func (rs *RestServer) handleLocationSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rs.logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxLocationMessage)

	detach := rs.feed.Attach()
	defer detach()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rs.logger.Warn("Location socket closed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		fix, err := location.DecodeMessage(data)
		switch {
		case err == nil:
			rs.feed.Publish(fix)
		case errors.Is(err, location.ErrPermissionDenied), errors.Is(err, location.ErrSource):
			rs.feed.Fail(err)
		default:
			rs.logger.Debug("Ignoring location message: %v", err)
		}
	}
}
