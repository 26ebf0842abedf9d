package handlers

import (
	"net/http"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/api/middleware"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/websocket"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/logger"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler 매치 알림 수신용 WebSocket 연결
type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleWebSocket 인증된 사용자의 연결을 업그레이드
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, userID); err != nil {
		logger.Warn("WebSocket upgrade failed", "userId", userID, "error", err)
	}
}
