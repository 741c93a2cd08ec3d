package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"school_chat_server/internal/config"
	"school_chat_server/internal/service/presence"
	"school_chat_server/pkg/constants"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 检查连接的Origin头
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWsHandler 创建实时通道升级入口
// GET /wss?client_id=xxx
// client_id 是外部认证协作方已解析好的用户 ID，网关不做身份校验
func NewWsHandler(registry *presence.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId := c.Query("client_id")
		if clientId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "client_id 不能为空"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			zap.L().Error("ws upgrade error", zap.String("clientId", clientId), zap.Error(err))
			return
		}

		cfg := config.GetConfig().WebsocketConfig
		window := time.Duration(cfg.HeartbeatWindowSec) * time.Second
		if window <= 0 {
			window = constants.HEARTBEAT_WINDOW
		}
		bufferSize := cfg.SendBufferSize
		if bufferSize <= 0 {
			bufferSize = constants.SEND_BUFFER_SIZE
		}

		conn := newConn(ws, clientId, registry, window, bufferSize)
		registry.Connect(clientId, conn)
		go conn.readPump()
		go conn.writePump()
		zap.L().Info("ws连接成功", zap.String("clientId", clientId))
	}
}
