// Package https_server 提供 HTTP 服务器的初始化和配置
// 业务 API 路由由外部网关承载，这里只挂载实时通道入口
package https_server

import (
	"school_chat_server/internal/gateway/websocket"
	"school_chat_server/internal/infrastructure/logger"
	"school_chat_server/internal/service/presence"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// 配置顺序：
//  1. 创建空白 Gin 引擎（不含默认中间件）
//  2. 注册 zap 日志和 panic 恢复中间件
//  3. 配置 CORS 跨域规则
//  4. 挂载实时通道升级入口
//
// registry: 在线状态登记表，实时通道连接注册到这里
func Init(registry *presence.Registry) *gin.Engine {
	// 不使用 gin.Default() 以便完全控制中间件
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	// 配置 CORS 跨域规则
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 实时通道入口，client_id 由外部认证协作方解析
	engine.GET("/wss", websocket.NewWsHandler(registry))

	return engine
}
