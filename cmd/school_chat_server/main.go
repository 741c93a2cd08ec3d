package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school_chat_server/internal/config"
	dao "school_chat_server/internal/dao/mysql"
	myredis "school_chat_server/internal/dao/redis"
	"school_chat_server/internal/https_server"
	"school_chat_server/internal/infrastructure/logger"
	"school_chat_server/internal/service"
	"school_chat_server/internal/service/presence"
	"school_chat_server/pkg/constants"
	"school_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos := dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	cache := myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化雪花算法节点
	snowflake.Init()

	// 6. 初始化在线状态登记表并启动心跳巡检
	window := time.Duration(conf.WebsocketConfig.HeartbeatWindowSec) * time.Second
	if window <= 0 {
		window = constants.HEARTBEAT_WINDOW
	}
	registry := presence.NewRegistry(window)
	registry.Start()
	zap.L().Info("在线状态登记表初始化成功")

	// 7. 初始化 Service 层 (依赖注入)
	service.InitServices(repos, cache, registry)
	zap.L().Info("Service 层初始化成功")

	// 8. 初始化 HTTP 服务器
	engine := https_server.Init(registry)
	zap.L().Info("HTTP 服务器初始化成功")

	// 9. 启动服务
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port
	go func() {
		if err := engine.Run(fmt.Sprintf("%s:%d", host, port)); err != nil {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 等待信号
	<-quit
	zap.L().Info("关闭服务器...")

	// 先关登记表（断开全部连接并停止巡检），再关缓存
	registry.Close()
	if err := cache.Close(); err != nil {
		zap.L().Error("close redis error", zap.Error(err))
	}

	zap.L().Info("服务器已关闭")
}
