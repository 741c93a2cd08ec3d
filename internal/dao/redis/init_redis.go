// Package redis 提供 Redis 连接初始化
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"school_chat_server/internal/config"
	"school_chat_server/pkg/constants"
)

// Init 根据配置建立 Redis 连接并返回缓存服务实例
// 连接失败视为致命错误：缓存层虽然可降级，但启动期连不上通常是配置问题
func Init() *RedisCache {
	conf := config.GetConfig()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.RedisConfig.Host, conf.RedisConfig.Port),
		Password: conf.RedisConfig.Password,
		DB:       conf.RedisConfig.Db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("Redis 连接失败", zap.Error(err))
	}

	return NewRedisCache(client, constants.CACHE_WORKER_NUM, constants.CACHE_BUFFER_SIZE)
}
