// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"school_chat_server/internal/dao/mysql/repository"
	myredis "school_chat_server/internal/dao/redis"
	"school_chat_server/internal/service/direct"
	"school_chat_server/internal/service/group"
	"school_chat_server/internal/service/presence"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，上层通过 service.Svc 访问各个 Service
type Services struct {
	Direct DirectMessageService     // 单聊 Service
	Group  GroupConversationService // 群聊 Service
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 接收 Repository 聚合、缓存服务与事件总线
//  2. 创建各个 Service 实例，注入依赖
//  3. 返回 Services 聚合
//
// repos: Repository 层聚合实例
// cache: 异步缓存服务
// bus: 事件投递总线（在线状态登记表）
func NewServices(repos *repository.Repositories, cache myredis.AsyncCacheService, bus presence.EventBus) *Services {
	directSvc := direct.NewDirectMessageService(repos, cache, bus)
	groupSvc := group.NewGroupConversationService(repos, cache, bus)

	return &Services{
		Direct: directSvc,
		Group:  groupSvc,
	}
}

// Svc 全局 Services 实例
var Svc *Services

// InitServices 初始化全局 Services 实例
// 应在 main.go 中调用，在 Repository/缓存/登记表初始化之后
func InitServices(repos *repository.Repositories, cache myredis.AsyncCacheService, bus presence.EventBus) {
	Svc = NewServices(repos, cache, bus)
}
