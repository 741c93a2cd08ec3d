// Package presence 实现在线状态登记与实时事件投递
// registry.go
// 核心职责：
// 1. 维护用户 ID 到活跃连接集合的映射（多端登录）
// 2. 连接注册/注销与心跳超时巡检
// 3. 实现 EventBus：按用户查找连接并非阻塞推送
// 4. 上下线时向其余在线用户广播 user:status 事件
package presence

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"school_chat_server/internal/dto/event"
	"school_chat_server/pkg/constants"
)

// Registry 在线连接登记表
// 纯进程内运行时状态，不落库；用户在至少持有一条连接时视为在线
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[ConnHandle]struct{} // userId -> 活跃连接集合

	window    time.Duration // 心跳超时窗口
	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry 创建登记表
// window: 心跳超时窗口，连接超过该时长无心跳会被巡检移除
func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = constants.HEARTBEAT_WINDOW
	}
	return &Registry{
		conns:  make(map[string]map[ConnHandle]struct{}),
		window: window,
		done:   make(chan struct{}),
	}
}

// Start 启动心跳巡检循环
func (r *Registry) Start() {
	go func() {
		ticker := time.NewTicker(constants.HEARTBEAT_SWEEP)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweepExpired(time.Now())
			case <-r.done:
				return
			}
		}
	}()
	zap.L().Info("presence registry started", zap.Duration("heartbeatWindow", r.window))
}

// Close 停止巡检并关闭全部连接
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, handles := range r.conns {
		for h := range handles {
			h.Close()
		}
	}
	r.conns = make(map[string]map[ConnHandle]struct{})
}

// Connect 注册一条已认证连接
// 用户的首条连接会触发 user:status online 广播
func (r *Registry) Connect(userId string, h ConnHandle) {
	r.mu.Lock()
	handles, ok := r.conns[userId]
	if !ok {
		handles = make(map[ConnHandle]struct{})
		r.conns[userId] = handles
	}
	wasOffline := len(handles) == 0
	handles[h] = struct{}{}
	r.mu.Unlock()

	zap.L().Info("presence connect", zap.String("userId", userId), zap.Bool("firstConn", wasOffline))

	if wasOffline {
		r.broadcastStatus(userId, event.StatusOnline)
	}
}

// Disconnect 注销一条连接
// 最后一条连接移除后用户转为离线，触发 user:status offline 广播
func (r *Registry) Disconnect(userId string, h ConnHandle) {
	r.mu.Lock()
	handles, ok := r.conns[userId]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, exists := handles[h]; !exists {
		r.mu.Unlock()
		return
	}
	delete(handles, h)
	nowOffline := len(handles) == 0
	if nowOffline {
		delete(r.conns, userId)
	}
	r.mu.Unlock()

	h.Close()
	zap.L().Info("presence disconnect", zap.String("userId", userId), zap.Bool("lastConn", nowOffline))

	if nowOffline {
		r.broadcastStatus(userId, event.StatusOffline)
	}
}

// IsOnline 判断用户是否在线（至少持有一条连接）
func (r *Registry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userId]) > 0
}

// ListOnlineUserIds 返回当前在线用户 ID 列表（排序后）
func (r *Registry) ListOnlineUserIds() []string {
	r.mu.RLock()
	userIds := make([]string, 0, len(r.conns))
	for userId := range r.conns {
		userIds = append(userIds, userId)
	}
	r.mu.RUnlock()

	sort.Strings(userIds)
	return userIds
}

// EmitToUser 向单个用户的全部在线连接推送命名事件
// 用户不在线是静默空操作；单条连接缓冲满时该连接丢弃本帧
func (r *Registry) EmitToUser(userId string, eventName string, payload interface{}) {
	data := event.Marshal(eventName, payload)
	if data == nil {
		return
	}
	r.emitRaw(userId, eventName, data)
}

// EmitToUsers 向一批用户推送命名事件
// 负载只序列化一次
func (r *Registry) EmitToUsers(userIds []string, eventName string, payload interface{}) {
	data := event.Marshal(eventName, payload)
	if data == nil {
		return
	}
	for _, userId := range userIds {
		r.emitRaw(userId, eventName, data)
	}
}

// emitRaw 向用户的全部连接投递已序列化的帧
func (r *Registry) emitRaw(userId string, eventName string, data []byte) {
	r.mu.RLock()
	handles := make([]ConnHandle, 0, len(r.conns[userId]))
	for h := range r.conns[userId] {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	// 投递在锁外进行，Send 本身非阻塞
	for _, h := range handles {
		if !h.Send(data) {
			zap.L().Warn("push dropped: connection buffer full",
				zap.String("userId", userId), zap.String("event", eventName))
		}
	}
}

// broadcastStatus 向除自己外的全部在线用户广播上下线事件
func (r *Registry) broadcastStatus(userId string, status string) {
	payload := event.UserStatusPayload{
		UserId:    userId,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	r.mu.RLock()
	peers := make([]string, 0, len(r.conns))
	for peer := range r.conns {
		if peer != userId {
			peers = append(peers, peer)
		}
	}
	r.mu.RUnlock()

	r.EmitToUsers(peers, event.UserStatus, payload)
}

// sweepExpired 移除心跳超时的连接
// 这是系统中唯一由时间触发的状态变更
func (r *Registry) sweepExpired(now time.Time) {
	type expired struct {
		userId string
		handle ConnHandle
	}

	r.mu.RLock()
	var stale []expired
	for userId, handles := range r.conns {
		for h := range handles {
			if now.Sub(h.LastActive()) > r.window {
				stale = append(stale, expired{userId: userId, handle: h})
			}
		}
	}
	r.mu.RUnlock()

	for _, e := range stale {
		zap.L().Info("presence heartbeat timeout", zap.String("userId", e.userId))
		r.Disconnect(e.userId, e.handle)
	}
}
