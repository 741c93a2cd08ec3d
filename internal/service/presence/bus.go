// Package presence 实现在线状态登记与实时事件投递
// 登记表是进程内唯一权威的在线状态来源；事件投递是尽力而为的推送，
// 永远不保证送达，持久化存储才是唯一的可靠数据源
package presence

import "time"

// ConnHandle 一条活跃的客户端连接
// 同一用户可同时持有多条连接（多端登录）
type ConnHandle interface {
	// Send 非阻塞投递一帧数据
	// 缓冲满或连接已关闭返回 false，数据直接丢弃（每条连接至多一次投递）
	Send(data []byte) bool
	// LastActive 最近一次心跳时间，用于超时巡检
	LastActive() time.Time
	// Close 关闭底层连接
	Close()
}

// EventBus 事件投递总线
// 消息服务在持久化完成后通过总线通知在线接收者；
// 接收者不在线时调用是静默空操作，不排队、不重试、不报错
type EventBus interface {
	// EmitToUser 向单个用户的全部在线连接推送命名事件
	EmitToUser(userId string, eventName string, payload interface{})
	// EmitToUsers 向一批用户推送命名事件
	EmitToUsers(userIds []string, eventName string, payload interface{})
}

// NopBus 空实现，推送全部丢弃
// 用于不需要实时通道的场景（批处理、迁移脚本）
type NopBus struct{}

func (NopBus) EmitToUser(userId string, eventName string, payload interface{})    {}
func (NopBus) EmitToUsers(userIds []string, eventName string, payload interface{}) {}
