// Package event 定义实时通道的事件名与负载结构
// 事件负载是对外契约，字段形状固定，前端按 event 字段分发
package event

import "encoding/json"

// 实时事件名
const (
	MessageNew          = "message:new"           // 新单聊消息
	MessageRead         = "message:read"          // 单聊消息已读回执
	GroupMessageNew     = "group:message:new"     // 新群聊消息
	GroupMessageDeleted = "group:message:deleted" // 群聊消息被删除
	UserStatus          = "user:status"           // 用户上下线
	UsersOnline         = "users:online"          // 在线用户快照
)

// 在线状态取值
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope 推送到客户端的统一信封
// data 内嵌具体事件负载
type Envelope struct {
	Event string      `json:"event"` // 事件名
	Data  interface{} `json:"data"`  // 事件负载
}

// Marshal 把事件打包成客户端线格式
// 序列化失败返回 nil，调用方按静默丢弃处理（推送是尽力而为）
func Marshal(event string, payload interface{}) []byte {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return nil
	}
	return data
}
