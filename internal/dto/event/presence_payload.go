package event

// UserStatusPayload 用户上下线事件负载
// 首个连接建立时广播 online，最后一个连接断开或超时后广播 offline
type UserStatusPayload struct {
	UserId    string `json:"userId"`    // 状态变化的用户
	Status    string `json:"status"`    // online / offline
	Timestamp string `json:"timestamp"` // 变化时间 RFC3339
}

// UsersOnlinePayload 在线用户快照负载，按需下发
type UsersOnlinePayload struct {
	UserIds []string `json:"userIds"` // 当前在线用户 ID 列表
}
