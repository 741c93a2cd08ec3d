package event

import "school_chat_server/internal/model"

// MessageNewPayload 新单聊消息事件负载
// 消息 ID 用字符串传输，避免 JavaScript 大整数精度丢失
type MessageNewPayload struct {
	MessageId      string             `json:"messageId"`      // 消息雪花 ID
	ConversationId string             `json:"conversationId"` // 会话 UUID
	SenderId       string             `json:"senderId"`       // 发送者
	RecipientId    string             `json:"recipientId"`    // 接收者
	Content        string             `json:"content"`        // 文本内容
	Attachments    []model.Attachment `json:"attachments"`    // 附件元数据
	SentAt         string             `json:"sentAt"`         // 发送时间 RFC3339
	IsRead         bool               `json:"isRead"`         // 恒为 false
}

// MessageReadPayload 单聊消息已读回执负载
type MessageReadPayload struct {
	MessageId      string `json:"messageId"`      // 消息雪花 ID
	ConversationId string `json:"conversationId"` // 会话 UUID
	ReadBy         string `json:"readBy"`         // 标记已读的用户
	ReadAt         string `json:"readAt"`         // 已读时间 RFC3339
}
