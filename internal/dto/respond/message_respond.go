// Package respond 定义业务层出参结构
// 雪花 ID 统一以字符串形式返回，避免 JavaScript 端大整数精度丢失
package respond

import "school_chat_server/internal/model"

// MessageRespond 单聊消息
type MessageRespond struct {
	MessageId      string             `json:"messageId"`      // 消息雪花 ID
	ConversationId string             `json:"conversationId"` // 会话 UUID
	SenderId       string             `json:"senderId"`       // 发送者
	RecipientId    string             `json:"recipientId"`    // 接收者
	Content        string             `json:"content"`        // 文本内容
	Attachments    []model.Attachment `json:"attachments"`    // 附件元数据
	IsRead         bool               `json:"isRead"`         // 是否已读
	ReadAt         string             `json:"readAt"`         // 已读时间，未读为空
	SentAt         string             `json:"sentAt"`         // 发送时间
}

// ConversationRespond 单聊会话（面向某个参与者的视角）
type ConversationRespond struct {
	ConversationId string `json:"conversationId"` // 会话 UUID
	PeerId         string `json:"peerId"`         // 对端用户 ID
	LastMessageId  string `json:"lastMessageId"`  // 最新消息 ID，新会话为空
	LastMessageAt  string `json:"lastMessageAt"`  // 最新消息时间，新会话为空
	UnreadCount    int    `json:"unreadCount"`    // 自己一侧的未读计数
}
