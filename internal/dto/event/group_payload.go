package event

import "school_chat_server/internal/model"

// GroupMessageNewPayload 新群聊消息事件负载
type GroupMessageNewPayload struct {
	GroupMessageId      string             `json:"groupMessageId"`      // 群消息雪花 ID
	GroupConversationId string             `json:"groupConversationId"` // 群聊 UUID
	SenderId            string             `json:"senderId"`            // 发送者
	Content             string             `json:"content"`             // 文本内容
	Attachments         []model.Attachment `json:"attachments"`         // 附件元数据
	SentAt              string             `json:"sentAt"`              // 发送时间 RFC3339
}

// GroupMessageDeletedPayload 群聊消息删除事件负载
type GroupMessageDeletedPayload struct {
	GroupMessageId      string `json:"groupMessageId"`      // 群消息雪花 ID
	GroupConversationId string `json:"groupConversationId"` // 群聊 UUID
	DeletedBy           string `json:"deletedBy"`           // 执行删除的用户
}
