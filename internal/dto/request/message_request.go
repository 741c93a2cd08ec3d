// Package request 定义业务层入参结构
// 调用方（HTTP 层或其他进程内协作方）负责身份解析，
// 这里收到的都是已解析完成的用户 ID
package request

import "school_chat_server/internal/model"

// SendMessageRequest 发送单聊消息请求
type SendMessageRequest struct {
	SenderId    string             `json:"senderId"`    // 发送者 ID
	RecipientId string             `json:"recipientId"` // 接收者 ID
	Content     string             `json:"content"`     // 文本内容
	Attachments []model.Attachment `json:"attachments"` // 附件元数据（可空）
}

// SendGroupMessageRequest 发送群聊消息请求
type SendGroupMessageRequest struct {
	SenderId    string             `json:"senderId"`    // 发送者 ID
	GroupId     string             `json:"groupId"`     // 群聊 UUID
	Content     string             `json:"content"`     // 文本内容
	Attachments []model.Attachment `json:"attachments"` // 附件元数据（可空）
}
