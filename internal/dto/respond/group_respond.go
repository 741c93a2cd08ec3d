package respond

import "school_chat_server/internal/model"

// GroupConversationRespond 群聊会话
type GroupConversationRespond struct {
	GroupConversationId string `json:"groupConversationId"` // 群聊 UUID
	Name                string `json:"name"`                // 群名称
	Type                string `json:"type"`                // 群类型
	ClassId             string `json:"classId"`             // 班级 ID，非班级群为空
	CreatedBy           string `json:"createdBy"`           // 创建者
	IsAnnouncementOnly  bool   `json:"isAnnouncementOnly"`  // 仅管理员可发言
	IsActive            bool   `json:"isActive"`            // 是否活跃
	LastMessageAt       string `json:"lastMessageAt"`       // 最新消息时间，无消息为空
}

// GroupMessageRespond 群聊消息
type GroupMessageRespond struct {
	GroupMessageId      string             `json:"groupMessageId"`      // 群消息雪花 ID
	GroupConversationId string             `json:"groupConversationId"` // 群聊 UUID
	SenderId            string             `json:"senderId"`            // 发送者
	Content             string             `json:"content"`             // 文本内容
	Attachments         []model.Attachment `json:"attachments"`         // 附件元数据
	SentAt              string             `json:"sentAt"`              // 发送时间
}

// GroupMemberRespond 群成员
type GroupMemberRespond struct {
	UserId      string `json:"userId"`      // 用户 ID
	Role        string `json:"role"`        // 角色 admin/member
	UnreadCount int    `json:"unreadCount"` // 未读计数
	LastReadAt  string `json:"lastReadAt"`  // 最近已读时间，从未已读为空
}
