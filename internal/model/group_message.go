package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// GroupMessage 群聊消息模型
// 对应数据库 group_message 表
// 群消息不维护逐人已读标记，已读进度由 GroupMember.UnreadCount 承担
type GroupMessage struct {
	gorm.Model

	// Uuid 消息唯一标识，雪花 ID
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// GroupUuid 所属群聊 UUID
	GroupUuid string `gorm:"column:group_uuid;index;type:char(20);not null;comment:群聊uuid"`

	// SendId 发送者用户 ID
	SendId string `gorm:"column:send_id;index;type:char(20);not null;comment:发送者id"`

	// Content 消息文本内容
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// Attachments 附件元数据 JSON 列表，对本核心不透明
	Attachments string `gorm:"column:attachments;type:TEXT;comment:附件元数据JSON"`

	// SentAt 发送时间
	SentAt sql.NullTime `gorm:"column:sent_at;type:datetime;comment:发送时间"`
}

// TableName 指定表名
func (GroupMessage) TableName() string {
	return "group_message"
}
