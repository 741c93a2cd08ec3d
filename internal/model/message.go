// Package model 定义数据库实体模型
// 本文件定义单聊消息模型与附件元数据
package model

import (
	"database/sql"
	"encoding/json"

	"gorm.io/gorm"
)

// Attachment 附件元数据
// 对本核心而言是不透明的记录，文件的上传与存储由外部协作方负责
type Attachment struct {
	Url      string `json:"url"`      // 资源访问链接
	FileType string `json:"fileType"` // MIME 类型，如 "image/jpeg"
	FileName string `json:"fileName"` // 文件名
	FileSize string `json:"fileSize"` // 文件大小，如 "1.5MB"
}

// Message 单聊消息模型
// 对应数据库 message 表
type Message struct {
	gorm.Model

	// Uuid 消息唯一标识
	// 使用雪花算法生成的 int64 类型 ID
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// ConversationUuid 所属会话 UUID
	ConversationUuid string `gorm:"column:conversation_uuid;index;type:char(20);not null;comment:会话uuid"`

	// SendId 发送者用户 ID
	SendId string `gorm:"column:send_id;index;type:char(20);not null;comment:发送者id"`

	// ReceiveId 接收者用户 ID
	// 约束：send_id != receive_id，由业务层在写入前拦截
	ReceiveId string `gorm:"column:receive_id;index;type:char(20);not null;comment:接收者id"`

	// Content 消息文本内容
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// Attachments 附件元数据 JSON 列表
	// 空消息存 "[]"，内容对本核心不透明
	Attachments string `gorm:"column:attachments;type:TEXT;comment:附件元数据JSON"`

	// IsRead 接收者是否已读
	IsRead bool `gorm:"column:is_read;default:false;not null;comment:是否已读"`

	// ReadAt 已读时间，仅在 is_read 首次翻转时写入一次
	ReadAt sql.NullTime `gorm:"column:read_at;type:datetime;comment:已读时间"`

	// SentAt 发送时间
	SentAt sql.NullTime `gorm:"column:sent_at;type:datetime;comment:发送时间"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// MarshalAttachments 把附件列表序列化为存储格式
// nil 或空列表统一存 "[]"，保证读取侧反序列化不会失败
func MarshalAttachments(attachments []Attachment) string {
	if len(attachments) == 0 {
		return "[]"
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// UnmarshalAttachments 从存储格式还原附件列表
func UnmarshalAttachments(raw string) []Attachment {
	if raw == "" {
		return []Attachment{}
	}
	var attachments []Attachment
	if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
		return []Attachment{}
	}
	return attachments
}
