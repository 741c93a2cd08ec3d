// Package model 定义数据库实体模型
// 本文件定义群聊会话模型
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// 群聊类型
const (
	GroupTypeClass        = "class"        // 班级群，必须关联班级 ID
	GroupTypeAnnouncement = "announcement" // 公告群
	GroupTypeCustom       = "custom"       // 自定义群
)

// GroupConversation 群聊会话模型
// 对应数据库 group_conversation 表
type GroupConversation struct {
	gorm.Model

	// Uuid 群聊唯一标识
	// 格式：G + 时间戳随机字符串
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:群聊uuid"`

	// Name 群名称
	Name string `gorm:"column:name;type:varchar(50);not null;comment:群名称"`

	// Type 群类型：class / announcement / custom
	Type string `gorm:"column:type;type:varchar(20);not null;comment:群类型"`

	// ClassId 关联班级 ID
	// 仅 type=class 时必填；同一班级同一时间只允许一个活跃班级群
	ClassId string `gorm:"column:class_id;index;type:char(20);comment:班级id"`

	// CreatedBy 创建者用户 ID，创建时自动成为管理员
	CreatedBy string `gorm:"column:created_by;type:char(20);not null;comment:创建者id"`

	// IsAnnouncementOnly 仅公告标志
	// 置位后只有 role=admin 的成员可以发言，该检查在每次发送时重新求值
	IsAnnouncementOnly bool `gorm:"column:is_announcement_only;default:false;not null;comment:仅管理员可发言"`

	// LastMessageId 最新群消息雪花 ID
	LastMessageId sql.NullInt64 `gorm:"column:last_message_id;comment:最新消息id"`

	// LastMessageAt 最新群消息时间
	LastMessageAt sql.NullTime `gorm:"column:last_message_at;type:datetime;comment:最新消息时间"`

	// IsActive 是否活跃
	// 停用后禁止发送消息；活跃群在任意时刻至少保有一名管理员
	IsActive bool `gorm:"column:is_active;default:true;not null;comment:是否活跃"`
}

// TableName 指定表名
func (GroupConversation) TableName() string {
	return "group_conversation"
}
