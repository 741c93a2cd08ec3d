// Package model 定义数据库实体模型
// 本文件定义单聊会话模型，维护参与者对、未读计数与最新消息指针
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Conversation 单聊会话模型
// 对应数据库 conversation 表
// 一对用户之间有且只有一个会话：两个用户 ID 按字典序归一化存储，
// 无论哪一方先发起，(low, high) 都映射到同一行
type Conversation struct {
	gorm.Model

	// Uuid 会话唯一标识
	// 格式：C + 时间戳随机字符串
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:会话uuid"`

	// ParticipantLow 参与者中字典序较小的用户 ID
	ParticipantLow string `gorm:"column:participant_low;index:idx_participant_pair,unique;type:char(20);not null;comment:参与者(字典序小)"`

	// ParticipantHigh 参与者中字典序较大的用户 ID
	ParticipantHigh string `gorm:"column:participant_high;index:idx_participant_pair,unique;type:char(20);not null;comment:参与者(字典序大)"`

	// LastMessageId 最新消息雪花 ID
	// 用于会话列表展示，新会话为空
	LastMessageId sql.NullInt64 `gorm:"column:last_message_id;comment:最新消息id"`

	// LastMessageAt 最新消息时间
	// 用于会话列表排序（最近聊天的排在前面）
	LastMessageAt sql.NullTime `gorm:"column:last_message_at;type:datetime;comment:最新消息时间"`

	// UnreadCountLow ParticipantLow 的未读计数
	// 恒等于该会话中发给 ParticipantLow 且 is_read=false 的消息数
	UnreadCountLow int `gorm:"column:unread_count_low;default:0;not null;comment:low方未读数"`

	// UnreadCountHigh ParticipantHigh 的未读计数
	UnreadCountHigh int `gorm:"column:unread_count_high;default:0;not null;comment:high方未读数"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversation"
}

// NormalizePair 把两个用户 ID 归一化成 (low, high) 顺序
// 保证 (A,B) 和 (B,A) 落到同一个会话
func NormalizePair(userA, userB string) (low, high string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// UnreadCountFor 返回指定参与者自己的未读计数
func (c *Conversation) UnreadCountFor(userId string) int {
	if userId == c.ParticipantLow {
		return c.UnreadCountLow
	}
	return c.UnreadCountHigh
}

// HasParticipant 判断用户是否为该会话参与者
func (c *Conversation) HasParticipant(userId string) bool {
	return userId == c.ParticipantLow || userId == c.ParticipantHigh
}

// PeerOf 返回会话中另一方的用户 ID
func (c *Conversation) PeerOf(userId string) string {
	if userId == c.ParticipantLow {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}
