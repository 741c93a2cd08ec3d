// Package repository 提供数据访问层的具体实现
// 本文件实现 ConversationRepository 接口，处理单聊会话相关的数据库操作
package repository

import (
	"time"

	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

// conversationRepository ConversationRepository 接口的实现
type conversationRepository struct {
	db *gorm.DB // GORM 数据库实例
}

// NewConversationRepository 创建 ConversationRepository 实例
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindByUuid 根据 UUID 查找会话
func (r *conversationRepository) FindByUuid(uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("uuid = ?", uuid).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &conv, nil
}

// FindByPair 根据归一化后的参与者对查找会话
// 调用方必须先用 model.NormalizePair 归一化，保证 (A,B) 与 (B,A) 命中同一行
func (r *conversationRepository) FindByPair(low, high string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("participant_low = ? AND participant_high = ?", low, high).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 low=%s high=%s", low, high)
	}
	return &conv, nil
}

// FindByUserId 查找用户参与的所有会话
// 按最新消息时间倒序，无消息的新会话排在最后
func (r *conversationRepository) FindByUserId(userId string) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := r.db.Where("participant_low = ? OR participant_high = ?", userId, userId).
		Order("last_message_at DESC").Find(&convs).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话列表 user_id=%s", userId)
	}
	return convs, nil
}

// Create 创建会话
// (participant_low, participant_high) 上有唯一索引，并发下重复创建由数据库拦截
func (r *conversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return wrapDBError(err, "创建会话")
	}
	return nil
}

// UpdateLastMessage 刷新最新消息指针
func (r *conversationRepository) UpdateLastMessage(uuid string, messageUuid int64, at time.Time) error {
	updates := map[string]interface{}{
		"last_message_id": messageUuid,
		"last_message_at": at,
	}
	if err := r.db.Model(&model.Conversation{}).Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "更新会话最新消息 uuid=%s", uuid)
	}
	return nil
}

// IncrementUnread 原子递增指定参与者的未读计数
// 使用数据库侧单条算术语句，并发发送不会丢失递增
// 两侧列依次尝试，参与者只会命中其中一列
func (r *conversationRepository) IncrementUnread(uuid string, userId string) error {
	res := r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_low = ?", uuid, userId).
		Update("unread_count_low", gorm.Expr("unread_count_low + 1"))
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "递增未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	res = r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_high = ?", uuid, userId).
		Update("unread_count_high", gorm.Expr("unread_count_high + 1"))
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "递增未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	return nil
}

// DecrementUnread 原子递减指定参与者的未读计数，下限为 0
// 单条消息被标记已读时调用，保持计数与真实未读消息数一致
func (r *conversationRepository) DecrementUnread(uuid string, userId string) error {
	res := r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_low = ?", uuid, userId).
		Update("unread_count_low", gorm.Expr("GREATEST(unread_count_low - 1, 0)"))
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "递减未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	res = r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_high = ?", uuid, userId).
		Update("unread_count_high", gorm.Expr("GREATEST(unread_count_high - 1, 0)"))
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "递减未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	return nil
}

// ResetUnread 把指定参与者的未读计数归零
func (r *conversationRepository) ResetUnread(uuid string, userId string) error {
	res := r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_low = ?", uuid, userId).
		Update("unread_count_low", 0)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "重置未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	res = r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND participant_high = ?", uuid, userId).
		Update("unread_count_high", 0)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "重置未读计数 uuid=%s user_id=%s", uuid, userId)
	}
	return nil
}

// SumUnreadForUser 汇总用户在所有会话中自己一侧的未读计数
// 只累加自己对应的列，不会把对端的计数算进来
func (r *conversationRepository) SumUnreadForUser(userId string) (int64, error) {
	var total int64
	err := r.db.Model(&model.Conversation{}).
		Select("COALESCE(SUM(CASE WHEN participant_low = ? THEN unread_count_low ELSE unread_count_high END), 0)", userId).
		Where("participant_low = ? OR participant_high = ?", userId, userId).
		Scan(&total).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "汇总未读计数 user_id=%s", userId)
	}
	return total, nil
}

// SoftDeleteByUuid 软删除会话
func (r *conversationRepository) SoftDeleteByUuid(uuid string) error {
	if err := r.db.Where("uuid = ?", uuid).Delete(&model.Conversation{}).Error; err != nil {
		return wrapDBErrorf(err, "删除会话 uuid=%s", uuid)
	}
	return nil
}
