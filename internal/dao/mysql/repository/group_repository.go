// Package repository 提供数据访问层的具体实现
// 本文件实现 GroupConversationRepository 接口，处理群聊会话相关的数据库操作
package repository

import (
	"time"

	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

// groupConversationRepository GroupConversationRepository 接口的实现
type groupConversationRepository struct {
	db *gorm.DB // GORM 数据库实例
}

// NewGroupConversationRepository 创建 GroupConversationRepository 实例
func NewGroupConversationRepository(db *gorm.DB) GroupConversationRepository {
	return &groupConversationRepository{db: db}
}

// Create 创建群聊
func (r *groupConversationRepository) Create(group *model.GroupConversation) error {
	if err := r.db.Create(group).Error; err != nil {
		return wrapDBError(err, "创建群聊")
	}
	return nil
}

// FindByUuid 根据 UUID 查找群聊
func (r *groupConversationRepository) FindByUuid(uuid string) (*model.GroupConversation, error) {
	var group model.GroupConversation
	if err := r.db.Where("uuid = ?", uuid).First(&group).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群聊 uuid=%s", uuid)
	}
	return &group, nil
}

// FindActiveByClassId 查找指定班级的活跃班级群
// 用于创建班级群前的去重检查
func (r *groupConversationRepository) FindActiveByClassId(classId string) (*model.GroupConversation, error) {
	var group model.GroupConversation
	if err := r.db.Where("type = ? AND class_id = ? AND is_active = ?",
		model.GroupTypeClass, classId, true).First(&group).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询班级群 class_id=%s", classId)
	}
	return &group, nil
}

// FindByUuids 批量根据 UUID 查找群聊
func (r *groupConversationRepository) FindByUuids(uuids []string) ([]model.GroupConversation, error) {
	if len(uuids) == 0 {
		return []model.GroupConversation{}, nil
	}
	var groups []model.GroupConversation
	if err := r.db.Where("uuid IN ?", uuids).Order("last_message_at DESC").Find(&groups).Error; err != nil {
		return nil, wrapDBError(err, "批量查询群聊")
	}
	return groups, nil
}

// Update 更新群聊信息
func (r *groupConversationRepository) Update(group *model.GroupConversation) error {
	if err := r.db.Save(group).Error; err != nil {
		return wrapDBErrorf(err, "更新群聊 uuid=%s", group.Uuid)
	}
	return nil
}

// UpdateLastMessage 刷新最新消息指针
func (r *groupConversationRepository) UpdateLastMessage(uuid string, messageUuid int64, at time.Time) error {
	updates := map[string]interface{}{
		"last_message_id": messageUuid,
		"last_message_at": at,
	}
	if err := r.db.Model(&model.GroupConversation{}).Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "更新群聊最新消息 uuid=%s", uuid)
	}
	return nil
}

// SetActive 设置群聊活跃状态
func (r *groupConversationRepository) SetActive(uuid string, active bool) error {
	if err := r.db.Model(&model.GroupConversation{}).Where("uuid = ?", uuid).
		Update("is_active", active).Error; err != nil {
		return wrapDBErrorf(err, "设置群聊状态 uuid=%s", uuid)
	}
	return nil
}

// SoftDeleteByUuid 软删除群聊
func (r *groupConversationRepository) SoftDeleteByUuid(uuid string) error {
	if err := r.db.Where("uuid = ?", uuid).Delete(&model.GroupConversation{}).Error; err != nil {
		return wrapDBErrorf(err, "删除群聊 uuid=%s", uuid)
	}
	return nil
}
