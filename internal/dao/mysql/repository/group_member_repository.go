// Package repository 提供数据访问层的具体实现
// 本文件实现 GroupMemberRepository 接口，处理群成员相关的数据库操作
package repository

import (
	"time"

	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

// groupMemberRepository GroupMemberRepository 接口的实现
type groupMemberRepository struct {
	db *gorm.DB // GORM 数据库实例
}

// NewGroupMemberRepository 创建 GroupMemberRepository 实例
func NewGroupMemberRepository(db *gorm.DB) GroupMemberRepository {
	return &groupMemberRepository{db: db}
}

// Create 添加群成员
func (r *groupMemberRepository) Create(member *model.GroupMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return wrapDBError(err, "创建群成员")
	}
	return nil
}

// CreateBatch 批量添加群成员
func (r *groupMemberRepository) CreateBatch(members []model.GroupMember) error {
	if len(members) == 0 {
		return nil
	}
	if err := r.db.Create(&members).Error; err != nil {
		return wrapDBError(err, "批量创建群成员")
	}
	return nil
}

// FindByGroupAndUser 根据群聊和用户查找成员关系
// 成员资格与角色判定每次都走这里查询，角色变更立即生效
func (r *groupMemberRepository) FindByGroupAndUser(groupUuid, userId string) (*model.GroupMember, error) {
	var member model.GroupMember
	if err := r.db.Where("group_uuid = ? AND user_id = ?", groupUuid, userId).First(&member).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群成员 group_uuid=%s user_id=%s", groupUuid, userId)
	}
	return &member, nil
}

// FindByGroupUuid 根据群聊 UUID 查找所有成员
func (r *groupMemberRepository) FindByGroupUuid(groupUuid string) ([]model.GroupMember, error) {
	var members []model.GroupMember
	if err := r.db.Where("group_uuid = ?", groupUuid).Find(&members).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群成员 group_uuid=%s", groupUuid)
	}
	return members, nil
}

// FindGroupUuidsByUser 查找用户加入的所有群聊 UUID
func (r *groupMemberRepository) FindGroupUuidsByUser(userId string) ([]string, error) {
	var groupUuids []string
	if err := r.db.Model(&model.GroupMember{}).Where("user_id = ?", userId).
		Pluck("group_uuid", &groupUuids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户所在群 user_id=%s", userId)
	}
	return groupUuids, nil
}

// UpdateRole 更新成员角色
func (r *groupMemberRepository) UpdateRole(groupUuid, userId, role string) error {
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_uuid = ? AND user_id = ?", groupUuid, userId).
		Update("role", role).Error; err != nil {
		return wrapDBErrorf(err, "更新成员角色 group_uuid=%s user_id=%s", groupUuid, userId)
	}
	return nil
}

// IncrementUnreadExcept 批量递增除发送者外全部成员的未读计数
// 单条 UPDATE 配合数据库侧算术，和消息写入在同一事务内执行
func (r *groupMemberRepository) IncrementUnreadExcept(groupUuid, senderId string) error {
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_uuid = ? AND user_id <> ?", groupUuid, senderId).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
		return wrapDBErrorf(err, "批量递增未读计数 group_uuid=%s", groupUuid)
	}
	return nil
}

// ResetUnread 把成员未读计数归零并记录已读时间
func (r *groupMemberRepository) ResetUnread(groupUuid, userId string, at time.Time) error {
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_uuid = ? AND user_id = ?", groupUuid, userId).
		Updates(map[string]interface{}{"unread_count": 0, "last_read_at": at}).Error; err != nil {
		return wrapDBErrorf(err, "重置未读计数 group_uuid=%s user_id=%s", groupUuid, userId)
	}
	return nil
}

// CountAdmins 统计群聊管理员数量
// 用于最后管理员保护：移除/降级前检查
func (r *groupMemberRepository) CountAdmins(groupUuid string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_uuid = ? AND role = ?", groupUuid, model.RoleAdmin).
		Count(&count).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计管理员 group_uuid=%s", groupUuid)
	}
	return count, nil
}

// Delete 移除单个群成员
func (r *groupMemberRepository) Delete(groupUuid, userId string) error {
	if err := r.db.Where("group_uuid = ? AND user_id = ?", groupUuid, userId).
		Delete(&model.GroupMember{}).Error; err != nil {
		return wrapDBErrorf(err, "删除群成员 group_uuid=%s user_id=%s", groupUuid, userId)
	}
	return nil
}

// DeleteByGroupUuid 移除群聊全部成员
func (r *groupMemberRepository) DeleteByGroupUuid(groupUuid string) error {
	if err := r.db.Where("group_uuid = ?", groupUuid).Delete(&model.GroupMember{}).Error; err != nil {
		return wrapDBErrorf(err, "删除群聊成员 group_uuid=%s", groupUuid)
	}
	return nil
}
