package repository

import (
	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

type groupMessageRepository struct {
	db *gorm.DB
}

// NewGroupMessageRepository 创建群消息 Repository
func NewGroupMessageRepository(db *gorm.DB) GroupMessageRepository {
	return &groupMessageRepository{db: db}
}

// Create 创建群消息
func (r *groupMessageRepository) Create(message *model.GroupMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建群消息")
	}
	return nil
}

// FindByUuid 根据雪花 ID 查找群消息
func (r *groupMessageRepository) FindByUuid(uuid int64) (*model.GroupMessage, error) {
	var message model.GroupMessage
	if err := r.db.Where("uuid = ?", uuid).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群消息 uuid=%d", uuid)
	}
	return &message, nil
}

// FindByGroupUuid 按群聊查找消息，按创建时间升序
func (r *groupMessageRepository) FindByGroupUuid(groupUuid string) ([]model.GroupMessage, error) {
	var messages []model.GroupMessage
	if err := r.db.Where("group_uuid = ?", groupUuid).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群消息 group_uuid=%s", groupUuid)
	}
	return messages, nil
}

// Search 在群聊内按内容模糊检索
func (r *groupMessageRepository) Search(groupUuid, keyword string) ([]model.GroupMessage, error) {
	var messages []model.GroupMessage
	if err := r.db.Where("group_uuid = ? AND content LIKE ?", groupUuid, "%"+keyword+"%").
		Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "检索群消息 group_uuid=%s keyword=%s", groupUuid, keyword)
	}
	return messages, nil
}

// SoftDeleteByUuid 软删除群消息
func (r *groupMessageRepository) SoftDeleteByUuid(uuid int64) error {
	if err := r.db.Where("uuid = ?", uuid).Delete(&model.GroupMessage{}).Error; err != nil {
		return wrapDBErrorf(err, "删除群消息 uuid=%d", uuid)
	}
	return nil
}
