package repository

import (
	"time"

	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 创建消息
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByUuid 根据雪花 ID 查找消息
func (r *messageRepository) FindByUuid(uuid int64) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("uuid = ?", uuid).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &message, nil
}

// FindByConversation 按会话查找消息，按创建时间升序
func (r *messageRepository) FindByConversation(conversationUuid string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("conversation_uuid = ?", conversationUuid).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 conversation_uuid=%s", conversationUuid)
	}
	return messages, nil
}

// MarkRead 把单条未读消息置为已读
// WHERE 带 is_read = false，已读消息重复标记不会改写 read_at
func (r *messageRepository) MarkRead(uuid int64, at time.Time) (int64, error) {
	res := r.db.Model(&model.Message{}).
		Where("uuid = ? AND is_read = ?", uuid, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "标记消息已读 uuid=%d", uuid)
	}
	return res.RowsAffected, nil
}

// MarkConversationRead 批量把会话内某接收者的未读消息置为已读
// 返回翻转行数，调用方用它校验计数器与真实未读数一致
func (r *messageRepository) MarkConversationRead(conversationUuid, userId string, at time.Time) (int64, error) {
	res := r.db.Model(&model.Message{}).
		Where("conversation_uuid = ? AND receive_id = ? AND is_read = ?", conversationUuid, userId, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "批量标记已读 conversation_uuid=%s user_id=%s", conversationUuid, userId)
	}
	return res.RowsAffected, nil
}

// CountUnread 统计会话内某接收者的未读消息数
func (r *messageRepository) CountUnread(conversationUuid, userId string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).
		Where("conversation_uuid = ? AND receive_id = ? AND is_read = ?", conversationUuid, userId, false).
		Count(&count).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计未读消息 conversation_uuid=%s", conversationUuid)
	}
	return count, nil
}

// Search 在给定会话范围内按内容模糊检索
func (r *messageRepository) Search(conversationUuids []string, keyword string) ([]model.Message, error) {
	if len(conversationUuids) == 0 {
		return []model.Message{}, nil
	}
	var messages []model.Message
	if err := r.db.Where("conversation_uuid IN ? AND content LIKE ?", conversationUuids, "%"+keyword+"%").
		Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "检索消息 keyword=%s", keyword)
	}
	return messages, nil
}

// SoftDeleteByUuid 软删除消息
func (r *messageRepository) SoftDeleteByUuid(uuid int64) error {
	if err := r.db.Where("uuid = ?", uuid).Delete(&model.Message{}).Error; err != nil {
		return wrapDBErrorf(err, "删除消息 uuid=%d", uuid)
	}
	return nil
}
