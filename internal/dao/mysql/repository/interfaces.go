package repository

import (
	"time"

	"school_chat_server/internal/model"

	"gorm.io/gorm"
)

// ==================== Repository 接口定义 ====================

// ConversationRepository 单聊会话数据访问接口
// 管理参与者对到会话的映射、未读计数与最新消息指针
type ConversationRepository interface {
	// FindByUuid 根据 UUID 查找会话
	FindByUuid(uuid string) (*model.Conversation, error)
	// FindByPair 根据归一化后的参与者对查找会话
	FindByPair(low, high string) (*model.Conversation, error)
	// FindByUserId 查找用户参与的所有会话，按最新消息时间倒序
	FindByUserId(userId string) ([]model.Conversation, error)
	// Create 创建会话
	Create(conv *model.Conversation) error
	// UpdateLastMessage 刷新最新消息指针
	UpdateLastMessage(uuid string, messageUuid int64, at time.Time) error
	// IncrementUnread 原子递增指定参与者的未读计数
	IncrementUnread(uuid string, userId string) error
	// DecrementUnread 原子递减指定参与者的未读计数，下限为 0
	DecrementUnread(uuid string, userId string) error
	// ResetUnread 把指定参与者的未读计数归零
	ResetUnread(uuid string, userId string) error
	// SumUnreadForUser 汇总用户在所有会话中自己一侧的未读计数
	SumUnreadForUser(userId string) (int64, error)
	// SoftDeleteByUuid 软删除会话
	SoftDeleteByUuid(uuid string) error
}

// MessageRepository 单聊消息数据访问接口
type MessageRepository interface {
	// Create 创建消息
	Create(message *model.Message) error
	// FindByUuid 根据雪花 ID 查找消息
	FindByUuid(uuid int64) (*model.Message, error)
	// FindByConversation 查找会话内全部消息，按创建时间升序
	FindByConversation(conversationUuid string) ([]model.Message, error)
	// MarkRead 把单条未读消息置为已读并写入已读时间
	// 返回实际翻转的行数：已读消息再次标记返回 0
	MarkRead(uuid int64, at time.Time) (int64, error)
	// MarkConversationRead 批量把会话内某接收者的未读消息置为已读
	// 返回实际翻转的行数
	MarkConversationRead(conversationUuid, userId string, at time.Time) (int64, error)
	// CountUnread 统计会话内某接收者的未读消息数
	CountUnread(conversationUuid, userId string) (int64, error)
	// Search 在给定会话范围内按内容模糊检索
	Search(conversationUuids []string, keyword string) ([]model.Message, error)
	// SoftDeleteByUuid 软删除消息
	SoftDeleteByUuid(uuid int64) error
}

// GroupConversationRepository 群聊会话数据访问接口
type GroupConversationRepository interface {
	// Create 创建群聊
	Create(group *model.GroupConversation) error
	// FindByUuid 根据 UUID 查找群聊
	FindByUuid(uuid string) (*model.GroupConversation, error)
	// FindActiveByClassId 查找指定班级的活跃班级群
	FindActiveByClassId(classId string) (*model.GroupConversation, error)
	// FindByUuids 批量根据 UUID 查找群聊
	FindByUuids(uuids []string) ([]model.GroupConversation, error)
	// Update 更新群聊信息
	Update(group *model.GroupConversation) error
	// UpdateLastMessage 刷新最新消息指针
	UpdateLastMessage(uuid string, messageUuid int64, at time.Time) error
	// SetActive 设置群聊活跃状态
	SetActive(uuid string, active bool) error
	// SoftDeleteByUuid 软删除群聊
	SoftDeleteByUuid(uuid string) error
}

// GroupMemberRepository 群成员数据访问接口
// 管理成员关系、角色与逐人未读计数
type GroupMemberRepository interface {
	// Create 添加群成员
	Create(member *model.GroupMember) error
	// CreateBatch 批量添加群成员
	CreateBatch(members []model.GroupMember) error
	// FindByGroupAndUser 查找成员关系，用于角色与成员资格判定
	FindByGroupAndUser(groupUuid, userId string) (*model.GroupMember, error)
	// FindByGroupUuid 查找群聊全部成员
	FindByGroupUuid(groupUuid string) ([]model.GroupMember, error)
	// FindGroupUuidsByUser 查找用户加入的所有群聊 UUID
	FindGroupUuidsByUser(userId string) ([]string, error)
	// UpdateRole 更新成员角色
	UpdateRole(groupUuid, userId, role string) error
	// IncrementUnreadExcept 单条语句批量递增除发送者外全部成员的未读计数
	IncrementUnreadExcept(groupUuid, senderId string) error
	// ResetUnread 把成员未读计数归零并记录已读时间
	ResetUnread(groupUuid, userId string, at time.Time) error
	// CountAdmins 统计群聊管理员数量，用于最后管理员保护
	CountAdmins(groupUuid string) (int64, error)
	// Delete 移除单个群成员
	Delete(groupUuid, userId string) error
	// DeleteByGroupUuid 移除群聊全部成员（解散级联）
	DeleteByGroupUuid(groupUuid string) error
}

// GroupMessageRepository 群聊消息数据访问接口
type GroupMessageRepository interface {
	// Create 创建群消息
	Create(message *model.GroupMessage) error
	// FindByUuid 根据雪花 ID 查找群消息
	FindByUuid(uuid int64) (*model.GroupMessage, error)
	// FindByGroupUuid 查找群聊全部消息，按创建时间升序
	FindByGroupUuid(groupUuid string) ([]model.GroupMessage, error)
	// Search 在群聊内按内容模糊检索
	Search(groupUuid, keyword string) ([]model.GroupMessage, error)
	// SoftDeleteByUuid 软删除群消息
	SoftDeleteByUuid(uuid int64) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db           *gorm.DB                    // GORM 数据库实例
	Conversation ConversationRepository      // 单聊会话 Repository
	Message      MessageRepository           // 单聊消息 Repository
	Group        GroupConversationRepository // 群聊会话 Repository
	GroupMember  GroupMemberRepository       // 群成员 Repository
	GroupMessage GroupMessageRepository      // 群消息 Repository
}

// NewRepositories 创建所有 Repository 实例
// db: GORM 数据库实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Conversation: NewConversationRepository(db),
		Message:      NewMessageRepository(db),
		Group:        NewGroupConversationRepository(db),
		GroupMember:  NewGroupMemberRepository(db),
		GroupMessage: NewGroupMessageRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
// 消息写入与计数器/指针调整必须走同一个事务，并发发送不会丢失递增
// 当聚合未绑定数据库实例时（测试中使用内存替身）直接执行函数
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 使用事务 db 创建新的 Repositories 实例
		return fn(NewRepositories(tx))
	})
}
