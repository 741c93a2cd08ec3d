// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供上层调用
// 接口设计遵循依赖倒置原则，便于测试和解耦
package service

import (
	"school_chat_server/internal/dto/request"
	"school_chat_server/internal/dto/respond"
)

// DirectMessageService 单聊业务接口
// 所有操作先过授权闸门，写操作在事务内同步调整未读计数与最新消息指针，
// 事务提交后才通过事件总线向在线接收者推送
type DirectMessageService interface {
	// FindOrCreateConversation 查找或创建两个用户之间的会话
	// 参数顺序无关，重复调用幂等，返回的视角属于 userId
	FindOrCreateConversation(userId, peerId string) (*respond.ConversationRespond, error)
	// SendMessage 发送单聊消息
	// 自发自收返回状态冲突错误；提交后向在线接收者推送 message:new
	SendMessage(req request.SendMessageRequest) (*respond.MessageRespond, error)
	// MarkMessageAsRead 把单条消息标记为已读
	// 仅接收者可调用；重复标记幂等成功；首次翻转向发送者推送 message:read
	MarkMessageAsRead(userId string, messageId int64) error
	// MarkConversationAsRead 把会话内发给自己的全部未读消息标记为已读
	// 同一事务内把自己一侧的未读计数归零；重复调用幂等
	MarkConversationAsRead(userId, conversationId string) error
	// DeleteMessage 删除消息（软删除），仅发送者可调用
	DeleteMessage(userId string, messageId int64) error
	// SearchMessages 在自己参与的会话范围内按内容检索
	// 空白关键词返回参数错误
	SearchMessages(userId, keyword string) ([]respond.MessageRespond, error)
	// GetUnreadCount 获取未读计数
	// conversationId 非空时返回该会话内自己一侧的计数，为空时返回全部会话总和
	GetUnreadCount(userId, conversationId string) (int64, error)
	// GetMessageList 获取会话内全部消息，仅参与者可调用
	GetMessageList(userId, conversationId string) ([]respond.MessageRespond, error)
	// GetConversationList 获取自己的会话列表，按最新消息时间倒序
	GetConversationList(userId string) ([]respond.ConversationRespond, error)
}

// GroupConversationService 群聊业务接口
type GroupConversationService interface {
	// CreateGroupConversation 创建群聊
	// 班级群必须携带班级 ID 且同班级只允许一个活跃班级群；创建者总是管理员
	CreateGroupConversation(req request.CreateGroupRequest) (*respond.GroupConversationRespond, error)
	// SendGroupMessage 发送群聊消息
	// 停用群返回状态冲突；仅公告群在每次调用时重新检查发送者角色；
	// 提交后向其余在线成员推送 group:message:new
	SendGroupMessage(req request.SendGroupMessageRequest) (*respond.GroupMessageRespond, error)
	// GetGroupMessages 获取群聊全部消息，仅成员可调用
	GetGroupMessages(userId, groupId string) ([]respond.GroupMessageRespond, error)
	// MarkGroupAsRead 把自己在群内的未读计数归零，幂等
	MarkGroupAsRead(userId, groupId string) error
	// SearchGroupMessages 在群聊内按内容检索，仅成员可调用
	SearchGroupMessages(userId, groupId, keyword string) ([]respond.GroupMessageRespond, error)
	// DeleteGroupMessage 删除群消息（软删除）
	// 发送者本人或现任管理员可调用；向全体成员广播 group:message:deleted
	DeleteGroupMessage(userId string, messageId int64) error
	// AddMembers 批量添加群成员，仅管理员可调用，已在群内的自动跳过
	AddMembers(operatorId, groupId string, userIds []string) error
	// RemoveMember 移除群成员
	// 管理员可移除任何人，普通成员只能移除自己（退群）；
	// 移除最后一名管理员返回状态冲突
	RemoveMember(operatorId, groupId, userId string) error
	// PromoteMemberToAdmin 提升成员为管理员，仅管理员可调用
	PromoteMemberToAdmin(operatorId, groupId, userId string) error
	// DemoteAdminToMember 把管理员降级为普通成员
	// 仅管理员可调用；降级最后一名管理员返回状态冲突
	DemoteAdminToMember(operatorId, groupId, userId string) error
	// UpdateGroupConversation 更新群名称/仅公告标志，仅管理员可调用
	UpdateGroupConversation(req request.UpdateGroupRequest) error
	// DeactivateGroupConversation 停用群聊，仅管理员可调用，停用后禁止发言
	DeactivateGroupConversation(operatorId, groupId string) error
	// DeleteGroupConversation 删除群聊（软删除），仅管理员可调用
	// 先级联移除全部成员关系，再删除群本体
	DeleteGroupConversation(operatorId, groupId string) error
	// ListMembers 获取群成员列表，仅成员可调用
	ListMembers(userId, groupId string) ([]respond.GroupMemberRespond, error)
	// GetGroupList 获取自己加入的全部群聊
	GetGroupList(userId string) ([]respond.GroupConversationRespond, error)
}
