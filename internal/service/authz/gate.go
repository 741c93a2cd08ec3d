// Package authz 实现授权闸门
// 三个无状态谓词供单聊/群聊服务复用，每次写操作和读操作都必须先过闸门：
// 谓词失败统一返回权限错误，绝不以空结果静默放行
package authz

import (
	"school_chat_server/internal/dao/mysql/repository"
	"school_chat_server/internal/model"
	"school_chat_server/pkg/errorx"
)

// Gate 授权闸门
// 只读访问数据层，不缓存任何判定结果：角色变更后的下一次调用立即生效
type Gate struct {
	repos *repository.Repositories
}

// NewGate 创建授权闸门
func NewGate(repos *repository.Repositories) *Gate {
	return &Gate{repos: repos}
}

// IsParticipant 判断用户是否为单聊会话参与者
func (g *Gate) IsParticipant(conversationUuid, userId string) (bool, error) {
	conv, err := g.repos.Conversation.FindByUuid(conversationUuid)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return conv.HasParticipant(userId), nil
}

// IsMember 判断用户是否为群聊成员
func (g *Gate) IsMember(groupUuid, userId string) (bool, error) {
	_, err := g.repos.GroupMember.FindByGroupAndUser(groupUuid, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsAdmin 判断用户是否为群聊管理员
// 每次调用都重新读取成员行，降级立即生效
func (g *Gate) IsAdmin(groupUuid, userId string) (bool, error) {
	member, err := g.repos.GroupMember.FindByGroupAndUser(groupUuid, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return member.IsAdmin(), nil
}

// RequireParticipant 要求用户是会话参与者
// 会话不存在返回 NotFound；非参与者返回 AccessDenied；通过时返回会话实体
func (g *Gate) RequireParticipant(conversationUuid, userId string) (*model.Conversation, error) {
	conv, err := g.repos.Conversation.FindByUuid(conversationUuid)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeNotFound, "会话 %s 不存在", conversationUuid)
		}
		return nil, err
	}
	if !conv.HasParticipant(userId) {
		return nil, errorx.New(errorx.CodeAccessDenied, "不是该会话的参与者")
	}
	return conv, nil
}

// RequireMember 要求用户是群聊成员
// 通过时返回成员行，调用方可继续做角色判定
func (g *Gate) RequireMember(groupUuid, userId string) (*model.GroupMember, error) {
	member, err := g.repos.GroupMember.FindByGroupAndUser(groupUuid, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeAccessDenied, "不是该群聊的成员")
		}
		return nil, err
	}
	return member, nil
}

// RequireAdmin 要求用户是群聊管理员
func (g *Gate) RequireAdmin(groupUuid, userId string) (*model.GroupMember, error) {
	member, err := g.RequireMember(groupUuid, userId)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, errorx.New(errorx.CodeAccessDenied, "该操作仅限群管理员")
	}
	return member, nil
}
