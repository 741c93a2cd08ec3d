// Package group 实现群聊业务逻辑
// 角色判定永远以数据库当前状态为准：仅公告群的发言权限在每次发送时重新求值，
// 管理员降级后的下一条消息立即被拒绝
package group

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"school_chat_server/internal/dao/mysql/repository"
	myredis "school_chat_server/internal/dao/redis"
	"school_chat_server/internal/dto/event"
	"school_chat_server/internal/dto/request"
	"school_chat_server/internal/dto/respond"
	"school_chat_server/internal/model"
	"school_chat_server/internal/service/authz"
	"school_chat_server/internal/service/presence"
	"school_chat_server/pkg/constants"
	"school_chat_server/pkg/errorx"
	"school_chat_server/pkg/util/random"
	"school_chat_server/pkg/util/snowflake"
)

// 时间展示格式
const timeFormat = "2006-01-02 15:04:05"

// groupConversationService 群聊业务逻辑实现
type groupConversationService struct {
	repos *repository.Repositories
	cache myredis.AsyncCacheService
	bus   presence.EventBus
	gate  *authz.Gate
}

// NewGroupConversationService 构造函数
func NewGroupConversationService(repos *repository.Repositories, cache myredis.AsyncCacheService, bus presence.EventBus) *groupConversationService {
	return &groupConversationService{
		repos: repos,
		cache: cache,
		bus:   bus,
		gate:  authz.NewGate(repos),
	}
}

// CreateGroupConversation 创建群聊
// 班级群必须携带班级 ID，且同一班级同一时间只允许一个活跃班级群；
// 创建者总是管理员，AdminIds/MemberIds 去重后同时出现的按管理员处理
func (s *groupConversationService) CreateGroupConversation(req request.CreateGroupRequest) (*respond.GroupConversationRespond, error) {
	if req.CreatorId == "" || strings.TrimSpace(req.Name) == "" {
		return nil, errorx.ErrInvalidParam
	}
	switch req.Type {
	case model.GroupTypeClass, model.GroupTypeAnnouncement, model.GroupTypeCustom:
	default:
		return nil, errorx.Newf(errorx.CodeInvalidParam, "未知群类型 %s", req.Type)
	}

	if req.Type == model.GroupTypeClass {
		if req.ClassId == "" {
			return nil, errorx.New(errorx.CodeInvalidParam, "班级群必须关联班级")
		}
		existing, err := s.repos.Group.FindActiveByClassId(req.ClassId)
		if err != nil && !errorx.IsNotFound(err) {
			return nil, err
		}
		if existing != nil {
			return nil, errorx.Newf(errorx.CodeStateConflict, "班级 %s 已存在活跃班级群", req.ClassId)
		}
	}

	// 角色归并：成员列表先铺底，管理员列表覆盖，创建者最后压阵
	roles := make(map[string]string)
	for _, userId := range req.MemberIds {
		if userId != "" {
			roles[userId] = model.RoleMember
		}
	}
	for _, userId := range req.AdminIds {
		if userId != "" {
			roles[userId] = model.RoleAdmin
		}
	}
	roles[req.CreatorId] = model.RoleAdmin

	group := &model.GroupConversation{
		Uuid:               "G" + random.GetNowAndLenRandomString(13),
		Name:               strings.TrimSpace(req.Name),
		Type:               req.Type,
		ClassId:            req.ClassId,
		CreatedBy:          req.CreatorId,
		IsAnnouncementOnly: req.IsAnnouncementOnly,
		IsActive:           true,
	}
	members := make([]model.GroupMember, 0, len(roles))
	for userId, role := range roles {
		members = append(members, model.GroupMember{
			GroupUuid: group.Uuid,
			UserId:    userId,
			Role:      role,
		})
	}

	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Group.Create(group); err != nil {
			return err
		}
		return tx.GroupMember.CreateBatch(members)
	})
	if err != nil {
		zap.L().Error("create group error", zap.String("creatorId", req.CreatorId), zap.Error(err))
		return nil, err
	}
	return groupRespond(group), nil
}

// SendGroupMessage 发送群聊消息
// 仅公告群的角色检查每次调用都重新读取成员行，降级立即生效；
// 消息写入、指针刷新、其余成员未读批量递增同一事务完成
func (s *groupConversationService) SendGroupMessage(req request.SendGroupMessageRequest) (*respond.GroupMessageRespond, error) {
	if req.SenderId == "" || req.GroupId == "" {
		return nil, errorx.ErrInvalidParam
	}

	group, err := s.repos.Group.FindByUuid(req.GroupId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeNotFound, "群聊 %s 不存在", req.GroupId)
		}
		return nil, err
	}
	if !group.IsActive {
		return nil, errorx.New(errorx.CodeStateConflict, "群聊已停用，禁止发言")
	}

	member, err := s.gate.RequireMember(group.Uuid, req.SenderId)
	if err != nil {
		return nil, err
	}
	if group.IsAnnouncementOnly && !member.IsAdmin() {
		return nil, errorx.New(errorx.CodeAccessDenied, "仅公告群只有管理员可以发言")
	}

	now := time.Now()
	message := &model.GroupMessage{
		Uuid:        snowflake.GenerateID(),
		GroupUuid:   group.Uuid,
		SendId:      req.SenderId,
		Content:     req.Content,
		Attachments: model.MarshalAttachments(req.Attachments),
		SentAt:      sql.NullTime{Time: now, Valid: true},
	}

	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.GroupMessage.Create(message); err != nil {
			return err
		}
		if err := tx.Group.UpdateLastMessage(group.Uuid, message.Uuid, now); err != nil {
			return err
		}
		return tx.GroupMember.IncrementUnreadExcept(group.Uuid, req.SenderId)
	})
	if err != nil {
		zap.L().Error("send group message error",
			zap.String("groupId", req.GroupId),
			zap.String("senderId", req.SenderId),
			zap.Error(err))
		return nil, err
	}

	// 事务已提交，向其余成员推送；离线成员静默跳过
	if recipients, listErr := s.otherMemberIds(group.Uuid, req.SenderId); listErr == nil {
		s.bus.EmitToUsers(recipients, event.GroupMessageNew, event.GroupMessageNewPayload{
			GroupMessageId:      strconv.FormatInt(message.Uuid, 10),
			GroupConversationId: group.Uuid,
			SenderId:            req.SenderId,
			Content:             req.Content,
			Attachments:         model.UnmarshalAttachments(message.Attachments),
			SentAt:              now.Format(time.RFC3339),
		})
	}
	s.invalidateMessageListCache(group.Uuid)

	return groupMessageRespond(message), nil
}

// GetGroupMessages 获取群聊全部消息，仅成员可调用
// 缓存旁路：先查缓存，未命中再查库并异步回填
func (s *groupConversationService) GetGroupMessages(userId, groupId string) ([]respond.GroupMessageRespond, error) {
	if _, err := s.gate.RequireMember(groupId, userId); err != nil {
		return nil, err
	}

	cacheKey := "group_message_list_" + groupId
	if cached, err := s.cache.Get(context.Background(), cacheKey); err == nil && cached != "" {
		var rsp []respond.GroupMessageRespond
		if err := json.Unmarshal([]byte(cached), &rsp); err == nil {
			return rsp, nil
		}
		zap.L().Error("json unmarshal cache error", zap.String("key", cacheKey))
	}

	messages, err := s.repos.GroupMessage.FindByGroupUuid(groupId)
	if err != nil {
		zap.L().Error("find group messages error", zap.String("groupId", groupId), zap.Error(err))
		return nil, err
	}
	rspList := groupMessageRespondList(messages)

	s.cache.SubmitTask(func() {
		jsonBytes, err := json.Marshal(rspList)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if err := s.cache.Set(context.Background(), cacheKey, string(jsonBytes),
			time.Duration(constants.REDIS_TIMEOUT)*time.Minute); err != nil {
			zap.L().Error("redis set key error", zap.Error(err))
		}
	})

	return rspList, nil
}

// MarkGroupAsRead 把自己在群内的未读计数归零，重复调用幂等
func (s *groupConversationService) MarkGroupAsRead(userId, groupId string) error {
	if _, err := s.gate.RequireMember(groupId, userId); err != nil {
		return err
	}
	if err := s.repos.GroupMember.ResetUnread(groupId, userId, time.Now()); err != nil {
		zap.L().Error("mark group as read error", zap.String("groupId", groupId), zap.Error(err))
		return err
	}
	return nil
}

// SearchGroupMessages 在群聊内按内容检索，仅成员可调用
func (s *groupConversationService) SearchGroupMessages(userId, groupId, keyword string) ([]respond.GroupMessageRespond, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "搜索关键词不能为空")
	}
	if _, err := s.gate.RequireMember(groupId, userId); err != nil {
		return nil, err
	}
	messages, err := s.repos.GroupMessage.Search(groupId, keyword)
	if err != nil {
		zap.L().Error("search group messages error", zap.String("groupId", groupId), zap.Error(err))
		return nil, err
	}
	return groupMessageRespondList(messages), nil
}

// DeleteGroupMessage 删除群消息（软删除）
// 发送者本人或现任管理员可调用；删除后向全体成员广播删除事件
func (s *groupConversationService) DeleteGroupMessage(userId string, messageId int64) error {
	message, err := s.repos.GroupMessage.FindByUuid(messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "群消息 %d 不存在", messageId)
		}
		return err
	}

	member, err := s.gate.RequireMember(message.GroupUuid, userId)
	if err != nil {
		return err
	}
	if message.SendId != userId && !member.IsAdmin() {
		return errorx.New(errorx.CodeAccessDenied, "只有发送者或管理员可以删除群消息")
	}

	if err := s.repos.GroupMessage.SoftDeleteByUuid(messageId); err != nil {
		zap.L().Error("delete group message error", zap.Int64("messageId", messageId), zap.Error(err))
		return err
	}

	// 全体成员都要收到删除事件，保证各端消息列表收敛
	if memberIds, listErr := s.allMemberIds(message.GroupUuid); listErr == nil {
		s.bus.EmitToUsers(memberIds, event.GroupMessageDeleted, event.GroupMessageDeletedPayload{
			GroupMessageId:      strconv.FormatInt(messageId, 10),
			GroupConversationId: message.GroupUuid,
			DeletedBy:           userId,
		})
	}
	s.invalidateMessageListCache(message.GroupUuid)
	return nil
}

// AddMembers 批量添加群成员，仅管理员可调用
// 已在群内的用户自动跳过，整体幂等
func (s *groupConversationService) AddMembers(operatorId, groupId string, userIds []string) error {
	if _, err := s.repos.Group.FindByUuid(groupId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "群聊 %s 不存在", groupId)
		}
		return err
	}
	if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(userIds))
	newMembers := make([]model.GroupMember, 0, len(userIds))
	for _, userId := range userIds {
		if userId == "" {
			continue
		}
		if _, dup := seen[userId]; dup {
			continue
		}
		seen[userId] = struct{}{}
		if _, err := s.repos.GroupMember.FindByGroupAndUser(groupId, userId); err == nil {
			continue
		} else if !errorx.IsNotFound(err) {
			return err
		}
		newMembers = append(newMembers, model.GroupMember{
			GroupUuid: groupId,
			UserId:    userId,
			Role:      model.RoleMember,
		})
	}
	if len(newMembers) == 0 {
		return nil
	}

	if err := s.repos.GroupMember.CreateBatch(newMembers); err != nil {
		zap.L().Error("add members error", zap.String("groupId", groupId), zap.Error(err))
		return err
	}
	s.invalidateMemberListCache(groupId)
	return nil
}

// RemoveMember 移除群成员
// 管理员可移除任何人，普通成员只能移除自己（退群）；
// 活跃群必须保有至少一名管理员，移除最后一名管理员被拒绝
func (s *groupConversationService) RemoveMember(operatorId, groupId, userId string) error {
	target, err := s.repos.GroupMember.FindByGroupAndUser(groupId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "用户 %s 不是该群聊的成员", userId)
		}
		return err
	}

	if operatorId != userId {
		if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
			return err
		}
	}

	if target.IsAdmin() {
		count, err := s.repos.GroupMember.CountAdmins(groupId)
		if err != nil {
			return err
		}
		if count <= 1 {
			return errorx.New(errorx.CodeStateConflict, "不能移除最后一名管理员")
		}
	}

	if err := s.repos.GroupMember.Delete(groupId, userId); err != nil {
		zap.L().Error("remove member error", zap.String("groupId", groupId), zap.String("userId", userId), zap.Error(err))
		return err
	}
	s.invalidateMemberListCache(groupId)
	return nil
}

// PromoteMemberToAdmin 提升成员为管理员，仅管理员可调用，重复提升幂等
func (s *groupConversationService) PromoteMemberToAdmin(operatorId, groupId, userId string) error {
	if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
		return err
	}
	target, err := s.repos.GroupMember.FindByGroupAndUser(groupId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "用户 %s 不是该群聊的成员", userId)
		}
		return err
	}
	if target.IsAdmin() {
		return nil
	}
	if err := s.repos.GroupMember.UpdateRole(groupId, userId, model.RoleAdmin); err != nil {
		zap.L().Error("promote member error", zap.String("groupId", groupId), zap.String("userId", userId), zap.Error(err))
		return err
	}
	s.invalidateMemberListCache(groupId)
	return nil
}

// DemoteAdminToMember 把管理员降级为普通成员
// 降级最后一名管理员被拒绝；降级立即生效，下一次发言检查即按新角色判定
func (s *groupConversationService) DemoteAdminToMember(operatorId, groupId, userId string) error {
	if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
		return err
	}
	target, err := s.repos.GroupMember.FindByGroupAndUser(groupId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "用户 %s 不是该群聊的成员", userId)
		}
		return err
	}
	if !target.IsAdmin() {
		return nil
	}

	count, err := s.repos.GroupMember.CountAdmins(groupId)
	if err != nil {
		return err
	}
	if count <= 1 {
		return errorx.New(errorx.CodeStateConflict, "不能降级最后一名管理员")
	}

	if err := s.repos.GroupMember.UpdateRole(groupId, userId, model.RoleMember); err != nil {
		zap.L().Error("demote admin error", zap.String("groupId", groupId), zap.String("userId", userId), zap.Error(err))
		return err
	}
	s.invalidateMemberListCache(groupId)
	return nil
}

// UpdateGroupConversation 更新群名称/仅公告标志，仅管理员可调用
func (s *groupConversationService) UpdateGroupConversation(req request.UpdateGroupRequest) error {
	group, err := s.repos.Group.FindByUuid(req.GroupId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "群聊 %s 不存在", req.GroupId)
		}
		return err
	}
	if _, err := s.gate.RequireAdmin(group.Uuid, req.OperatorId); err != nil {
		return err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return errorx.New(errorx.CodeInvalidParam, "群名称不能为空")
		}
		group.Name = name
	}
	if req.IsAnnouncementOnly != nil {
		group.IsAnnouncementOnly = *req.IsAnnouncementOnly
	}

	if err := s.repos.Group.Update(group); err != nil {
		zap.L().Error("update group error", zap.String("groupId", req.GroupId), zap.Error(err))
		return err
	}
	return nil
}

// DeactivateGroupConversation 停用群聊，仅管理员可调用，重复停用幂等
func (s *groupConversationService) DeactivateGroupConversation(operatorId, groupId string) error {
	if _, err := s.repos.Group.FindByUuid(groupId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "群聊 %s 不存在", groupId)
		}
		return err
	}
	if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
		return err
	}
	if err := s.repos.Group.SetActive(groupId, false); err != nil {
		zap.L().Error("deactivate group error", zap.String("groupId", groupId), zap.Error(err))
		return err
	}
	return nil
}

// DeleteGroupConversation 删除群聊（软删除），仅管理员可调用
// 先级联移除全部成员关系，再删除群本体，同一事务完成
func (s *groupConversationService) DeleteGroupConversation(operatorId, groupId string) error {
	if _, err := s.repos.Group.FindByUuid(groupId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "群聊 %s 不存在", groupId)
		}
		return err
	}
	if _, err := s.gate.RequireAdmin(groupId, operatorId); err != nil {
		return err
	}

	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.GroupMember.DeleteByGroupUuid(groupId); err != nil {
			return err
		}
		return tx.Group.SoftDeleteByUuid(groupId)
	})
	if err != nil {
		zap.L().Error("delete group error", zap.String("groupId", groupId), zap.Error(err))
		return err
	}

	s.invalidateMemberListCache(groupId)
	s.invalidateMessageListCache(groupId)
	return nil
}

// ListMembers 获取群成员列表，仅成员可调用
// 缓存旁路：成员变更低频，列表读取高频
func (s *groupConversationService) ListMembers(userId, groupId string) ([]respond.GroupMemberRespond, error) {
	if _, err := s.gate.RequireMember(groupId, userId); err != nil {
		return nil, err
	}

	cacheKey := "group_member_list_" + groupId
	if cached, err := s.cache.Get(context.Background(), cacheKey); err == nil && cached != "" {
		var rsp []respond.GroupMemberRespond
		if err := json.Unmarshal([]byte(cached), &rsp); err == nil {
			return rsp, nil
		}
		zap.L().Error("json unmarshal cache error", zap.String("key", cacheKey))
	}

	members, err := s.repos.GroupMember.FindByGroupUuid(groupId)
	if err != nil {
		zap.L().Error("find group members error", zap.String("groupId", groupId), zap.Error(err))
		return nil, err
	}
	rspList := make([]respond.GroupMemberRespond, 0, len(members))
	for i := range members {
		rspList = append(rspList, *groupMemberRespond(&members[i]))
	}

	s.cache.SubmitTask(func() {
		jsonBytes, err := json.Marshal(rspList)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if err := s.cache.Set(context.Background(), cacheKey, string(jsonBytes),
			time.Duration(constants.REDIS_TIMEOUT)*time.Minute); err != nil {
			zap.L().Error("redis set key error", zap.Error(err))
		}
	})

	return rspList, nil
}

// GetGroupList 获取自己加入的全部群聊
func (s *groupConversationService) GetGroupList(userId string) ([]respond.GroupConversationRespond, error) {
	groupUuids, err := s.repos.GroupMember.FindGroupUuidsByUser(userId)
	if err != nil {
		zap.L().Error("find group uuids error", zap.String("userId", userId), zap.Error(err))
		return nil, err
	}
	if len(groupUuids) == 0 {
		return []respond.GroupConversationRespond{}, nil
	}
	groups, err := s.repos.Group.FindByUuids(groupUuids)
	if err != nil {
		zap.L().Error("find groups error", zap.String("userId", userId), zap.Error(err))
		return nil, err
	}
	rspList := make([]respond.GroupConversationRespond, 0, len(groups))
	for i := range groups {
		rspList = append(rspList, *groupRespond(&groups[i]))
	}
	return rspList, nil
}

// ==================== 内部辅助 ====================

// allMemberIds 返回群聊全部成员 ID
func (s *groupConversationService) allMemberIds(groupUuid string) ([]string, error) {
	members, err := s.repos.GroupMember.FindByGroupUuid(groupUuid)
	if err != nil {
		zap.L().Error("find group members error", zap.String("groupId", groupUuid), zap.Error(err))
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for i := range members {
		ids = append(ids, members[i].UserId)
	}
	return ids, nil
}

// otherMemberIds 返回除指定用户外的全部成员 ID
func (s *groupConversationService) otherMemberIds(groupUuid, excludeId string) ([]string, error) {
	memberIds, err := s.allMemberIds(groupUuid)
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(memberIds))
	for _, id := range memberIds {
		if id != excludeId {
			others = append(others, id)
		}
	}
	return others, nil
}

// invalidateMessageListCache 异步失效群消息列表缓存
func (s *groupConversationService) invalidateMessageListCache(groupUuid string) {
	cacheKey := "group_message_list_" + groupUuid
	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), cacheKey); err != nil {
			zap.L().Error("redis delete key error", zap.String("key", cacheKey), zap.Error(err))
		}
	})
}

// invalidateMemberListCache 异步失效群成员列表缓存
func (s *groupConversationService) invalidateMemberListCache(groupUuid string) {
	cacheKey := "group_member_list_" + groupUuid
	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), cacheKey); err != nil {
			zap.L().Error("redis delete key error", zap.String("key", cacheKey), zap.Error(err))
		}
	})
}

// ==================== 实体 → 出参转换 ====================

func groupRespond(group *model.GroupConversation) *respond.GroupConversationRespond {
	rsp := &respond.GroupConversationRespond{
		GroupConversationId: group.Uuid,
		Name:                group.Name,
		Type:                group.Type,
		ClassId:             group.ClassId,
		CreatedBy:           group.CreatedBy,
		IsAnnouncementOnly:  group.IsAnnouncementOnly,
		IsActive:            group.IsActive,
	}
	if group.LastMessageAt.Valid {
		rsp.LastMessageAt = group.LastMessageAt.Time.Format(timeFormat)
	}
	return rsp
}

func groupMessageRespond(message *model.GroupMessage) *respond.GroupMessageRespond {
	rsp := &respond.GroupMessageRespond{
		GroupMessageId:      strconv.FormatInt(message.Uuid, 10),
		GroupConversationId: message.GroupUuid,
		SenderId:            message.SendId,
		Content:             message.Content,
		Attachments:         model.UnmarshalAttachments(message.Attachments),
	}
	if message.SentAt.Valid {
		rsp.SentAt = message.SentAt.Time.Format(timeFormat)
	}
	return rsp
}

func groupMessageRespondList(messages []model.GroupMessage) []respond.GroupMessageRespond {
	rspList := make([]respond.GroupMessageRespond, 0, len(messages))
	for i := range messages {
		rspList = append(rspList, *groupMessageRespond(&messages[i]))
	}
	return rspList
}

func groupMemberRespond(member *model.GroupMember) *respond.GroupMemberRespond {
	rsp := &respond.GroupMemberRespond{
		UserId:      member.UserId,
		Role:        member.Role,
		UnreadCount: member.UnreadCount,
	}
	if member.LastReadAt.Valid {
		rsp.LastReadAt = member.LastReadAt.Time.Format(timeFormat)
	}
	return rsp
}
