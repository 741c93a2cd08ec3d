// Package direct 实现单聊业务逻辑
// 写路径：授权闸门 → 事务内落库（消息 + 未读计数 + 最新消息指针）→ 事件总线推送
// 推送永远发生在事务提交之后，且不影响操作结果；离线接收者靠后续拉取补齐
package direct

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

// directMessageService 单聊业务逻辑实现
type directMessageService struct {
	repos *repository.Repositories
	cache myredis.AsyncCacheService
	bus   presence.EventBus
	gate  *authz.Gate
}

// NewDirectMessageService 构造函数
func NewDirectMessageService(repos *repository.Repositories, cache myredis.AsyncCacheService, bus presence.EventBus) *directMessageService {
	return &directMessageService{
		repos: repos,
		cache: cache,
		bus:   bus,
		gate:  authz.NewGate(repos),
	}
}

// FindOrCreateConversation 查找或创建两个用户之间的会话
// 参数顺序无关：(A,B) 和 (B,A) 永远命中同一个会话
func (s *directMessageService) FindOrCreateConversation(userId, peerId string) (*respond.ConversationRespond, error) {
	if userId == "" || peerId == "" {
		return nil, errorx.ErrInvalidParam
	}
	if userId == peerId {
		return nil, errorx.New(errorx.CodeStateConflict, "不能与自己建立会话")
	}
	conv, err := s.findOrCreate(userId, peerId)
	if err != nil {
		return nil, err
	}
	return conversationRespond(conv, userId), nil
}

// findOrCreate 查找或创建会话实体
// 唯一索引 (participant_low, participant_high) 拦截并发重复创建：
// 插入冲突时回查一次即可拿到对方刚创建的那一行
func (s *directMessageService) findOrCreate(userA, userB string) (*model.Conversation, error) {
	low, high := model.NormalizePair(userA, userB)
	conv, err := s.repos.Conversation.FindByPair(low, high)
	if err == nil {
		return conv, nil
	}
	if !errorx.IsNotFound(err) {
		return nil, err
	}

	conv = &model.Conversation{
		Uuid:            "C" + random.GetNowAndLenRandomString(13),
		ParticipantLow:  low,
		ParticipantHigh: high,
	}
	if createErr := s.repos.Conversation.Create(conv); createErr != nil {
		// 唯一索引冲突说明对端并发创建成功，回查复用
		existing, findErr := s.repos.Conversation.FindByPair(low, high)
		if findErr != nil {
			zap.L().Error("create conversation error", zap.Error(createErr))
			return nil, createErr
		}
		return existing, nil
	}
	return conv, nil
}

// SendMessage 发送单聊消息
// 消息写入、最新消息指针刷新、接收者未读计数递增在同一个事务内完成，
// 并发发送不会丢失任何一次递增
func (s *directMessageService) SendMessage(req request.SendMessageRequest) (*respond.MessageRespond, error) {
	if req.SenderId == "" || req.RecipientId == "" {
		return nil, errorx.ErrInvalidParam
	}
	if req.SenderId == req.RecipientId {
		return nil, errorx.New(errorx.CodeStateConflict, "不能给自己发送消息")
	}

	conv, err := s.findOrCreate(req.SenderId, req.RecipientId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := &model.Message{
		Uuid:             snowflake.GenerateID(),
		ConversationUuid: conv.Uuid,
		SendId:           req.SenderId,
		ReceiveId:        req.RecipientId,
		Content:          req.Content,
		Attachments:      model.MarshalAttachments(req.Attachments),
		IsRead:           false,
		SentAt:           sqlTime(now),
	}

	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Message.Create(message); err != nil {
			return err
		}
		if err := tx.Conversation.UpdateLastMessage(conv.Uuid, message.Uuid, now); err != nil {
			return err
		}
		return tx.Conversation.IncrementUnread(conv.Uuid, req.RecipientId)
	})
	if err != nil {
		zap.L().Error("send message error",
			zap.String("senderId", req.SenderId),
			zap.String("recipientId", req.RecipientId),
			zap.Error(err))
		return nil, err
	}

	// 事务已提交，推送新消息事件；接收者离线时静默丢弃
	s.bus.EmitToUser(req.RecipientId, event.MessageNew, event.MessageNewPayload{
		MessageId:      strconv.FormatInt(message.Uuid, 10),
		ConversationId: conv.Uuid,
		SenderId:       req.SenderId,
		RecipientId:    req.RecipientId,
		Content:        req.Content,
		Attachments:    model.UnmarshalAttachments(message.Attachments),
		SentAt:         now.Format(time.RFC3339),
		IsRead:         false,
	})
	s.invalidateMessageListCache(conv.Uuid)

	return messageRespond(message), nil
}

// MarkMessageAsRead 把单条消息标记为已读
// 仅接收者可调用；已读消息重复标记幂等成功且不再推送回执
func (s *directMessageService) MarkMessageAsRead(userId string, messageId int64) error {
	message, err := s.repos.Message.FindByUuid(messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "消息 %d 不存在", messageId)
		}
		return err
	}
	if message.ReceiveId != userId {
		return errorx.New(errorx.CodeAccessDenied, "只有接收者可以标记已读")
	}
	if message.IsRead {
		return nil
	}

	now := time.Now()
	var flipped int64
	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		rows, err := tx.Message.MarkRead(messageId, now)
		if err != nil {
			return err
		}
		flipped = rows
		if rows == 0 {
			// 并发下已被另一次调用翻转，计数不再调整
			return nil
		}
		return tx.Conversation.DecrementUnread(message.ConversationUuid, userId)
	})
	if err != nil {
		zap.L().Error("mark message as read error", zap.Int64("messageId", messageId), zap.Error(err))
		return err
	}

	if flipped > 0 {
		s.bus.EmitToUser(message.SendId, event.MessageRead, event.MessageReadPayload{
			MessageId:      strconv.FormatInt(messageId, 10),
			ConversationId: message.ConversationUuid,
			ReadBy:         userId,
			ReadAt:         now.Format(time.RFC3339),
		})
		s.invalidateMessageListCache(message.ConversationUuid)
	}
	return nil
}

// MarkConversationAsRead 把会话内发给自己的全部未读消息标记为已读
// 消息翻转与计数清零同一事务完成，计数不会与真实未读数漂移；重复调用幂等
func (s *directMessageService) MarkConversationAsRead(userId, conversationId string) error {
	conv, err := s.gate.RequireParticipant(conversationId, userId)
	if err != nil {
		return err
	}

	now := time.Now()
	var flipped int64
	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		rows, err := tx.Message.MarkConversationRead(conv.Uuid, userId, now)
		if err != nil {
			return err
		}
		flipped = rows
		return tx.Conversation.ResetUnread(conv.Uuid, userId)
	})
	if err != nil {
		zap.L().Error("mark conversation as read error", zap.String("conversationId", conversationId), zap.Error(err))
		return err
	}

	if flipped > 0 {
		s.invalidateMessageListCache(conv.Uuid)
	}
	return nil
}

// DeleteMessage 删除消息（软删除），仅发送者可调用
func (s *directMessageService) DeleteMessage(userId string, messageId int64) error {
	message, err := s.repos.Message.FindByUuid(messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "消息 %d 不存在", messageId)
		}
		return err
	}
	if message.SendId != userId {
		return errorx.New(errorx.CodeAccessDenied, "只有发送者可以删除消息")
	}
	if err := s.repos.Message.SoftDeleteByUuid(messageId); err != nil {
		zap.L().Error("delete message error", zap.Int64("messageId", messageId), zap.Error(err))
		return err
	}
	s.invalidateMessageListCache(message.ConversationUuid)
	return nil
}

// SearchMessages 在自己参与的会话范围内按内容检索
func (s *directMessageService) SearchMessages(userId, keyword string) ([]respond.MessageRespond, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "搜索关键词不能为空")
	}

	convs, err := s.repos.Conversation.FindByUserId(userId)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []respond.MessageRespond{}, nil
	}
	uuids := make([]string, 0, len(convs))
	for _, conv := range convs {
		uuids = append(uuids, conv.Uuid)
	}

	messages, err := s.repos.Message.Search(uuids, keyword)
	if err != nil {
		zap.L().Error("search messages error", zap.String("userId", userId), zap.Error(err))
		return nil, err
	}
	return messageRespondList(messages), nil
}

// GetUnreadCount 获取未读计数
// conversationId 非空时返回该会话内自己一侧的计数，为空时汇总全部会话
func (s *directMessageService) GetUnreadCount(userId, conversationId string) (int64, error) {
	if conversationId == "" {
		return s.repos.Conversation.SumUnreadForUser(userId)
	}
	conv, err := s.gate.RequireParticipant(conversationId, userId)
	if err != nil {
		return 0, err
	}
	return int64(conv.UnreadCountFor(userId)), nil
}

// GetMessageList 获取会话内全部消息，仅参与者可调用
// 缓存旁路：先查缓存，未命中再查库并异步回填
func (s *directMessageService) GetMessageList(userId, conversationId string) ([]respond.MessageRespond, error) {
	conv, err := s.gate.RequireParticipant(conversationId, userId)
	if err != nil {
		return nil, err
	}

	cacheKey := "message_list_" + conv.Uuid
	if cached, err := s.cache.Get(context.Background(), cacheKey); err == nil && cached != "" {
		var rsp []respond.MessageRespond
		if err := json.Unmarshal([]byte(cached), &rsp); err == nil {
			return rsp, nil
		}
		zap.L().Error("json unmarshal cache error", zap.String("key", cacheKey))
	}

	messages, err := s.repos.Message.FindByConversation(conv.Uuid)
	if err != nil {
		zap.L().Error("find messages error", zap.String("conversationId", conversationId), zap.Error(err))
		return nil, err
	}
	rspList := messageRespondList(messages)

	// 异步回填缓存，失败只记日志
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

// GetConversationList 获取自己的会话列表，按最新消息时间倒序
func (s *directMessageService) GetConversationList(userId string) ([]respond.ConversationRespond, error) {
	convs, err := s.repos.Conversation.FindByUserId(userId)
	if err != nil {
		zap.L().Error("find conversations error", zap.String("userId", userId), zap.Error(err))
		return nil, err
	}
	rspList := make([]respond.ConversationRespond, 0, len(convs))
	for i := range convs {
		rspList = append(rspList, *conversationRespond(&convs[i], userId))
	}
	return rspList, nil
}

// invalidateMessageListCache 异步失效会话消息列表缓存
func (s *directMessageService) invalidateMessageListCache(conversationUuid string) {
	cacheKey := "message_list_" + conversationUuid
	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), cacheKey); err != nil {
			zap.L().Error("redis delete key error", zap.String("key", cacheKey), zap.Error(err))
		}
	})
}

// ==================== 实体 → 出参转换 ====================

func conversationRespond(conv *model.Conversation, userId string) *respond.ConversationRespond {
	rsp := &respond.ConversationRespond{
		ConversationId: conv.Uuid,
		PeerId:         conv.PeerOf(userId),
		UnreadCount:    conv.UnreadCountFor(userId),
	}
	if conv.LastMessageId.Valid {
		rsp.LastMessageId = strconv.FormatInt(conv.LastMessageId.Int64, 10)
	}
	if conv.LastMessageAt.Valid {
		rsp.LastMessageAt = conv.LastMessageAt.Time.Format(timeFormat)
	}
	return rsp
}

func messageRespond(message *model.Message) *respond.MessageRespond {
	rsp := &respond.MessageRespond{
		MessageId:      strconv.FormatInt(message.Uuid, 10),
		ConversationId: message.ConversationUuid,
		SenderId:       message.SendId,
		RecipientId:    message.ReceiveId,
		Content:        message.Content,
		Attachments:    model.UnmarshalAttachments(message.Attachments),
		IsRead:         message.IsRead,
	}
	if message.ReadAt.Valid {
		rsp.ReadAt = message.ReadAt.Time.Format(timeFormat)
	}
	if message.SentAt.Valid {
		rsp.SentAt = message.SentAt.Time.Format(timeFormat)
	}
	return rsp
}

func messageRespondList(messages []model.Message) []respond.MessageRespond {
	rspList := make([]respond.MessageRespond, 0, len(messages))
	for i := range messages {
		rspList = append(rspList, *messageRespond(&messages[i]))
	}
	return rspList
}

// sqlTime 把 time.Time 包装成可空时间列
func sqlTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}
