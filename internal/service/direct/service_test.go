package direct

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"school_chat_server/internal/dao/mysql/repository"
	"school_chat_server/internal/dto/event"
	"school_chat_server/internal/dto/request"
	"school_chat_server/internal/model"
	"school_chat_server/pkg/errorx"
)

// ==================== 内存替身 ====================

var errNotFound = errorx.New(errorx.CodeNotFound, "record not found")

// fakeConversationRepo 内存会话存储
type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation // uuid -> 会话
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: make(map[string]*model.Conversation)}
}

func (f *fakeConversationRepo) FindByUuid(uuid string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[uuid]
	if !ok {
		return nil, errNotFound
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeConversationRepo) FindByPair(low, high string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.convs {
		if conv.ParticipantLow == low && conv.ParticipantHigh == high {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeConversationRepo) FindByUserId(userId string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Conversation
	for _, conv := range f.convs {
		if conv.ParticipantLow == userId || conv.ParticipantHigh == userId {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.Time.After(out[j].LastMessageAt.Time)
	})
	return out, nil
}

func (f *fakeConversationRepo) Create(conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.convs {
		if existing.ParticipantLow == conv.ParticipantLow && existing.ParticipantHigh == conv.ParticipantHigh {
			return errorx.New(errorx.CodeDBError, "duplicate participant pair")
		}
	}
	cp := *conv
	f.convs[conv.Uuid] = &cp
	return nil
}

func (f *fakeConversationRepo) UpdateLastMessage(uuid string, messageUuid int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[uuid]
	if !ok {
		return errNotFound
	}
	conv.LastMessageId.Int64 = messageUuid
	conv.LastMessageId.Valid = true
	conv.LastMessageAt.Time = at
	conv.LastMessageAt.Valid = true
	return nil
}

func (f *fakeConversationRepo) IncrementUnread(uuid string, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[uuid]
	if !ok {
		return errNotFound
	}
	if conv.ParticipantLow == userId {
		conv.UnreadCountLow++
	} else if conv.ParticipantHigh == userId {
		conv.UnreadCountHigh++
	}
	return nil
}

func (f *fakeConversationRepo) DecrementUnread(uuid string, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[uuid]
	if !ok {
		return errNotFound
	}
	if conv.ParticipantLow == userId && conv.UnreadCountLow > 0 {
		conv.UnreadCountLow--
	} else if conv.ParticipantHigh == userId && conv.UnreadCountHigh > 0 {
		conv.UnreadCountHigh--
	}
	return nil
}

func (f *fakeConversationRepo) ResetUnread(uuid string, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[uuid]
	if !ok {
		return errNotFound
	}
	if conv.ParticipantLow == userId {
		conv.UnreadCountLow = 0
	} else if conv.ParticipantHigh == userId {
		conv.UnreadCountHigh = 0
	}
	return nil
}

func (f *fakeConversationRepo) SumUnreadForUser(userId string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, conv := range f.convs {
		if conv.ParticipantLow == userId {
			total += int64(conv.UnreadCountLow)
		} else if conv.ParticipantHigh == userId {
			total += int64(conv.UnreadCountHigh)
		}
	}
	return total, nil
}

func (f *fakeConversationRepo) SoftDeleteByUuid(uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, uuid)
	return nil
}

// fakeMessageRepo 内存消息存储
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*model.Message
}

func (f *fakeMessageRepo) Create(message *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *message
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeMessageRepo) FindByUuid(uuid int64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.Uuid == uuid {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeMessageRepo) FindByConversation(conversationUuid string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.ConversationUuid == conversationUuid {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkRead(uuid int64, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.Uuid == uuid && !m.IsRead {
			m.IsRead = true
			m.ReadAt.Time = at
			m.ReadAt.Valid = true
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeMessageRepo) MarkConversationRead(conversationUuid, userId string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped int64
	for _, m := range f.messages {
		if m.ConversationUuid == conversationUuid && m.ReceiveId == userId && !m.IsRead {
			m.IsRead = true
			m.ReadAt.Time = at
			m.ReadAt.Valid = true
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeMessageRepo) CountUnread(conversationUuid, userId string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, m := range f.messages {
		if m.ConversationUuid == conversationUuid && m.ReceiveId == userId && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) Search(conversationUuids []string, keyword string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scope := make(map[string]struct{}, len(conversationUuids))
	for _, uuid := range conversationUuids {
		scope[uuid] = struct{}{}
	}
	var out []model.Message
	for _, m := range f.messages {
		if _, ok := scope[m.ConversationUuid]; ok && strings.Contains(m.Content, keyword) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) SoftDeleteByUuid(uuid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.Uuid == uuid {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

// fakeCache 内存缓存，任务同步执行保证测试确定性
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func (f *fakeCache) SubmitTask(action func()) { action() }

// emitRecord 一次推送记录
type emitRecord struct {
	UserId  string
	Event   string
	Payload interface{}
}

// fakeBus 记录全部推送调用
type fakeBus struct {
	mu      sync.Mutex
	records []emitRecord
}

func (f *fakeBus) EmitToUser(userId string, eventName string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, emitRecord{UserId: userId, Event: eventName, Payload: payload})
}

func (f *fakeBus) EmitToUsers(userIds []string, eventName string, payload interface{}) {
	for _, userId := range userIds {
		f.EmitToUser(userId, eventName, payload)
	}
}

func (f *fakeBus) recordsFor(eventName string) []emitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitRecord
	for _, r := range f.records {
		if r.Event == eventName {
			out = append(out, r)
		}
	}
	return out
}

// ==================== 测试脚手架 ====================

func newTestService() (*directMessageService, *fakeConversationRepo, *fakeMessageRepo, *fakeBus) {
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeMessageRepo{}
	repos := &repository.Repositories{
		Conversation: convRepo,
		Message:      msgRepo,
	}
	bus := &fakeBus{}
	svc := NewDirectMessageService(repos, newFakeCache(), bus)
	return svc, convRepo, msgRepo, bus
}

func mustSend(t *testing.T, svc *directMessageService, from, to, content string) {
	t.Helper()
	rsp, err := svc.SendMessage(request.SendMessageRequest{
		SenderId:    from,
		RecipientId: to,
		Content:     content,
	})
	if err != nil {
		t.Fatalf("SendMessage(%s->%s): %v", from, to, err)
	}
	if rsp.ConversationId == "" || rsp.MessageId == "" {
		t.Fatalf("SendMessage 返回不完整: %+v", rsp)
	}
}

// ==================== 测试 ====================

func TestFindOrCreateConversationOrderIndependent(t *testing.T) {
	svc, _, _, _ := newTestService()

	first, err := svc.FindOrCreateConversation("U1", "U2")
	if err != nil {
		t.Fatalf("首次创建失败: %v", err)
	}
	second, err := svc.FindOrCreateConversation("U2", "U1")
	if err != nil {
		t.Fatalf("反向查找失败: %v", err)
	}
	if first.ConversationId != second.ConversationId {
		t.Errorf("(A,B) 与 (B,A) 返回了不同会话: %s vs %s", first.ConversationId, second.ConversationId)
	}
	if first.PeerId != "U2" || second.PeerId != "U1" {
		t.Errorf("视角对端错误: %s / %s", first.PeerId, second.PeerId)
	}
}

func TestFindOrCreateConversationSelf(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.FindOrCreateConversation("U1", "U1"); !errorx.IsStateConflict(err) {
		t.Errorf("期望状态冲突错误, 得到 %v", err)
	}
}

func TestSendMessageSelf(t *testing.T) {
	svc, _, _, bus := newTestService()
	_, err := svc.SendMessage(request.SendMessageRequest{SenderId: "U1", RecipientId: "U1", Content: "hi"})
	if !errorx.IsStateConflict(err) {
		t.Fatalf("期望状态冲突错误, 得到 %v", err)
	}
	if len(bus.recordsFor(event.MessageNew)) != 0 {
		t.Error("失败的发送不应产生推送")
	}
}

func TestSendMessageAtomicEffects(t *testing.T) {
	svc, convRepo, _, bus := newTestService()
	mustSend(t, svc, "U1", "U2", "hello")

	low, high := model.NormalizePair("U1", "U2")
	conv, err := convRepo.FindByPair(low, high)
	if err != nil {
		t.Fatalf("会话未创建: %v", err)
	}
	if conv.UnreadCountFor("U2") != 1 {
		t.Errorf("接收者未读计数应为 1, 得到 %d", conv.UnreadCountFor("U2"))
	}
	if conv.UnreadCountFor("U1") != 0 {
		t.Errorf("发送者未读计数应为 0, 得到 %d", conv.UnreadCountFor("U1"))
	}
	if !conv.LastMessageId.Valid || !conv.LastMessageAt.Valid {
		t.Error("最新消息指针未刷新")
	}

	pushes := bus.recordsFor(event.MessageNew)
	if len(pushes) != 1 || pushes[0].UserId != "U2" {
		t.Fatalf("期望向 U2 推送一次 message:new, 得到 %+v", pushes)
	}
	payload, ok := pushes[0].Payload.(event.MessageNewPayload)
	if !ok {
		t.Fatalf("推送负载类型错误: %T", pushes[0].Payload)
	}
	if payload.SenderId != "U1" || payload.RecipientId != "U2" || payload.IsRead {
		t.Errorf("推送负载内容错误: %+v", payload)
	}
}

func TestSendMessageConcurrentIncrements(t *testing.T) {
	svc, convRepo, _, _ := newTestService()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SendMessage(request.SendMessageRequest{SenderId: "U1", RecipientId: "U2", Content: "x"})
		}()
	}
	wg.Wait()

	low, high := model.NormalizePair("U1", "U2")
	conv, err := convRepo.FindByPair(low, high)
	if err != nil {
		t.Fatalf("会话未创建: %v", err)
	}
	if conv.UnreadCountFor("U2") != n {
		t.Errorf("并发发送丢失递增: 期望 %d, 得到 %d", n, conv.UnreadCountFor("U2"))
	}
}

func TestMarkMessageAsRead(t *testing.T) {
	svc, convRepo, msgRepo, bus := newTestService()
	mustSend(t, svc, "U1", "U2", "hello")

	msgRepo.mu.Lock()
	messageId := msgRepo.messages[0].Uuid
	convUuid := msgRepo.messages[0].ConversationUuid
	msgRepo.mu.Unlock()

	// 非接收者标记被拒绝
	if err := svc.MarkMessageAsRead("U3", messageId); !errorx.IsAccessDenied(err) {
		t.Errorf("期望权限错误, 得到 %v", err)
	}
	if err := svc.MarkMessageAsRead("U1", messageId); !errorx.IsAccessDenied(err) {
		t.Errorf("发送者标记应被拒绝, 得到 %v", err)
	}

	// 接收者标记，计数回落，发送者收到回执
	if err := svc.MarkMessageAsRead("U2", messageId); err != nil {
		t.Fatalf("接收者标记失败: %v", err)
	}
	conv, _ := convRepo.FindByUuid(convUuid)
	if conv.UnreadCountFor("U2") != 0 {
		t.Errorf("已读后未读计数应为 0, 得到 %d", conv.UnreadCountFor("U2"))
	}
	receipts := bus.recordsFor(event.MessageRead)
	if len(receipts) != 1 || receipts[0].UserId != "U1" {
		t.Fatalf("期望向 U1 推送一次 message:read, 得到 %+v", receipts)
	}

	// 重复标记幂等且不再推送
	if err := svc.MarkMessageAsRead("U2", messageId); err != nil {
		t.Fatalf("重复标记应幂等成功: %v", err)
	}
	if len(bus.recordsFor(event.MessageRead)) != 1 {
		t.Error("重复标记不应再次推送回执")
	}

	// 不存在的消息
	if err := svc.MarkMessageAsRead("U2", 999999); !errorx.IsNotFound(err) {
		t.Errorf("期望 NotFound, 得到 %v", err)
	}
}

func TestMarkConversationAsRead(t *testing.T) {
	svc, convRepo, msgRepo, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "a")
	mustSend(t, svc, "U1", "U2", "b")
	mustSend(t, svc, "U1", "U2", "c")
	mustSend(t, svc, "U2", "U1", "reply")

	low, high := model.NormalizePair("U1", "U2")
	conv, _ := convRepo.FindByPair(low, high)
	if conv.UnreadCountFor("U2") != 3 {
		t.Fatalf("前置条件失败: U2 未读应为 3, 得到 %d", conv.UnreadCountFor("U2"))
	}

	// 非参与者被拒绝
	if err := svc.MarkConversationAsRead("U3", conv.Uuid); !errorx.IsAccessDenied(err) {
		t.Errorf("期望权限错误, 得到 %v", err)
	}

	if err := svc.MarkConversationAsRead("U2", conv.Uuid); err != nil {
		t.Fatalf("标记会话已读失败: %v", err)
	}
	conv, _ = convRepo.FindByUuid(conv.Uuid)
	if conv.UnreadCountFor("U2") != 0 {
		t.Errorf("U2 未读计数应归零, 得到 %d", conv.UnreadCountFor("U2"))
	}
	// 对端计数不受影响
	if conv.UnreadCountFor("U1") != 1 {
		t.Errorf("U1 未读计数不应变化, 得到 %d", conv.UnreadCountFor("U1"))
	}
	// 真实未读数与计数一致
	remaining, _ := msgRepo.CountUnread(conv.Uuid, "U2")
	if remaining != 0 {
		t.Errorf("U2 仍有 %d 条未读消息", remaining)
	}

	// 重复调用幂等
	if err := svc.MarkConversationAsRead("U2", conv.Uuid); err != nil {
		t.Fatalf("重复调用应幂等成功: %v", err)
	}
}

func TestGetUnreadCount(t *testing.T) {
	svc, convRepo, _, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "a")
	mustSend(t, svc, "U3", "U2", "b")
	mustSend(t, svc, "U3", "U2", "c")

	total, err := svc.GetUnreadCount("U2", "")
	if err != nil {
		t.Fatalf("汇总未读失败: %v", err)
	}
	if total != 3 {
		t.Errorf("U2 总未读应为 3, 得到 %d", total)
	}

	// 发送者一侧永远不把对端计数算进来
	sendersTotal, _ := svc.GetUnreadCount("U1", "")
	if sendersTotal != 0 {
		t.Errorf("U1 总未读应为 0, 得到 %d", sendersTotal)
	}

	low, high := model.NormalizePair("U3", "U2")
	conv, _ := convRepo.FindByPair(low, high)
	perConv, err := svc.GetUnreadCount("U2", conv.Uuid)
	if err != nil {
		t.Fatalf("单会话未读失败: %v", err)
	}
	if perConv != 2 {
		t.Errorf("单会话未读应为 2, 得到 %d", perConv)
	}

	// 外人查询被拒绝
	if _, err := svc.GetUnreadCount("U9", conv.Uuid); !errorx.IsAccessDenied(err) {
		t.Errorf("期望权限错误, 得到 %v", err)
	}
}

func TestSearchMessages(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "期末考试安排")
	mustSend(t, svc, "U3", "U4", "期末聚餐")

	// 空白关键词
	if _, err := svc.SearchMessages("U1", "   "); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Errorf("空白关键词应返回参数错误, 得到 %v", err)
	}

	// 检索范围限定在自己参与的会话
	results, err := svc.SearchMessages("U1", "期末")
	if err != nil {
		t.Fatalf("搜索失败: %v", err)
	}
	if len(results) != 1 || results[0].Content != "期末考试安排" {
		t.Errorf("搜索结果越界: %+v", results)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	svc, _, msgRepo, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "hello")

	msgRepo.mu.Lock()
	messageId := msgRepo.messages[0].Uuid
	msgRepo.mu.Unlock()

	if err := svc.DeleteMessage("U2", messageId); !errorx.IsAccessDenied(err) {
		t.Errorf("接收者删除应被拒绝, 得到 %v", err)
	}
	if err := svc.DeleteMessage("U1", messageId); err != nil {
		t.Fatalf("发送者删除失败: %v", err)
	}
	if _, err := msgRepo.FindByUuid(messageId); !errorx.IsNotFound(err) {
		t.Error("消息应已被删除")
	}
}

func TestGetMessageListParticipantOnly(t *testing.T) {
	svc, convRepo, _, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "a")
	mustSend(t, svc, "U1", "U2", "b")

	low, high := model.NormalizePair("U1", "U2")
	conv, _ := convRepo.FindByPair(low, high)

	if _, err := svc.GetMessageList("U3", conv.Uuid); !errorx.IsAccessDenied(err) {
		t.Errorf("外人读取应被拒绝, 得到 %v", err)
	}

	list, err := svc.GetMessageList("U2", conv.Uuid)
	if err != nil {
		t.Fatalf("读取消息列表失败: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("期望 2 条消息, 得到 %d", len(list))
	}

	// 新消息写入后缓存被失效，再次读取能看到
	mustSend(t, svc, "U2", "U1", "c")
	list, err = svc.GetMessageList("U2", conv.Uuid)
	if err != nil {
		t.Fatalf("二次读取失败: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("缓存失效未生效: 期望 3 条, 得到 %d", len(list))
	}
}

func TestGetConversationListOrder(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustSend(t, svc, "U1", "U2", "older")
	time.Sleep(5 * time.Millisecond)
	mustSend(t, svc, "U1", "U3", "newer")

	list, err := svc.GetConversationList("U1")
	if err != nil {
		t.Fatalf("读取会话列表失败: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("期望 2 个会话, 得到 %d", len(list))
	}
	if list[0].PeerId != "U3" {
		t.Errorf("会话列表应按最新消息倒序, 首位是 %s", list[0].PeerId)
	}
}
