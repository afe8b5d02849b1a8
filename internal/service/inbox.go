package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feedbox/backend/internal/domain"
	"feedbox/backend/internal/storage"
	"feedbox/backend/internal/tripcode"
)

// MetadataCache 收件箱公开元数据的缓存抽象（可选）。
//
// 仅用于 Get 这一公开读取路径；规则判定相关的读取永远直读存储。
type MetadataCache interface {
	GetInbox(id string) (*domain.Inbox, error)
	SetInbox(inbox *domain.Inbox) error
	InvalidateInbox(id string) error
}

// ReplyNotifier 新回复事件的通知抽象（可选，由 WebSocket Hub 实现）。
type ReplyNotifier interface {
	NotifyNewReply(inboxID string, message *domain.Message)
}

// InboxService 封装收件箱相关业务操作。
//
// 每个操作是一个独立的工作单元：加载收件箱、应用聚合规则、持久化。
// 领域错误原样向上传播，不做重试，也不做部分失败恢复。
type InboxService struct {
	store    storage.Store
	trip     *tripcode.Generator
	cache    MetadataCache // 可选
	notifier ReplyNotifier // 可选
	log      *zap.Logger
}

// NewInboxService 创建收件箱业务服务。
func NewInboxService(store storage.Store, trip *tripcode.Generator, log *zap.Logger) *InboxService {
	return &InboxService{
		store: store,
		trip:  trip,
		log:   log,
	}
}

// SetMetadataCache 设置元数据缓存（可选依赖）
func (s *InboxService) SetMetadataCache(cache MetadataCache) {
	s.cache = cache
}

// SetReplyNotifier 设置新回复通知器（可选依赖）
func (s *InboxService) SetReplyNotifier(notifier ReplyNotifier) {
	s.notifier = notifier
}

// CreateInboxInput 定义创建收件箱所需的输入。
//
// ExpiresAt 必须已由边界层验证为严格的未来时间，这里不再重复校验。
type CreateInboxInput struct {
	Topic          string
	Username       string
	Secret         string
	ExpiresAt      time.Time
	AllowAnonymous bool
}

// Create 创建新的收件箱，返回包含 ID 与所有者签名的收件箱。
func (s *InboxService) Create(input CreateInboxInput) (*domain.Inbox, error) {
	signature := s.trip.Generate(input.Username, input.Secret)

	inbox := &domain.Inbox{
		ID:             uuid.NewString(),
		Topic:          input.Topic,
		OwnerSignature: signature,
		ExpiresAt:      input.ExpiresAt,
		AllowAnonymous: input.AllowAnonymous,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.SaveInbox(inbox); err != nil {
		return nil, err
	}

	s.log.Info("inbox created",
		zap.String("inbox_id", inbox.ID),
		zap.Bool("allow_anonymous", inbox.AllowAnonymous),
		zap.Time("expires_at", inbox.ExpiresAt),
	)

	return inbox, nil
}

// Get 根据 ID 获取收件箱公开元数据。
//
// 有意不做所有权校验：持有 ID 的任何人都能查看主题、过期时间与匿名策略，
// 但看不到回复列表。配置了缓存时优先读缓存。
func (s *InboxService) Get(id string) (*domain.Inbox, error) {
	if s.cache != nil {
		if inbox, err := s.cache.GetInbox(id); err == nil {
			return inbox, nil
		}
	}

	inbox, err := s.store.GetInbox(id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetInbox(inbox); err != nil {
			s.log.Warn("failed to cache inbox metadata", zap.String("inbox_id", id), zap.Error(err))
		}
	}

	return inbox, nil
}

// ReplyInput 定义发送回复所需的输入。
//
// Username 与 Secret 要么都有要么都没有（both-or-neither），
// 这个配对约束由边界层作为请求形状约束保证。
type ReplyInput struct {
	InboxID  string
	Body     string
	Username *string
	Secret   *string
}

// Reply 向收件箱发送一条回复。
//
// 只有用户名与口令同时提供时才计算发送者签名，否则按匿名处理。
// 接收成功后不重新加载收件箱。
func (s *InboxService) Reply(input ReplyInput) (*domain.Message, error) {
	inbox, err := s.store.GetInbox(input.InboxID)
	if err != nil {
		return nil, err
	}

	var senderSignature *string
	if input.Username != nil && input.Secret != nil {
		sig := s.trip.Generate(*input.Username, *input.Secret)
		senderSignature = &sig
	}

	if err := inbox.ValidateNewMessage(senderSignature); err != nil {
		return nil, err
	}

	message := &domain.Message{
		InboxID:   inbox.ID,
		Body:      input.Body,
		CreatedAt: time.Now().UTC(),
		Signature: senderSignature,
	}

	if err := s.store.SaveMessage(message); err != nil {
		return nil, err
	}

	s.log.Info("reply admitted",
		zap.String("inbox_id", inbox.ID),
		zap.String("message_id", message.ID),
		zap.Bool("anonymous", message.IsAnonymous()),
	)

	if s.notifier != nil {
		s.notifier.NotifyNewReply(inbox.ID, message)
	}

	return message, nil
}

// ChangeTopic 修改收件箱主题，只允许所有者在没有任何回复时执行。
//
// 存在性探测与写入之间没有事务保护：并发的 Reply 可能在探测之后落库，
// 使改名在已有回复的瞬间成功。这是已知并接受的最终一致性窗口。
func (s *InboxService) ChangeTopic(inboxID, newTopic, username, secret string) (*domain.Inbox, error) {
	inbox, err := s.store.GetInbox(inboxID)
	if err != nil {
		return nil, err
	}

	providedSignature := s.trip.Generate(username, secret)
	if err := inbox.ValidateOwnership(providedSignature); err != nil {
		return nil, err
	}

	hasMessages, err := s.store.HasMessages(inboxID)
	if err != nil {
		return nil, err
	}

	if err := inbox.ChangeTopic(newTopic, hasMessages); err != nil {
		return nil, err
	}

	if err := s.store.SaveInbox(inbox); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateInbox(inboxID); err != nil {
			s.log.Warn("failed to invalidate inbox cache", zap.String("inbox_id", inboxID), zap.Error(err))
		}
	}

	s.log.Info("inbox topic changed", zap.String("inbox_id", inboxID))

	return inbox, nil
}

// GetMessages 分页读取收件箱的回复，只允许所有者访问，最新优先。
//
// 页码从 1 开始；page 与 pageSize 已由边界层校验为合法正整数。
func (s *InboxService) GetMessages(inboxID, username, secret string, page, pageSize int) ([]domain.Message, error) {
	inbox, err := s.store.GetInbox(inboxID)
	if err != nil {
		return nil, err
	}

	providedSignature := s.trip.Generate(username, secret)
	if err := inbox.ValidateOwnership(providedSignature); err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	return s.store.ListMessages(inboxID, pageSize, offset)
}

// ListOwnerInboxes 分页列出某个签名拥有的全部收件箱。
//
// 不需要加载任何收件箱：签名本身就是查询键。
// 排序为创建时间倒序（稳定且确定，但不构成业务契约）。
func (s *InboxService) ListOwnerInboxes(username, secret string, page, pageSize int) ([]domain.Inbox, error) {
	signature := s.trip.Generate(username, secret)

	offset := (page - 1) * pageSize
	return s.store.ListInboxesBySignature(signature, pageSize, offset)
}

// PurgeExpired 删除过期超过保留期的收件箱，由后台定时任务调用。
func (s *InboxService) PurgeExpired(retention time.Duration) (int, error) {
	return s.store.PurgeExpiredInboxes(retention)
}

// Signature 计算给定凭证的 tripcode 签名。
//
// 暴露给传输层（如 WebSocket 鉴权）复用同一套签名方案。
func (s *InboxService) Signature(username, secret string) string {
	return s.trip.Generate(username, secret)
}
