package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"feedbox/backend/internal/domain"
)

// Store 使用内存保存收件箱与回复数据，主要用于开发验证与测试。
type Store struct {
	mu          sync.RWMutex
	inboxes     map[string]*domain.Inbox
	bySignature map[string]map[string]struct{} // ownerSignature -> inboxID 集合
	messages    map[string][]*domain.Message   // inboxID -> 回复（按写入顺序）
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		inboxes:     make(map[string]*domain.Inbox),
		bySignature: make(map[string]map[string]struct{}),
		messages:    make(map[string][]*domain.Message),
	}
}

// SaveInbox 保存或更新收件箱。
func (s *Store) SaveInbox(inbox *domain.Inbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *inbox
	s.inboxes[inbox.ID] = &copied

	set, ok := s.bySignature[inbox.OwnerSignature]
	if !ok {
		set = make(map[string]struct{})
		s.bySignature[inbox.OwnerSignature] = set
	}
	set[inbox.ID] = struct{}{}
	return nil
}

// GetInbox 根据 ID 获取收件箱。过期的收件箱依然返回。
func (s *Store) GetInbox(id string) (*domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inbox, ok := s.inboxes[id]
	if !ok {
		return nil, domain.ErrInboxNotFound
	}
	copied := *inbox
	return &copied, nil
}

// ListInboxesBySignature 按所有者签名分页查询，按创建时间倒序。
func (s *Store) ListInboxesBySignature(signature string, limit, offset int) ([]domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySignature[signature]
	items := make([]domain.Inbox, 0, len(ids))
	for id := range ids {
		if inbox, ok := s.inboxes[id]; ok {
			items = append(items, *inbox)
		}
	}

	// 创建时间倒序；同一时刻按 ID 兜底，保证顺序稳定
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return paginate(items, limit, offset), nil
}

// PurgeExpiredInboxes 删除过期超过保留期的收件箱及其全部回复。
func (s *Store) PurgeExpiredInboxes(retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	count := 0
	for id, inbox := range s.inboxes {
		if inbox.ExpiresAt.Before(cutoff) {
			delete(s.inboxes, id)
			delete(s.messages, id)
			if set, ok := s.bySignature[inbox.OwnerSignature]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(s.bySignature, inbox.OwnerSignature)
				}
			}
			count++
		}
	}
	return count, nil
}

// SaveMessage 保存一条回复。消息 ID 为空时在这里分配。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inboxes[message.InboxID]; !ok {
		return domain.ErrInboxNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}

	copied := *message
	s.messages[message.InboxID] = append(s.messages[message.InboxID], &copied)
	return nil
}

// ListMessages 按收件箱分页查询回复，最新优先。
func (s *Store) ListMessages(inboxID string, limit, offset int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[inboxID]
	items := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		items = append(items, *m)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return paginate(items, limit, offset), nil
}

// HasMessages 判断收件箱是否已有至少一条回复。
func (s *Store) HasMessages(inboxID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages[inboxID]) > 0, nil
}

// Close 关闭存储（内存实现无资源可释放）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	return nil
}

// paginate 对已排序的切片应用 limit/offset。
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
