package storage

import (
	"time"

	"feedbox/backend/internal/domain"
)

// InboxRepository 定义收件箱数据存取操作。
//
// 过期的收件箱依然可读（元数据与已有回复），过期只拦截新回复的接收；
// 删除属于存储层的保留策略，不属于核心业务规则。
type InboxRepository interface {
	SaveInbox(inbox *domain.Inbox) error
	GetInbox(id string) (*domain.Inbox, error)
	// ListInboxesBySignature 按所有者签名分页查询收件箱，按创建时间倒序。
	ListInboxesBySignature(signature string, limit, offset int) ([]domain.Inbox, error)
	// PurgeExpiredInboxes 删除过期超过保留期的收件箱及其消息，返回删除数量。
	PurgeExpiredInboxes(retention time.Duration) (int, error)
}

// MessageRepository 定义回复数据存取操作。
type MessageRepository interface {
	// SaveMessage 持久化一条回复；消息 ID 为空时由存储层分配。
	SaveMessage(message *domain.Message) error
	// ListMessages 按收件箱分页查询回复，按创建时间倒序（最新优先）。
	ListMessages(inboxID string, limit, offset int) ([]domain.Message, error)
	// HasMessages 存在性探测：最多取 1 条回复，用于改名规则检查。
	HasMessages(inboxID string) (bool, error)
}

// Store 定义完整的存储接口。
type Store interface {
	InboxRepository
	MessageRepository

	Close() error
	Health() error
}
