package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message 表示收件箱内的一条回复。
//
// 创建后不可变更也不可删除。Signature 为 nil 表示匿名回复。
// ID 在持久化之前为空字符串，由存储层负责分配。
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InboxID   string    `json:"inboxId" gorm:"type:varchar(36);index:idx_messages_inbox_created;not null"`
	Body      string    `json:"body" gorm:"type:varchar(2000)"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_messages_inbox_created"`
	Signature *string   `json:"signature" gorm:"type:varchar(64)"`
}

// IsAnonymous 判断该回复是否为匿名回复。
func (m *Message) IsAnonymous() bool {
	return m.Signature == nil
}

// BeforeCreate 在入库前分配消息 ID。
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
