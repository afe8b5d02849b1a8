package domain

import (
	"time"
)

// Inbox 表示一个匿名反馈收件箱的业务实体。
//
// OwnerSignature 是创建者的 tripcode 签名，创建后不可变更，
// 作为唯一的所有权凭证。消息不内嵌在聚合里，存储层才是
// 消息的权威来源，规则检查只依赖调用方传入的最小证据。
type Inbox struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Topic          string    `json:"topic" gorm:"type:varchar(120)"`
	OwnerSignature string    `json:"ownerSignature" gorm:"type:varchar(64);index"`
	ExpiresAt      time.Time `json:"expiresAt"`
	AllowAnonymous bool      `json:"allowAnonymous"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsExpired 判断收件箱是否已过期。
//
// 每次调用都重新取当前时间，不做缓存，保证结果反映调用时刻的墙钟。
func (i *Inbox) IsExpired() bool {
	return time.Now().UTC().After(i.ExpiresAt)
}

// ValidateOwnership 校验提供的签名是否与所有者签名一致。
//
// 比较必须是精确的字符串比较（区分大小写），不一致返回 ErrInvalidSignature。
func (i *Inbox) ValidateOwnership(providedSignature string) error {
	if i.OwnerSignature != providedSignature {
		return ErrInvalidSignature
	}
	return nil
}

// ChangeTopic 更新收件箱主题。
//
// 一旦收件箱已有回复就不允许再改名。是否存在回复由调用方提供
// （通常通过最多取 1 条消息的存在性探测得到），聚合本身不加载消息集合。
func (i *Inbox) ChangeTopic(newTopic string, hasMessages bool) error {
	if hasMessages {
		return ErrTopicChangeNotAllowed
	}
	i.Topic = newTopic
	return nil
}

// ValidateNewMessage 校验一条新回复能否被接收。
//
// 过期检查优先于匿名检查；signature 为 nil 表示匿名回复。
// 校验本身不产生任何变更，消息的构造与持久化由应用服务完成。
func (i *Inbox) ValidateNewMessage(signature *string) error {
	if i.IsExpired() {
		return ErrInboxExpired
	}
	if signature == nil && !i.AllowAnonymous {
		return ErrAnonymousNotAllowed
	}
	return nil
}
