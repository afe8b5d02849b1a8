package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"feedbox/backend/internal/domain"
)

// ErrCacheMiss 缓存中不存在该键
var ErrCacheMiss = errors.New("cache miss")

// Cache 收件箱公开元数据的 Redis 缓存。
//
// 只服务公开读取路径（收件箱元数据查询）。所有参与规则判定的读取
// （所有权校验、回复存在性探测、回复接收前的收件箱加载）一律直读存储，
// 不经过这里。
type Cache struct {
	client *goredis.Client
	ctx    context.Context
	ttl    time.Duration
}

// NewCache 创建元数据缓存实例
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client.Client(),
		ctx:    context.Background(),
		ttl:    ttl,
	}
}

func inboxKey(id string) string {
	return fmt.Sprintf("inbox:meta:%s", id)
}

// SetInbox 缓存收件箱元数据
func (c *Cache) SetInbox(inbox *domain.Inbox) error {
	data, err := json.Marshal(inbox)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, inboxKey(inbox.ID), data, c.ttl).Err()
}

// GetInbox 读取缓存的收件箱元数据
func (c *Cache) GetInbox(id string) (*domain.Inbox, error) {
	data, err := c.client.Get(c.ctx, inboxKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var inbox domain.Inbox
	if err := json.Unmarshal(data, &inbox); err != nil {
		return nil, err
	}
	return &inbox, nil
}

// InvalidateInbox 删除收件箱缓存（改名后调用）
func (c *Cache) InvalidateInbox(id string) error {
	return c.client.Del(c.ctx, inboxKey(id)).Err()
}
