package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"feedbox/backend/internal/domain"
)

// Store 数据库存储实现（支持 PostgreSQL 和 MySQL）
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Inbox{},
		&domain.Message{},
	)
}

// ========== Inbox Repository ==========

// SaveInbox 保存或更新收件箱
func (s *Store) SaveInbox(inbox *domain.Inbox) error {
	return s.db.Save(inbox).Error
}

// GetInbox 根据 ID 获取收件箱。过期的收件箱依然返回，过期只拦截新回复。
func (s *Store) GetInbox(id string) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := s.db.Where("id = ?", id).First(&inbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInboxNotFound
		}
		return nil, err
	}
	return &inbox, nil
}

// ListInboxesBySignature 按所有者签名分页查询收件箱，按创建时间倒序
func (s *Store) ListInboxesBySignature(signature string, limit, offset int) ([]domain.Inbox, error) {
	var inboxes []domain.Inbox
	err := s.db.
		Where("owner_signature = ?", signature).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&inboxes).Error
	if err != nil {
		return nil, err
	}
	return inboxes, nil
}

// PurgeExpiredInboxes 删除过期超过保留期的收件箱及其全部回复，返回删除数量
func (s *Store) PurgeExpiredInboxes(retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	var ids []string
	if err := s.db.Model(&domain.Inbox{}).
		Where("expires_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("inbox_id IN ?", ids).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&domain.Inbox{}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ========== Message Repository ==========

// SaveMessage 保存一条回复。ID 为空时由 BeforeCreate 钩子分配。
func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.Create(message).Error
}

// ListMessages 按收件箱分页查询回复，按创建时间倒序（最新优先）
func (s *Store) ListMessages(inboxID string, limit, offset int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.
		Where("inbox_id = ?", inboxID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// HasMessages 存在性探测：最多取 1 条回复
func (s *Store) HasMessages(inboxID string) (bool, error) {
	var message domain.Message
	err := s.db.Select("id").
		Where("inbox_id = ?", inboxID).
		Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
