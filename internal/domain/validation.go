package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// 验证相关的错误定义
var (
	ErrTopicEmpty         = errors.New("topic must not be empty")
	ErrTopicTooLong       = errors.New("topic too long (max 120 chars)")
	ErrBodyEmpty          = errors.New("body must not be empty")
	ErrBodyTooLong        = errors.New("body too long (max 2000 chars)")
	ErrUsernameTooShort   = errors.New("username too short (min 3 chars)")
	ErrUsernameTooLong    = errors.New("username too long (max 32 chars)")
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrSecretTooShort     = errors.New("secret too short (min 8 chars)")
	ErrSecretTooLong      = errors.New("secret too long (max 128 chars)")
	ErrExpiresAtNotFuture = errors.New("expires_at must be in the future")
	ErrInvalidPage        = errors.New("page must be >= 1")
	ErrInvalidPageSize    = errors.New("page_size out of range")
)

// 验证常量
const (
	MaxTopicLength = 120  // 主题最大长度
	MaxBodyLength  = 2000 // 回复正文最大长度

	MinUsernameLength = 3
	MaxUsernameLength = 32

	MinSecretLength = 8
	MaxSecretLength = 128

	MinPageSize = 1
	MaxPageSize = 100
)

// 用户名验证（必须以字母开头）
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*[a-zA-Z0-9]$|^[a-zA-Z]$`)

// Validator 边界层输入验证器
//
// 核心聚合假定输入已通过这里的校验，不会重复验证。
type Validator struct{}

// NewValidator 创建输入验证器
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTopic 验证收件箱主题
func (v *Validator) ValidateTopic(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrTopicEmpty
	}
	if len(topic) > MaxTopicLength {
		return ErrTopicTooLong
	}
	return nil
}

// ValidateBody 验证回复正文
func (v *Validator) ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrBodyEmpty
	}
	if len(body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// ValidateUsername 验证用户名格式
func (v *Validator) ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateSecret 验证口令长度
func (v *Validator) ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return ErrSecretTooShort
	}
	if len(secret) > MaxSecretLength {
		return ErrSecretTooLong
	}
	return nil
}

// ValidateCredentials 验证用户名与口令的组合
func (v *Validator) ValidateCredentials(username, secret string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}
	return v.ValidateSecret(secret)
}

// ValidateExpiresAt 验证过期时间必须严格在未来
func (v *Validator) ValidateExpiresAt(expiresAt time.Time) error {
	if !expiresAt.After(time.Now().UTC()) {
		return ErrExpiresAtNotFuture
	}
	return nil
}

// ValidatePagination 验证分页参数（1 起始页码，页大小 1-100）
func (v *Validator) ValidatePagination(page, pageSize int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return ErrInvalidPageSize
	}
	return nil
}
