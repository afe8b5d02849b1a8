package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateTopic(t *testing.T) {
	v := NewValidator()

	t.Run("正常主题通过验证", func(t *testing.T) {
		assert.NoError(t, v.ValidateTopic("Product Feedback"))
	})

	t.Run("空主题被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateTopic(""), ErrTopicEmpty)
		assert.ErrorIs(t, v.ValidateTopic("   "), ErrTopicEmpty)
	})

	t.Run("超长主题被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateTopic(strings.Repeat("a", MaxTopicLength+1)), ErrTopicTooLong)
	})
}

func TestValidator_ValidateBody(t *testing.T) {
	v := NewValidator()

	t.Run("正常正文通过验证", func(t *testing.T) {
		assert.NoError(t, v.ValidateBody("This is a test message!"))
	})

	t.Run("空正文被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateBody(""), ErrBodyEmpty)
		assert.ErrorIs(t, v.ValidateBody("\n\t "), ErrBodyEmpty)
	})

	t.Run("超长正文被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateBody(strings.Repeat("a", MaxBodyLength+1)), ErrBodyTooLong)
	})
}

func TestValidator_ValidateCredentials(t *testing.T) {
	v := NewValidator()

	t.Run("正常凭证通过验证", func(t *testing.T) {
		assert.NoError(t, v.ValidateCredentials("alice", "pw123456"))
		assert.NoError(t, v.ValidateCredentials("alice_tester", "super_secret_password"))
	})

	t.Run("用户名过短被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCredentials("ab", "pw123456"), ErrUsernameTooShort)
	})

	t.Run("用户名过长被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCredentials(strings.Repeat("a", 33), "pw123456"), ErrUsernameTooLong)
	})

	t.Run("非法用户名格式被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCredentials("1alice", "pw123456"), ErrInvalidUsername)
		assert.ErrorIs(t, v.ValidateCredentials("ali ce", "pw123456"), ErrInvalidUsername)
	})

	t.Run("口令过短被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCredentials("alice", "short"), ErrSecretTooShort)
	})

	t.Run("口令过长被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateCredentials("alice", strings.Repeat("a", 129)), ErrSecretTooLong)
	})
}

func TestValidator_ValidateExpiresAt(t *testing.T) {
	v := NewValidator()

	t.Run("未来时间通过验证", func(t *testing.T) {
		assert.NoError(t, v.ValidateExpiresAt(time.Now().UTC().Add(time.Hour)))
	})

	t.Run("过去时间被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateExpiresAt(time.Now().UTC().Add(-time.Second)), ErrExpiresAtNotFuture)
	})
}

func TestValidator_ValidatePagination(t *testing.T) {
	v := NewValidator()

	t.Run("合法分页参数通过验证", func(t *testing.T) {
		assert.NoError(t, v.ValidatePagination(1, 1))
		assert.NoError(t, v.ValidatePagination(1, 20))
		assert.NoError(t, v.ValidatePagination(100, 100))
	})

	t.Run("页码小于1被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidatePagination(0, 20), ErrInvalidPage)
		assert.ErrorIs(t, v.ValidatePagination(-1, 20), ErrInvalidPage)
	})

	t.Run("页大小越界被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidatePagination(1, 0), ErrInvalidPageSize)
		assert.ErrorIs(t, v.ValidatePagination(1, 101), ErrInvalidPageSize)
	})
}
