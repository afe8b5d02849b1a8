package tripcode

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_Generate(t *testing.T) {
	gen := NewGenerator("test_salt")

	t.Run("相同输入产生相同签名", func(t *testing.T) {
		sig1 := gen.Generate("alice", "pw123456")
		sig2 := gen.Generate("alice", "pw123456")

		assert.Equal(t, sig1, sig2)
	})

	t.Run("签名格式为用户名加10位十六进制前缀", func(t *testing.T) {
		sig := gen.Generate("alice", "pw123456")

		assert.True(t, strings.HasPrefix(sig, "alice!"))
		assert.Regexp(t, regexp.MustCompile(`^alice![0-9a-f]{10}$`), sig)
	})

	t.Run("不同口令产生不同签名", func(t *testing.T) {
		sig1 := gen.Generate("alice", "pw123456")
		sig2 := gen.Generate("alice", "pw654321")

		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("不同用户名产生不同签名", func(t *testing.T) {
		sig1 := gen.Generate("alice", "pw123456")
		sig2 := gen.Generate("bob", "pw123456")

		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("不同盐值产生不同哈希前缀", func(t *testing.T) {
		other := NewGenerator("another_salt")

		sig1 := gen.Generate("alice", "pw123456")
		sig2 := other.Generate("alice", "pw123456")

		assert.NotEqual(t, sig1, sig2)
	})
}
