package tripcode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// 签名中哈希前缀的长度（十六进制字符数）
const hashPrefixLength = 10

// Generator 根据用户名、口令与服务端盐值生成 tripcode 签名。
//
// 同样的三个输入总是产生同样的输出。输出格式为 "{username}!{hash前缀}"，
// 用户名保持明文，只有口令受哈希保护。
//
// 注意：截断哈希加全局盐是一个低熵方案，仅用于轻量级的化名标识，
// 不能作为真正的身份认证。这是有意为之的设计范围。
type Generator struct {
	salt string
}

// NewGenerator 创建 tripcode 生成器。盐值来自服务端配置，启动时注入。
func NewGenerator(salt string) *Generator {
	return &Generator{salt: salt}
}

// Generate 计算签名。纯函数，无副作用，无错误分支。
//
// 输入的长度与格式约束由边界层负责，这里不做校验。
func (g *Generator) Generate(username, secret string) string {
	raw := username + secret + g.salt
	digest := sha256.Sum256([]byte(raw))
	prefix := hex.EncodeToString(digest[:])[:hashPrefixLength]
	return fmt.Sprintf("%s!%s", username, prefix)
}
