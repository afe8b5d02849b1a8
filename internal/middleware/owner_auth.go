package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"feedbox/backend/internal/domain"
)

// 上下文键，供后续处理器读取所有者凭证
const (
	ContextKeyUsername = "ownerUsername"
	ContextKeySecret   = "ownerSecret"
)

// OwnerAuth 所有者凭证中间件
//
// 从请求头提取用户名与口令并做格式校验。这里不验证凭证是否"正确"：
// 签名匹配与否由业务层针对具体收件箱判定。
type OwnerAuth struct {
	validator *domain.Validator
	log       *zap.Logger
}

// NewOwnerAuth 创建所有者凭证中间件
func NewOwnerAuth(log *zap.Logger) *OwnerAuth {
	return &OwnerAuth{
		validator: domain.NewValidator(),
		log:       log,
	}
}

// RequireCredentials 要求请求携带所有者凭证
func (oa *OwnerAuth) RequireCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader("X-Username")
		secret := c.GetHeader("X-Secret")

		if username == "" || secret == "" {
			c.JSON(403, gin.H{
				"code": 403,
				"msg":  "需要提供 X-Username 与 X-Secret 请求头",
			})
			c.Abort()
			return
		}

		if err := oa.validator.ValidateCredentials(username, secret); err != nil {
			oa.log.Debug("malformed owner credentials",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(400, gin.H{
				"code": 400,
				"msg":  "凭证格式无效: " + err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyUsername, username)
		c.Set(ContextKeySecret, secret)
		c.Next()
	}
}

// OwnerCredentials 从上下文读取凭证，必须在 RequireCredentials 之后调用
func OwnerCredentials(c *gin.Context) (username, secret string) {
	username = c.GetString(ContextKeyUsername)
	secret = c.GetString(ContextKeySecret)
	return username, secret
}
