package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"feedbox/backend/internal/domain"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrInboxNotFound:         "收件箱不存在",
	domain.ErrInvalidSignature:      "签名验证失败，用户名或口令错误",
	domain.ErrInboxExpired:          "收件箱已过期，无法接收新回复",
	domain.ErrTopicChangeNotAllowed: "收件箱已有回复，不能再修改主题",
	domain.ErrAnonymousNotAllowed:   "该收件箱不接受匿名回复",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// respondDomainError 将领域错误映射为对应的 HTTP 响应。
//
// 未识别的错误一律返回 500 通用消息，不向客户端泄露内部细节。
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInboxNotFound):
		NotFound(c, GetErrorMessage(domain.ErrInboxNotFound))
	case errors.Is(err, domain.ErrInvalidSignature):
		Forbidden(c, GetErrorMessage(domain.ErrInvalidSignature))
	case errors.Is(err, domain.ErrAnonymousNotAllowed):
		Forbidden(c, GetErrorMessage(domain.ErrAnonymousNotAllowed))
	case errors.Is(err, domain.ErrInboxExpired):
		Gone(c, GetErrorMessage(domain.ErrInboxExpired))
	case errors.Is(err, domain.ErrTopicChangeNotAllowed):
		Conflict(c, GetErrorMessage(domain.ErrTopicChangeNotAllowed))
	default:
		InternalError(c, MsgInternalError)
	}
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidExpiresAt = "过期时间格式无效，需要 RFC3339 格式的未来时间"
	MsgInvalidPage      = "分页参数无效"
	MsgCredentialsPair  = "用户名与口令必须同时提供或同时省略"

	// 凭证相关
	MsgCredentialsRequired = "需要提供 X-Username 与 X-Secret 请求头"

	// 收件箱相关
	MsgInboxCreateFailed = "创建收件箱失败"
	MsgInboxListFailed   = "获取收件箱列表失败"

	// 回复相关
	MsgReplyFailed       = "发送回复失败"
	MsgMessageListFailed = "获取回复列表失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
