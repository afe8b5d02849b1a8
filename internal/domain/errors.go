package domain

import "errors"

// 领域错误定义
//
// 这些错误在应用服务中原样向上传播，由传输层统一映射为 HTTP 状态码。
var (
	// ErrInboxNotFound 引用的收件箱不存在
	ErrInboxNotFound = errors.New("inbox not found")
	// ErrInvalidSignature 提供的凭证与所有者签名不匹配
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInboxExpired 收件箱已过期，不再接收新回复
	ErrInboxExpired = errors.New("inbox expired")
	// ErrTopicChangeNotAllowed 收件箱已有回复后尝试改名
	ErrTopicChangeNotAllowed = errors.New("topic change not allowed")
	// ErrAnonymousNotAllowed 向要求署名的收件箱发送匿名回复
	ErrAnonymousNotAllowed = errors.New("anonymous messages not allowed")
)
