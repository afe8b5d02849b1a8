package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"feedbox/backend/internal/config"
	"feedbox/backend/internal/domain"
	"feedbox/backend/internal/middleware"
	"feedbox/backend/internal/monitoring"
	"feedbox/backend/internal/service"
	"feedbox/backend/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	inboxes   *service.InboxService
	validator *domain.Validator
	metrics   *monitoring.Metrics // 可选
	cfg       *config.Config
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	InboxService *service.InboxService
	WebSocketHub *websocket.Hub      // 可选
	Metrics      *monitoring.Metrics // 可选
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件；配置了指标时恢复中间件同时记录 panic 计数
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(middleware.RecoveryHandler(deps.Logger))
	}
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Username", "X-Secret"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := &Handler{
		inboxes:   deps.InboxService,
		validator: domain.NewValidator(),
		metrics:   deps.Metrics,
		cfg:       deps.Config,
	}

	// 创建中间件
	ownerAuth := middleware.NewOwnerAuth(deps.Logger)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Inbox Routes ==========
		inboxRoutes := v1.Group("/inboxes")
		{
			// 任何人都可以创建收件箱、查看公开元数据、发送回复
			inboxRoutes.POST("", handler.createInbox)
			inboxRoutes.GET("/:id", handler.getInbox)
			inboxRoutes.POST("/:id/messages", handler.createReply)

			// 所有者专属端点
			inboxRoutes.GET("", ownerAuth.RequireCredentials(), handler.listOwnerInboxes)
			inboxRoutes.GET("/:id/messages", ownerAuth.RequireCredentials(), handler.listMessages)
			inboxRoutes.PATCH("/:id/topic", ownerAuth.RequireCredentials(), handler.changeTopic)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}

type createInboxRequest struct {
	Topic          string `json:"topic"`
	Username       string `json:"username"`
	Secret         string `json:"secret"`
	ExpiresAt      string `json:"expiresAt"` // RFC3339
	AllowAnonymous bool   `json:"allowAnonymous"`
}

type changeTopicRequest struct {
	Topic string `json:"topic"`
}

type replyRequest struct {
	Body     string  `json:"body"`
	Username *string `json:"username,omitempty"`
	Secret   *string `json:"secret,omitempty"`
}

type inboxResponse struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topic"`
	OwnerSignature string    `json:"ownerSignature"`
	ExpiresAt      time.Time `json:"expiresAt"`
	AllowAnonymous bool      `json:"allowAnonymous"`
	CreatedAt      time.Time `json:"createdAt"`
	Expired        bool      `json:"expired"`
}

type inboxListResponse struct {
	Items    []inboxResponse `json:"items"`
	Count    int             `json:"count"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	InboxID   string    `json:"inboxId"`
	Body      string    `json:"body"`
	Signature *string   `json:"signature"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageListResponse struct {
	Items    []messageResponse `json:"items"`
	Count    int               `json:"count"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

func toInboxResponse(inbox *domain.Inbox) inboxResponse {
	return inboxResponse{
		ID:             inbox.ID,
		Topic:          inbox.Topic,
		OwnerSignature: inbox.OwnerSignature,
		ExpiresAt:      inbox.ExpiresAt,
		AllowAnonymous: inbox.AllowAnonymous,
		CreatedAt:      inbox.CreatedAt,
		Expired:        inbox.IsExpired(),
	}
}

func toMessageResponse(message *domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID,
		InboxID:   message.InboxID,
		Body:      message.Body,
		Signature: message.Signature,
		Anonymous: message.IsAnonymous(),
		CreatedAt: message.CreatedAt,
	}
}

// parsePagination 解析分页查询参数，应用配置中的默认值
func (h *Handler) parsePagination(c *gin.Context) (page, pageSize int, err error) {
	page = 1
	pageSize = h.cfg.Inbox.DefaultPageSize

	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, domain.ErrInvalidPage
		}
	}
	if raw := c.Query("pageSize"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, domain.ErrInvalidPageSize
		}
	}

	if err := h.validator.ValidatePagination(page, pageSize); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

// createInbox godoc
// @Summary 创建收件箱
// @Description 创建一个带主题和过期时间的匿名反馈收件箱，返回所有者签名
// @Tags Inboxes
// @Accept json
// @Produce json
// @Param request body createInboxRequest true "收件箱参数"
// @Success 201 {object} Response{data=inboxResponse}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inboxes [post]
func (h *Handler) createInbox(c *gin.Context) {
	var req createInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.validator.ValidateTopic(req.Topic); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.validator.ValidateCredentials(req.Username, req.Secret); err != nil {
		BadRequest(c, err.Error())
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		BadRequest(c, MsgInvalidExpiresAt)
		return
	}
	if err := h.validator.ValidateExpiresAt(expiresAt); err != nil {
		BadRequest(c, MsgInvalidExpiresAt)
		return
	}

	inbox, err := h.inboxes.Create(service.CreateInboxInput{
		Topic:          req.Topic,
		Username:       req.Username,
		Secret:         req.Secret,
		ExpiresAt:      expiresAt.UTC(),
		AllowAnonymous: req.AllowAnonymous,
	})
	if err != nil {
		InternalError(c, MsgInboxCreateFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInboxCreated()
	}

	Created(c, toInboxResponse(inbox))
}

// getInbox godoc
// @Summary 获取收件箱公开元数据
// @Description 任何持有收件箱 ID 的人都能查看主题、过期时间与匿名策略，过期的收件箱依然可读
// @Tags Inboxes
// @Produce json
// @Param id path string true "收件箱 ID"
// @Success 200 {object} Response{data=inboxResponse}
// @Failure 404 {object} Response
// @Router /v1/inboxes/{id} [get]
func (h *Handler) getInbox(c *gin.Context) {
	inbox, err := h.inboxes.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	Success(c, toInboxResponse(inbox))
}

// createReply godoc
// @Summary 发送回复
// @Description 向收件箱发送一条回复。用户名与口令必须同时提供（署名）或同时省略（匿名）
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "收件箱 ID"
// @Param request body replyRequest true "回复内容"
// @Success 201 {object} Response{data=messageResponse}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 410 {object} Response
// @Router /v1/inboxes/{id}/messages [post]
func (h *Handler) createReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.validator.ValidateBody(req.Body); err != nil {
		BadRequest(c, err.Error())
		return
	}

	// 凭证必须成对出现
	if (req.Username == nil) != (req.Secret == nil) {
		BadRequest(c, MsgCredentialsPair)
		return
	}
	if req.Username != nil {
		if err := h.validator.ValidateCredentials(*req.Username, *req.Secret); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	message, err := h.inboxes.Reply(service.ReplyInput{
		InboxID:  c.Param("id"),
		Body:     req.Body,
		Username: req.Username,
		Secret:   req.Secret,
	})
	if err != nil {
		h.recordReplyRejection(err)
		respondDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordReplyAdmitted(message.IsAnonymous())
	}

	Created(c, toMessageResponse(message))
}

// recordReplyRejection 按拒绝原因记录指标
func (h *Handler) recordReplyRejection(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrInboxExpired):
		h.metrics.RecordReplyRejected("expired")
	case errors.Is(err, domain.ErrAnonymousNotAllowed):
		h.metrics.RecordReplyRejected("anonymous_not_allowed")
	}
}

// changeTopic godoc
// @Summary 修改收件箱主题
// @Description 只有所有者可以修改主题，且仅在收件箱尚无任何回复时允许
// @Tags Inboxes
// @Accept json
// @Produce json
// @Param id path string true "收件箱 ID"
// @Param X-Username header string true "所有者用户名"
// @Param X-Secret header string true "所有者口令"
// @Param request body changeTopicRequest true "新主题"
// @Success 200 {object} Response{data=inboxResponse}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /v1/inboxes/{id}/topic [patch]
func (h *Handler) changeTopic(c *gin.Context) {
	var req changeTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.validator.ValidateTopic(req.Topic); err != nil {
		BadRequest(c, err.Error())
		return
	}

	username, secret := middleware.OwnerCredentials(c)
	inbox, err := h.inboxes.ChangeTopic(c.Param("id"), req.Topic, username, secret)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTopicChanged()
	}

	Success(c, toInboxResponse(inbox))
}

// listMessages godoc
// @Summary 获取回复列表
// @Description 分页返回收件箱的回复，最新优先，仅所有者可访问
// @Tags Messages
// @Produce json
// @Param id path string true "收件箱 ID"
// @Param X-Username header string true "所有者用户名"
// @Param X-Secret header string true "所有者口令"
// @Param page query int false "页码（从 1 开始）"
// @Param pageSize query int false "页大小（1-100）"
// @Success 200 {object} Response{data=messageListResponse}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /v1/inboxes/{id}/messages [get]
func (h *Handler) listMessages(c *gin.Context) {
	page, pageSize, err := h.parsePagination(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	username, secret := middleware.OwnerCredentials(c)
	messages, err := h.inboxes.GetMessages(c.Param("id"), username, secret, page, pageSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	items := make([]messageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, toMessageResponse(&messages[i]))
	}

	Success(c, messageListResponse{
		Items:    items,
		Count:    len(items),
		Page:     page,
		PageSize: pageSize,
	})
}

// listOwnerInboxes godoc
// @Summary 获取凭证名下的收件箱列表
// @Description 分页返回该用户名与口令对应签名拥有的全部收件箱，按创建时间倒序
// @Tags Inboxes
// @Produce json
// @Param X-Username header string true "所有者用户名"
// @Param X-Secret header string true "所有者口令"
// @Param page query int false "页码（从 1 开始）"
// @Param pageSize query int false "页大小（1-100）"
// @Success 200 {object} Response{data=inboxListResponse}
// @Failure 400 {object} Response
// @Router /v1/inboxes [get]
func (h *Handler) listOwnerInboxes(c *gin.Context) {
	page, pageSize, err := h.parsePagination(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	username, secret := middleware.OwnerCredentials(c)
	inboxes, err := h.inboxes.ListOwnerInboxes(username, secret, page, pageSize)
	if err != nil {
		InternalError(c, MsgInboxListFailed)
		return
	}

	items := make([]inboxResponse, 0, len(inboxes))
	for i := range inboxes {
		items = append(items, toInboxResponse(&inboxes[i]))
	}

	Success(c, inboxListResponse{
		Items:    items,
		Count:    len(items),
		Page:     page,
		PageSize: pageSize,
	})
}
