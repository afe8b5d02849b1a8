package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 收件箱指标
	InboxesCreated prometheus.Counter
	InboxesPurged  prometheus.Counter
	TopicChanges   prometheus.Counter

	// 回复指标
	RepliesAdmitted *prometheus.CounterVec
	RepliesRejected *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		InboxesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedbox_inboxes_created_total",
				Help: "Total number of inboxes created",
			},
		),

		InboxesPurged: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedbox_inboxes_purged_total",
				Help: "Total number of expired inboxes purged",
			},
		),

		TopicChanges: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedbox_topic_changes_total",
				Help: "Total number of successful inbox topic changes",
			},
		),

		RepliesAdmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedbox_replies_admitted_total",
				Help: "Total number of replies admitted",
			},
			[]string{"anonymous"},
		),

		RepliesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedbox_replies_rejected_total",
				Help: "Total number of replies rejected by policy",
			},
			[]string{"reason"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedbox_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordInboxCreated 记录收件箱创建
func (m *Metrics) RecordInboxCreated() {
	m.InboxesCreated.Inc()
}

// RecordInboxesPurged 记录清理的过期收件箱数量
func (m *Metrics) RecordInboxesPurged(count int) {
	m.InboxesPurged.Add(float64(count))
}

// RecordTopicChanged 记录主题修改
func (m *Metrics) RecordTopicChanged() {
	m.TopicChanges.Inc()
}

// RecordReplyAdmitted 记录接收的回复
func (m *Metrics) RecordReplyAdmitted(anonymous bool) {
	label := "false"
	if anonymous {
		label = "true"
	}
	m.RepliesAdmitted.WithLabelValues(label).Inc()
}

// RecordReplyRejected 记录被策略拒绝的回复
func (m *Metrics) RecordReplyRejected(reason string) {
	m.RepliesRejected.WithLabelValues(reason).Inc()
}

// RegisterWebSocketConnections 注册活跃 WebSocket 连接数的采集函数
func (m *Metrics) RegisterWebSocketConnections(count func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "feedbox_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
		func() float64 { return float64(count()) },
	)
}

// RecordError 记录错误
func (m *Metrics) RecordError(errType, component string) {
	m.ErrorsTotal.WithLabelValues(errType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
