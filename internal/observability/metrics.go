package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgsync_loads_total",
			Help: "Total number of directory/thread load operations.",
		},
		[]string{"kind", "result"},
	)
	syncSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgsync_sends_total",
			Help: "Total number of outbound message sends.",
		},
		[]string{"result"},
	)
	syncSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "msgsync_send_duration_seconds",
			Help:    "Outbound pipeline latency (upload plus submit) in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	syncReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "msgsync_reconciliations_total",
			Help: "Total number of post-send reconciliation passes.",
		},
	)
	syncInitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgsync_conversation_inits_total",
			Help: "Total number of conversation initialization calls.",
		},
		[]string{"result"},
	)
	notifierDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "msgsync_notifier_drops_total",
			Help: "Events dropped because a subscriber channel was full.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "msgsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	stubHTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgsync_stub_http_requests_total",
			Help: "Total number of HTTP requests served by the stub backend.",
		},
		[]string{"method", "route", "status"},
	)
	stubHTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgsync_stub_http_request_duration_seconds",
			Help:    "Stub backend request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		syncLoadsTotal,
		syncSendsTotal,
		syncSendDuration,
		syncReconciliationsTotal,
		syncInitsTotal,
		notifierDropsTotal,
		amqpPublishErrorsTotal,
		stubHTTPRequestsTotal,
		stubHTTPRequestDuration,
	)
}

// HTTPMetricsMiddleware instruments the stub backend's gin router.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		stubHTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		stubHTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncLoad(kind, result string) {
	syncLoadsTotal.WithLabelValues(kind, result).Inc()
}

func IncSend(result string) {
	syncSendsTotal.WithLabelValues(result).Inc()
}

func ObserveSendDuration(d time.Duration) {
	syncSendDuration.Observe(d.Seconds())
}

func IncReconciliation() {
	syncReconciliationsTotal.Inc()
}

func IncInit(result string) {
	syncInitsTotal.WithLabelValues(result).Inc()
}

func IncNotifierDrop() {
	notifierDropsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
