package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// InteractionCounter 投票/收藏/完成/评分/举报
	InteractionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnhub_interactions_total",
			Help: "Interaction writes by action and content kind",
		},
		[]string{"action", "kind"},
	)

	QuizSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnhub_quiz_submissions_total",
			Help: "Submitted quiz attempts by outcome",
		},
		[]string{"passed"},
	)

	SessionSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnhub_session_seconds_total",
			Help: "Study seconds moved into totals by content kind",
		},
		[]string{"kind"},
	)

	VoteCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnhub_vote_cache_lookups_total",
			Help: "Vote count cache lookups by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(InteractionCounter)
		prometheus.MustRegister(QuizSubmissions)
		prometheus.MustRegister(SessionSeconds)
		prometheus.MustRegister(VoteCacheLookups)
	})
}

func RecordInteraction(action, kind string) {
	InteractionCounter.WithLabelValues(action, kind).Inc()
}

func RecordQuizSubmission(passed bool) {
	QuizSubmissions.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func RecordSessionSeconds(kind string, seconds float64) {
	if seconds > 0 {
		SessionSeconds.WithLabelValues(kind).Add(seconds)
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
