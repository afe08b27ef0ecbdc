package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pilot",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pilot", Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	// External ops (SMTP-style email sends, storage, redis)
	externalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "pilot", Name: "external_op_duration_seconds", Help: "Duration of external operations"},
		[]string{"op", "outcome"},
	)
	externalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pilot", Name: "external_op_total", Help: "Total external operations"},
		[]string{"op", "outcome"},
	)
	breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "pilot", Name: "circuit_breaker_open", Help: "Circuit breaker state: 1=open, 0=closed"},
		[]string{"breaker"},
	)
	rateLimitRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pilot", Name: "rate_limit_reject_total", Help: "Requests rejected by the rate limiter, by action"},
		[]string{"action"},
	)
	verificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pilot", Name: "verification_requests_total", Help: "Verification lifecycle outcomes"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(reqDuration, reqTotal, externalDuration, externalTotal, breakerOpen, rateLimitRejectTotal, verificationTotal)
}

// MetricsMiddleware records basic HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		reqDuration.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Observe(dur)
		reqTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
	}
}

// RecordExternalOp records an external operation metric with duration and outcome
func RecordExternalOp(op string, dur time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	externalDuration.WithLabelValues(op, outcome).Observe(dur.Seconds())
	externalTotal.WithLabelValues(op, outcome).Inc()
}

// SetBreakerState updates the breaker state gauge (1=open, 0=closed)
func SetBreakerState(name string, open bool) {
	if open {
		breakerOpen.WithLabelValues(name).Set(1)
	} else {
		breakerOpen.WithLabelValues(name).Set(0)
	}
}

// RecordVerificationOutcome counts created/approved/rejected verification requests.
func RecordVerificationOutcome(outcome string) {
	verificationTotal.WithLabelValues(outcome).Inc()
}
