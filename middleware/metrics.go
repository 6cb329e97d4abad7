package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
)

// maxInflightMetrics bounds concurrent CloudWatch writes; data points beyond
// it are dropped rather than queued.
const maxInflightMetrics = 64

// MetricsMiddleware records request count, latency and errors per API
// resource. Health probes are not counted.
func MetricsMiddleware(metrics aws_pkg.MetricsRecorder, serviceName string) gin.HandlerFunc {
	if metrics == nil || !metrics.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	slots := make(chan struct{}, maxInflightMetrics)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		dims := map[string]string{
			"Service":  serviceName,
			"Resource": resourceOf(c.FullPath()),
			"Method":   c.Request.Method,
			"Status":   statusClass(status),
		}

		select {
		case slots <- struct{}{}:
		default:
			return
		}
		go func() {
			defer func() { <-slots }()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTPRequests, dims)
			_ = metrics.RecordLatency(ctx, aws_pkg.MetricHTTPLatency, elapsed, dims)
			if status >= 400 {
				_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTPErrors, dims)
			}
		}()
	}
}

// resourceOf maps a route template such as /api/v1/courses/:id/capacity to
// "courses.capacity" so dimensions stay low-cardinality.
func resourceOf(route string) string {
	if route == "" {
		return "unmatched"
	}
	parts := make([]string, 0, 3)
	for _, seg := range strings.Split(strings.TrimPrefix(route, "/api/v1/"), "/") {
		if seg == "" || strings.HasPrefix(seg, ":") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "root"
	}
	return strings.Join(parts, ".")
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
