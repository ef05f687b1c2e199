package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for status API metrics.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures one chunk computation.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer starts a timer. A nil metrics makes Stop a no-op.
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), metrics: metrics}
}

// Stop records the elapsed time as a chunk compute observation.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.ChunkCompute.Observe(elapsed.Seconds())
	}
	return elapsed
}
