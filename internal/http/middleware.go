package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goseedr/internal/metrics"
	"github.com/sirupsen/logrus"
)

// metricsMiddleware counts RPC calls by Transmission method and HTTP status.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		method := c.GetString(rpcMethodKey)
		if method == "" {
			method = "none"
		}
		metrics.RPCRequestsTotal.WithLabelValues(method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func loggingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s rpc=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(rpcMethodKey))
	}
}
