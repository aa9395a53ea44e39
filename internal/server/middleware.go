package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// requestLogger emits one structured line per request with a request id,
// method, path, status, and latency. The id is echoed back to the client
// so failures can be correlated with the log stream.
func requestLogger(zlog zerolog.Logger) gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		start := time.Now()

		requestID := ginCtx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ginCtx.Header(requestIDHeader, requestID)
		ginCtx.Next()

		zlog.Info().
			Str("request_id", requestID).
			Str("method", ginCtx.Request.Method).
			Str("path", ginCtx.Request.URL.Path).
			Int("status", ginCtx.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
