package logger

import (
	"context"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

var skipAccessLog = map[string]struct{}{
	"/api/ping": {},
}

// SetupGin 访问日志 + Recovery
// 访问日志走 slog，trace_id 由 ContextHandler 从请求 ctx 中补上；业务码在响应体里，这里只看 HTTP 状态
func SetupGin(r *gin.Engine) {
	r.Use(accessLog())
	r.Use(gin.RecoveryWithWriter(LogWriter))
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skipAccessLog[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := log.LevelInfo
		switch {
		case status >= 500:
			level = log.LevelError
		case status >= 400:
			level = log.LevelWarn
		}

		attrs := []log.Attr{
			log.String("method", c.Request.Method),
			log.String("path", path),
			log.String("route", c.FullPath()),
			log.Int("status", status),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
			log.Int("size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, log.String("errors", c.Errors.String()))
		}
		log.LogAttrs(requestContext(c), level, "GIN_ACCESS", attrs...)
	}
}

func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if _, ok := ctx.Value(TraceIDKey).(string); ok {
		return ctx
	}
	if id := c.GetString(TraceIDKey); id != "" {
		return context.WithValue(ctx, TraceIDKey, id)
	}
	return ctx
}
