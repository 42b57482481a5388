// Package middleware 提供 gin 中间件：请求 ID、日志、跨域、指标、追踪、限流与响应缓存.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID 请求 ID 头.
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// RequestIDMiddleware 沿用客户端传入的请求 ID，没有时生成一个 UUID，并写回响应头.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestID 返回当前请求的 ID.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
