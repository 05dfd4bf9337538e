// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jubenlab/jubengen/internal/utils"
)

// RequestIDMiddleware 为每个请求生成追踪ID，写入上下文与响应头
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.RandomID(8)
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORSMiddleware 跨域支持
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// MetricsMiddleware 记录每个请求的耗时与状态码
func MetricsMiddleware(metrics *utils.PipelineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordAPIRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// rateWindow 单个客户端在当前时间窗内的剩余额度
type rateWindow struct {
	remaining int
	reset     time.Time
}

// RateLimiter 固定窗口限流器。生成类接口都会触发 LLM 调用，
// 按客户端地址限制请求频率。
type RateLimiter struct {
	visitors map[string]*rateWindow
	limit    int
	window   time.Duration
	mu       sync.Mutex
}

// NewRateLimiter 创建限流器并启动过期清理
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*rateWindow),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, v := range rl.visitors {
			if now.After(v.reset) {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow 判断该客户端此刻是否允许请求，返回剩余额度与窗口重置时间
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, exists := rl.visitors[key]
	if !exists || now.After(v.reset) {
		v = &rateWindow{remaining: rl.limit - 1, reset: now.Add(rl.window)}
		rl.visitors[key] = v
		return true, v.remaining, v.reset
	}
	if v.remaining <= 0 {
		return false, 0, v.reset
	}
	v.remaining--
	return true, v.remaining, v.reset
}

// Middleware 返回按客户端地址限流的 gin 中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset := rl.Allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, &APIResponse{
				Success:   false,
				Error:     &APIError{Code: "RATE_LIMIT_EXCEEDED", Message: "请求过于频繁，请稍后重试"},
				Timestamp: time.Now(),
			})
			return
		}
		c.Next()
	}
}
