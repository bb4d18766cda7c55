package limiter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mw "github.com/MorseWayne/petshop_engine/internal/middleware"
	"github.com/MorseWayne/petshop_engine/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	// 限流器
	Limiter Limiter

	// Key生成函数
	KeyGenerator func(*gin.Context) string

	// 错误处理函数
	ErrorHandler func(*gin.Context, error)

	// 限流回调函数
	OnLimitReached func(*gin.Context, *LimitResult)

	// 是否跳过限流检查
	Skip func(*gin.Context) bool

	// 响应头配置
	Headers *HeaderConfig
}

// HeaderConfig 响应头配置
type HeaderConfig struct {
	Enable           bool
	RemainingHeader  string // X-RateLimit-Remaining
	RetryAfterHeader string // Retry-After
}

// DefaultHeaderConfig 默认头配置
func DefaultHeaderConfig() *HeaderConfig {
	return &HeaderConfig{
		Enable:           true,
		RemainingHeader:  "X-RateLimit-Remaining",
		RetryAfterHeader: "Retry-After",
	}
}

// DefaultKeyGenerator 默认Key生成器（基于IP）
func DefaultKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// CheckoutKeyGenerator 结算接口按客户限流，缺少客户ID时退回到IP
func CheckoutKeyGenerator(c *gin.Context) string {
	if customerID := strings.TrimSpace(c.Param("customerId")); customerID != "" {
		return fmt.Sprintf("checkout:customer:%s", customerID)
	}
	return fmt.Sprintf("checkout:ip:%s", c.ClientIP())
}

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(config *MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaultErrorHandler
	}
	if config.OnLimitReached == nil {
		config.OnLimitReached = defaultOnLimitReached
	}
	if config.Headers == nil {
		config.Headers = DefaultHeaderConfig()
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		key := config.KeyGenerator(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		result, err := config.Limiter.Allow(ctx, key)
		if err != nil {
			config.ErrorHandler(c, err)
			return
		}

		if config.Headers.Enable {
			setRateLimitHeaders(c, result, config.Headers)
		}

		if !result.Allowed {
			config.OnLimitReached(c, result)
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders 设置限流相关的响应头
func setRateLimitHeaders(c *gin.Context, result *LimitResult, headers *HeaderConfig) {
	if headers.RemainingHeader != "" {
		remaining := result.Remaining
		if remaining < 0 {
			remaining = 0
		}
		c.Header(headers.RemainingHeader, strconv.FormatInt(remaining, 10))
	}

	if headers.RetryAfterHeader != "" && result.RetryAfter > 0 {
		seconds := int64((result.RetryAfter + time.Second - 1) / time.Second)
		c.Header(headers.RetryAfterHeader, strconv.FormatInt(seconds, 10))
	}
}

// defaultErrorHandler 限流器不可用时放行，只记录在响应头中
func defaultErrorHandler(c *gin.Context, err error) {
	c.Header("X-RateLimit-Error", "unavailable")
	c.Next()
}

// defaultOnLimitReached 默认限流回调
func defaultOnLimitReached(c *gin.Context, result *LimitResult) {
	requestID := mw.RequestIDFromContext(c.Request.Context())
	resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
		"too many requests, please retry later", requestID, "")
}

// CheckoutRateLimitMiddleware 结算接口限流中间件；onLimited 可为 nil
func CheckoutRateLimitMiddleware(limiter Limiter, onLimited func(*gin.Context)) gin.HandlerFunc {
	return RateLimitMiddleware(&MiddlewareConfig{
		Limiter:      limiter,
		KeyGenerator: CheckoutKeyGenerator,
		OnLimitReached: func(c *gin.Context, result *LimitResult) {
			if onLimited != nil {
				onLimited(c)
			}
			defaultOnLimitReached(c, result)
		},
		Headers: DefaultHeaderConfig(),
	})
}
