package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/resp"
)

// HeaderIdempotencyKey 客户端提供的幂等键
const HeaderIdempotencyKey = "X-Idempotency-Key"

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	// 幂等键存储
	Store cache.Cache

	// 幂等键头名称
	IdempotencyKeyHeader string

	// 跳过的方法
	SkipMethods []string

	// 幂等键保留时长
	CacheTTL time.Duration

	// 键的作用域，默认取路由模板 + 路径参数
	Scope func(*gin.Context) string

	Logger *zap.Logger
}

// DefaultIdempotencyConfig 默认幂等性配置
func DefaultIdempotencyConfig(store cache.Cache, logger *zap.Logger) *IdempotencyConfig {
	return &IdempotencyConfig{
		Store:                store,
		IdempotencyKeyHeader: HeaderIdempotencyKey,
		SkipMethods:          []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CacheTTL:             24 * time.Hour,
		Scope:                defaultIdempotencyScope,
		Logger:               logger,
	}
}

// IdempotencyMiddleware 同一幂等键只允许一次请求被处理。
// 处理失败（状态码 >= 400）时释放幂等键，允许客户端重试；
// 未携带幂等键的请求直接放行；存储不可用时放行并记录日志。
func IdempotencyMiddleware(cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Scope == nil {
		cfg.Scope = defaultIdempotencyScope
	}
	if cfg.IdempotencyKeyHeader == "" {
		cfg.IdempotencyKeyHeader = HeaderIdempotencyKey
	}

	return func(c *gin.Context) {
		for _, m := range cfg.SkipMethods {
			if c.Request.Method == m {
				c.Next()
				return
			}
		}

		key := strings.TrimSpace(c.GetHeader(cfg.IdempotencyKeyHeader))
		if key == "" || cfg.Store == nil {
			c.Next()
			return
		}

		reqID := RequestIDFromContext(c.Request.Context())
		storeKey := fmt.Sprintf("idem:%s:%s", cfg.Scope(c), key)

		acquired, err := cfg.Store.SetNX(c.Request.Context(), storeKey, reqID, cfg.CacheTTL)
		if err != nil {
			cfg.Logger.Warn("idempotency store unavailable",
				zap.String("request_id", reqID),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !acquired {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeConflict, "duplicate request", reqID, "")
			c.Abort()
			return
		}

		c.Set("idempotency_key", key)
		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// 请求上下文可能已结束
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cfg.Store.Del(ctx, storeKey); err != nil {
				cfg.Logger.Warn("failed to release idempotency key",
					zap.String("request_id", reqID),
					zap.Error(err),
				)
			}
		}
	}
}

func defaultIdempotencyScope(c *gin.Context) string {
	scope := c.FullPath()
	if scope == "" {
		scope = c.Request.URL.Path
	}
	for _, p := range c.Params {
		scope += ":" + p.Value
	}
	return c.Request.Method + ":" + scope
}
