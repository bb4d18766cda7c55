package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/petshop_engine/internal/resp"
)

// Pinger 可探活的依赖（数据库、缓存）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查
type HealthHandler struct {
	service string
	version string
	deps    map[string]Pinger
}

// NewHealthHandler 创建健康检查处理器；deps 可为空
func NewHealthHandler(service, version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{service: service, version: version, deps: deps}
}

// HealthCheck 健康检查接口
// GET /healthz
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	info := map[string]any{
		"service":   h.service,
		"version":   h.version,
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}
	if !healthy {
		info["status"] = "degraded"
		resp.WriteJSON(c.Writer, http.StatusServiceUnavailable, resp.CodeInternalError, "unhealthy", &info,
			requestID(c), traceID(c))
		return
	}
	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "healthy", &info, requestID(c), traceID(c))
}

// PingFunc 将函数适配为 Pinger
type PingFunc func(ctx context.Context) error

// Ping 调用函数本身
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
