// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/api"
	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/config"
	"github.com/MorseWayne/petshop_engine/internal/limiter"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	"github.com/MorseWayne/petshop_engine/internal/middleware"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	InventoryHandler *api.InventoryHandler
	CartHandler      *api.CartHandler
	OrderHandler     *api.OrderHandler
	HealthHandler    *api.HealthHandler

	// 以下均可为 nil
	Metrics          *metrics.EngineMetrics
	MetricsHandler   http.Handler
	CheckoutLimiter  limiter.Limiter
	IdempotencyStore cache.Cache
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件。请求ID、访问日志、CORS 与恢复在外层 net/http 链中处理。
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	if lg == nil {
		lg = zap.NewNop()
	}

	r.engine = gin.New()
	r.deps = deps
	r.logger = lg

	r.engine.Use(gin.Recovery())
	r.engine.Use(r.metricsMiddleware())

	r.setupRoutes(cfg)
	return r.engine
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes(cfg *config.Config) {
	if r.deps.HealthHandler != nil {
		r.engine.GET("/healthz", r.deps.HealthHandler.HealthCheck)
	}
	if cfg.Metrics.Enabled && r.deps.MetricsHandler != nil {
		r.engine.GET(cfg.Metrics.Path, gin.WrapH(r.deps.MetricsHandler))
	}

	v1 := r.engine.Group("/api/v1")

	inv := r.deps.InventoryHandler
	products := v1.Group("/products")
	{
		products.POST("", inv.RegisterProduct)
		products.GET("", inv.ListProducts)
		products.GET("/:id", inv.GetProduct)
		products.GET("/:id/balance", inv.GetBalance)
		products.POST("/:id/reconcile", inv.Reconcile)
	}

	inventory := v1.Group("/inventory")
	{
		inventory.POST("/movements", inv.RecordMovement)
		inventory.GET("/movements", inv.ListMovements)
		inventory.GET("/alerts/low-stock", inv.GetLowStockAlerts)
	}

	cart := r.deps.CartHandler
	carts := v1.Group("/carts/:customerId")
	{
		carts.GET("", cart.GetCart)
		carts.DELETE("", cart.ClearCart)
		carts.POST("/items", cart.AddItem)
		carts.PUT("/items/:productId", cart.UpdateItemQuantity)
		carts.DELETE("/items/:productId", cart.RemoveItem)
		carts.POST("/coupon", cart.ApplyCoupon)
		carts.POST("/checkout", r.checkoutChain(cart.Checkout)...)
	}

	ord := r.deps.OrderHandler
	orders := v1.Group("/orders")
	{
		orders.GET("", ord.ListOrders)
		orders.GET("/:id", ord.GetOrder)
		orders.PUT("/:id/status", ord.UpdateStatus)
		orders.PUT("/:id/payment-status", ord.UpdatePaymentStatus)
		orders.PUT("/:id/tracking", ord.SetTrackingCode)
	}
}

// checkoutChain 结算接口：按客户限流，再做幂等检查
func (r *GinRouter) checkoutChain(handler gin.HandlerFunc) []gin.HandlerFunc {
	var chain []gin.HandlerFunc
	if r.deps.CheckoutLimiter != nil {
		chain = append(chain, limiter.CheckoutRateLimitMiddleware(r.deps.CheckoutLimiter, func(c *gin.Context) {
			r.deps.Metrics.ObserveRateLimited(c.FullPath())
			r.logger.Info("checkout rate limited",
				zap.String("customer_id", c.Param("customerId")),
				zap.String("request_id", middleware.RequestIDFromContext(c.Request.Context())),
			)
		}))
	}
	if r.deps.IdempotencyStore != nil {
		chain = append(chain, middleware.IdempotencyMiddleware(
			middleware.DefaultIdempotencyConfig(r.deps.IdempotencyStore, r.logger)))
	}
	return append(chain, handler)
}

// metricsMiddleware 按路由模板记录请求数与耗时
func (r *GinRouter) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.deps.Metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
