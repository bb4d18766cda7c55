package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/api"
	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/config"
	"github.com/MorseWayne/petshop_engine/internal/database"
	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/limiter"
	"github.com/MorseWayne/petshop_engine/internal/lock"
	"github.com/MorseWayne/petshop_engine/internal/logger"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	mw "github.com/MorseWayne/petshop_engine/internal/middleware"
	"github.com/MorseWayne/petshop_engine/internal/mq"
	"github.com/MorseWayne/petshop_engine/internal/repo"
	"github.com/MorseWayne/petshop_engine/internal/router"
	"github.com/MorseWayne/petshop_engine/internal/service"
)

// infrastructure 外部资源，退出时统一释放
type infrastructure struct {
	db          *database.DB
	redisClient *redis.Client
	publisher   mq.Publisher
}

// Close 释放所有外部连接
func (i *infrastructure) Close(lg *zap.Logger) {
	if i.publisher != nil {
		if err := i.publisher.Close(); err != nil {
			lg.Sugar().Errorw("failed to close publisher", "err", err)
		}
	}
	if i.redisClient != nil {
		if err := i.redisClient.Close(); err != nil {
			lg.Sugar().Errorw("failed to close redis client", "err", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, lg, nil
}

// initDatabase 连接 MySQL 并在启动 HTTP 服务前执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	lg.Sugar().Infow("using migrations directory", "path", cfg.Migrations.Dir)
	if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// initStores 按配置选择商品/订单存储与购物车缓存
func initStores(cfg *config.Config, infra *infrastructure, lg *zap.Logger) (repo.InventoryRepository, repo.OrderRepository, cache.Cache, error) {
	var (
		inventoryRepo repo.InventoryRepository
		orderRepo     repo.OrderRepository
	)
	switch cfg.Store.Driver {
	case "mysql":
		db, err := initDatabase(cfg, lg)
		if err != nil {
			return nil, nil, nil, err
		}
		infra.db = db
		inventoryRepo = repo.NewInventoryRepository(db.DB)
		orderRepo = repo.NewOrderRepository(db.DB)
	default:
		inventoryRepo = repo.NewMemoryInventoryRepository()
		orderRepo = repo.NewMemoryOrderRepository()
	}
	lg.Sugar().Infow("store ready", "driver", cfg.Store.Driver)

	var cartCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		client, err := cache.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		infra.redisClient = client
		cartCache = cache.NewRedisCache(client)
	default:
		cartCache = cache.NewMemoryCache()
	}
	lg.Sugar().Infow("cart cache ready", "type", cfg.Cache.Type, "ttl", cfg.Cache.CartTTL)

	// 内存存储本身就在进程内，只给 MySQL 加商品缓存
	if infra.db != nil && cfg.Cache.ProductTTL > 0 {
		inventoryRepo = repo.NewCachedInventoryRepository(inventoryRepo, cartCache, cfg.Cache.ProductTTL)
		lg.Sugar().Infow("product cache enabled", "ttl", cfg.Cache.ProductTTL)
	}

	return inventoryRepo, orderRepo, cartCache, nil
}

// initPublisher 初始化领域事件发布器
func initPublisher(cfg *config.Config, lg *zap.Logger) (mq.Publisher, error) {
	switch cfg.MQ.Driver {
	case "rabbitmq":
		return mq.NewRabbitPublisher(mq.DefaultRabbitConfig(cfg.MQ.RabbitURL, cfg.MQ.RabbitExchange), lg)
	case "kafka":
		return mq.NewKafkaPublisher(&mq.KafkaConfig{
			Brokers:      cfg.MQ.KafkaBrokers,
			Topic:        cfg.MQ.KafkaTopic,
			WriteTimeout: 5 * time.Second,
		}, lg)
	default:
		return mq.NopPublisher{}, nil
	}
}

// initCheckoutLimiter 结算限流器：有 Redis 时多实例共享计数，否则使用进程内计数
func initCheckoutLimiter(cfg *config.Config, client *redis.Client) (limiter.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	lc := &limiter.Config{
		Rate:      int64(cfg.RateLimit.CheckoutRate),
		Window:    cfg.RateLimit.CheckoutWindow,
		KeyPrefix: "limiter:checkout",
	}
	if client != nil {
		return limiter.NewFixedWindowLimiter(client, lc)
	}
	return limiter.NewMemoryFixedWindowLimiter(lc)
}

// buildHandler 组装仓储、服务、处理器与中间件链
func buildHandler(cfg *config.Config, infra *infrastructure, lg *zap.Logger) (http.Handler, error) {
	inventoryRepo, orderRepo, cartCache, err := initStores(cfg, infra, lg)
	if err != nil {
		return nil, err
	}

	publisher, err := initPublisher(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	infra.publisher = publisher

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.New(cfg.Metrics.Namespace, reg)

	checkoutLimiter, err := initCheckoutLimiter(cfg, infra.redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checkout limiter: %w", err)
	}

	policy := domain.PricingPolicy{
		ShippingFee:           cfg.Pricing.ShippingFee,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
	}
	// 购物车锁由购物车服务与结算共用
	cartLocks := lock.NewKeyedMutex()
	cartRepo := repo.NewCartRepository(cartCache, cfg.Cache.CartTTL)

	inventoryService := service.NewInventoryService(inventoryRepo, publisher, engineMetrics, lg)
	cartService := service.NewCartService(cartRepo, inventoryRepo, cartLocks, domain.DefaultCoupons(), policy, engineMetrics, lg)
	orderService := service.NewOrderService(orderRepo, cartRepo, cartLocks, policy, publisher, engineMetrics, lg)

	healthDeps := map[string]api.Pinger{}
	if infra.db != nil {
		healthDeps["mysql"] = api.PingFunc(infra.db.PingContext)
	}
	if infra.redisClient != nil {
		healthDeps["redis"] = api.PingFunc(func(ctx context.Context) error {
			return infra.redisClient.Ping(ctx).Err()
		})
	}

	deps := &router.Dependencies{
		InventoryHandler: api.NewInventoryHandler(inventoryService, lg),
		CartHandler:      api.NewCartHandler(cartService, orderService, lg),
		OrderHandler:     api.NewOrderHandler(orderService, lg),
		HealthHandler:    api.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Metrics:          engineMetrics,
		MetricsHandler:   metrics.Handler(reg),
		CheckoutLimiter:  checkoutLimiter,
		IdempotencyStore: cartCache,
	}
	engine := router.New().Setup(cfg, deps, lg)

	return wrapHandler(cfg, engine, lg), nil
}

// wrapHandler 构建外层中间件链：请求进入时依次经过 request ID → access log → recovery → CORS → timeout
func wrapHandler(cfg *config.Config, h http.Handler, lg *zap.Logger) http.Handler {
	handler := mw.Timeout(cfg.App.RequestTimeout)(h)
	handler = mw.CORS(cfg.CORS)(handler)
	handler = mw.Recovery(lg)(handler)
	handler = mw.AccessLog(lg)(handler)
	handler = mw.RequestID(handler)
	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr, "env", cfg.App.Env)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
	return nil
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	infra := &infrastructure{}
	defer infra.Close(lg)

	handler, err := buildHandler(cfg, infra, lg)
	if err != nil {
		lg.Sugar().Errorw("failed to build application", "err", err)
		return
	}

	if err := startServer(cfg, handler, lg); err != nil {
		lg.Sugar().Errorw("server stopped with error", "err", err)
	}
}
