// Package service 实现业务逻辑层：商品目录与库存流水、购物车、结算与订单生命周期。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/lock"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	"github.com/MorseWayne/petshop_engine/internal/mq"
	"github.com/MorseWayne/petshop_engine/internal/repo"
)

// maxAppendAttempts 多实例共享数据库时，库存被并发修改后的重试次数
const maxAppendAttempts = 3

// InventoryService 定义商品目录与库存流水接口
type InventoryService interface {
	// 商品目录
	RegisterProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)

	// 库存流水
	RecordMovement(ctx context.Context, req *domain.RecordMovementRequest) (*domain.StockMovement, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error)
	GetBalance(ctx context.Context, productID string) (*domain.Balance, error)
	Reconcile(ctx context.Context, productID string) (*domain.ReconcileResult, error)

	// 统计查询
	GetLowStockAlerts(ctx context.Context) ([]*domain.LowStockAlert, error)
}

// inventoryService 实现InventoryService接口
type inventoryService struct {
	repo    repo.InventoryRepository
	locks   *lock.KeyedMutex
	events  eventEmitter
	metrics *metrics.EngineMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewInventoryService 创建库存服务实例。publisher、m 可为 nil。
func NewInventoryService(
	inventoryRepo repo.InventoryRepository,
	publisher mq.Publisher,
	m *metrics.EngineMetrics,
	logger *zap.Logger,
) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "inventory"))
	return &inventoryService{
		repo:    inventoryRepo,
		locks:   lock.NewKeyedMutex(),
		events:  newEventEmitter(publisher, logger),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterProduct 登记商品，当前库存等于初始库存
func (s *inventoryService) RegisterProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error) {
	if req == nil {
		return nil, domain.NewValidationError("request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.ID)
	defer unlock()

	product := domain.NewProduct(req, s.now())
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, domain.NewValidationError("product %s already exists", req.ID)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product registered",
		zap.String("product_id", product.ID),
		zap.Int("initial_stock", product.InitialStock),
	)
	return product, nil
}

// GetProduct 获取商品详情
func (s *inventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("product id is required")
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, domain.NewNotFoundError("product %s not found", id)
	}
	return product, nil
}

// ListProducts 按ID升序列出全部商品
func (s *inventoryService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

// RecordMovement 登记库存流水并同步投影库存。
// 同一商品的流水串行处理；结果为负时拒绝，流水与库存均不变。
func (s *inventoryService) RecordMovement(ctx context.Context, req *domain.RecordMovementRequest) (movement *domain.StockMovement, err error) {
	if req == nil {
		return nil, domain.NewValidationError("request is required")
	}
	defer func() { s.metrics.ObserveMovement(movementLabel(req.Type), err) }()

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.ProductID)
	defer unlock()

	var product *domain.Product
	for attempt := 1; ; attempt++ {
		product, err = s.GetProduct(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}

		next, projErr := domain.ProjectStock(product.Stock, req.Type, req.Quantity)
		if projErr != nil {
			s.logger.Info("movement rejected",
				zap.String("product_id", product.ID),
				zap.String("type", string(req.Type)),
				zap.Int("quantity", req.Quantity),
				zap.Int("stock", product.Stock),
			)
			return nil, projErr
		}

		movement = &domain.StockMovement{
			ID:            uuid.New().String(),
			ProductID:     product.ID,
			Type:          req.Type,
			Quantity:      req.Quantity,
			Reason:        req.Reason,
			Notes:         strings.TrimSpace(req.Notes),
			PreviousStock: product.Stock,
			NewStock:      next,
			CreatedAt:     s.now(),
		}

		err = s.repo.AppendMovement(ctx, movement)
		if err == nil {
			break
		}
		if errors.Is(err, repo.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("product %s not found", req.ProductID)
		}
		if !errors.Is(err, repo.ErrStockConflict) || attempt >= maxAppendAttempts {
			return nil, fmt.Errorf("failed to append stock movement: %w", err)
		}
		s.logger.Warn("stock changed concurrently, retrying",
			zap.String("product_id", req.ProductID),
			zap.Int("attempt", attempt),
		)
	}

	s.logger.Info("movement recorded",
		zap.String("movement_id", movement.ID),
		zap.String("product_id", movement.ProductID),
		zap.String("type", string(movement.Type)),
		zap.Int("previous_stock", movement.PreviousStock),
		zap.Int("new_stock", movement.NewStock),
	)

	s.events.emit(ctx, mq.EventStockMovementRecorded, movement.ProductID, mq.MovementRecordedPayload{
		MovementID:    movement.ID,
		ProductID:     movement.ProductID,
		Type:          string(movement.Type),
		Quantity:      movement.Quantity,
		PreviousStock: movement.PreviousStock,
		NewStock:      movement.NewStock,
	})
	if movement.NewStock <= product.MinStock {
		s.events.emit(ctx, mq.EventStockLow, movement.ProductID, mq.LowStockPayload{
			ProductID: movement.ProductID,
			Stock:     movement.NewStock,
			MinStock:  product.MinStock,
		})
	}
	return movement, nil
}

// ListMovements 按条件查询流水，最新的在前
func (s *inventoryService) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	filter.ProductID = strings.TrimSpace(filter.ProductID)
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, domain.NewValidationError("unknown movement type: %s", filter.Type)
	}
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}
	return movements, nil
}

func (s *inventoryService) balance(ctx context.Context, product *domain.Product) (*domain.Balance, error) {
	movements, err := s.repo.ListMovements(ctx, domain.MovementFilter{ProductID: product.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return &domain.Balance{
		ProductID:     product.ID,
		InitialStock:  product.InitialStock,
		Stock:         product.Stock,
		LedgerBalance: domain.LedgerBalance(product.InitialStock, movements),
		Movements:     len(movements),
	}, nil
}

// GetBalance 由初始库存与全部流水重新计算余额
func (s *inventoryService) GetBalance(ctx context.Context, productID string) (*domain.Balance, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.balance(ctx, product)
}

// Reconcile 对账：投影库存与流水余额不一致时以流水为准修正
func (s *inventoryService) Reconcile(ctx context.Context, productID string) (*domain.ReconcileResult, error) {
	productID = strings.TrimSpace(productID)
	unlock := s.locks.Lock(productID)
	defer unlock()

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	balance, err := s.balance(ctx, product)
	if err != nil {
		return nil, err
	}

	result := &domain.ReconcileResult{
		ProductID:     product.ID,
		CachedStock:   product.Stock,
		LedgerBalance: balance.LedgerBalance,
	}
	if product.Stock == balance.LedgerBalance {
		return result, nil
	}

	if err := s.repo.SetStock(ctx, product.ID, balance.LedgerBalance); err != nil {
		return nil, fmt.Errorf("failed to correct stock: %w", err)
	}
	result.Corrected = true

	s.logger.Warn("stock drift corrected",
		zap.String("product_id", product.ID),
		zap.Int("cached_stock", product.Stock),
		zap.Int("ledger_balance", balance.LedgerBalance),
	)
	return result, nil
}

// GetLowStockAlerts 获取低库存警告
func (s *inventoryService) GetLowStockAlerts(ctx context.Context) ([]*domain.LowStockAlert, error) {
	products, err := s.repo.GetLowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get low stock products: %w", err)
	}

	alerts := make([]*domain.LowStockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, domain.NewLowStockAlert(p))
	}
	return alerts, nil
}

// movementLabel 指标标签只取已知流水类型
func movementLabel(t domain.MovementType) string {
	if !t.IsValid() {
		return "unknown"
	}
	return string(t)
}
