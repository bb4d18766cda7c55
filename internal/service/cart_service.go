package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/lock"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	"github.com/MorseWayne/petshop_engine/internal/repo"
)

// CartService 定义购物车接口
type CartService interface {
	GetOrCreateCart(ctx context.Context, customerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerID string, req *domain.AddCartItemRequest) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, customerID string) (*domain.Cart, error)
	ApplyCoupon(ctx context.Context, customerID, code string) (*domain.Cart, error)
}

// cartService 实现CartService接口
type cartService struct {
	carts   repo.CartRepository
	catalog repo.InventoryRepository
	locks   *lock.KeyedMutex
	coupons domain.CouponTable
	policy  domain.PricingPolicy
	metrics *metrics.EngineMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCartService 创建购物车服务。
// cartLocks 需与结算共用同一实例，保证结算期间购物车不被修改；catalog 可为 nil。
func NewCartService(
	carts repo.CartRepository,
	catalog repo.InventoryRepository,
	cartLocks *lock.KeyedMutex,
	coupons domain.CouponTable,
	policy domain.PricingPolicy,
	m *metrics.EngineMetrics,
	logger *zap.Logger,
) CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cartLocks == nil {
		cartLocks = lock.NewKeyedMutex()
	}
	if coupons == nil {
		coupons = domain.DefaultCoupons()
	}
	return &cartService{
		carts:   carts,
		catalog: catalog,
		locks:   cartLocks,
		coupons: coupons,
		policy:  policy,
		metrics: m,
		logger:  logger.With(zap.String("component", "cart")),
		now:     time.Now,
	}
}

func normalizeCustomerID(customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", domain.NewValidationError("customer id is required")
	}
	return customerID, nil
}

// load 读取购物车，不存在时返回 nil；需持有客户锁
func (s *cartService) load(ctx context.Context, customerID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

// mutate 在客户锁内读取（或创建）购物车，对副本执行修改并重算后保存。
// fn 返回错误时购物车保持原样。
func (s *cartService) mutate(ctx context.Context, op, customerID string, create bool, fn func(*domain.Cart) error) (cart *domain.Cart, err error) {
	defer func() { s.metrics.ObserveCartMutation(op, err) }()

	customerID, err = normalizeCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	current, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if !create {
			return nil, domain.NewNotFoundError("cart for customer %s not found", customerID)
		}
		current = domain.NewCart(customerID, s.now())
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Recalculate(s.policy)
	next.UpdatedAt = s.now()

	if err := s.carts.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// GetOrCreateCart 获取购物车，不存在时创建空购物车
func (s *cartService) GetOrCreateCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	customerID, err := normalizeCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	cart, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart = domain.NewCart(customerID, s.now())
	cart.Recalculate(s.policy)
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	s.logger.Debug("cart created", zap.String("customer_id", customerID))
	return cart, nil
}

// resolveItem 用商品目录补全名称、单价与加购时库存。
// 加购不校验库存，库存在出库登记时才校验。
func (s *cartService) resolveItem(ctx context.Context, req *domain.AddCartItemRequest) (domain.CartItem, error) {
	item := domain.CartItem{
		ProductID:   strings.TrimSpace(req.ProductID),
		ProductName: strings.TrimSpace(req.ProductName),
		Quantity:    req.Quantity,
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}

	var product *domain.Product
	if s.catalog != nil {
		p, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return item, fmt.Errorf("failed to get product: %w", err)
		}
		product = p
	}

	if product == nil {
		if item.ProductName == "" {
			return item, domain.NewValidationError("product name is required for unknown product %s", item.ProductID)
		}
		if req.UnitPrice == nil {
			return item, domain.NewValidationError("unit price is required for unknown product %s", item.ProductID)
		}
		return item, nil
	}

	if item.ProductName == "" {
		item.ProductName = product.Name
	}
	if req.UnitPrice == nil {
		item.UnitPrice = product.Price
	}
	item.StockAtAddTime = product.Stock
	return item, nil
}

// AddItem 加入商品，同一商品合并数量
func (s *cartService) AddItem(ctx context.Context, customerID string, req *domain.AddCartItemRequest) (*domain.Cart, error) {
	if req == nil {
		return nil, domain.NewValidationError("request is required")
	}
	if err := req.Validate(); err != nil {
		s.metrics.ObserveCartMutation("add", err)
		return nil, err
	}
	item, err := s.resolveItem(ctx, req)
	if err != nil {
		s.metrics.ObserveCartMutation("add", err)
		return nil, err
	}

	return s.mutate(ctx, "add", customerID, true, func(c *domain.Cart) error {
		return c.AddItem(item)
	})
}

// UpdateItemQuantity 修改数量，quantity <= 0 时删除该行
func (s *cartService) UpdateItemQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	if quantity > domain.MaxQuantity {
		err := domain.NewValidationError("quantity exceeds %d", domain.MaxQuantity)
		s.metrics.ObserveCartMutation("update", err)
		return nil, err
	}
	return s.mutate(ctx, "update", customerID, false, func(c *domain.Cart) error {
		if !c.SetQuantity(productID, quantity) {
			return domain.NewNotFoundError("product %s not in cart", productID)
		}
		return nil
	})
}

// RemoveItem 删除行，行不存在时不报错
func (s *cartService) RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, "remove", customerID, true, func(c *domain.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

// ClearCart 清空购物车及优惠状态
func (s *cartService) ClearCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.mutate(ctx, "clear", customerID, true, func(c *domain.Cart) error {
		c.Reset()
		return nil
	})
}

// ApplyCoupon 使用优惠券。百分比折扣按当前小计冻结，新券替换旧券。
// 未知券码返回校验错误，购物车不变。
func (s *cartService) ApplyCoupon(ctx context.Context, customerID, code string) (*domain.Cart, error) {
	coupon, err := s.coupons.Resolve(code)
	s.metrics.ObserveCoupon(coupon.Code, err)
	if err != nil {
		s.logger.Debug("coupon rejected", zap.String("customer_id", customerID), zap.String("code", code))
		return nil, err
	}

	return s.mutate(ctx, "coupon", customerID, true, func(c *domain.Cart) error {
		// 折扣基于最新小计
		c.Recalculate(s.policy)
		coupon.Apply(c)
		return nil
	})
}
