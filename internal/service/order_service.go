package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/lock"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	"github.com/MorseWayne/petshop_engine/internal/mq"
	"github.com/MorseWayne/petshop_engine/internal/repo"
)

// OrderService 定义结算与订单生命周期接口
type OrderService interface {
	// Checkout 将购物车冻结为订单并清空购物车。不扣减库存。
	Checkout(ctx context.Context, customerID string, req *domain.CheckoutRequest) (*domain.Order, error)

	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrders(ctx context.Context, customerID string) ([]*domain.Order, error)

	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Order, error)
	SetTrackingCode(ctx context.Context, id int64, code string) (*domain.Order, error)
}

// orderService 实现OrderService接口
type orderService struct {
	orders     repo.OrderRepository
	carts      repo.CartRepository
	cartLocks  *lock.KeyedMutex
	orderLocks *lock.KeyedMutex
	policy     domain.PricingPolicy
	events     eventEmitter
	metrics    *metrics.EngineMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrderService 创建订单服务。cartLocks 必须与 CartService 共用。
func NewOrderService(
	orders repo.OrderRepository,
	carts repo.CartRepository,
	cartLocks *lock.KeyedMutex,
	policy domain.PricingPolicy,
	publisher mq.Publisher,
	m *metrics.EngineMetrics,
	logger *zap.Logger,
) OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cartLocks == nil {
		cartLocks = lock.NewKeyedMutex()
	}
	logger = logger.With(zap.String("component", "order"))
	return &orderService{
		orders:     orders,
		carts:      carts,
		cartLocks:  cartLocks,
		orderLocks: lock.NewKeyedMutex(),
		policy:     policy,
		events:     newEventEmitter(publisher, logger),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Checkout 在客户锁内完成 快照 -> 保存订单 -> 清空购物车。
// 清空失败时删除已保存的订单，不留下部分状态。
func (s *orderService) Checkout(ctx context.Context, customerID string, req *domain.CheckoutRequest) (order *domain.Order, err error) {
	defer func() { s.metrics.ObserveCheckout(err) }()

	customerID, err = normalizeCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.NewValidationError("request is required")
	}

	unlock := s.cartLocks.Lock(customerID)
	defer unlock()

	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart == nil || cart.IsEmpty() {
		return nil, domain.NewValidationError(domain.MsgEmptyCart)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 以当前价格规则重算后冻结
	snapshot := cart.Clone()
	snapshot.Recalculate(s.policy)
	now := s.now()
	order = domain.NewOrderFromCart(snapshot, req, now)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	emptied := cart.Clone()
	emptied.Reset()
	emptied.Recalculate(s.policy)
	emptied.UpdatedAt = now
	if err := s.carts.Save(ctx, emptied); err != nil {
		if delErr := s.orders.Delete(context.WithoutCancel(ctx), order.ID); delErr != nil {
			s.logger.Error("failed to roll back order after cart reset failure",
				zap.Int64("order_id", order.ID),
				zap.String("customer_id", customerID),
				zap.Error(delErr),
			)
			return nil, errors.Join(fmt.Errorf("failed to reset cart: %w", err), delErr)
		}
		return nil, fmt.Errorf("failed to reset cart: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", order.ItemCount()),
	)
	s.events.emit(ctx, mq.EventOrderCreated, customerID, mq.OrderCreatedPayload{
		OrderID:    order.ID,
		CustomerID: customerID,
		Total:      order.Total.StringFixed(2),
		ItemCount:  order.ItemCount(),
	})
	return order, nil
}

// GetOrder 获取订单详情
func (s *orderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("invalid order id: %d", id)
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, domain.NewNotFoundError("order %d not found", id)
	}
	return order, nil
}

// GetOrders 查询订单，customerID 为空时返回全部；最新的在前
func (s *orderService) GetOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	orders, err := s.orders.List(ctx, domain.OrderFilter{CustomerID: strings.TrimSpace(customerID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

// update 在订单锁内读取订单，对副本执行 fn 后持久化
func (s *orderService) update(ctx context.Context, id int64, fn func(*domain.Order) error) (*domain.Order, *domain.Order, error) {
	unlock := s.orderLocks.Lock(fmt.Sprintf("%d", id))
	defer unlock()

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, nil, err
	}
	if err := s.orders.UpdateState(ctx, next); err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("order %d not found", id)
		}
		return nil, nil, fmt.Errorf("failed to update order: %w", err)
	}
	return current, next, nil
}

// UpdateStatus 流转订单状态：只能向前（允许跳过），或从非终态取消
func (s *orderService) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (order *domain.Order, err error) {
	status = domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(status))))
	defer func() { s.metrics.ObserveTransition(statusLabel(status), err) }()

	prev, order, err := s.update(ctx, id, func(o *domain.Order) error {
		return o.TransitionTo(status, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(order.Status)),
	)
	s.events.emit(ctx, mq.EventOrderStatusChanged, order.CustomerID, mq.StatusChangedPayload{
		OrderID: id,
		From:    string(prev.Status),
		To:      string(order.Status),
	})
	return order, nil
}

// UpdatePaymentStatus 流转支付状态
func (s *orderService) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Order, error) {
	status = domain.PaymentStatus(strings.ToLower(strings.TrimSpace(string(status))))

	prev, order, err := s.update(ctx, id, func(o *domain.Order) error {
		return o.UpdatePaymentStatus(status, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(prev.PaymentStatus)),
		zap.String("to", string(order.PaymentStatus)),
	)
	s.events.emit(ctx, mq.EventPaymentStatusChanged, order.CustomerID, mq.StatusChangedPayload{
		OrderID: id,
		From:    string(prev.PaymentStatus),
		To:      string(order.PaymentStatus),
	})
	return order, nil
}

// SetTrackingCode 设置物流单号
func (s *orderService) SetTrackingCode(ctx context.Context, id int64, code string) (*domain.Order, error) {
	_, order, err := s.update(ctx, id, func(o *domain.Order) error {
		return o.SetTrackingCode(code, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tracking code set", zap.Int64("order_id", id), zap.String("tracking_code", order.TrackingCode))
	return order, nil
}

// statusLabel 指标标签只取已知订单状态
func statusLabel(s domain.OrderStatus) string {
	if !s.IsValid() {
		return "unknown"
	}
	return string(s)
}
