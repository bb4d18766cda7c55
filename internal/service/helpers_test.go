package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/lock"
	"github.com/MorseWayne/petshop_engine/internal/metrics"
	"github.com/MorseWayne/petshop_engine/internal/mq"
	"github.com/MorseWayne/petshop_engine/internal/repo"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// engine 测试用的完整服务组合，存储均为内存实现
type engine struct {
	products  repo.InventoryRepository
	carts     *flakyCartRepository
	orders    repo.OrderRepository
	publisher *mq.RecordingPublisher
	metrics   *metrics.EngineMetrics

	inventory InventoryService
	cart      CartService
	order     OrderService
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	e := &engine{
		products:  repo.NewMemoryInventoryRepository(),
		carts:     &flakyCartRepository{CartRepository: repo.NewCartRepository(cache.NewMemoryCache(), 0)},
		orders:    repo.NewMemoryOrderRepository(),
		publisher: &mq.RecordingPublisher{},
		metrics:   metrics.New("petshop", prometheus.NewRegistry()),
	}
	cartLocks := lock.NewKeyedMutex()
	policy := domain.DefaultPricingPolicy()

	inv := NewInventoryService(e.products, e.publisher, e.metrics, nil).(*inventoryService)
	inv.now = func() time.Time { return fixedNow }
	crt := NewCartService(e.carts, e.products, cartLocks, nil, policy, e.metrics, nil).(*cartService)
	crt.now = func() time.Time { return fixedNow }
	ord := NewOrderService(e.orders, e.carts, cartLocks, policy, e.publisher, e.metrics, nil).(*orderService)
	ord.now = func() time.Time { return fixedNow }

	e.inventory, e.cart, e.order = inv, crt, ord
	return e
}

func (e *engine) registerProduct(t *testing.T, id, price string, initial, minStock int) *domain.Product {
	t.Helper()
	p, err := e.inventory.RegisterProduct(context.Background(), &domain.CreateProductRequest{
		ID:           id,
		Name:         "Product " + id,
		Price:        decimal.RequireFromString(price),
		InitialStock: initial,
		MinStock:     minStock,
	})
	require.NoError(t, err)
	return p
}

func (e *engine) addItem(t *testing.T, customerID, productID string, qty int) *domain.Cart {
	t.Helper()
	cart, err := e.cart.AddItem(context.Background(), customerID, &domain.AddCartItemRequest{
		ProductID: productID,
		Quantity:  qty,
	})
	require.NoError(t, err)
	return cart
}

func validCheckout() *domain.CheckoutRequest {
	return &domain.CheckoutRequest{
		CustomerName:    "Ana Souza",
		ShippingAddress: "Rua das Flores 10",
		PaymentMethod:   domain.PaymentPix,
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var errStoreDown = errors.New("store unavailable")

// flakyCartRepository 可以让保存操作失败的购物车仓储
type flakyCartRepository struct {
	repo.CartRepository
	failSave bool
}

func (r *flakyCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if r.failSave {
		return errStoreDown
	}
	return r.CartRepository.Save(ctx, cart)
}
