package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/domain"
)

const cartKeyPrefix = "cart:"

// CartRepository 购物车存储。不存在的购物车返回 nil, nil。
type CartRepository interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, customerID string) error
}

// cacheCartRepo 以 JSON 形式把购物车存放在缓存中（内存或 Redis），ttl 为 0 表示不过期
type cacheCartRepo struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCartRepository 创建基于缓存的购物车仓储
func NewCartRepository(c cache.Cache, ttl time.Duration) CartRepository {
	return &cacheCartRepo{cache: c, ttl: ttl}
}

func cartKey(customerID string) string {
	return cartKeyPrefix + customerID
}

func (r *cacheCartRepo) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := r.cache.Get(ctx, cartKey(customerID), &cart); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (r *cacheCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	if err := r.cache.Set(ctx, cartKey(cart.CustomerID), cart, r.ttl); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *cacheCartRepo) Delete(ctx context.Context, customerID string) error {
	if err := r.cache.Del(ctx, cartKey(customerID)); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
