package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/domain"
)

// CachedInventoryRepository 为商品读取加一层缓存，写操作后删除对应缓存。
// 流水与列表查询直接走底层仓储。
type CachedInventoryRepository struct {
	repo  InventoryRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedInventoryRepository 创建带缓存的库存仓储
func NewCachedInventoryRepository(repo InventoryRepository, cache cache.Cache, ttl time.Duration) InventoryRepository {
	return &CachedInventoryRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

func (r *CachedInventoryRepository) productKey(id string) string {
	return fmt.Sprintf("catalog:product:%s", id)
}

// invalidate 删除商品缓存。删除失败只会让读取多等一个 TTL，AppendMovement 的库存校验仍然生效。
func (r *CachedInventoryRepository) invalidate(ctx context.Context, id string) {
	_ = r.cache.Del(ctx, r.productKey(id))
}

// CreateProduct 创建商品（清除可能残留的缓存）
func (r *CachedInventoryRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := r.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// GetProduct 根据ID获取商品（带缓存）
func (r *CachedInventoryRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	key := r.productKey(id)

	var product domain.Product
	if err := r.cache.Get(ctx, key, &product); err == nil {
		return &product, nil
	}

	result, err := r.repo.GetProduct(ctx, id)
	if err != nil || result == nil {
		return result, err
	}

	_ = r.cache.Set(ctx, key, result, r.ttl)
	return result, nil
}

// ListProducts 列出商品
func (r *CachedInventoryRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return r.repo.ListProducts(ctx)
}

// GetLowStockProducts 获取低库存商品
func (r *CachedInventoryRepository) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	return r.repo.GetLowStockProducts(ctx)
}

// AppendMovement 追加流水。库存冲突时同样清除缓存，重试会读到最新库存。
func (r *CachedInventoryRepository) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	err := r.repo.AppendMovement(ctx, m)
	r.invalidate(ctx, m.ProductID)
	return err
}

// ListMovements 查询流水
func (r *CachedInventoryRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	return r.repo.ListMovements(ctx, filter)
}

// SetStock 改写库存投影（清除缓存）
func (r *CachedInventoryRepository) SetStock(ctx context.Context, productID string, stock int) error {
	err := r.repo.SetStock(ctx, productID, stock)
	r.invalidate(ctx, productID)
	return err
}
