package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MorseWayne/petshop_engine/internal/domain"
)

// memoryInventoryRepo 内存实现，返回值均为副本
type memoryInventoryRepo struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	movements []*domain.StockMovement
}

// NewMemoryInventoryRepository 创建内存库存仓储
func NewMemoryInventoryRepository() InventoryRepository {
	return &memoryInventoryRepo{
		products: make(map[string]*domain.Product),
	}
}

func copyProduct(p *domain.Product) *domain.Product {
	cp := *p
	return &cp
}

func (r *memoryInventoryRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return ErrDuplicate
	}
	r.products[p.ID] = copyProduct(p)
	return nil
}

func (r *memoryInventoryRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return copyProduct(p), nil
}

func (r *memoryInventoryRepo) listWhere(keep func(*domain.Product) bool) []*domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			products = append(products, copyProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (r *memoryInventoryRepo) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return r.listWhere(func(*domain.Product) bool { return true }), nil
}

func (r *memoryInventoryRepo) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	products := r.listWhere(func(p *domain.Product) bool { return p.IsLowStock() })
	// 缺口大的排前面
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].MinStock-products[i].Stock > products[j].MinStock-products[j].Stock
	})
	return products, nil
}

func (r *memoryInventoryRepo) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[m.ProductID]
	if !ok {
		return ErrRecordNotFound
	}
	if p.Stock != m.PreviousStock {
		return ErrStockConflict
	}

	cp := *m
	r.movements = append(r.movements, &cp)
	p.Stock = m.NewStock
	p.UpdatedAt = m.CreatedAt
	return nil
}

func (r *memoryInventoryRepo) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var movements []*domain.StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if m := r.movements[i]; filter.Matches(m) {
			cp := *m
			movements = append(movements, &cp)
		}
	}
	return movements, nil
}

func (r *memoryInventoryRepo) SetStock(ctx context.Context, productID string, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return ErrRecordNotFound
	}
	p.Stock = stock
	p.UpdatedAt = time.Now()
	return nil
}
