package repo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/domain"
)

// countingInventoryRepository 统计 GetProduct 的调用次数
type countingInventoryRepository struct {
	InventoryRepository
	gets int
}

func (r *countingInventoryRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	r.gets++
	return r.InventoryRepository.GetProduct(ctx, id)
}

func TestCachedInventoryRepository(t *testing.T) {
	ctx := context.Background()
	base := &countingInventoryRepository{InventoryRepository: NewMemoryInventoryRepository()}
	store := cache.NewMemoryCache()
	r := NewCachedInventoryRepository(base, store, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.CreateProduct(ctx, &domain.Product{
		ID: "P1", Name: "Arranhador", Price: decimal.NewFromInt(120), Unit: domain.UnitPiece,
		Stock: 10, InitialStock: 10, CreatedAt: now, UpdatedAt: now,
	}))

	for i := 0; i < 3; i++ {
		p, err := r.GetProduct(ctx, "P1")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 10, p.Stock)
	}
	assert.Equal(t, 1, base.gets, "repeated reads should be served from cache")

	require.NoError(t, r.AppendMovement(ctx, &domain.StockMovement{
		ID: "m1", ProductID: "P1", Type: domain.MovementExit, Quantity: 4, Reason: "venda",
		PreviousStock: 10, NewStock: 6, CreatedAt: now,
	}))
	p, err := r.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stock)
	assert.Equal(t, 2, base.gets)

	require.NoError(t, r.SetStock(ctx, "P1", 7))
	p, err = r.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	missing, err := r.GetProduct(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	exists, err := store.Exists(ctx, "catalog:product:nope")
	require.NoError(t, err)
	assert.False(t, exists, "missing products are not cached")
}
