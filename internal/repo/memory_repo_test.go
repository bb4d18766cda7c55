package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/petshop_engine/internal/cache"
	"github.com/MorseWayne/petshop_engine/internal/domain"
)

func newProduct(id string, stock, min int) *domain.Product {
	now := time.Now()
	return &domain.Product{
		ID:           id,
		Name:         "Produto " + id,
		Price:        decimal.NewFromInt(10),
		Unit:         domain.UnitPiece,
		Stock:        stock,
		InitialStock: stock,
		MinStock:     min,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryInventoryRepo_Products(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryInventoryRepository()

	for _, p := range []*domain.Product{newProduct("P2", 10, 5), newProduct("P1", 3, 5), newProduct("P3", 0, 2)} {
		if err := r.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
	}
	if err := r.CreateProduct(ctx, newProduct("P1", 1, 1)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := r.GetProduct(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing product, got %v, %v", got, err)
	}

	// 返回副本，外部修改不影响存储
	p1, _ := r.GetProduct(ctx, "P1")
	p1.Stock = 999
	p1again, _ := r.GetProduct(ctx, "P1")
	if p1again.Stock != 3 {
		t.Fatalf("repository leaked internal state")
	}

	list, _ := r.ListProducts(ctx)
	if len(list) != 3 || list[0].ID != "P1" || list[2].ID != "P3" {
		t.Fatalf("expected products sorted by id, got %v", ids(list))
	}

	low, _ := r.GetLowStockProducts(ctx)
	if len(low) != 2 {
		t.Fatalf("expected 2 low stock products, got %d", len(low))
	}
}

func ids(ps []*domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestMemoryInventoryRepo_AppendMovement(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryInventoryRepository()
	r.CreateProduct(ctx, newProduct("P1", 10, 5))

	m := &domain.StockMovement{
		ID: "m1", ProductID: "P1", Type: domain.MovementExit, Quantity: 4,
		Reason: "venda", PreviousStock: 10, NewStock: 6, CreatedAt: time.Now(),
	}
	if err := r.AppendMovement(ctx, m); err != nil {
		t.Fatalf("AppendMovement: %v", err)
	}

	stale := *m
	stale.ID = "m2"
	if err := r.AppendMovement(ctx, &stale); !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}

	orphan := *m
	orphan.ProductID = "nope"
	if err := r.AppendMovement(ctx, &orphan); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	p, _ := r.GetProduct(ctx, "P1")
	if p.Stock != 6 {
		t.Fatalf("expected stock 6, got %d", p.Stock)
	}

	r.AppendMovement(ctx, &domain.StockMovement{
		ID: "m3", ProductID: "P1", Type: domain.MovementEntry, Quantity: 2,
		Reason: "compra", PreviousStock: 6, NewStock: 8, CreatedAt: time.Now(),
	})

	all, _ := r.ListMovements(ctx, domain.MovementFilter{ProductID: "P1"})
	if len(all) != 2 || all[0].ID != "m3" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	exits, _ := r.ListMovements(ctx, domain.MovementFilter{Type: domain.MovementExit})
	if len(exits) != 1 || exits[0].ID != "m1" {
		t.Fatalf("unexpected filtered result %+v", exits)
	}

	if err := r.SetStock(ctx, "P1", 1); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if err := r.SetStock(ctx, "nope", 1); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMemoryOrderRepo(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepository()

	o1 := &domain.Order{CustomerID: "c1", Status: domain.OrderStatusPending, Items: []domain.CartItem{{ProductID: "P1", Quantity: 1}}}
	o2 := &domain.Order{CustomerID: "c2", Status: domain.OrderStatusPending}
	o3 := &domain.Order{CustomerID: "c1", Status: domain.OrderStatusPending}
	for _, o := range []*domain.Order{o1, o2, o3} {
		if err := r.Create(ctx, o); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if o1.ID != 1 || o2.ID != 2 || o3.ID != 3 {
		t.Fatalf("expected monotonic ids, got %d %d %d", o1.ID, o2.ID, o3.ID)
	}

	mine, _ := r.List(ctx, domain.OrderFilter{CustomerID: "c1"})
	if len(mine) != 2 || mine[0].ID != 3 {
		t.Fatalf("expected newest first for c1, got %+v", mine)
	}

	o1.Status = domain.OrderStatusShipped
	o1.CustomerName = "changed"
	if err := r.UpdateState(ctx, o1); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	got, _ := r.GetByID(ctx, 1)
	if got.Status != domain.OrderStatusShipped || got.CustomerName == "changed" {
		t.Fatalf("UpdateState must only persist mutable fields, got %+v", got)
	}

	r.Delete(ctx, 2)
	if got, _ := r.GetByID(ctx, 2); got != nil {
		t.Fatalf("expected deleted order to be gone")
	}
	if err := r.UpdateState(ctx, &domain.Order{ID: 2}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestCartRepository(t *testing.T) {
	ctx := context.Background()
	r := NewCartRepository(cache.NewMemoryCache(), time.Hour)

	got, err := r.Get(ctx, "c1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing cart, got %v, %v", got, err)
	}

	cart := domain.NewCart("c1", time.Now())
	cart.AddItem(domain.CartItem{ProductID: "P1", UnitPrice: decimal.RequireFromString("19.90"), Quantity: 2})
	cart.Recalculate(domain.DefaultPricingPolicy())
	if err := r.Save(ctx, cart); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err = r.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Items) != 1 || !got.Total.Equal(decimal.RequireFromString("64.80")) {
		t.Fatalf("unexpected cart %+v", got)
	}

	if err := r.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := r.Get(ctx, "c1"); got != nil {
		t.Fatalf("expected cart deleted")
	}
}
