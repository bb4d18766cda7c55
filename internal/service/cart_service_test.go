package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/petshop_engine/internal/domain"
)

func TestCartService_GetOrCreateCart(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.cart.GetOrCreateCart(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	first, err := e.cart.GetOrCreateCart(ctx, "cli-1")
	require.NoError(t, err)
	assert.True(t, first.IsEmpty())
	assert.True(t, first.Total.IsZero())
	assert.True(t, first.Shipping.IsZero())

	e.registerProduct(t, "P1", "10.00", 5, 0)
	e.addItem(t, "cli-1", "P1", 1)

	second, err := e.cart.GetOrCreateCart(ctx, "cli-1")
	require.NoError(t, err)
	assert.Len(t, second.Items, 1, "existing cart must be returned as-is")
}

func TestCartService_AddItem(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "19.90", 8, 0)

	cart := e.addItem(t, "cli-1", "P1", 2)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Product P1", cart.Items[0].ProductName)
	assert.True(t, cart.Items[0].UnitPrice.Equal(money("19.90")))
	assert.Equal(t, 8, cart.Items[0].StockAtAddTime)

	// 同一商品合并数量
	cart = e.addItem(t, "cli-1", "P1", 3)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Subtotal.Equal(money("99.50")))
	assert.True(t, cart.Shipping.Equal(money("25")))
	assert.True(t, cart.Total.Equal(money("124.50")))

	// 加购不校验库存
	cart = e.addItem(t, "cli-1", "P1", 100)
	assert.Equal(t, 105, cart.Items[0].Quantity)

	price := money("5.00")
	cart, err := e.cart.AddItem(ctx, "cli-1", &domain.AddCartItemRequest{
		ProductID: "EXT-1", ProductName: "Brinquedo", UnitPrice: &price, Quantity: 1,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "EXT-1", cart.Items[1].ProductID)
}

func TestCartService_AddItem_RequestPriceOverridesCatalog(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "19.90", 8, 0)

	price := money("15.00")
	cart, err := e.cart.AddItem(ctx, "cli-1", &domain.AddCartItemRequest{ProductID: "P1", UnitPrice: &price, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Product P1", cart.Items[0].ProductName)
	assert.True(t, cart.Items[0].UnitPrice.Equal(money("15.00")))
	assert.True(t, cart.Subtotal.Equal(money("30.00")))

	scaled := money("15.005")
	_, err = e.cart.AddItem(ctx, "cli-1", &domain.AddCartItemRequest{ProductID: "P1", UnitPrice: &scaled, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCartService_AddItem_Validation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	negative := money("-1")
	price := money("3")

	tests := []struct {
		name string
		req  *domain.AddCartItemRequest
	}{
		{"zero quantity", &domain.AddCartItemRequest{ProductID: "X", ProductName: "X", UnitPrice: &price, Quantity: 0}},
		{"empty product", &domain.AddCartItemRequest{ProductName: "X", UnitPrice: &price, Quantity: 1}},
		{"negative price", &domain.AddCartItemRequest{ProductID: "X", ProductName: "X", UnitPrice: &negative, Quantity: 1}},
		{"unknown product without price", &domain.AddCartItemRequest{ProductID: "X", ProductName: "X", Quantity: 1}},
		{"unknown product without name", &domain.AddCartItemRequest{ProductID: "X", UnitPrice: &price, Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.cart.AddItem(ctx, "cli-1", tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := e.cart.AddItem(ctx, "", &domain.AddCartItemRequest{ProductID: "X", ProductName: "X", UnitPrice: &price, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCartService_ShippingThreshold(t *testing.T) {
	e := newEngine(t)
	e.registerProduct(t, "A", "199.99", 10, 0)
	e.registerProduct(t, "B", "200.00", 10, 0)

	below := e.addItem(t, "cli-a", "A", 1)
	assert.True(t, below.Shipping.Equal(money("25.00")))
	assert.True(t, below.Total.Equal(money("224.99")))

	at := e.addItem(t, "cli-b", "B", 1)
	assert.True(t, at.Shipping.IsZero())
	assert.True(t, at.Total.Equal(money("200.00")))
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "10.00", 10, 0)
	e.registerProduct(t, "P2", "5.00", 10, 0)

	_, err := e.cart.UpdateItemQuantity(ctx, "ghost", "P1", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	e.addItem(t, "cli-1", "P1", 1)
	e.addItem(t, "cli-1", "P2", 1)

	_, err = e.cart.UpdateItemQuantity(ctx, "cli-1", "P9", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cart, err := e.cart.UpdateItemQuantity(ctx, "cli-1", "P1", 4)
	require.NoError(t, err)
	assert.True(t, cart.Subtotal.Equal(money("45.00")))

	cart, err = e.cart.UpdateItemQuantity(ctx, "cli-1", "P1", 0)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "P2", cart.Items[0].ProductID)
}

func TestCartService_RemoveItemIsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "10.00", 10, 0)
	e.addItem(t, "cli-1", "P1", 2)

	for i := 0; i < 2; i++ {
		cart, err := e.cart.RemoveItem(ctx, "cli-1", "P1")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())
		assert.True(t, cart.Total.IsZero())
	}
}

func TestCartService_ApplyCoupon(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "50.00", 10, 0)
	e.addItem(t, "cli-1", "P1", 2)

	tests := []struct {
		name         string
		code         string
		wantErr      error
		wantDiscount string
		wantShipping string
		wantTotal    string
	}{
		{"unknown code leaves cart unchanged", "BOGUS", domain.ErrValidation, "0", "25", "125"},
		{"percentage, case-insensitive", " pet10 ", nil, "10", "25", "115"},
		{"percentage replaces previous", "PET20", nil, "20", "25", "105"},
		{"free shipping keeps discount", "fretegratis", nil, "20", "0", "80"},
		{"invalid after success keeps state", "NOPE", domain.ErrValidation, "20", "0", "80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := e.cart.ApplyCoupon(ctx, "cli-1", tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, domain.MsgInvalidCoupon)
				cart, err = e.cart.GetOrCreateCart(ctx, "cli-1")
				require.NoError(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, cart.Discount.Equal(money(tt.wantDiscount)), "discount %s", cart.Discount)
			assert.True(t, cart.Shipping.Equal(money(tt.wantShipping)), "shipping %s", cart.Shipping)
			assert.True(t, cart.Total.Equal(money(tt.wantTotal)), "total %s", cart.Total)
		})
	}

	cart, err := e.cart.GetOrCreateCart(ctx, "cli-1")
	require.NoError(t, err)
	assert.Equal(t, "PET20", cart.CouponCode)
	assert.True(t, cart.FreeShipping)
}

func TestCartService_DiscountIsFrozen(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "100.00", 10, 0)
	e.addItem(t, "cli-1", "P1", 1)

	_, err := e.cart.ApplyCoupon(ctx, "cli-1", "PET10")
	require.NoError(t, err)

	cart := e.addItem(t, "cli-1", "P1", 1)
	assert.True(t, cart.Discount.Equal(money("10")), "discount is a snapshot")
	assert.True(t, cart.Subtotal.Equal(money("200")))
	assert.True(t, cart.Shipping.IsZero())
	assert.True(t, cart.Total.Equal(money("190")))
}

func TestCartService_ClearCart(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "100.00", 10, 0)
	e.addItem(t, "cli-1", "P1", 1)
	_, err := e.cart.ApplyCoupon(ctx, "cli-1", "PET10")
	require.NoError(t, err)
	_, err = e.cart.ApplyCoupon(ctx, "cli-1", "FRETEGRATIS")
	require.NoError(t, err)

	cart, err := e.cart.ClearCart(ctx, "cli-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.Subtotal.IsZero())
	assert.True(t, cart.Discount.IsZero())
	assert.True(t, cart.Shipping.IsZero())
	assert.True(t, cart.Total.IsZero())
	assert.Empty(t, cart.CouponCode)
	assert.False(t, cart.FreeShipping)
}

func TestCartService_SaveFailureLeavesCartUntouched(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.registerProduct(t, "P1", "10.00", 10, 0)
	e.addItem(t, "cli-1", "P1", 1)

	e.carts.failSave = true
	_, err := e.cart.AddItem(ctx, "cli-1", &domain.AddCartItemRequest{ProductID: "P1", Quantity: 5})
	assert.ErrorIs(t, err, errStoreDown)

	e.carts.failSave = false
	cart, err := e.cart.GetOrCreateCart(ctx, "cli-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}
