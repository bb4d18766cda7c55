package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MorseWayne/petshop_engine/internal/domain"
)

type engineFeature struct {
	t     *testing.T
	e     *engine
	err   error
	order *domain.Order
}

func (f *engineFeature) reset() {
	f.e = newEngine(f.t)
	f.err = nil
	f.order = nil
}

func (f *engineFeature) aProduct(id, price string, stock, minStock int) error {
	_, err := f.e.inventory.RegisterProduct(context.Background(), &domain.CreateProductRequest{
		ID:           id,
		Name:         "Product " + id,
		Price:        money(price),
		InitialStock: stock,
		MinStock:     minStock,
	})
	return err
}

func (f *engineFeature) iRecord(movementType string, qty int, productID string) error {
	_, f.err = f.e.inventory.RecordMovement(context.Background(), &domain.RecordMovementRequest{
		ProductID: productID,
		Type:      domain.MovementType(movementType),
		Quantity:  qty,
		Reason:    "feature",
	})
	return nil
}

func (f *engineFeature) movementAccepted() error {
	return f.err
}

func (f *engineFeature) movementRejectedInsufficient() error {
	if !errors.Is(f.err, domain.ErrInsufficientStock) {
		return fmt.Errorf("expected insufficient stock, got %v", f.err)
	}
	return nil
}

func (f *engineFeature) stockIs(productID string, want int) error {
	p, err := f.e.inventory.GetProduct(context.Background(), productID)
	if err != nil {
		return err
	}
	if p.Stock != want {
		return fmt.Errorf("expected stock %d, got %d", want, p.Stock)
	}
	return nil
}

func (f *engineFeature) movementCount(productID string, want int) error {
	b, err := f.e.inventory.GetBalance(context.Background(), productID)
	if err != nil {
		return err
	}
	if b.Movements != want {
		return fmt.Errorf("expected %d movements, got %d", want, b.Movements)
	}
	return nil
}

func (f *engineFeature) latestEffect(productID string, want int) error {
	ms, err := f.e.inventory.ListMovements(context.Background(), domain.MovementFilter{ProductID: productID})
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		return errors.New("no movements")
	}
	if got := ms[0].SignedEffect(); got != want {
		return fmt.Errorf("expected effect %d, got %d", want, got)
	}
	return nil
}

func (f *engineFeature) ledgerMatches(productID string) error {
	b, err := f.e.inventory.GetBalance(context.Background(), productID)
	if err != nil {
		return err
	}
	if b.LedgerBalance != b.Stock {
		return fmt.Errorf("ledger balance %d != stock %d", b.LedgerBalance, b.Stock)
	}
	return nil
}

func (f *engineFeature) customerAdds(customerID string, qty int, productID string) error {
	_, err := f.e.cart.AddItem(context.Background(), customerID, &domain.AddCartItemRequest{
		ProductID: productID,
		Quantity:  qty,
	})
	return err
}

func (f *engineFeature) customerAppliesCoupon(customerID, code string) error {
	_, f.err = f.e.cart.ApplyCoupon(context.Background(), customerID, code)
	return nil
}

func (f *engineFeature) couponRejected() error {
	if f.err == nil || f.err.Error() != domain.MsgInvalidCoupon {
		return fmt.Errorf("expected invalid coupon, got %v", f.err)
	}
	return nil
}

func (f *engineFeature) cart(customerID string) (*domain.Cart, error) {
	return f.e.cart.GetOrCreateCart(context.Background(), customerID)
}

func (f *engineFeature) cartShippingAndTotal(customerID, shipping, total string) error {
	c, err := f.cart(customerID)
	if err != nil {
		return err
	}
	if !c.Shipping.Equal(money(shipping)) || !c.Total.Equal(money(total)) {
		return fmt.Errorf("expected shipping %s total %s, got %s / %s", shipping, total, c.Shipping, c.Total)
	}
	return nil
}

func (f *engineFeature) cartDiscountAndShipping(customerID, discount, shipping string) error {
	c, err := f.cart(customerID)
	if err != nil {
		return err
	}
	if !c.Discount.Equal(money(discount)) || !c.Shipping.Equal(money(shipping)) {
		return fmt.Errorf("expected discount %s shipping %s, got %s / %s", discount, shipping, c.Discount, c.Shipping)
	}
	return nil
}

func (f *engineFeature) cartEmpty(customerID, total string) error {
	c, err := f.cart(customerID)
	if err != nil {
		return err
	}
	if c.ItemCount() != 0 || !c.Total.Equal(money(total)) {
		return fmt.Errorf("expected empty cart with total %s, got %d items / %s", total, c.ItemCount(), c.Total)
	}
	return nil
}

func (f *engineFeature) customerChecksOut(customerID string) error {
	f.order, f.err = f.e.order.Checkout(context.Background(), customerID, validCheckout())
	return nil
}

func (f *engineFeature) orderCreatedWithTotal(total string) error {
	if f.err != nil {
		return f.err
	}
	if !f.order.Total.Equal(money(total)) {
		return fmt.Errorf("expected order total %s, got %s", total, f.order.Total)
	}
	return nil
}

func (f *engineFeature) checkoutFails(msg string) error {
	if f.err == nil || f.err.Error() != msg {
		return fmt.Errorf("expected %q, got %v", msg, f.err)
	}
	return nil
}

func (f *engineFeature) customerHasOrders(customerID string, want int) error {
	orders, err := f.e.order.GetOrders(context.Background(), customerID)
	if err != nil {
		return err
	}
	if len(orders) != want {
		return fmt.Errorf("expected %d orders, got %d", want, len(orders))
	}
	return nil
}

func initializeEngineScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		f := &engineFeature{t: t}
		ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
			f.reset()
			return c, nil
		})

		ctx.Step(`^a product "([^"]*)" priced ([\d.]+) with stock (\d+) and min stock (\d+)$`, f.aProduct)
		ctx.Step(`^I record an? "([^"]*)" of (-?\d+) for "([^"]*)"$`, f.iRecord)
		ctx.Step(`^customer "([^"]*)" adds (\d+) of "([^"]*)" to the cart$`, f.customerAdds)
		ctx.Step(`^customer "([^"]*)" applies coupon "([^"]*)"$`, f.customerAppliesCoupon)
		ctx.Step(`^customer "([^"]*)" checks out$`, f.customerChecksOut)

		ctx.Step(`^the movement is accepted$`, f.movementAccepted)
		ctx.Step(`^the movement is rejected as insufficient stock$`, f.movementRejectedInsufficient)
		ctx.Step(`^the stock of "([^"]*)" is (\d+)$`, f.stockIs)
		ctx.Step(`^"([^"]*)" has (\d+) movements$`, f.movementCount)
		ctx.Step(`^the latest movement of "([^"]*)" has effect (-?\d+)$`, f.latestEffect)
		ctx.Step(`^the ledger balance of "([^"]*)" matches its stock$`, f.ledgerMatches)
		ctx.Step(`^the coupon is rejected$`, f.couponRejected)
		ctx.Step(`^the cart of "([^"]*)" has shipping ([\d.]+) and total ([\d.]+)$`, f.cartShippingAndTotal)
		ctx.Step(`^the cart of "([^"]*)" has discount ([\d.]+) and shipping ([\d.]+)$`, f.cartDiscountAndShipping)
		ctx.Step(`^the cart of "([^"]*)" is empty with total ([\d.]+)$`, f.cartEmpty)
		ctx.Step(`^an order is created with total ([\d.]+)$`, f.orderCreatedWithTotal)
		ctx.Step(`^checkout fails with "([^"]*)"$`, f.checkoutFails)
		ctx.Step(`^customer "([^"]*)" has (\d+) orders$`, f.customerHasOrders)
	}
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeEngineScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
