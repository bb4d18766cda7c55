package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PricingPolicy 运费规则
type PricingPolicy struct {
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPricingPolicy 默认运费：满 200.00 包邮，否则 25.00
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		ShippingFee:           decimal.NewFromInt(25),
		FreeShippingThreshold: decimal.NewFromInt(200),
	}
}

// CartItem 购物车行
type CartItem struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	StockAtAddTime int             `json:"stock_at_add_time"`
}

// LineTotal 行小计
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart 客户购物车。金额字段在每次变更后由 Recalculate 同步重算。
// Total 为 Subtotal - Discount + Shipping，结果为负时记为 0。
type Cart struct {
	CustomerID   string          `json:"customer_id"`
	Items        []CartItem      `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Shipping     decimal.Decimal `json:"shipping"`
	Total        decimal.Decimal `json:"total"`
	CouponCode   string          `json:"coupon_code,omitempty"`
	FreeShipping bool            `json:"free_shipping"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewCart 创建空购物车
func NewCart(customerID string, now time.Time) *Cart {
	return &Cart{
		CustomerID: customerID,
		Items:      []CartItem{},
		Subtotal:   decimal.Zero,
		Discount:   decimal.Zero,
		Shipping:   decimal.Zero,
		Total:      decimal.Zero,
		UpdatedAt:  now,
	}
}

// IsEmpty 是否没有商品行
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount 商品总件数
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Recalculate 重算小计、运费与总额。折扣是应用优惠券时冻结的快照，这里不重算。
// 重复调用结果不变。
func (c *Cart) Recalculate(policy PricingPolicy) {
	subtotal := decimal.Zero
	for _, it := range c.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	c.Subtotal = subtotal

	switch {
	case c.IsEmpty(), c.FreeShipping, subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold):
		c.Shipping = decimal.Zero
	default:
		c.Shipping = policy.ShippingFee
	}

	total := subtotal.Sub(c.Discount).Add(c.Shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}
	c.Total = total
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem 加入商品：同一商品合并数量，否则追加到末尾。合并后超过 MaxQuantity 返回校验错误。
func (c *Cart) AddItem(item CartItem) error {
	if i := c.indexOf(item.ProductID); i >= 0 {
		if c.Items[i].Quantity > MaxQuantity-item.Quantity {
			return NewValidationError("quantity exceeds %d", MaxQuantity)
		}
		c.Items[i].Quantity += item.Quantity
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity 修改行数量，qty <= 0 时删除该行；行不存在返回 false
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = qty
	return true
}

// RemoveItem 删除行，行不存在时不做任何事
func (c *Cart) RemoveItem(productID string) {
	if i := c.indexOf(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// Reset 清空商品与优惠状态
func (c *Cart) Reset() {
	c.Items = []CartItem{}
	c.Discount = decimal.Zero
	c.CouponCode = ""
	c.FreeShipping = false
}

// Clone 深拷贝
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// AddCartItemRequest 加入购物车请求。名称与单价为空时由商品目录补全；
// UnitPrice 非空时优先于目录价格，目录中已有的商品也以请求价格为准。
type AddCartItemRequest struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Quantity    int              `json:"quantity"`
}

// Validate 校验加购请求
func (r *AddCartItemRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return NewValidationError("product id is required")
	}
	if r.Quantity <= 0 {
		return NewValidationError("quantity must be positive")
	}
	if r.Quantity > MaxQuantity {
		return NewValidationError("quantity exceeds %d", MaxQuantity)
	}
	if r.UnitPrice != nil {
		return validatePrice("unit price", *r.UnitPrice)
	}
	return nil
}
