package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CouponKind 优惠券类型
type CouponKind string

const (
	CouponPercentage   CouponKind = "percentage"
	CouponFreeShipping CouponKind = "free_shipping"
)

// Coupon 优惠券定义
type Coupon struct {
	Code    string          `json:"code"`
	Kind    CouponKind      `json:"kind"`
	Percent decimal.Decimal `json:"percent,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Apply 将优惠券作用到购物车。百分比折扣按当前小计冻结，替换之前的折扣，不叠加。
// 调用方负责随后 Recalculate。
func (cp Coupon) Apply(c *Cart) {
	switch cp.Kind {
	case CouponPercentage:
		c.Discount = c.Subtotal.Mul(cp.Percent).Div(hundred).Round(2)
		c.CouponCode = cp.Code
	case CouponFreeShipping:
		c.FreeShipping = true
	}
}

// CouponTable 优惠券表，键为大写券码
type CouponTable map[string]Coupon

// DefaultCoupons 内置优惠券
func DefaultCoupons() CouponTable {
	return CouponTable{
		"PET10":       {Code: "PET10", Kind: CouponPercentage, Percent: decimal.NewFromInt(10)},
		"PET20":       {Code: "PET20", Kind: CouponPercentage, Percent: decimal.NewFromInt(20)},
		"BEMVINDO15":  {Code: "BEMVINDO15", Kind: CouponPercentage, Percent: decimal.NewFromInt(15)},
		"FRETEGRATIS": {Code: "FRETEGRATIS", Kind: CouponFreeShipping},
	}
}

// Resolve 查找券码（忽略大小写与首尾空白），未知券码返回校验错误
func (t CouponTable) Resolve(code string) (Coupon, error) {
	cp, ok := t[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Coupon{}, NewValidationError(MsgInvalidCoupon)
	}
	return cp, nil
}
