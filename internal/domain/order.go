package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"    // 待处理
	OrderStatusProcessing OrderStatus = "processing" // 处理中
	OrderStatusShipped    OrderStatus = "shipped"    // 已发货
	OrderStatusDelivered  OrderStatus = "delivered"  // 已送达
	OrderStatusCancelled  OrderStatus = "cancelled"  // 已取消
)

// 正向流转顺序
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// IsValid 判断状态是否受支持
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusRank[s]
	return ok || s == OrderStatusCancelled
}

// IsTerminal 已送达与已取消为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo 只允许向前流转（可跳级），或从非终态取消
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "pix"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentBoleto     PaymentMethod = "boleto"
	PaymentCash       PaymentMethod = "cash"
)

// IsValid 判断支付方式是否受支持
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentPix, PaymentCreditCard, PaymentDebitCard, PaymentBoleto, PaymentCash:
		return true
	}
	return false
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPaid},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

// IsValid 判断支付状态是否受支持
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo 判断支付状态流转是否合法
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order 订单。创建后只有状态、支付状态与物流单号可以修改。
type Order struct {
	ID              int64           `json:"id"`
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	Items           []CartItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	ShippingAddress string          `json:"shipping_address"`
	TrackingCode    string          `json:"tracking_code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	CustomerName    string        `json:"customer_name"`
	ShippingAddress string        `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
}

// Validate 校验结算请求
func (r *CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return NewValidationError("customer name is required")
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return NewValidationError("shipping address is required")
	}
	if !r.PaymentMethod.IsValid() {
		return NewValidationError("unknown payment method: %s", r.PaymentMethod)
	}
	return nil
}

// NewOrderFromCart 将购物车快照冻结为待处理订单，ID 由存储层分配
func NewOrderFromCart(cart *Cart, req *CheckoutRequest, now time.Time) *Order {
	items := make([]CartItem, len(cart.Items))
	copy(items, cart.Items)
	return &Order{
		CustomerID:      cart.CustomerID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		Items:           items,
		Subtotal:        cart.Subtotal,
		Discount:        cart.Discount,
		Shipping:        cart.Shipping,
		Total:           cart.Total,
		CouponCode:      cart.CouponCode,
		Status:          OrderStatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentStatusPending,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TransitionTo 流转订单状态
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !next.IsValid() {
		return NewValidationError("unknown order status: %s", next)
	}
	if !o.Status.CanTransitionTo(next) {
		return NewInvalidTransitionError("cannot transition order from %s to %s", o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// UpdatePaymentStatus 流转支付状态
func (o *Order) UpdatePaymentStatus(next PaymentStatus, now time.Time) error {
	if !next.IsValid() {
		return NewValidationError("unknown payment status: %s", next)
	}
	if !o.PaymentStatus.CanTransitionTo(next) {
		return NewInvalidTransitionError("cannot transition payment from %s to %s", o.PaymentStatus, next)
	}
	o.PaymentStatus = next
	o.UpdatedAt = now
	return nil
}

// SetTrackingCode 设置物流单号，终态订单不允许修改
func (o *Order) SetTrackingCode(code string, now time.Time) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return NewValidationError("tracking code is required")
	}
	if o.Status.IsTerminal() {
		return NewInvalidTransitionError("cannot set tracking code on %s order", o.Status)
	}
	o.TrackingCode = code
	o.UpdatedAt = now
	return nil
}

// Clone 深拷贝
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]CartItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

// ItemCount 商品总件数
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderFilter 订单查询条件，CustomerID 为空表示全部
type OrderFilter struct {
	CustomerID string
}
