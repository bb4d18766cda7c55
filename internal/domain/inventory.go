package domain

import (
	"strings"
	"time"
)

// MovementType 库存流水类型
type MovementType string

const (
	MovementEntry      MovementType = "entry"      // 入库
	MovementExit       MovementType = "exit"       // 出库
	MovementAdjustment MovementType = "adjustment" // 盘点调整，数量带符号
	MovementReturn     MovementType = "return"     // 退货入库
	MovementLoss       MovementType = "loss"       // 损耗
)

// IsValid 判断流水类型是否受支持
func (t MovementType) IsValid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementAdjustment, MovementReturn, MovementLoss:
		return true
	}
	return false
}

// Effect 返回数量 q 在该流水类型下对库存的带符号影响。
// 符号规则只在这里定义一次。
func (t MovementType) Effect(q int) int {
	switch t {
	case MovementEntry, MovementReturn:
		return q
	case MovementExit, MovementLoss:
		return -q
	default:
		return q
	}
}

// StockMovement 库存流水，追加后不可修改
type StockMovement struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"product_id"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	Reason        string       `json:"reason"`
	Notes         string       `json:"notes,omitempty"`
	PreviousStock int          `json:"previous_stock"`
	NewStock      int          `json:"new_stock"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SignedEffect 流水对库存的带符号影响
func (m *StockMovement) SignedEffect() int {
	return m.Type.Effect(m.Quantity)
}

// RecordMovementRequest 登记库存流水请求
type RecordMovementRequest struct {
	ProductID string       `json:"product_id"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Reason    string       `json:"reason"`
	Notes     string       `json:"notes"`
}

// Validate 校验流水请求：调整类数量非零，其余类型数量为正，原因不能为空
func (r *RecordMovementRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return NewValidationError("product id is required")
	}
	if !r.Type.IsValid() {
		return NewValidationError("unknown movement type: %s", r.Type)
	}
	if r.Type == MovementAdjustment {
		if r.Quantity == 0 {
			return NewValidationError("adjustment quantity cannot be zero")
		}
	} else if r.Quantity <= 0 {
		return NewValidationError("quantity must be positive")
	}
	if r.Quantity > MaxQuantity || r.Quantity < -MaxQuantity {
		return NewValidationError("quantity exceeds %d", MaxQuantity)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return NewValidationError("reason is required")
	}
	return nil
}

// ProjectStock 计算流水应用后的库存。结果为负时返回库存不足错误，超过 MaxQuantity 时返回校验错误。
func ProjectStock(current int, t MovementType, quantity int) (int, error) {
	effect := t.Effect(quantity)
	if effect > 0 && current > MaxQuantity-effect {
		return current, NewValidationError("stock would exceed %d: available %d, adding %d", MaxQuantity, current, effect)
	}
	next := current + effect
	if next < 0 {
		return current, NewInsufficientStockError("insufficient stock: available %d, requested %d", current, -t.Effect(quantity))
	}
	return next, nil
}

// LedgerBalance 由初始库存与流水重新计算库存余额
func LedgerBalance(initial int, movements []*StockMovement) int {
	balance := initial
	for _, m := range movements {
		balance += m.SignedEffect()
	}
	return balance
}

// MovementFilter 流水查询条件，零值表示不过滤
type MovementFilter struct {
	ProductID string
	Type      MovementType
}

// Matches 判断流水是否满足条件
func (f MovementFilter) Matches(m *StockMovement) bool {
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	return true
}

// Balance 库存余额视图
type Balance struct {
	ProductID     string `json:"product_id"`
	InitialStock  int    `json:"initial_stock"`
	Stock         int    `json:"stock"`
	LedgerBalance int    `json:"ledger_balance"`
	Movements     int    `json:"movements"`
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	ProductID     string `json:"product_id"`
	CachedStock   int    `json:"cached_stock"`
	LedgerBalance int    `json:"ledger_balance"`
	Corrected     bool   `json:"corrected"`
}
