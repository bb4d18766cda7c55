// Package domain 定义宠物店后台的领域模型与核心业务规则：
// 商品目录与库存流水、购物车与优惠券、订单及其状态机。
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 存储列为 INT 与 DECIMAL(12,2)，数量与金额不能超出其范围
const (
	MaxQuantity = math.MaxInt32
	priceScale  = 2
)

var maxPrice = decimal.RequireFromString("9999999999.99")

// validatePrice 校验金额：非负，最多两位小数，不超过存储上限
func validatePrice(field string, p decimal.Decimal) error {
	if p.IsNegative() {
		return NewValidationError("%s cannot be negative", field)
	}
	if !p.Equal(p.Round(priceScale)) {
		return NewValidationError("%s must have at most %d decimal places", field, priceScale)
	}
	if p.GreaterThan(maxPrice) {
		return NewValidationError("%s exceeds %s", field, maxPrice)
	}
	return nil
}

// Unit 商品计量单位（短代码）
type Unit string

const (
	UnitPiece      Unit = "un"
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLiter      Unit = "l"
	UnitMilliliter Unit = "ml"
	UnitBox        Unit = "cx"
	UnitPack       Unit = "pct"
)

// IsValid 判断计量单位是否受支持
func (u Unit) IsValid() bool {
	switch u {
	case UnitPiece, UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitBox, UnitPack:
		return true
	}
	return false
}

// Product 商品。Stock 是库存流水的投影，只能通过流水或对账修改。
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Unit         Unit            `json:"unit"`
	Stock        int             `json:"stock"`
	InitialStock int             `json:"initial_stock"`
	MinStock     int             `json:"min_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLowStock 判断是否低库存
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// CreateProductRequest 登记商品请求
type CreateProductRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Price        decimal.Decimal `json:"price"`
	Unit         Unit            `json:"unit"`
	InitialStock int             `json:"initial_stock"`
	MinStock     int             `json:"min_stock"`
}

// Normalize 去除首尾空白并填充默认单位
func (r *CreateProductRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.SKU = strings.TrimSpace(r.SKU)
	r.Unit = Unit(strings.ToLower(strings.TrimSpace(string(r.Unit))))
	if r.Unit == "" {
		r.Unit = UnitPiece
	}
}

// Validate 校验登记请求
func (r *CreateProductRequest) Validate() error {
	if r.ID == "" {
		return NewValidationError("product id is required")
	}
	if r.Name == "" {
		return NewValidationError("product name is required")
	}
	if err := validatePrice("price", r.Price); err != nil {
		return err
	}
	if r.InitialStock < 0 {
		return NewValidationError("initial stock cannot be negative")
	}
	if r.InitialStock > MaxQuantity {
		return NewValidationError("initial stock exceeds %d", MaxQuantity)
	}
	if r.MinStock < 0 {
		return NewValidationError("min stock cannot be negative")
	}
	if r.MinStock > MaxQuantity {
		return NewValidationError("min stock exceeds %d", MaxQuantity)
	}
	if !r.Unit.IsValid() {
		return NewValidationError("unknown unit: %s", r.Unit)
	}
	return nil
}

// NewProduct 由登记请求构建商品，当前库存等于初始库存
func NewProduct(req *CreateProductRequest, now time.Time) *Product {
	return &Product{
		ID:           req.ID,
		Name:         req.Name,
		SKU:          req.SKU,
		Price:        req.Price,
		Unit:         req.Unit,
		Stock:        req.InitialStock,
		InitialStock: req.InitialStock,
		MinStock:     req.MinStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LowStockAlert 低库存警告
type LowStockAlert struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductSKU    string          `json:"product_sku,omitempty"`
	CurrentStock  int             `json:"current_stock"`
	MinStock      int             `json:"min_stock"`
	StockShortage int             `json:"stock_shortage"`
	ProductPrice  decimal.Decimal `json:"product_price"`
}

// NewLowStockAlert 由商品构建警告
func NewLowStockAlert(p *Product) *LowStockAlert {
	return &LowStockAlert{
		ProductID:     p.ID,
		ProductName:   p.Name,
		ProductSKU:    p.SKU,
		CurrentStock:  p.Stock,
		MinStock:      p.MinStock,
		StockShortage: p.MinStock - p.Stock,
		ProductPrice:  p.Price,
	}
}
