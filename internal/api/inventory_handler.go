package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/service"
)

// InventoryHandler 商品目录与库存流水的HTTP处理器
type InventoryHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewInventoryHandler 创建库存处理器实例
func NewInventoryHandler(inventoryService service.InventoryService, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterProduct 登记商品
// POST /api/v1/products
func (h *InventoryHandler) RegisterProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.inventoryService.RegisterProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, "register product", err)
		return
	}
	writeCreated(c, product)
}

// GetProduct 获取商品详情
// GET /api/v1/products/:id
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	product, err := h.inventoryService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get product", err)
		return
	}
	writeOK(c, product)
}

// ListProducts 商品列表
// GET /api/v1/products
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.inventoryService.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list products", err)
		return
	}
	writeOK(c, &products)
}

// GetBalance 由流水重新计算的库存余额
// GET /api/v1/products/:id/balance
func (h *InventoryHandler) GetBalance(c *gin.Context) {
	balance, err := h.inventoryService.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get balance", err)
		return
	}
	writeOK(c, balance)
}

// Reconcile 对账
// POST /api/v1/products/:id/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	result, err := h.inventoryService.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "reconcile stock", err)
		return
	}
	writeOK(c, result)
}

// RecordMovement 登记库存流水
// POST /api/v1/inventory/movements
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	var req domain.RecordMovementRequest
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.inventoryService.RecordMovement(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, "record movement", err)
		return
	}
	writeCreated(c, movement)
}

// ListMovements 流水查询
// GET /api/v1/inventory/movements?product_id=&type=
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	filter := domain.MovementFilter{
		ProductID: c.Query("product_id"),
		Type:      domain.MovementType(c.Query("type")),
	}
	movements, err := h.inventoryService.ListMovements(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, "list movements", err)
		return
	}
	writeOK(c, &movements)
}

// GetLowStockAlerts 低库存警告
// GET /api/v1/inventory/alerts/low-stock
func (h *InventoryHandler) GetLowStockAlerts(c *gin.Context) {
	alerts, err := h.inventoryService.GetLowStockAlerts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "get low stock alerts", err)
		return
	}
	writeOK(c, &alerts)
}
