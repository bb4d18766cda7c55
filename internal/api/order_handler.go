package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/resp"
	"github.com/MorseWayne/petshop_engine/internal/service"
)

// OrderHandler 订单HTTP处理器
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orderService: orderService, logger: logger}
}

// UpdateStatusRequest 订单状态/支付状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// TrackingRequest 物流单号请求
type TrackingRequest struct {
	TrackingCode string `json:"tracking_code"`
}

func (h *OrderHandler) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"invalid order id", requestID(c), traceID(c))
		return 0, false
	}
	return id, true
}

// ListOrders 订单列表
// GET /api/v1/orders?customer_id=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.GetOrders(c.Request.Context(), c.Query("customer_id"))
	if err != nil {
		writeError(c, h.logger, "list orders", err)
		return
	}
	writeOK(c, &orders)
}

// GetOrder 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get order", err)
		return
	}
	writeOK(c, order)
}

// UpdateStatus 流转订单状态
// PUT /api/v1/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		writeError(c, h.logger, "update order status", err)
		return
	}
	writeOK(c, order)
}

// UpdatePaymentStatus 流转支付状态
// PUT /api/v1/orders/:id/payment-status
func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), id, domain.PaymentStatus(req.Status))
	if err != nil {
		writeError(c, h.logger, "update payment status", err)
		return
	}
	writeOK(c, order)
}

// SetTrackingCode 设置物流单号
// PUT /api/v1/orders/:id/tracking
func (h *OrderHandler) SetTrackingCode(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req TrackingRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.SetTrackingCode(c.Request.Context(), id, req.TrackingCode)
	if err != nil {
		writeError(c, h.logger, "set tracking code", err)
		return
	}
	writeOK(c, order)
}
