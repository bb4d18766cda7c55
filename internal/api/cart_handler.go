package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/service"
)

// CartHandler 购物车HTTP处理器，结算也挂在购物车路径下
type CartHandler struct {
	cartService  service.CartService
	orderService service.OrderService
	logger       *zap.Logger
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(cartService service.CartService, orderService service.OrderService, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		cartService:  cartService,
		orderService: orderService,
		logger:       logger,
	}
}

// UpdateQuantityRequest 修改数量请求
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyCouponRequest 使用优惠券请求
type ApplyCouponRequest struct {
	Code string `json:"code"`
}

// GetCart 获取（或创建）购物车
// GET /api/v1/carts/:customerId
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.cartService.GetOrCreateCart(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, h.logger, "get cart", err)
		return
	}
	writeOK(c, cart)
}

// AddItem 加入商品
// POST /api/v1/carts/:customerId/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req domain.AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.AddItem(c.Request.Context(), c.Param("customerId"), &req)
	if err != nil {
		writeError(c, h.logger, "add cart item", err)
		return
	}
	writeOK(c, cart)
}

// UpdateItemQuantity 修改数量，0 表示删除
// PUT /api/v1/carts/:customerId/items/:productId
func (h *CartHandler) UpdateItemQuantity(c *gin.Context) {
	var req UpdateQuantityRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.UpdateItemQuantity(c.Request.Context(), c.Param("customerId"), c.Param("productId"), req.Quantity)
	if err != nil {
		writeError(c, h.logger, "update cart item", err)
		return
	}
	writeOK(c, cart)
}

// RemoveItem 删除商品行
// DELETE /api/v1/carts/:customerId/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	cart, err := h.cartService.RemoveItem(c.Request.Context(), c.Param("customerId"), c.Param("productId"))
	if err != nil {
		writeError(c, h.logger, "remove cart item", err)
		return
	}
	writeOK(c, cart)
}

// ClearCart 清空购物车
// DELETE /api/v1/carts/:customerId
func (h *CartHandler) ClearCart(c *gin.Context) {
	cart, err := h.cartService.ClearCart(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, h.logger, "clear cart", err)
		return
	}
	writeOK(c, cart)
}

// ApplyCoupon 使用优惠券
// POST /api/v1/carts/:customerId/coupon
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req ApplyCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.ApplyCoupon(c.Request.Context(), c.Param("customerId"), req.Code)
	if err != nil {
		writeError(c, h.logger, "apply coupon", err)
		return
	}
	writeOK(c, cart)
}

// Checkout 结算
// POST /api/v1/carts/:customerId/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	var req domain.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.Checkout(c.Request.Context(), c.Param("customerId"), &req)
	if err != nil {
		writeError(c, h.logger, "checkout", err)
		return
	}
	writeCreated(c, order)
}
