package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// OrderHandler serves customer checkout and order history.
type OrderHandler struct {
	orders *usecase.OrderService
	errs   errorResponder
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *usecase.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, errs: newErrorResponder(logger)}
}

// RegisterRoutes binds the order routes. Any signed-in account may order.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Authenticator) {
	r.POST("", auth.Require(h.Place))
	r.POST("/", auth.Require(h.Place))
	r.GET("/myorders", auth.Require(h.MyOrders))
}

// Place godoc
// @Summary Place an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body PlaceOrderRequest true "Products and shipping address"
// @Success 201 {object} OrderView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/orders [post]
func (h *OrderHandler) Place(c *gin.Context, principal domain.Principal) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "products are required")
		return
	}

	input := usecase.PlaceOrderInput{
		Lines:           make([]usecase.OrderLine, 0, len(req.Products)),
		ShippingAddress: req.ShippingAddress,
	}
	for _, line := range req.Products {
		input.Lines = append(input.Lines, usecase.OrderLine{ProductID: line.Product, Quantity: line.Quantity})
	}

	order, err := h.orders.Place(c.Request.Context(), principal.IdentityID, input)
	if err != nil {
		h.errs.respond(c, "place order", err)
		return
	}
	c.JSON(http.StatusCreated, newOrderView(order))
}

// MyOrders lists the caller's orders, newest first.
func (h *OrderHandler) MyOrders(c *gin.Context, principal domain.Principal) {
	orders, err := h.orders.MyOrders(c.Request.Context(), principal.IdentityID)
	if err != nil {
		h.errs.respond(c, "my orders", err)
		return
	}
	c.JSON(http.StatusOK, newOrderViews(orders))
}
