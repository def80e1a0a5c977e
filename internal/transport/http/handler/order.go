package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"zeus-insurance/internal/app"
	"zeus-insurance/internal/transport/http/middleware"
	"zeus-insurance/internal/transport/http/response"
)

type OrderHandler struct {
	orderService *app.OrderService
}

type UpdatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
	PaymentDate   string `json:"payment_date"`
}

func NewOrderHandler(orderService *app.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) GetStatus(c *gin.Context) {
	result, err := h.orderService.GetOrderStatus(c.Request.Context(), c.Param("order_number"))
	if err != nil {
		writeOrderError(c, err, "get order failed")
		return
	}
	response.OK(c, result.View)
}

// UpdatePayment records a payment outcome for an order on behalf of the
// signed-in operator.
func (h *OrderHandler) UpdatePayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ctx := c.Request.Context()
	current, err := h.orderService.GetOrderStatus(ctx, c.Param("order_number"))
	if err != nil {
		writeOrderError(c, err, "get order failed")
		return
	}

	result, err := h.orderService.UpdateOrderPayment(ctx, app.UpdatePaymentInput{
		OrderID:       current.Order.ID,
		PaymentStatus: req.PaymentStatus,
		PaymentDate:   req.PaymentDate,
	})
	if err != nil {
		writeOrderError(c, err, "update payment failed")
		return
	}

	slog.InfoContext(ctx, "payment updated by operator",
		"operator", c.GetString(middleware.ContextUsernameKey),
		"order_number", result.View.OrderNumber,
		"from", current.Order.PaymentStatus,
		"to", result.View.PaymentStatus,
	)
	response.OK(c, result.View)
}

func writeOrderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidPaymentTransition):
		response.Error(c, http.StatusConflict, response.CodeInvalidTransition, err.Error())
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrInvalidPaymentStatus),
		errors.Is(err, app.ErrInvalidPaymentDate):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
