package handlers

import (
	"net/http"

	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	checkout CheckoutUsecase
	log      *zap.Logger
}

func NewCheckoutHandler(checkout CheckoutUsecase, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, log: log}
}

// Checkout godoc
// @Summary Оформить заказ
// @Description Превращает корзину в заказ, резервирует остатки и применяет купон
// @Tags checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param checkout body dto.CheckoutRequest true "Адреса и доставка"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Пустая корзина, нет остатка, купон или адрес"
// @Failure 401 {object} dto.UnauthorizedErrorResponse "Требуется авторизация"
// @Failure 409 {object} dto.ConflictErrorResponse "Оформление уже выполняется"
// @Failure 500 {object} dto.InternalErrorResponse "Внутренняя ошибка"
// @Router /api/v1/checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	ord, err := h.checkout.Checkout(c.Request.Context(), service.CheckoutInput{
		ShippingAddressID: *optionalUUID(&req.ShippingAddressID),
		BillingAddressID:  optionalUUID(req.BillingAddressID),
		ShippingMethod:    req.ShippingMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOrderResponse(ord))
}
