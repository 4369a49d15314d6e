package handlers

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments PaymentUsecase
	log      *zap.Logger
}

func NewPaymentHandler(payments PaymentUsecase, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

// Create godoc
// @Summary Оплатить заказ
// @Description Карта подтверждается сразу, для pix и boleto возвращаются данные для оплаты
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body dto.CreatePaymentRequest true "Шлюз, способ и токен карты"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Заказ не ожидает оплаты или шлюз не поддерживается"
// @Failure 402 {object} dto.PaymentRequiredErrorResponse "Шлюз отклонил платёж"
// @Failure 404 {object} dto.NotFoundErrorResponse "Заказ не найден"
// @Router /api/v1/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	p, err := h.payments.CreatePayment(c.Request.Context(), service.CreatePaymentInput{
		OrderID:      *optionalUUID(&req.OrderID),
		Gateway:      req.Gateway,
		Method:       models.PaymentMethod(req.Method),
		CardToken:    req.CardToken,
		Installments: req.Installments,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewPaymentResponse(p))
}

// Get godoc
// @Summary Платёж по ID
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID платежа"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} dto.NotFoundErrorResponse "Платёж не найден"
// @Router /api/v1/payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaymentResponse(p))
}

// Refund godoc
// @Summary Возврат платежа
// @Description Без amount выполняется полный возврат
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID платежа"
// @Param refund body dto.RefundRequest false "Сумма и причина"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Платёж нельзя вернуть"
// @Failure 403 {object} dto.ForbiddenErrorResponse "Нужна роль администратора"
// @Failure 502 {object} dto.BaseError "Шлюз не выполнил возврат"
// @Router /api/v1/payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindingError(c, h.log, err)
			return
		}
	}
	var amount *decimal.Decimal
	if req.Amount != nil {
		d := decimal.RequireFromString(*req.Amount)
		amount = &d
	}
	p, err := h.payments.Refund(c.Request.Context(), id, amount, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaymentResponse(p))
}

// Sync godoc
// @Summary Сверить платёж со шлюзом
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID платежа"
// @Success 200 {object} dto.PaymentResponse
// @Failure 403 {object} dto.ForbiddenErrorResponse "Нужна роль администратора"
// @Failure 404 {object} dto.NotFoundErrorResponse "Платёж не найден"
// @Router /api/v1/admin/payments/{id}/sync [post]
func (h *PaymentHandler) Sync(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.SyncPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaymentResponse(p))
}
