package handlers

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultPageSize = 20

type OrderHandler struct {
	orders OrderUsecase
	log    *zap.Logger
}

func NewOrderHandler(orders OrderUsecase, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

// List godoc
// @Summary Список заказов
// @Description Покупатель видит только свои заказы, администратор может фильтровать по user_id
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param status query string false "Статус заказа"
// @Param user_id query string false "ID пользователя (только admin)"
// @Param limit query int false "Размер страницы" default(20)
// @Param offset query int false "Смещение"
// @Success 200 {object} dto.OrderListResponse
// @Failure 400 {object} dto.ValidationErrorResponse "Неверные параметры"
// @Failure 401 {object} dto.UnauthorizedErrorResponse "Требуется авторизация"
// @Router /api/v1/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var q dto.ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindingError(c, h.log, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}
	f := service.ListFilter{UserID: optionalUUID(&q.UserID), Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := models.OrderStatus(q.Status)
		if !st.Valid() {
			writeError(c, h.log, service.ErrInvalidStatus)
			return
		}
		f.Status = &st
	}

	orders, total, err := h.orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.OrderListResponse{Orders: make([]dto.OrderResponse, 0, len(orders)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for i := range orders {
		resp.Orders = append(resp.Orders, dto.NewOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Заказ по ID
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заказа"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} dto.NotFoundErrorResponse "Заказ не найден"
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ord, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord))
}

// Cancel godoc
// @Summary Отменить заказ
// @Description Освобождает зарезервированные остатки
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заказа"
// @Param cancel body dto.CancelOrderRequest false "Причина"
// @Success 200 {object} dto.OrderResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Заказ нельзя отменить"
// @Failure 403 {object} dto.ForbiddenErrorResponse "Чужой заказ"
// @Failure 404 {object} dto.NotFoundErrorResponse "Заказ не найден"
// @Router /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindingError(c, h.log, err)
			return
		}
	}
	ord, err := h.orders.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord))
}

// UpdateStatus godoc
// @Summary Сменить статус заказа
// @Description Отгрузка списывает резерв, отмена и возврат освобождают его
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заказа"
// @Param status body dto.UpdateOrderStatusRequest true "Новый статус"
// @Success 200 {object} dto.OrderResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Неизвестный статус"
// @Failure 403 {object} dto.ForbiddenErrorResponse "Нужна роль администратора"
// @Failure 404 {object} dto.NotFoundErrorResponse "Заказ не найден"
// @Router /api/v1/admin/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	ord, err := h.orders.UpdateStatus(c.Request.Context(), service.UpdateStatusInput{
		OrderID:      id,
		Status:       models.OrderStatus(req.Status),
		Notes:        req.Notes,
		TrackingCode: req.TrackingCode,
		AdminNotes:   req.AdminNotes,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord))
}
