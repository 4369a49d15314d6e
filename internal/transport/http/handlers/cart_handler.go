package handlers

import (
	"net/http"

	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts CartUsecase
	log   *zap.Logger
}

func NewCartHandler(carts CartUsecase, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

func (h *CartHandler) respond(c *gin.Context, v *service.CartView, err error) {
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCartResponse(v))
}

// View godoc
// @Summary Текущая корзина
// @Description Корзина пользователя из токена или анонимная по X-Session-Key
// @Tags cart
// @Produce json
// @Param X-Session-Key header string false "Ключ анонимной сессии"
// @Success 200 {object} dto.CartResponse
// @Failure 401 {object} dto.UnauthorizedErrorResponse "Нет ни токена, ни ключа сессии"
// @Failure 500 {object} dto.InternalErrorResponse "Внутренняя ошибка"
// @Router /api/v1/cart [get]
func (h *CartHandler) View(c *gin.Context) {
	v, err := h.carts.View(c.Request.Context())
	h.respond(c, v, err)
}

// AddItem godoc
// @Summary Добавить товар в корзину
// @Tags cart
// @Accept json
// @Produce json
// @Param item body dto.AddCartItemRequest true "Товар и количество"
// @Success 200 {object} dto.CartResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Недостаточно товара или неверные данные"
// @Failure 404 {object} dto.NotFoundErrorResponse "Товар не найден"
// @Router /api/v1/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	// формат уже проверен тегом uuid
	productID := *optionalUUID(&req.ProductID)
	v, err := h.carts.AddItem(c.Request.Context(), productID, optionalUUID(req.VariantID), req.Quantity)
	h.respond(c, v, err)
}

// UpdateItem godoc
// @Summary Изменить количество позиции
// @Tags cart
// @Accept json
// @Produce json
// @Param id path string true "ID позиции корзины"
// @Param item body dto.UpdateCartItemRequest true "Новое количество"
// @Success 200 {object} dto.CartResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Недостаточно товара"
// @Failure 404 {object} dto.NotFoundErrorResponse "Позиция не найдена"
// @Router /api/v1/cart/items/{id} [patch]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	v, err := h.carts.UpdateItemQuantity(c.Request.Context(), itemID, req.Quantity)
	h.respond(c, v, err)
}

// RemoveItem godoc
// @Summary Удалить позицию из корзины
// @Tags cart
// @Produce json
// @Param id path string true "ID позиции корзины"
// @Success 200 {object} dto.CartResponse
// @Failure 404 {object} dto.NotFoundErrorResponse "Позиция не найдена"
// @Router /api/v1/cart/items/{id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := h.carts.RemoveItem(c.Request.Context(), itemID)
	h.respond(c, v, err)
}

// Clear godoc
// @Summary Очистить корзину
// @Tags cart
// @Produce json
// @Success 200 {object} dto.CartResponse
// @Router /api/v1/cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	v, err := h.carts.Clear(c.Request.Context())
	h.respond(c, v, err)
}

// ApplyCoupon godoc
// @Summary Применить купон
// @Tags cart
// @Accept json
// @Produce json
// @Param coupon body dto.ApplyCouponRequest true "Код купона"
// @Success 200 {object} dto.CartResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Купон недействителен, причина в details"
// @Router /api/v1/cart/coupon [post]
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req dto.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	v, err := h.carts.ApplyCoupon(c.Request.Context(), req.Code)
	h.respond(c, v, err)
}

// RemoveCoupon godoc
// @Summary Снять купон
// @Tags cart
// @Produce json
// @Success 200 {object} dto.CartResponse
// @Router /api/v1/cart/coupon [delete]
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	v, err := h.carts.RemoveCoupon(c.Request.Context())
	h.respond(c, v, err)
}
