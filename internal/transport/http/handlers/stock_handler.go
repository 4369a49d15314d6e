package handlers

import (
	"net/http"

	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StockHandler struct {
	stock StockUsecase
	log   *zap.Logger
}

func NewStockHandler(stock StockUsecase, log *zap.Logger) *StockHandler {
	return &StockHandler{stock: stock, log: log}
}

// Set godoc
// @Summary Установить остаток
// @Description Задаёт физическое количество, резерв не меняется
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param stock body dto.SetStockRequest true "Товар и количество"
// @Success 200 {object} dto.StockResponse
// @Failure 400 {object} dto.ValidationErrorResponse "Неверные данные"
// @Failure 403 {object} dto.ForbiddenErrorResponse "Нужна роль администратора"
// @Router /api/v1/admin/stock [put]
func (h *StockHandler) Set(c *gin.Context) {
	var req dto.SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, h.log, err)
		return
	}
	rec, err := h.stock.SetQuantity(c.Request.Context(), *optionalUUID(&req.ProductID), optionalUUID(req.VariantID), *req.Quantity)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStockResponse(rec))
}
