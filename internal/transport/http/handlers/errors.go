package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid id")

// bindingError отвечает 400 с перечнем полей, не прошедших валидацию.
func bindingError(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("Некорректный запрос", zap.String("path", c.FullPath()), zap.Error(err))
	fields := []dto.FieldError{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, dto.FieldError{
				Field:   toSnake(fe.Field()),
				Message: fieldMessage(fe),
				Tag:     fe.Tag(),
			})
		}
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid request body", fields))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "field is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case decimalGT0:
		return "must be a positive decimal"
	}
	return fmt.Sprintf("failed on %q", fe.Tag())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationError(errInvalidID.Error(), []dto.FieldError{{Field: name, Message: "must be a valid UUID", Tag: "uuid"}}))
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}

// writeError переводит ошибку сервиса в HTTP-ответ. Тексты внутренних ошибок наружу не уходят.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var (
		couponErr  *service.CouponError
		stockErr   *service.StockError
		paymentErr *service.PaymentError
	)

	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrSessionRequired):
		c.JSON(http.StatusUnauthorized, dto.NewUnauthorizedError(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.NewForbiddenError("access denied"))

	case errors.As(err, &couponErr):
		resp := dto.NewBusinessError("invalid_coupon", couponErr.Error())
		resp.Details = string(couponErr.Reason)
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &stockErr):
		resp := dto.NewBusinessError("insufficient_stock", stockErr.Error())
		resp.Details = fmt.Sprintf("available: %d", stockErr.Available)
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &paymentErr):
		log.Info("Платёж отклонён", zap.String("payment_id", paymentErr.PaymentID.String()))
		c.JSON(http.StatusPaymentRequired, dto.NewPaymentRequiredError(paymentErr.Error()))
	case errors.Is(err, service.ErrPaymentFailed):
		c.JSON(http.StatusPaymentRequired, dto.NewPaymentRequiredError(service.ErrPaymentFailed.Error()))

	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError(err.Error()))

	case errors.Is(err, service.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("cart_empty", err.Error()))
	case errors.Is(err, service.ErrAddressNotFound):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("address_not_found", err.Error()))
	case errors.Is(err, service.ErrOrderNotAwaitingPayment):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("order_not_awaiting_payment", err.Error()))
	case errors.Is(err, service.ErrOrderNotCancellable):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("order_not_cancellable", err.Error()))
	case errors.Is(err, service.ErrShippingCalculationFailed):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("shipping_calculation_failed", err.Error()))
	case errors.Is(err, service.ErrQuantityInvalid):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("invalid_quantity", err.Error()))
	case errors.Is(err, service.ErrGatewayNotSupported):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("gateway_not_supported", err.Error()))
	case errors.Is(err, service.ErrMethodNotSupported):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("method_not_supported", err.Error()))
	case errors.Is(err, service.ErrPaymentNotRefundable):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("payment_not_refundable", err.Error()))
	case errors.Is(err, service.ErrInvalidRefundAmount):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("invalid_refund_amount", err.Error()))
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("invalid_status", err.Error()))
	case errors.Is(err, service.ErrWebhookRejected):
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("webhook_rejected", err.Error()))

	case errors.Is(err, service.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, dto.NewConflictError("checkout_in_progress", err.Error()))
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, dto.NewConflictError("concurrent_update", err.Error()))

	case errors.Is(err, service.ErrRefundFailed):
		log.Warn("Шлюз не выполнил возврат", zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.BaseError{Code: "refund_failed", Message: service.ErrRefundFailed.Error()})

	default:
		log.Error("Внутренняя ошибка", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewInternalError())
	}
}
