package dto

// BaseError — единый формат ошибки API.
// Code — машинный код в snake_case, Message — краткое описание для клиента,
// Details — пояснение (никогда не содержит внутренних ошибок), Fields — ошибки валидации.
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// Семантические псевдонимы для swagger, по JSON совпадают с BaseError.

// ValidationErrorResponse 400
type ValidationErrorResponse BaseError

// BusinessErrorResponse 400, бизнес-правило нарушено (пустая корзина, купон, остаток)
type BusinessErrorResponse BaseError

// UnauthorizedErrorResponse 401
type UnauthorizedErrorResponse BaseError

// PaymentRequiredErrorResponse 402, шлюз отклонил оплату
type PaymentRequiredErrorResponse BaseError

// ForbiddenErrorResponse 403
type ForbiddenErrorResponse BaseError

// NotFoundErrorResponse 404
type NotFoundErrorResponse BaseError

// ConflictErrorResponse 409
type ConflictErrorResponse BaseError

// InternalErrorResponse 500
type InternalErrorResponse BaseError

func NewValidationError(msg string, fields []FieldError) ValidationErrorResponse {
	return ValidationErrorResponse(BaseError{Code: "validation_error", Message: msg, Fields: fields})
}
func NewBusinessError(code, msg string) BusinessErrorResponse {
	return BusinessErrorResponse(BaseError{Code: code, Message: msg})
}
func NewUnauthorizedError(msg string) UnauthorizedErrorResponse {
	return UnauthorizedErrorResponse(BaseError{Code: "unauthorized", Message: msg})
}
func NewPaymentRequiredError(msg string) PaymentRequiredErrorResponse {
	return PaymentRequiredErrorResponse(BaseError{Code: "payment_failed", Message: msg})
}
func NewForbiddenError(msg string) ForbiddenErrorResponse {
	return ForbiddenErrorResponse(BaseError{Code: "forbidden", Message: msg})
}
func NewNotFoundError(msg string) NotFoundErrorResponse {
	return NotFoundErrorResponse(BaseError{Code: "not_found", Message: msg})
}
func NewConflictError(code, msg string) ConflictErrorResponse {
	return ConflictErrorResponse(BaseError{Code: code, Message: msg})
}
func NewInternalError() InternalErrorResponse {
	return InternalErrorResponse(BaseError{Code: "internal_error", Message: "internal server error"})
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func NewSuccessResponse(msg string) SuccessResponse { return SuccessResponse{Message: msg} }
