package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const webhookLockTTL = 15 * time.Second

// errPaymentChanged — статус платежа изменился между чтением и записью.
var errPaymentChanged = errors.New("payment status changed concurrently")

type CreatePaymentInput struct {
	OrderID      uuid.UUID
	Gateway      string
	Method       models.PaymentMethod
	CardToken    string
	Installments int
}

type PaymentService struct {
	repo     *repository.Repository
	gateways *gateway.Registry
	orders   *OrderService
	locker   Locker // nil — вебхуки сериализуются только через webhook_events
	events   EventBus
	settings StoreSettings

	now   func() time.Time
	async func(func())
	log   *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	gateways *gateway.Registry,
	orders *OrderService,
	locker Locker,
	events EventBus,
	settings StoreSettings,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		repo:     repo,
		gateways: gateways,
		orders:   orders,
		locker:   locker,
		events:   events,
		settings: settings,
		now:      time.Now,
		async:    goAsync,
		log:      log,
	}
}

// changeSet собирает события, которые публикуются после коммита.
type changeSet struct {
	payments []PaymentStatusChangedEvent
	orders   []OrderStatusChangedEvent
}

func (s *PaymentService) paymentChanged(p *models.Payment, from, to models.PaymentStatus) PaymentStatusChangedEvent {
	return PaymentStatusChangedEvent{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		Gateway:    p.Gateway,
		ExternalID: p.ExternalID,
		From:       from,
		To:         to,
		Amount:     p.Amount,
		ChangedAt:  s.now(),
	}
}

func (s *PaymentService) publish(cs changeSet) {
	for _, e := range cs.orders {
		s.orders.publishStatusChanged(e)
	}
	if s.events == nil {
		return
	}
	for _, e := range cs.payments {
		fireAndForget(s.async, s.log, "payment_status_changed_event", func(ctx context.Context) error {
			return s.events.PublishPaymentStatusChanged(ctx, e)
		})
	}
}

func (s *PaymentService) adapter(name string) (gateway.Adapter, error) {
	if s.gateways == nil {
		return nil, ErrGatewayNotSupported
	}
	a, ok := s.gateways.Get(name)
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return a, nil
}

// CreatePayment фиксирует попытку оплаты до обращения к шлюзу, затем применяет ответ шлюза.
// Отказ шлюза оставляет платёж в rejected и не меняет заказ.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !in.Method.Valid() {
		return nil, ErrMethodNotSupported
	}
	adapter, err := s.adapter(in.Gateway)
	if err != nil {
		return nil, err
	}

	ord, err := s.repo.Orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if ord == nil || (role != RoleAdmin && (ord.UserID == nil || *ord.UserID != userID)) {
		return nil, ErrOrderNotFound
	}
	if !ord.Status.AwaitingPayment() {
		return nil, ErrOrderNotAwaitingPayment
	}

	pay := &models.Payment{
		OrderID: ord.ID,
		UserID:  ord.UserID,
		Gateway: adapter.Name(),
		Method:  in.Method,
		Status:  models.PaymentPending,
		Amount:  ord.Total,
		Fee:     decimal.Zero,
	}
	if err := s.repo.Payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	email := ord.ContactEmail
	if email == "" {
		email = EmailFromContext(ctx)
	}
	res, gwErr := adapter.CreatePayment(ctx, gateway.ChargeRequest{
		PaymentID:    pay.ID,
		OrderID:      ord.ID,
		OrderNumber:  ord.Number,
		Amount:       pay.Amount,
		Currency:     s.settings.Currency,
		Method:       in.Method,
		CardToken:    in.CardToken,
		Installments: in.Installments,
		Customer:     gateway.Customer{UserID: userID.String(), Email: email},
	})
	if gwErr != nil {
		s.log.Error("Ошибка платёжного шлюза",
			zap.String("gateway", pay.Gateway),
			zap.String("payment_id", pay.ID.String()),
			zap.Error(gwErr))
		res = &gateway.ChargeResult{Success: false, Status: models.PaymentRejected, Message: "gateway unavailable"}
		if errors.Is(gwErr, gateway.ErrMethodNotSupported) {
			res.Message = ErrMethodNotSupported.Error()
		}
	}

	status := res.Status
	if !res.Success {
		status = models.PaymentRejected
	}

	var cs changeSet
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		fields := map[string]any{
			"external_id":      res.ExternalID,
			"gateway_status":   res.GatewayStatus,
			"gateway_response": datatypes.JSONMap(res.Raw),
		}
		if res.PixQRCode != "" {
			fields["pix_qr_code"] = res.PixQRCode
			fields["pix_qr_code_base64"] = res.PixQRCodeBase64
			fields["pix_expiration"] = res.PixExpiration
		}
		if res.BoletoBarcode != "" || res.BoletoURL != "" {
			fields["boleto_barcode"] = res.BoletoBarcode
			fields["boleto_url"] = res.BoletoURL
			fields["boleto_expiration"] = res.BoletoExpiration
		}
		ok, err := tx.Payments.UpdateStatus(ctx, pay.ID, models.PaymentPending, status, fields)
		if err != nil {
			return err
		}
		if !ok {
			return errPaymentChanged
		}
		if err := tx.Payments.AddTransaction(ctx, &models.PaymentTransaction{
			PaymentID:       pay.ID,
			Type:            models.TxAuthorization,
			Status:          status,
			Amount:          pay.Amount,
			ExternalID:      res.ExternalID,
			GatewayResponse: res.Raw,
		}); err != nil {
			return err
		}
		pay.ExternalID = res.ExternalID
		if status != models.PaymentPending {
			cs.payments = append(cs.payments, s.paymentChanged(pay, models.PaymentPending, status))
		}

		if status == models.PaymentRejected || status == models.PaymentCancelled {
			return nil
		}

		locked, err := tx.Orders.GetByIDForUpdate(ctx, ord.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrOrderNotFound
		}
		target, notes := models.OrderStatusAwaitingPayment, "Awaiting payment confirmation"
		if status == models.PaymentApproved {
			target, notes = models.OrderStatusPaid, "Payment approved"
		}
		if !locked.Status.AwaitingPayment() {
			s.log.Warn("Заказ покинул ожидание оплаты во время платежа",
				zap.String("order_id", locked.ID.String()),
				zap.String("status", string(locked.Status)),
				zap.String("payment_id", pay.ID.String()))
			return nil
		}
		if locked.Status == target {
			return nil
		}
		changed, err := s.orders.transitionTx(ctx, tx, locked, target, notes, &userID)
		if err != nil {
			return err
		}
		cs.orders = append(cs.orders, changed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(cs)

	if errors.Is(gwErr, gateway.ErrMethodNotSupported) {
		return nil, ErrMethodNotSupported
	}
	if status == models.PaymentRejected || status == models.PaymentCancelled {
		s.log.Info("Платёж отклонён",
			zap.String("payment_id", pay.ID.String()),
			zap.String("order_id", ord.ID.String()),
			zap.String("message", res.Message))
		return nil, &PaymentError{PaymentID: pay.ID, Message: res.Message}
	}

	s.log.Info("Платёж создан",
		zap.String("payment_id", pay.ID.String()),
		zap.String("gateway", pay.Gateway),
		zap.String("status", string(status)))
	return s.repo.Payments.GetByID(ctx, pay.ID)
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	var p *models.Payment
	if role == RoleAdmin {
		p, err = s.repo.Payments.GetByID(ctx, id)
	} else {
		p, err = s.repo.Payments.GetByIDForUser(ctx, id, userID)
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// Refund возвращает одобренный платёж (полностью или частично) и переводит заказ в refunded.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*models.Payment, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	pay, err := s.repo.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	if pay.Status != models.PaymentApproved {
		return nil, ErrPaymentNotRefundable
	}
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(pay.Amount)) {
		return nil, ErrInvalidRefundAmount
	}
	adapter, err := s.adapter(pay.Gateway)
	if err != nil {
		return nil, err
	}

	refundAmount := pay.Amount
	if amount != nil {
		refundAmount = round2(*amount)
	}

	res, err := adapter.Refund(ctx, pay.ExternalID, amount, reason)
	if err != nil {
		s.log.Error("Ошибка возврата на стороне шлюза",
			zap.String("payment_id", pay.ID.String()),
			zap.String("gateway", pay.Gateway),
			zap.Error(err))
		return nil, ErrRefundFailed
	}
	if !res.Success {
		if err := s.repo.Payments.AddTransaction(ctx, &models.PaymentTransaction{
			PaymentID:       pay.ID,
			Type:            models.TxRefund,
			Status:          models.PaymentRejected,
			Amount:          refundAmount,
			ExternalID:      res.RefundID,
			GatewayResponse: res.Raw,
		}); err != nil {
			s.log.Error("Не удалось записать неудачный возврат", zap.String("payment_id", pay.ID.String()), zap.Error(err))
		}
		s.log.Info("Шлюз отклонил возврат", zap.String("payment_id", pay.ID.String()), zap.String("message", res.Message))
		return nil, ErrRefundFailed
	}

	var cs changeSet
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ok, err := tx.Payments.UpdateStatus(ctx, pay.ID, models.PaymentApproved, models.PaymentRefunded, map[string]any{
			"refund_reason": reason,
			"refunded_at":   s.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrPaymentNotRefundable
		}
		if err := tx.Payments.AddTransaction(ctx, &models.PaymentTransaction{
			PaymentID:       pay.ID,
			Type:            models.TxRefund,
			Status:          models.PaymentRefunded,
			Amount:          refundAmount,
			ExternalID:      res.RefundID,
			GatewayResponse: res.Raw,
		}); err != nil {
			return err
		}
		cs.payments = append(cs.payments, s.paymentChanged(pay, models.PaymentApproved, models.PaymentRefunded))

		changed, err := s.refundOrderTx(ctx, tx, pay.OrderID, "Payment refunded", &actor)
		if err != nil {
			return err
		}
		if changed != nil {
			cs.orders = append(cs.orders, *changed)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Шлюз выполнил возврат, но платёж не обновлён",
			zap.String("payment_id", pay.ID.String()),
			zap.String("gateway", pay.Gateway),
			zap.String("external_id", pay.ExternalID),
			zap.String("refund_id", res.RefundID),
			zap.String("amount", refundAmount.StringFixed(2)),
			zap.Error(err))
		return nil, err
	}
	s.publish(cs)

	s.log.Info("Платёж возвращён",
		zap.String("payment_id", pay.ID.String()),
		zap.String("amount", refundAmount.StringFixed(2)))
	return s.repo.Payments.GetByID(ctx, pay.ID)
}

// refundOrderTx переводит заказ в refunded, если он ещё не возвращён и не отменён.
func (s *PaymentService) refundOrderTx(ctx context.Context, tx *repository.Repository, orderID uuid.UUID, notes string, actor *uuid.UUID) (*OrderStatusChangedEvent, error) {
	ord, err := tx.Orders.GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord == nil || ord.Status == models.OrderStatusRefunded || ord.Status == models.OrderStatusCancelled {
		return nil, nil
	}
	changed, err := s.orders.transitionTx(ctx, tx, ord, models.OrderStatusRefunded, notes, actor)
	if err != nil {
		return nil, err
	}
	return &changed, nil
}

// HandleWebhook применяет уведомление шлюза. Повторная доставка того же события ничего не меняет.
func (s *PaymentService) HandleWebhook(ctx context.Context, gatewayName string, req gateway.WebhookRequest) error {
	adapter, err := s.adapter(gatewayName)
	if err != nil {
		return err
	}

	res, err := adapter.ParseWebhook(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) || errors.Is(err, gateway.ErrMalformedPayload) {
			s.log.Warn("Вебхук отклонён", zap.String("gateway", gatewayName), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
		}
		s.log.Error("Ошибка обработки вебхука", zap.String("gateway", gatewayName), zap.Error(err))
		return err
	}
	if res.Ignored || res.ExternalID == "" {
		s.log.Debug("Вебхук пропущен", zap.String("gateway", gatewayName), zap.String("event_id", res.EventID))
		return nil
	}

	if s.locker != nil {
		key, val := "webhook:"+gatewayName+":"+res.ExternalID, uuid.NewString()
		ok, err := s.locker.AcquireLock(ctx, key, val, webhookLockTTL)
		switch {
		case err != nil:
			s.log.Warn("Блокировка вебхука недоступна, продолжаем без неё", zap.Error(err))
		case !ok:
			return ErrConcurrentUpdate
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), key, val); err != nil {
					s.log.Warn("Не удалось снять блокировку вебхука", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	_, err = s.applyGatewayStatus(ctx, gatewayStatusUpdate{
		gateway:       gatewayName,
		externalID:    res.ExternalID,
		eventID:       res.EventID,
		status:        res.Status,
		gatewayStatus: res.GatewayStatus,
		raw:           res.Raw,
		notes:         "Payment confirmed via webhook",
	})
	return err
}

// SyncPayment запрашивает актуальный статус у шлюза и применяет его по правилам вебхука.
func (s *PaymentService) SyncPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	pay, err := s.repo.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	if pay.ExternalID == "" {
		return pay, nil
	}
	adapter, err := s.adapter(pay.Gateway)
	if err != nil {
		return nil, err
	}

	st, err := adapter.GetStatus(ctx, pay.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("sync payment %s: %w", pay.ID, err)
	}
	return s.applyGatewayStatus(ctx, gatewayStatusUpdate{
		paymentID:     pay.ID,
		gateway:       pay.Gateway,
		externalID:    pay.ExternalID,
		status:        st.Status,
		gatewayStatus: st.GatewayStatus,
		raw:           st.Raw,
		notes:         "Payment confirmed via sync",
		actor:         &actor,
	})
}

type gatewayStatusUpdate struct {
	paymentID     uuid.UUID // uuid.Nil — поиск по (gateway, externalID)
	gateway       string
	externalID    string
	eventID       string // пусто — без дедупликации
	status        models.PaymentStatus
	gatewayStatus string
	raw           map[string]any
	notes         string
	actor         *uuid.UUID
}

func transactionTypeFor(status models.PaymentStatus, gatewayStatus string) models.TransactionType {
	switch {
	case status == models.PaymentApproved:
		return models.TxCapture
	case status == models.PaymentRefunded && gatewayStatus == "charged_back":
		return models.TxChargeback
	case status == models.PaymentRefunded:
		return models.TxRefund
	}
	return models.TxAuthorization
}

// applyGatewayStatus применяет статус от шлюза: совпадающий статус и откат назад игнорируются,
// approved переводит ожидающий оплаты заказ в paid.
func (s *PaymentService) applyGatewayStatus(ctx context.Context, u gatewayStatusUpdate) (*models.Payment, error) {
	var (
		cs    changeSet
		payID uuid.UUID
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if u.eventID != "" {
			fresh, err := tx.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{
				Gateway:    u.gateway,
				EventID:    u.eventID,
				ExternalID: u.externalID,
				Status:     string(u.status),
			})
			if err != nil {
				return err
			}
			if !fresh {
				s.log.Info("Повторная доставка вебхука", zap.String("gateway", u.gateway), zap.String("event_id", u.eventID))
				return nil
			}
		}

		var (
			pay *models.Payment
			err error
		)
		if u.paymentID != uuid.Nil {
			pay, err = tx.Payments.GetByID(ctx, u.paymentID)
		} else {
			pay, err = tx.Payments.GetByExternalID(ctx, u.gateway, u.externalID)
		}
		if err != nil {
			return err
		}
		if pay == nil {
			return ErrPaymentNotFound
		}
		payID = pay.ID

		from := pay.Status
		if from == u.status {
			return nil
		}
		if !from.CanTransitionTo(u.status) {
			s.log.Warn("Статус платежа от шлюза проигнорирован",
				zap.String("payment_id", pay.ID.String()),
				zap.String("from", string(from)),
				zap.String("to", string(u.status)))
			return nil
		}

		fields := map[string]any{"gateway_status": u.gatewayStatus}
		if u.raw != nil {
			fields["gateway_response"] = datatypes.JSONMap(u.raw)
		}
		if u.status == models.PaymentRefunded {
			fields["refunded_at"] = s.now()
		}
		ok, err := tx.Payments.UpdateStatus(ctx, pay.ID, from, u.status, fields)
		if err != nil {
			return err
		}
		if !ok {
			return errPaymentChanged
		}
		if err := tx.Payments.AddTransaction(ctx, &models.PaymentTransaction{
			PaymentID:       pay.ID,
			Type:            transactionTypeFor(u.status, u.gatewayStatus),
			Status:          u.status,
			Amount:          pay.Amount,
			ExternalID:      u.externalID,
			GatewayResponse: u.raw,
		}); err != nil {
			return err
		}
		cs.payments = append(cs.payments, s.paymentChanged(pay, from, u.status))

		switch u.status {
		case models.PaymentApproved:
			ord, err := tx.Orders.GetByIDForUpdate(ctx, pay.OrderID)
			if err != nil {
				return err
			}
			if ord == nil {
				return ErrOrderNotFound
			}
			if !ord.Status.AwaitingPayment() {
				s.log.Warn("Платёж одобрен, но заказ не ожидает оплаты",
					zap.String("order_id", ord.ID.String()),
					zap.String("status", string(ord.Status)),
					zap.String("payment_id", pay.ID.String()))
				return nil
			}
			changed, err := s.orders.transitionTx(ctx, tx, ord, models.OrderStatusPaid, u.notes, u.actor)
			if err != nil {
				return err
			}
			cs.orders = append(cs.orders, changed)
		case models.PaymentRefunded:
			changed, err := s.refundOrderTx(ctx, tx, pay.OrderID, "Payment refunded by gateway", u.actor)
			if err != nil {
				return err
			}
			if changed != nil {
				cs.orders = append(cs.orders, *changed)
			}
		}
		return nil
	})
	if errors.Is(err, errPaymentChanged) || errors.Is(err, errStatusChanged) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	s.publish(cs)

	if payID == uuid.Nil {
		return nil, nil
	}
	return s.repo.Payments.GetByID(ctx, payID)
}
