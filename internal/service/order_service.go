package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errStatusChanged — статус заказа изменился между чтением и записью.
var errStatusChanged = errors.New("order status changed concurrently")

type ListFilter struct {
	UserID *uuid.UUID
	Status *models.OrderStatus
	Limit  int
	Offset int
}

type UpdateStatusInput struct {
	OrderID      uuid.UUID
	Status       models.OrderStatus
	Notes        string
	TrackingCode string
	AdminNotes   string
}

type OrderService struct {
	repo     *repository.Repository
	stock    *StockLedger
	events   EventBus
	notifier Notifier

	now   func() time.Time
	async func(func())
	log   *zap.Logger
}

func NewOrderService(repo *repository.Repository, stock *StockLedger, events EventBus, notifier Notifier, log *zap.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		stock:    stock,
		events:   events,
		notifier: notifier,
		now:      time.Now,
		async:    goAsync,
		log:      log,
	}
}

// nominalTransitions — ожидаемый граф статусов. Переходы вне графа допускаются, но логируются.
var nominalTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:         {models.OrderStatusAwaitingPayment, models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusAwaitingPayment: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:            {models.OrderStatusProcessing, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusProcessing:      {models.OrderStatusShipped, models.OrderStatusRefunded},
	models.OrderStatusShipped:         {models.OrderStatusDelivered, models.OrderStatusRefunded},
	models.OrderStatusDelivered:       {models.OrderStatusRefunded},
}

func isNominalTransition(from, to models.OrderStatus) bool {
	for _, s := range nominalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	var ord *models.Order
	if role == RoleAdmin {
		ord, err = s.repo.Orders.GetByID(ctx, id)
	} else {
		ord, err = s.repo.Orders.GetByIDForUser(ctx, id, userID)
	}
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f ListFilter) ([]models.Order, int64, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, 0, err
	}
	if role != RoleAdmin {
		f.UserID = &userID
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	ordersPtr, total, err := s.repo.Orders.List(ctx, repository.OrderListFilter{
		UserID: f.UserID,
		Status: f.Status,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	orders := make([]models.Order, len(ordersPtr))
	for i, o := range ordersPtr {
		orders[i] = *o
	}
	return orders, total, nil
}

// Cancel разрешён только в pending/awaiting_payment/paid. Повторная отмена отклоняется,
// резерв снимается ровно один раз.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, notes string) (*models.Order, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if notes == "" {
		notes = "Cancelled by customer"
	}

	var changed OrderStatusChangedEvent
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ord, err := tx.Orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if role != RoleAdmin && (ord.UserID == nil || *ord.UserID != userID) {
			return ErrForbidden
		}
		if !ord.CanCancel() {
			return ErrOrderNotCancellable
		}
		changed, err = s.transitionTx(ctx, tx, ord, models.OrderStatusCancelled, notes, &userID)
		if errors.Is(err, errStatusChanged) {
			return ErrOrderNotCancellable
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Заказ отменён", zap.String("order_id", id.String()), zap.String("actor", userID.String()))
	s.publishStatusChanged(changed)
	return s.repo.Orders.GetByID(ctx, id)
}

// UpdateStatus — административная смена статуса без проверки графа переходов.
// shipped списывает резерв со склада, cancelled/refunded снимают его.
func (s *OrderService) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*models.Order, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	var changed OrderStatusChangedEvent
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ord, err := tx.Orders.GetByIDForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}

		fields := map[string]any{}
		if in.TrackingCode != "" {
			fields["tracking_code"] = in.TrackingCode
		}
		if in.AdminNotes != "" {
			fields["admin_notes"] = in.AdminNotes
		}
		if err := tx.Orders.Update(ctx, ord.ID, fields); err != nil {
			return err
		}

		changed, err = s.transitionTx(ctx, tx, ord, in.Status, in.Notes, &actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	ord, err := s.repo.Orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(changed)
	if in.Status == models.OrderStatusShipped && s.notifier != nil {
		fireAndForget(s.async, s.log, "shipment_notice", func(ctx context.Context) error {
			return s.notifier.SendShipmentNotice(ctx, ord)
		})
	}
	return ord, nil
}

// transitionTx переводит заказ в статус to внутри транзакции tx: compare-and-set по текущему
// статусу, запись в историю и движение резерва. ord.Items должны быть загружены.
func (s *OrderService) transitionTx(ctx context.Context, tx *repository.Repository, ord *models.Order, to models.OrderStatus, notes string, actor *uuid.UUID) (OrderStatusChangedEvent, error) {
	from := ord.Status
	if !isNominalTransition(from, to) {
		s.log.Warn("Нетипичный переход статуса заказа",
			zap.String("order_id", ord.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	}

	ok, err := tx.Orders.UpdateStatus(ctx, ord.ID, from, to)
	if err != nil {
		return OrderStatusChangedEvent{}, err
	}
	if !ok {
		return OrderStatusChangedEvent{}, errStatusChanged
	}

	if err := tx.Orders.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:   ord.ID,
		Status:    to,
		Notes:     notes,
		CreatedBy: actor,
	}); err != nil {
		return OrderStatusChangedEvent{}, err
	}

	if err := s.moveReservation(ctx, tx, ord, to); err != nil {
		return OrderStatusChangedEvent{}, err
	}

	ord.Status = to
	return OrderStatusChangedEvent{
		OrderID:   ord.ID,
		Number:    ord.Number,
		From:      from,
		To:        to,
		Notes:     notes,
		ActorID:   actor,
		ChangedAt: s.now(),
	}, nil
}

// moveReservation списывает или снимает резерв заказа. Переход stock_state делается через
// compare-and-set, поэтому повторный вызов ничего не меняет на складе.
func (s *OrderService) moveReservation(ctx context.Context, tx *repository.Repository, ord *models.Order, to models.OrderStatus) error {
	var next models.StockState
	switch to {
	case models.OrderStatusShipped:
		next = models.StockCommitted
	case models.OrderStatusCancelled, models.OrderStatusRefunded:
		next = models.StockReleased
	default:
		return nil
	}

	ok, err := tx.Orders.SetStockState(ctx, ord.ID, models.StockReserved, next)
	if err != nil {
		return err
	}
	if !ok {
		if to == models.OrderStatusShipped {
			s.log.Warn("Отгрузка заказа без активного резерва, склад не изменён",
				zap.String("order_id", ord.ID.String()),
				zap.String("stock_state", string(ord.StockState)))
		}
		return nil
	}

	ledger := s.stock.WithRepo(tx.Stock)
	lines := orderStockLines(ord.Items)
	if next == models.StockCommitted {
		err = ledger.CommitAll(ctx, lines)
	} else {
		err = ledger.ReleaseAll(ctx, lines)
	}
	if err == nil {
		ord.StockState = next
	}
	return err
}

func (s *OrderService) publishStatusChanged(e OrderStatusChangedEvent) {
	if s.events == nil || e.OrderID == uuid.Nil {
		return
	}
	fireAndForget(s.async, s.log, "order_status_changed_event", func(ctx context.Context) error {
		return s.events.PublishOrderStatusChanged(ctx, e)
	})
}
