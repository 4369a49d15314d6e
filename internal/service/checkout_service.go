package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/nanorand/nanorand"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const checkoutLockTTL = 30 * time.Second

// StoreSettings — настройки магазина, загружаются из конфигурации и передаются явно.
type StoreSettings struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
}

type CheckoutInput struct {
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
	ShippingMethod    string
	Notes             string
}

type CheckoutService struct {
	repo     *repository.Repository
	carts    *CartService
	stock    *StockLedger
	coupons  *CouponEvaluator
	shipping ShippingRateProvider // nil — стоимость доставки 0
	locker   Locker               // nil — без межзапросной блокировки
	events   EventBus
	notifier Notifier
	settings StoreSettings

	now   func() time.Time
	async func(func())
	log   *zap.Logger
}

func NewCheckoutService(
	repo *repository.Repository,
	carts *CartService,
	stock *StockLedger,
	coupons *CouponEvaluator,
	shipping ShippingRateProvider,
	locker Locker,
	events EventBus,
	notifier Notifier,
	settings StoreSettings,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		repo:     repo,
		carts:    carts,
		stock:    stock,
		coupons:  coupons,
		shipping: shipping,
		locker:   locker,
		events:   events,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
		async:    goAsync,
		log:      log,
	}
}

func generateOrderNumber(now time.Time) (string, error) {
	rnd, err := nanorand.Gen(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%s", now.Year(), strings.ToUpper(rnd)), nil
}

func cartWeight(items []models.CartItem) decimal.Decimal {
	w := decimal.Zero
	for i := range items {
		if items[i].Product != nil {
			w = w.Add(items[i].Product.WeightKg.Mul(decimal.NewFromInt32(items[i].Quantity)))
		}
	}
	return w
}

// Checkout превращает корзину пользователя в заказ одной транзакцией.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	userID, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key, val := "checkout:"+userID.String(), uuid.NewString()
		ok, err := s.locker.AcquireLock(ctx, key, val, checkoutLockTTL)
		switch {
		case err != nil:
			s.log.Warn("Блокировка оформления недоступна, продолжаем без неё", zap.Error(err))
		case !ok:
			return nil, ErrCheckoutInProgress
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), key, val); err != nil {
					s.log.Warn("Не удалось снять блокировку оформления", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	var order *models.Order
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		cart, err := tx.Carts.GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrCartEmpty
		}

		shipAddr, err := tx.Addresses.GetForUser(ctx, in.ShippingAddressID, userID)
		if err != nil {
			return err
		}
		if shipAddr == nil {
			return ErrAddressNotFound
		}
		billAddr := shipAddr
		if in.BillingAddressID != nil {
			billAddr, err = tx.Addresses.GetForUser(ctx, *in.BillingAddressID, userID)
			if err != nil {
				return err
			}
			if billAddr == nil {
				return ErrAddressNotFound
			}
		}

		if cart.Coupon != nil {
			if err := s.coupons.CanUse(ctx, tx, cart.Coupon, userID, cartSubtotal(cart.Items), cart.Items); err != nil {
				return err
			}
		}
		totals := s.carts.Totals(cart)

		shippingCost, err := s.shippingCost(ctx, shipAddr.ZipCode, cartWeight(cart.Items), in.ShippingMethod, totals.Total)
		if err != nil {
			return err
		}

		number, err := generateOrderNumber(s.now())
		if err != nil {
			return err
		}

		order = &models.Order{
			Number:          number,
			UserID:          &userID,
			ContactEmail:    EmailFromContext(ctx),
			Status:          models.OrderStatusPending,
			StockState:      models.StockReserved,
			ShippingAddress: shipAddr.Snapshot(true),
			BillingAddress:  billAddr.Snapshot(false),
			Subtotal:        totals.Subtotal,
			Discount:        totals.Discount,
			ShippingCost:    shippingCost,
			Total:           totals.Subtotal.Sub(totals.Discount).Add(shippingCost),
			ShippingMethod:  strings.ToUpper(in.ShippingMethod),
			CustomerNotes:   in.Notes,
			Items:           snapshotItems(cart.Items),
			History: []models.OrderStatusHistory{{
				Status:    models.OrderStatusPending,
				Notes:     "Order created",
				CreatedBy: &userID,
			}},
		}
		if cart.Coupon != nil {
			order.CouponID = &cart.Coupon.ID
			order.CouponCode = cart.Coupon.Code
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}

		lines := make([]StockLine, 0, len(cart.Items))
		for _, it := range cart.Items {
			lines = append(lines, StockLine{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
		}
		if err := s.stock.WithRepo(tx.Stock).ReserveAll(ctx, lines); err != nil {
			return err
		}
		for _, it := range cart.Items {
			if err := tx.Products.IncrementOrderCount(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if cart.Coupon != nil {
			if err := tx.Coupons.RecordUsage(ctx, &models.CouponUsage{
				CouponID: cart.Coupon.ID,
				UserID:   userID,
				OrderID:  &order.ID,
			}); err != nil {
				return err
			}
			ok, err := tx.Coupons.IncrementTimesUsed(ctx, cart.Coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				// лимит исчерпан параллельным заказом между проверкой и списанием
				return &CouponError{Reason: CouponUsageLimitReached}
			}
		}

		if err := tx.Carts.Clear(ctx, cart.ID); err != nil {
			return err
		}

		order, err = tx.Orders.GetByID(ctx, order.ID)
		return err
	})
	if err != nil {
		s.log.Info("Оформление заказа отклонено", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	s.log.Info("Заказ оформлен",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.String("total", order.Total.StringFixed(2)))

	created := order
	if s.events != nil {
		fireAndForget(s.async, s.log, "order_created_event", func(ctx context.Context) error {
			return s.events.PublishOrderCreated(ctx, orderCreatedEvent(created, s.settings.Currency))
		})
	}
	if s.notifier != nil {
		fireAndForget(s.async, s.log, "order_confirmation", func(ctx context.Context) error {
			return s.notifier.SendOrderConfirmation(ctx, created)
		})
	}
	return order, nil
}

func snapshotItems(items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		pid := it.ProductID
		oi := models.OrderItem{
			ProductID: &pid,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
		if it.Product != nil {
			oi.ProductName = it.Product.Name
			oi.ProductSKU = it.Product.SKU
		}
		if it.Variant != nil {
			oi.VariantName = it.Variant.Name
			if it.Variant.SKU != "" {
				oi.ProductSKU = it.Variant.SKU
			}
		}
		out = append(out, oi)
	}
	return out
}

// shippingCost котирует выбранный способ доставки. Без провайдера доставка бесплатна.
func (s *CheckoutService) shippingCost(ctx context.Context, zip string, weight decimal.Decimal, method string, orderValue decimal.Decimal) (decimal.Decimal, error) {
	if s.shipping == nil {
		return decimal.Zero, nil
	}
	quotes, err := s.shipping.Calculate(ctx, zip, weight)
	if err != nil {
		s.log.Warn("Ошибка расчёта доставки", zap.String("zip", zip), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %v", ErrShippingCalculationFailed, err)
	}
	var quote *ShippingQuote
	for i := range quotes {
		if strings.EqualFold(quotes[i].Code, method) {
			quote = &quotes[i]
			break
		}
	}
	if quote == nil {
		return decimal.Zero, fmt.Errorf("%w: unknown method %q", ErrShippingCalculationFailed, method)
	}
	if t := s.settings.FreeShippingThreshold; t.IsPositive() && orderValue.GreaterThanOrEqual(t) {
		return decimal.Zero, nil
	}
	return round2(quote.Price), nil
}
