package service

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CartView — корзина с вычисленными суммами. Суммы не хранятся в базе.
type CartView struct {
	Cart       *models.Cart
	ItemCount  int32
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
}

type CartService struct {
	repo    *repository.Repository
	stock   *StockLedger
	coupons *CouponEvaluator
	log     *zap.Logger
}

func NewCartService(repo *repository.Repository, stock *StockLedger, coupons *CouponEvaluator, log *zap.Logger) *CartService {
	return &CartService{repo: repo, stock: stock, coupons: coupons, log: log}
}

type cartOwner struct {
	userID     *uuid.UUID
	sessionKey string
}

func ownerFromContext(ctx context.Context) (cartOwner, error) {
	if uid, ok := UserIDFromContext(ctx); ok {
		return cartOwner{userID: &uid, sessionKey: SessionKeyFromContext(ctx)}, nil
	}
	if key := SessionKeyFromContext(ctx); key != "" {
		return cartOwner{sessionKey: key}, nil
	}
	return cartOwner{}, ErrSessionRequired
}

func cartSubtotal(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for i := range items {
		sum = sum.Add(items[i].LineTotal())
	}
	return sum
}

// Totals считает подытог, скидку и итог корзины на текущий момент.
func (s *CartService) Totals(cart *models.Cart) *CartView {
	subtotal := round2(cartSubtotal(cart.Items))
	discount := s.coupons.Discount(cart.Coupon, cart.Items)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	v := &CartView{
		Cart:      cart,
		ItemCount: cart.ItemCount(),
		Subtotal:  subtotal,
		Discount:  discount,
		Total:     total,
	}
	if cart.Coupon != nil {
		v.CouponCode = cart.Coupon.Code
	}
	return v
}

// GetOrCreate возвращает корзину владельца из контекста. При первом создании корзины
// пользователя в неё вливается корзина анонимной сессии.
func (s *CartService) GetOrCreate(ctx context.Context) (*models.Cart, error) {
	owner, err := ownerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if owner.userID == nil {
		return s.sessionCart(ctx, owner.sessionKey)
	}

	cart, err := s.repo.Carts.GetByUser(ctx, *owner.userID)
	if err != nil || cart != nil {
		return cart, err
	}

	created := &models.Cart{UserID: owner.userID}
	if err := s.repo.Carts.Create(ctx, created); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// параллельный запрос успел создать корзину, слияние выполнил он
			return s.repo.Carts.GetByUser(ctx, *owner.userID)
		}
		return nil, err
	}

	if owner.sessionKey != "" {
		if err := s.mergeSessionCart(ctx, created.ID, owner.sessionKey); err != nil {
			s.log.Error("Не удалось слить корзину сессии", zap.String("cart_id", created.ID.String()), zap.Error(err))
			return nil, err
		}
	}
	return s.repo.Carts.GetByID(ctx, created.ID)
}

func (s *CartService) sessionCart(ctx context.Context, key string) (*models.Cart, error) {
	cart, err := s.repo.Carts.GetBySession(ctx, key)
	if err != nil || cart != nil {
		return cart, err
	}
	created := &models.Cart{SessionKey: &key}
	if err := s.repo.Carts.Create(ctx, created); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.Carts.GetBySession(ctx, key)
		}
		return nil, err
	}
	return s.repo.Carts.GetByID(ctx, created.ID)
}

// mergeSessionCart переносит позиции корзины сессии, суммируя количества совпадающих строк,
// и удаляет корзину сессии.
func (s *CartService) mergeSessionCart(ctx context.Context, userCartID uuid.UUID, sessionKey string) error {
	return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		sess, err := tx.Carts.GetBySession(ctx, sessionKey)
		if err != nil || sess == nil {
			return err
		}
		userCart, err := tx.Carts.GetByID(ctx, userCartID)
		if err != nil {
			return err
		}

		for _, it := range sess.Items {
			var target *models.CartItem
			for i := range userCart.Items {
				if userCart.Items[i].SameLine(it.ProductID, it.VariantID) {
					target = &userCart.Items[i]
					break
				}
			}
			if target != nil {
				if err := tx.Carts.SetItemQuantity(ctx, target.ID, target.Quantity+it.Quantity); err != nil {
					return err
				}
				continue
			}
			if err := tx.Carts.MoveItem(ctx, it.ID, userCartID); err != nil {
				return err
			}
		}

		s.log.Info("Корзина сессии слита с корзиной пользователя",
			zap.String("cart_id", userCartID.String()),
			zap.Int("items", len(sess.Items)))
		return tx.Carts.Delete(ctx, sess.ID)
	})
}

func (s *CartService) View(ctx context.Context) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	return s.Totals(cart), nil
}

func (s *CartService) reload(ctx context.Context, id uuid.UUID) (*CartView, error) {
	if err := s.repo.Carts.Touch(ctx, id); err != nil {
		return nil, err
	}
	cart, err := s.repo.Carts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Totals(cart), nil
}

// AddItem фиксирует текущую цену как снимок. Повторное добавление той же строки
// увеличивает количество и оставляет исходную цену.
func (s *CartService) AddItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*CartView, error) {
	if qty < 1 {
		return nil, ErrQuantityInvalid
	}
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}
	price := product.CurrentPrice()
	if variantID != nil {
		variant, err := s.repo.Products.GetVariant(ctx, productID, *variantID)
		if err != nil {
			return nil, err
		}
		if variant == nil || !variant.IsActive {
			return nil, ErrProductNotFound
		}
		price = variant.FinalPrice(product)
	}

	var existing *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].SameLine(productID, variantID) {
			existing = &cart.Items[i]
			break
		}
	}

	want := qty
	if existing != nil {
		want += existing.Quantity
	}
	if err := s.stock.EnsureAvailable(ctx, productID, variantID, want); err != nil {
		return nil, err
	}

	if existing != nil {
		if err := s.repo.Carts.SetItemQuantity(ctx, existing.ID, want); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.Carts.AddItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			VariantID: variantID,
			Quantity:  qty,
			UnitPrice: round2(price),
		}); err != nil {
			return nil, err
		}
	}
	return s.reload(ctx, cart.ID)
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int32) (*CartView, error) {
	if qty < 1 {
		return nil, ErrQuantityInvalid
	}
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Carts.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}
	if err := s.stock.EnsureAvailable(ctx, item.ProductID, item.VariantID, qty); err != nil {
		return nil, err
	}
	if err := s.repo.Carts.SetItemQuantity(ctx, item.ID, qty); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

func (s *CartService) RemoveItem(ctx context.Context, itemID uuid.UUID) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.Carts.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartItemNotFound
	}
	return s.reload(ctx, cart.ID)
}

// Clear удаляет позиции и отвязывает купон.
func (s *CartService) Clear(ctx context.Context) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Carts.Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

// ApplyCoupon проверяет купон против текущего подытога корзины, а не итога заказа.
func (s *CartService) ApplyCoupon(ctx context.Context, code string) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	coupon, err := s.repo.Coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, &CouponError{Reason: CouponNotFound}
	}

	subtotal := cartSubtotal(cart.Items)
	if uid, ok := UserIDFromContext(ctx); ok {
		err = s.coupons.CanUse(ctx, s.repo, coupon, uid, subtotal, cart.Items)
	} else {
		err = s.coupons.Check(coupon, subtotal, cart.Items)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Carts.SetCoupon(ctx, cart.ID, &coupon.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

func (s *CartService) RemoveCoupon(ctx context.Context) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Carts.SetCoupon(ctx, cart.ID, nil); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}
