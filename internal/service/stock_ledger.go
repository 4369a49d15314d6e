package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockLine — (товар, вариант, количество) для операций над резервом.
type StockLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int32
}

func orderStockLines(items []models.OrderItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, it := range items {
		// товар мог быть удалён из каталога после оформления
		if it.ProductID == nil {
			continue
		}
		lines = append(lines, StockLine{ProductID: *it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return lines
}

// StockLedger ведёт счётчики quantity/reserved по паре (товар, вариант).
// Отсутствие записи означает, что учёт для товара не ведётся: операции становятся no-op.
type StockLedger struct {
	stock  repository.StockRepo
	strict bool
	log    *zap.Logger
}

func NewStockLedger(stock repository.StockRepo, strict bool, log *zap.Logger) *StockLedger {
	return &StockLedger{stock: stock, strict: strict, log: log}
}

// WithRepo возвращает копию, работающую через репозиторий транзакции.
func (l *StockLedger) WithRepo(stock repository.StockRepo) *StockLedger {
	cp := *l
	cp.stock = stock
	return &cp
}

// Available возвращает доступный остаток; tracked=false, если запись не заведена.
func (l *StockLedger) Available(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (avail int32, tracked bool, err error) {
	rec, err := l.stock.Get(ctx, productID, variantID)
	if err != nil {
		return 0, false, err
	}
	if rec == nil {
		return 0, false, nil
	}
	return rec.Available(), true, nil
}

// EnsureAvailable — рекомендательная проверка перед добавлением в корзину, не атомарна с резервом.
func (l *StockLedger) EnsureAvailable(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) error {
	avail, tracked, err := l.Available(ctx, productID, variantID)
	if err != nil {
		return err
	}
	if tracked && avail < qty {
		return &StockError{ProductID: productID, VariantID: variantID, Available: avail, Requested: qty}
	}
	return nil
}

func (l *StockLedger) Reserve(ctx context.Context, line StockLine) error {
	if !l.strict {
		_, err := l.stock.Reserve(ctx, line.ProductID, line.VariantID, line.Quantity)
		return err
	}

	ok, err := l.stock.TryReserve(ctx, line.ProductID, line.VariantID, line.Quantity)
	if err != nil || ok {
		return err
	}
	// ноль строк: либо записи нет (no-op), либо не хватает остатка
	avail, tracked, err := l.Available(ctx, line.ProductID, line.VariantID)
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}
	return &StockError{ProductID: line.ProductID, VariantID: line.VariantID, Available: avail, Requested: line.Quantity}
}

func (l *StockLedger) Release(ctx context.Context, line StockLine) error {
	_, err := l.stock.Release(ctx, line.ProductID, line.VariantID, line.Quantity)
	return err
}

func (l *StockLedger) Commit(ctx context.Context, line StockLine) error {
	_, err := l.stock.Commit(ctx, line.ProductID, line.VariantID, line.Quantity)
	return err
}

func (l *StockLedger) ReserveAll(ctx context.Context, lines []StockLine) error {
	for _, ln := range lines {
		if err := l.Reserve(ctx, ln); err != nil {
			return err
		}
	}
	return nil
}

func (l *StockLedger) ReleaseAll(ctx context.Context, lines []StockLine) error {
	for _, ln := range lines {
		if err := l.Release(ctx, ln); err != nil {
			return err
		}
	}
	return nil
}

func (l *StockLedger) CommitAll(ctx context.Context, lines []StockLine) error {
	for _, ln := range lines {
		if err := l.Commit(ctx, ln); err != nil {
			return err
		}
	}
	return nil
}

// SetQuantity — приход товара на склад (админ).
func (l *StockLedger) SetQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, ErrQuantityInvalid
	}
	rec, err := l.stock.SetQuantity(ctx, productID, variantID, qty)
	if err != nil {
		return nil, err
	}
	if rec.ReservedQuantity > rec.Quantity {
		l.log.Warn("Резерв превышает остаток после изменения количества",
			zap.String("product_id", productID.String()),
			zap.Int32("quantity", rec.Quantity),
			zap.Int32("reserved", rec.ReservedQuantity))
	}
	return rec, nil
}
