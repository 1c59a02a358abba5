// Package stock is the legacy simple-count inventory kept next to the ledger.
package stock

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

// ItemInput describes a new counted item.
type ItemInput struct {
	Name     string
	Quantity int64
	Unit     string
	Notes    string
}

// Counter manages StockItems.
type Counter struct {
	uow    *repository.Runner
	logger *zap.Logger
	now    func() time.Time
}

// NewCounter wires a counter.
func NewCounter(uow *repository.Runner, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{uow: uow, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new item.
func (c *Counter) Create(ctx context.Context, in ItemInput) (models.StockItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.StockItem{}, models.Invalid("name is required")
	}
	if in.Quantity < 0 {
		return models.StockItem{}, models.Invalid("quantity must not be negative")
	}

	item := models.StockItem{Name: name, Quantity: in.Quantity, Unit: strings.TrimSpace(in.Unit), Notes: in.Notes}
	item.Stamp(uuid.NewString(), c.now())

	var created models.StockItem
	err := c.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		created, err = tx.InsertStockItem(ctx, item)
		return err
	})
	if err != nil {
		return models.StockItem{}, err
	}
	c.logger.Info("stock item created", zap.String("item_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// Get returns one item.
func (c *Counter) Get(ctx context.Context, id string) (models.StockItem, error) {
	var item models.StockItem
	err := c.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		item, err = tx.GetStockItem(ctx, id)
		return err
	})
	return item, err
}

// List returns every item.
func (c *Counter) List(ctx context.Context) ([]models.StockItem, error) {
	var out []models.StockItem
	err := c.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListStockItems(ctx)
		return err
	})
	return out, err
}

// Add increases the count by amount.
func (c *Counter) Add(ctx context.Context, id string, amount int64) (models.StockItem, error) {
	if amount <= 0 {
		return models.StockItem{}, models.Invalid("amount must be greater than zero")
	}
	return c.apply(ctx, id, func(current int64) (int64, error) {
		if amount > math.MaxInt64-current {
			return 0, models.Invalid("amount overflows quantity")
		}
		return current + amount, nil
	})
}

// Subtract decreases the count by amount and never below zero.
func (c *Counter) Subtract(ctx context.Context, id string, amount int64) (models.StockItem, error) {
	if amount <= 0 {
		return models.StockItem{}, models.Invalid("amount must be greater than zero")
	}
	return c.apply(ctx, id, func(current int64) (int64, error) {
		if amount > current {
			return 0, models.NewError(models.KindInsufficientQuantity, "cannot subtract %d from %d", amount, current)
		}
		return current - amount, nil
	})
}

// SetQuantity overwrites the count.
func (c *Counter) SetQuantity(ctx context.Context, id string, quantity int64) (models.StockItem, error) {
	if quantity < 0 {
		return models.StockItem{}, models.Invalid("quantity must not be negative")
	}
	return c.apply(ctx, id, func(int64) (int64, error) { return quantity, nil })
}

func (c *Counter) apply(ctx context.Context, id string, next func(current int64) (int64, error)) (models.StockItem, error) {
	var updated models.StockItem
	err := c.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetStockItem(ctx, id)
		if err != nil {
			return err
		}
		item.Quantity, err = next(item.Quantity)
		if err != nil {
			return err
		}
		item.UpdatedAt = c.now()
		updated, err = tx.UpdateStockItem(ctx, item)
		return err
	})
	if err != nil {
		return models.StockItem{}, err
	}
	c.logger.Debug("stock item counted", zap.String("item_id", id), zap.Int64("quantity", updated.Quantity))
	return updated, nil
}
