// Package repository defines the unit-of-work contract shared by every storage backend.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

// AnimalFilter narrows animal listings. Zero values match everything.
type AnimalFilter struct {
	Species   models.Species
	Gender    models.Gender
	Discarded *bool
}

// ProductFilter narrows inventory product listings.
type ProductFilter struct {
	Status      models.ProductStatus
	ProductType models.ProductType
	Location    string
	AnimalID    string
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status   models.AlertStatus
	Name     string
	AnimalID string
}

// SaleFilter narrows the sale feed. From is inclusive, To exclusive.
type SaleFilter struct {
	Kind      models.SaleKind
	AnimalID  string
	ProductID string
	From      *time.Time
	To        *time.Time
}

// Tx is the set of reads and writes available inside one unit of work.
// Update methods compare the entity's Version with the stored one and fail with
// ConcurrentModificationConflict on mismatch; the returned entity carries the new version.
type Tx interface {
	GetAnimal(ctx context.Context, id string) (models.Animal, error)
	ListAnimals(ctx context.Context, filter AnimalFilter) ([]models.Animal, error)
	InsertAnimal(ctx context.Context, animal models.Animal) (models.Animal, error)
	UpdateAnimal(ctx context.Context, animal models.Animal) (models.Animal, error)
	DeleteAnimal(ctx context.Context, id string) error

	GetProduct(ctx context.Context, id string) (models.InventoryProduct, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.InventoryProduct, error)
	InsertProduct(ctx context.Context, product models.InventoryProduct) (models.InventoryProduct, error)
	UpdateProduct(ctx context.Context, product models.InventoryProduct) (models.InventoryProduct, error)

	InsertTransaction(ctx context.Context, txn models.InventoryTransaction) (models.InventoryTransaction, error)
	ListTransactions(ctx context.Context, productID string) ([]models.InventoryTransaction, error)

	GetAlert(ctx context.Context, id string) (models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	InsertAlert(ctx context.Context, alert models.Alert) (models.Alert, error)
	UpdateAlert(ctx context.Context, alert models.Alert) (models.Alert, error)

	GetSale(ctx context.Context, id string) (models.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]models.Sale, error)
	InsertSale(ctx context.Context, sale models.Sale) (models.Sale, error)

	GetStockItem(ctx context.Context, id string) (models.StockItem, error)
	ListStockItems(ctx context.Context) ([]models.StockItem, error)
	InsertStockItem(ctx context.Context, item models.StockItem) (models.StockItem, error)
	UpdateStockItem(ctx context.Context, item models.StockItem) (models.StockItem, error)

	// AfterCommit registers fn to run once the unit of work has been committed.
	AfterCommit(fn func())
}

// Store runs units of work. Either every write made through tx is persisted or none is.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close(ctx context.Context) error
}

// DefaultAttempts is the number of tries a Runner makes when no value is configured.
const DefaultAttempts = 3

// Runner executes units of work against a Store and retries optimistic-lock conflicts.
type Runner struct {
	store    Store
	attempts int
	logger   *zap.Logger
}

// NewRunner wires a Runner. attempts below 1 fall back to DefaultAttempts.
func NewRunner(store Store, attempts int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Runner{store: store, attempts: attempts, logger: logger}
}

// Do runs fn in a unit of work. fn may be invoked more than once and must not keep
// state across invocations other than its final result.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.store.RunInTransaction(ctx, fn)
		if err == nil || !errors.Is(err, models.ErrConcurrentModification) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		r.logger.Debug("unit of work conflicted, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}
