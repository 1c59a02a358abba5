package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

const mirrorTimeout = 15 * time.Second

// Mirror receives a copy of every committed sale.
type Mirror interface {
	MirrorSale(ctx context.Context, sale models.Sale) error
}

// Recorder is the append-only sale feed shared by animal and product sales.
type Recorder struct {
	uow    *repository.Runner
	mirror Mirror
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder wires a recorder. mirror may be nil.
func NewRecorder(uow *repository.Runner, mirror Mirror, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		uow:    uow,
		mirror: mirror,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordTx appends sale inside an existing unit of work. The referenced animal or
// product must exist in the same unit of work.
func (r *Recorder) RecordTx(ctx context.Context, tx repository.Tx, sale models.Sale) (models.Sale, error) {
	if err := validate(sale); err != nil {
		return models.Sale{}, err
	}

	switch sale.Kind {
	case models.SaleAnimal:
		if _, err := tx.GetAnimal(ctx, sale.AnimalID); err != nil {
			return models.Sale{}, err
		}
	case models.SaleProduct:
		if _, err := tx.GetProduct(ctx, sale.ProductID); err != nil {
			return models.Sale{}, err
		}
	}

	now := r.now()
	sale.Stamp(uuid.NewString(), now)
	if sale.SoldAt.IsZero() {
		sale.SoldAt = now
	}

	stored, err := tx.InsertSale(ctx, sale)
	if err != nil {
		return models.Sale{}, err
	}

	if r.mirror != nil {
		tx.AfterCommit(func() { r.mirrorSale(stored) })
	}
	return stored, nil
}

func (r *Recorder) mirrorSale(sale models.Sale) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := r.mirror.MirrorSale(ctx, sale); err != nil {
		r.logger.Warn("failed to mirror sale", zap.String("sale_id", sale.ID), zap.Error(err))
		return
	}
	r.logger.Debug("sale mirrored", zap.String("sale_id", sale.ID))
}

// Get returns one sale.
func (r *Recorder) Get(ctx context.Context, id string) (models.Sale, error) {
	var sale models.Sale
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sale, err = tx.GetSale(ctx, id)
		return err
	})
	return sale, err
}

// List returns the chronological sale feed matching filter.
func (r *Recorder) List(ctx context.Context, filter repository.SaleFilter) ([]models.Sale, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, models.Invalid("unknown sale kind %q", filter.Kind)
	}
	var out []models.Sale
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListSales(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return out, nil
}

func validate(sale models.Sale) error {
	switch sale.Kind {
	case models.SaleAnimal:
		if sale.AnimalID == "" {
			return models.Invalid("animal sale requires an animal id")
		}
	case models.SaleProduct:
		if sale.ProductID == "" {
			return models.Invalid("product sale requires a product id")
		}
	default:
		return models.Invalid("unknown sale kind %q", sale.Kind)
	}
	if sale.Price.IsNegative() {
		return models.Invalid("price must not be negative")
	}
	if sale.Quantity.IsNegative() || sale.Weight.IsNegative() || sale.Height.IsNegative() {
		return models.Invalid("sale measurements must not be negative")
	}
	if sale.SoldBy == "" {
		return models.Invalid("sold_by is required")
	}
	return nil
}
