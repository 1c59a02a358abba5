// Package ledger owns inventory products and their append-only transaction history.
// Every quantity change writes exactly one transaction whose delta reconciles the
// old and new quantity, so the sum of a product's deltas always equals its quantity.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/sales"
)

// ProductInput describes a product to create.
type ProductInput struct {
	ProductType    models.ProductType
	Name           string
	Quantity       decimal.Decimal
	Unit           models.Unit
	AnimalID       string
	Location       string
	ProductionDate *time.Time
	ExpirationDate *time.Time
	Notes          string
}

// ProductUpdate carries the editable fields of a product. Nil fields are left untouched.
type ProductUpdate struct {
	Name           *string
	Location       *string
	Notes          *string
	ProductionDate *time.Time
	ExpirationDate *time.Time
	Quantity       *decimal.Decimal
}

// SellInput describes a product sale. When SaleID is empty and Price is set, a
// product sale is recorded in the same unit of work.
type SellInput struct {
	ProductID string
	Quantity  decimal.Decimal
	SaleID    string
	Price     *decimal.Decimal
	SoldBy    string
	Notes     string
}

// SellResult is the post-write state of a sale.
type SellResult struct {
	Product     models.InventoryProduct     `json:"product"`
	Transaction models.InventoryTransaction `json:"transaction"`
	Sale        *models.Sale                `json:"sale,omitempty"`
}

// Service is the inventory ledger.
type Service struct {
	uow    *repository.Runner
	sales  *sales.Recorder
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a ledger.
func NewService(uow *repository.Runner, recorder *sales.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		uow:    uow,
		sales:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateProduct validates in and writes an AVAILABLE product with its opening ENTRY.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (models.InventoryProduct, error) {
	if err := validateInput(in); err != nil {
		return models.InventoryProduct{}, err
	}

	var created models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		created, err = s.CreateProductTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return models.InventoryProduct{}, err
	}

	s.logger.Info("inventory product created",
		zap.String("product_id", created.ID),
		zap.String("type", string(created.ProductType)),
		zap.String("quantity", created.Quantity.String()))
	return created, nil
}

// CreateProductTx is CreateProduct inside an existing unit of work.
func (s *Service) CreateProductTx(ctx context.Context, tx repository.Tx, in ProductInput) (models.InventoryProduct, error) {
	if err := validateInput(in); err != nil {
		return models.InventoryProduct{}, err
	}
	if in.AnimalID != "" {
		if _, err := tx.GetAnimal(ctx, in.AnimalID); err != nil {
			return models.InventoryProduct{}, err
		}
	}

	now := s.now()
	product := models.InventoryProduct{
		ProductType:     in.ProductType,
		Name:            strings.TrimSpace(in.Name),
		Quantity:        in.Quantity,
		InitialQuantity: in.Quantity,
		Unit:            in.Unit,
		Status:          models.StatusAvailable,
		AnimalID:        in.AnimalID,
		Location:        strings.TrimSpace(in.Location),
		ProductionDate:  in.ProductionDate,
		ExpirationDate:  in.ExpirationDate,
		Notes:           in.Notes,
	}
	product.Stamp(uuid.NewString(), now)
	if product.ProductionDate == nil {
		product.ProductionDate = &now
	}

	stored, err := tx.InsertProduct(ctx, product)
	if err != nil {
		return models.InventoryProduct{}, err
	}
	if _, err := s.appendTransaction(ctx, tx, stored.ID, models.TransactionEntry, in.Quantity, "initial entry", ""); err != nil {
		return models.InventoryProduct{}, err
	}
	return stored, nil
}

// AdjustQuantity applies a manual SET, ADD or SUBTRACT edit and records the reconciling ADJUSTMENT.
func (s *Service) AdjustQuantity(ctx context.Context, id string, op models.AdjustOp, amount decimal.Decimal, reason string) (models.InventoryProduct, error) {
	if !op.Valid() {
		return models.InventoryProduct{}, models.Invalid("unknown adjustment %q", op)
	}
	if amount.IsNegative() {
		return models.InventoryProduct{}, models.Invalid("amount must not be negative")
	}

	var updated models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		product, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		updated, err = s.adjustTx(ctx, tx, product, op, amount, reason)
		return err
	})
	if err != nil {
		return models.InventoryProduct{}, err
	}

	s.logger.Info("inventory quantity adjusted",
		zap.String("product_id", id),
		zap.String("op", string(op)),
		zap.String("amount", amount.String()),
		zap.String("quantity", updated.Quantity.String()))
	return updated, nil
}

func (s *Service) adjustTx(ctx context.Context, tx repository.Tx, product models.InventoryProduct, op models.AdjustOp, amount decimal.Decimal, reason string) (models.InventoryProduct, error) {
	if !product.Status.Mutable() {
		return models.InventoryProduct{}, models.NewError(models.KindInvalidStatusTransition,
			"product %s is %s and can no longer be adjusted", product.ID, product.Status)
	}

	old := product.Quantity
	var next decimal.Decimal
	switch op {
	case models.AdjustSet:
		next = amount
	case models.AdjustAdd:
		next = old.Add(amount)
	case models.AdjustSubtract:
		if amount.GreaterThan(old) {
			return models.InventoryProduct{}, models.NewError(models.KindInsufficientQuantity,
				"cannot subtract %s from product %s holding %s", amount, product.ID, old)
		}
		next = old.Sub(amount)
	}

	product.Quantity = next
	product.UpdatedAt = s.now()
	updated, err := tx.UpdateProduct(ctx, product)
	if err != nil {
		return models.InventoryProduct{}, err
	}

	if reason == "" {
		reason = "manual " + strings.ToLower(string(op))
	}
	if _, err := s.appendTransaction(ctx, tx, product.ID, models.TransactionAdjustment, next.Sub(old), reason, ""); err != nil {
		return models.InventoryProduct{}, err
	}
	return updated, nil
}

// Sell decrements the product and appends an EXIT linked to the sale. A product
// drained to zero becomes SOLD.
func (s *Service) Sell(ctx context.Context, in SellInput) (SellResult, error) {
	if !in.Quantity.IsPositive() {
		return SellResult{}, models.Invalid("quantity must be greater than zero")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return SellResult{}, models.Invalid("price must not be negative")
	}

	var result SellResult
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = SellResult{}

		product, err := tx.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if in.Quantity.GreaterThan(product.Quantity) {
			return models.NewError(models.KindInsufficientQuantity,
				"cannot sell %s from product %s holding %s", in.Quantity, product.ID, product.Quantity)
		}
		if !product.Status.CanTransitionTo(models.StatusSold) {
			return models.NewError(models.KindInvalidStatusTransition,
				"product %s is %s and cannot be sold", product.ID, product.Status)
		}

		saleID := in.SaleID
		switch {
		case saleID != "":
			if _, err := tx.GetSale(ctx, saleID); err != nil {
				return err
			}
		case in.Price != nil:
			sale, err := s.sales.RecordTx(ctx, tx, models.Sale{
				Kind:      models.SaleProduct,
				ProductID: product.ID,
				Price:     *in.Price,
				Quantity:  in.Quantity,
				SoldBy:    in.SoldBy,
				Notes:     in.Notes,
			})
			if err != nil {
				return err
			}
			saleID = sale.ID
			result.Sale = &sale
		}

		product.Quantity = product.Quantity.Sub(in.Quantity)
		if product.Quantity.IsZero() {
			if err := product.TransitionTo(models.StatusSold); err != nil {
				return err
			}
		}
		product.UpdatedAt = s.now()

		updated, err := tx.UpdateProduct(ctx, product)
		if err != nil {
			return err
		}
		txn, err := s.appendTransaction(ctx, tx, product.ID, models.TransactionExit, in.Quantity.Neg(), "sale", saleID)
		if err != nil {
			return err
		}

		result.Product = updated
		result.Transaction = txn
		return nil
	})
	if err != nil {
		return SellResult{}, err
	}

	s.logger.Info("inventory product sold",
		zap.String("product_id", in.ProductID),
		zap.String("quantity", in.Quantity.String()),
		zap.String("remaining", result.Product.Quantity.String()),
		zap.String("status", string(result.Product.Status)))
	return result, nil
}

// Expire moves an AVAILABLE product past its expiration date to EXPIRED.
func (s *Service) Expire(ctx context.Context, id string) (models.InventoryProduct, error) {
	return s.mutate(ctx, id, func(p *models.InventoryProduct, _ repository.Tx) error {
		if p.Status == models.StatusAvailable && !p.ExpiredAt(s.now()) {
			return models.NewError(models.KindInvalidStatusTransition, "product %s has not reached its expiration date", p.ID)
		}
		return p.TransitionTo(models.StatusExpired)
	})
}

// Reserve holds an AVAILABLE product for a pending sale.
func (s *Service) Reserve(ctx context.Context, id string) (models.InventoryProduct, error) {
	return s.mutate(ctx, id, func(p *models.InventoryProduct, _ repository.Tx) error {
		return p.TransitionTo(models.StatusReserved)
	})
}

// Release returns a RESERVED product to AVAILABLE.
func (s *Service) Release(ctx context.Context, id string) (models.InventoryProduct, error) {
	return s.mutate(ctx, id, func(p *models.InventoryProduct, _ repository.Tx) error {
		if p.Status != models.StatusReserved {
			return models.NewError(models.KindInvalidStatusTransition, "product %s is %s, not RESERVED", p.ID, p.Status)
		}
		return p.TransitionTo(models.StatusAvailable)
	})
}

// Discard writes the product off. Its remaining quantity leaves through an ADJUSTMENT.
func (s *Service) Discard(ctx context.Context, id, reason string) (models.InventoryProduct, error) {
	if reason == "" {
		reason = "discarded"
	}
	var pendingDelta decimal.Decimal
	product, err := s.mutate(ctx, id, func(p *models.InventoryProduct, _ repository.Tx) error {
		if err := p.TransitionTo(models.StatusDiscarded); err != nil {
			return err
		}
		pendingDelta = p.Quantity.Neg()
		p.Quantity = decimal.Zero
		return nil
	}, func(ctx context.Context, tx repository.Tx, p models.InventoryProduct) error {
		if pendingDelta.IsZero() {
			return nil
		}
		_, err := s.appendTransaction(ctx, tx, p.ID, models.TransactionAdjustment, pendingDelta, reason, "")
		return err
	})
	return product, err
}

// UpdateProduct edits descriptive fields. A quantity edit is applied as a SET adjustment.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductUpdate) (models.InventoryProduct, error) {
	if in.Quantity != nil && in.Quantity.IsNegative() {
		return models.InventoryProduct{}, models.Invalid("quantity must not be negative")
	}

	var updated models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		product, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			product.Name = strings.TrimSpace(*in.Name)
		}
		if in.Location != nil {
			product.Location = strings.TrimSpace(*in.Location)
		}
		if in.Notes != nil {
			product.Notes = *in.Notes
		}
		if in.ProductionDate != nil {
			product.ProductionDate = in.ProductionDate
		}
		if in.ExpirationDate != nil {
			product.ExpirationDate = in.ExpirationDate
		}
		if product.ExpirationDate != nil && product.ProductionDate != nil && product.ExpirationDate.Before(*product.ProductionDate) {
			return models.Invalid("expiration date precedes production date")
		}
		product.UpdatedAt = s.now()

		updated, err = tx.UpdateProduct(ctx, product)
		if err != nil {
			return err
		}
		if in.Quantity != nil && !in.Quantity.Equal(updated.Quantity) {
			updated, err = s.adjustTx(ctx, tx, updated, models.AdjustSet, *in.Quantity, "manual edit")
		}
		return err
	})
	return updated, err
}

// ExpireDue expires every AVAILABLE product past its expiration date and returns them.
// Each product is expired in its own unit of work.
func (s *Service) ExpireDue(ctx context.Context) ([]models.InventoryProduct, error) {
	candidates, err := s.ListProducts(ctx, repository.ProductFilter{Status: models.StatusAvailable})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var expired []models.InventoryProduct
	for _, p := range candidates {
		if !p.ExpiredAt(now) {
			continue
		}
		updated, err := s.Expire(ctx, p.ID)
		if err != nil {
			if _, domain := models.KindOf(err); domain {
				s.logger.Debug("skip product expiry", zap.String("product_id", p.ID), zap.Error(err))
				continue
			}
			return expired, err
		}
		expired = append(expired, updated)
	}
	if len(expired) > 0 {
		s.logger.Info("expired inventory products", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id string) (models.InventoryProduct, error) {
	var product models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		return err
	})
	return product, err
}

// ListProducts returns products matching filter.
func (s *Service) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.InventoryProduct, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Invalid("unknown status %q", filter.Status)
	}
	if filter.ProductType != "" && !filter.ProductType.Valid() {
		return nil, models.Invalid("unknown product type %q", filter.ProductType)
	}
	var out []models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListProducts(ctx, filter)
		return err
	})
	return out, err
}

// ListTransactions returns the ledger history of one product, oldest first.
func (s *Service) ListTransactions(ctx context.Context, productID string) ([]models.InventoryTransaction, error) {
	var out []models.InventoryTransaction
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTransactions(ctx, productID)
		return err
	})
	return out, err
}

type afterWrite func(ctx context.Context, tx repository.Tx, p models.InventoryProduct) error

// mutate applies a status change to one product and persists it.
func (s *Service) mutate(ctx context.Context, id string, change func(p *models.InventoryProduct, tx repository.Tx) error, after ...afterWrite) (models.InventoryProduct, error) {
	var updated models.InventoryProduct
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		product, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		from := product.Status
		if err := change(&product, tx); err != nil {
			return err
		}
		product.UpdatedAt = s.now()
		updated, err = tx.UpdateProduct(ctx, product)
		if err != nil {
			return err
		}
		for _, fn := range after {
			if err := fn(ctx, tx, updated); err != nil {
				return err
			}
		}
		s.logger.Debug("inventory product status changed",
			zap.String("product_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)))
		return nil
	})
	return updated, err
}

func (s *Service) appendTransaction(ctx context.Context, tx repository.Tx, productID string, kind models.TransactionType, delta decimal.Decimal, reason, saleID string) (models.InventoryTransaction, error) {
	txn := models.InventoryTransaction{
		ProductID: productID,
		Type:      kind,
		Delta:     delta,
		Reason:    reason,
		SaleID:    saleID,
	}
	txn.Stamp(uuid.NewString(), s.now())
	return tx.InsertTransaction(ctx, txn)
}

func validateInput(in ProductInput) error {
	if !in.ProductType.Valid() {
		return models.Invalid("unknown product type %q", in.ProductType)
	}
	if !in.Unit.Valid() {
		return models.NewError(models.KindInvalidUnit, "unknown unit %q", in.Unit)
	}
	if !in.ProductType.AcceptsUnit(in.Unit) {
		return models.NewError(models.KindInvalidUnit, "%s cannot be measured in %s", in.ProductType, in.Unit)
	}
	if !in.Quantity.IsPositive() {
		return models.Invalid("quantity must be greater than zero")
	}
	if in.ExpirationDate != nil && in.ProductionDate != nil && in.ExpirationDate.Before(*in.ProductionDate) {
		return models.Invalid("expiration date precedes production date")
	}
	return nil
}
