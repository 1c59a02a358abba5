package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType classifies physical goods tracked by the ledger.
type ProductType string

const (
	ProductMeat  ProductType = "MEAT"
	ProductEgg   ProductType = "EGG"
	ProductDairy ProductType = "DAIRY"
	ProductWool  ProductType = "WOOL"
	ProductHoney ProductType = "HONEY"
	ProductWax   ProductType = "WAX"
	ProductOther ProductType = "OTHER"
)

// Unit is the measurement unit of a product quantity.
type Unit string

const (
	UnitKG     Unit = "KG"
	UnitGrams  Unit = "GRAMS"
	UnitLiters Unit = "LITERS"
	UnitUnits  Unit = "UNITS"
	UnitDozens Unit = "DOZENS"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitKG, UnitGrams, UnitLiters, UnitUnits, UnitDozens:
		return true
	}
	return false
}

// unit families per product type; OTHER accepts any valid unit.
var unitFamilies = map[ProductType][]Unit{
	ProductMeat:  {UnitKG, UnitGrams, UnitUnits},
	ProductEgg:   {UnitUnits, UnitDozens},
	ProductDairy: {UnitLiters, UnitKG},
	ProductWool:  {UnitKG, UnitGrams},
	ProductHoney: {UnitKG, UnitGrams, UnitLiters},
	ProductWax:   {UnitKG, UnitGrams},
	ProductOther: nil,
}

// Valid reports whether t is a known product type.
func (t ProductType) Valid() bool {
	_, ok := unitFamilies[t]
	return ok
}

// AcceptsUnit reports whether u belongs to the unit family of t.
func (t ProductType) AcceptsUnit(u Unit) bool {
	family, ok := unitFamilies[t]
	if !ok || !u.Valid() {
		return false
	}
	if family == nil {
		return true
	}
	for _, allowed := range family {
		if allowed == u {
			return true
		}
	}
	return false
}

// ProductStatus is the ledger status of an inventory product.
type ProductStatus string

const (
	StatusAvailable ProductStatus = "AVAILABLE"
	StatusReserved  ProductStatus = "RESERVED"
	StatusSold      ProductStatus = "SOLD"
	StatusExpired   ProductStatus = "EXPIRED"
	StatusDiscarded ProductStatus = "DISCARDED"
)

var productTransitions = map[ProductStatus][]ProductStatus{
	StatusAvailable: {StatusReserved, StatusSold, StatusExpired, StatusDiscarded},
	StatusReserved:  {StatusSold, StatusAvailable},
}

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold, StatusExpired, StatusDiscarded:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	for _, candidate := range productTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Mutable reports whether quantities may still move for a product in status s.
func (s ProductStatus) Mutable() bool {
	return s == StatusAvailable || s == StatusReserved
}

// InventoryProduct is a quantity of physical goods tracked by the ledger.
type InventoryProduct struct {
	Record          `bson:",inline"`
	ProductType     ProductType     `json:"product_type" bson:"product_type"`
	Name            string          `json:"name,omitempty" bson:"name,omitempty"`
	Quantity        decimal.Decimal `json:"quantity" bson:"quantity"`
	InitialQuantity decimal.Decimal `json:"initial_quantity" bson:"initial_quantity"`
	Unit            Unit            `json:"unit" bson:"unit"`
	Status          ProductStatus   `json:"status" bson:"status"`
	AnimalID        string          `json:"animal_id,omitempty" bson:"animal_id,omitempty"`
	Location        string          `json:"location,omitempty" bson:"location,omitempty"`
	ProductionDate  *time.Time      `json:"production_date,omitempty" bson:"production_date,omitempty"`
	ExpirationDate  *time.Time      `json:"expiration_date,omitempty" bson:"expiration_date,omitempty"`
	Notes           string          `json:"notes,omitempty" bson:"notes,omitempty"`
}

// TransitionTo moves the product to next when the status graph allows it.
func (p *InventoryProduct) TransitionTo(next ProductStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return NewError(KindInvalidStatusTransition, "product %s cannot move from %s to %s", p.ID, p.Status, next)
	}
	p.Status = next
	return nil
}

// ExpiredAt reports whether the product is past its expiration date at now.
func (p InventoryProduct) ExpiredAt(now time.Time) bool {
	return p.ExpirationDate != nil && now.After(*p.ExpirationDate)
}

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionEntry      TransactionType = "ENTRY"
	TransactionExit       TransactionType = "EXIT"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// InventoryTransaction is an immutable ledger movement against one product.
type InventoryTransaction struct {
	Record    `bson:",inline"`
	ProductID string          `json:"product_id" bson:"product_id"`
	Type      TransactionType `json:"type" bson:"type"`
	Delta     decimal.Decimal `json:"quantity" bson:"delta"`
	Reason    string          `json:"reason,omitempty" bson:"reason,omitempty"`
	SaleID    string          `json:"sale_id,omitempty" bson:"sale_id,omitempty"`
}

// AdjustOp selects how a manual quantity edit applies its amount.
type AdjustOp string

const (
	AdjustSet      AdjustOp = "SET"
	AdjustAdd      AdjustOp = "ADD"
	AdjustSubtract AdjustOp = "SUBTRACT"
)

// Valid reports whether op is known.
func (op AdjustOp) Valid() bool {
	return op == AdjustSet || op == AdjustAdd || op == AdjustSubtract
}
