package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleKind distinguishes animal sales from product sales.
type SaleKind string

const (
	SaleAnimal  SaleKind = "ANIMAL"
	SaleProduct SaleKind = "PRODUCT"
)

// Valid reports whether k is known.
func (k SaleKind) Valid() bool { return k == SaleAnimal || k == SaleProduct }

// DefaultSaleReason is the discard reason recorded when an animal sale carries none.
const DefaultSaleReason = "Vendido"

// Sale is an append-only record of an animal or product leaving the farm for money.
type Sale struct {
	Record    `bson:",inline"`
	Kind      SaleKind        `json:"kind" bson:"kind"`
	AnimalID  string          `json:"animal_id,omitempty" bson:"animal_id,omitempty"`
	ProductID string          `json:"product_id,omitempty" bson:"product_id,omitempty"`
	Price     decimal.Decimal `json:"price" bson:"price"`
	Quantity  decimal.Decimal `json:"quantity" bson:"quantity"`
	Weight    decimal.Decimal `json:"weight" bson:"weight"`
	Height    decimal.Decimal `json:"height" bson:"height"`
	Notes     string          `json:"notes,omitempty" bson:"notes,omitempty"`
	SoldBy    string          `json:"sold_by" bson:"sold_by"`
	Reason    string          `json:"reason,omitempty" bson:"reason,omitempty"`
	SoldAt    time.Time       `json:"sold_at" bson:"sold_at"`
}
