package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

func TestDecimalRoundTripsAsDecimal128(t *testing.T) {
	reg := newRegistry()
	in := models.InventoryProduct{
		ProductType: models.ProductHoney,
		Quantity:    decimal.RequireFromString("12.375"),
		Unit:        models.UnitKG,
		Status:      models.StatusAvailable,
	}
	in.ID = "p1"

	raw, err := bson.MarshalWithRegistry(reg, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if typ := bson.Raw(raw).Lookup("quantity").Type; typ != bsontype.Decimal128 {
		t.Fatalf("expected quantity stored as decimal128, got %s", typ)
	}

	var out models.InventoryProduct
	if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != "p1" || !out.Quantity.Equal(in.Quantity) {
		t.Fatalf("unexpected round trip: id=%s quantity=%s", out.ID, out.Quantity)
	}
}

func TestDecimalDecodesLegacyNumbers(t *testing.T) {
	reg := newRegistry()
	tests := []struct {
		name string
		doc  bson.M
		want string
	}{
		{name: "double", doc: bson.M{"_id": "p1", "quantity": 2.5}, want: "2.5"},
		{name: "int32", doc: bson.M{"_id": "p1", "quantity": int32(4)}, want: "4"},
		{name: "int64", doc: bson.M{"_id": "p1", "quantity": int64(7)}, want: "7"},
		{name: "string", doc: bson.M{"_id": "p1", "quantity": "0.125"}, want: "0.125"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var out models.InventoryProduct
			if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !out.Quantity.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("expected %s, got %s", tt.want, out.Quantity)
			}
		})
	}
}
