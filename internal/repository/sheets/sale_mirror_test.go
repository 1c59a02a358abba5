package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

type recordingAppender struct {
	ranges []string
	rows   [][]interface{}
	err    error
}

func (r *recordingAppender) AppendRow(_ context.Context, sheetRange string, values []interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.ranges = append(r.ranges, sheetRange)
	r.rows = append(r.rows, values)
	return nil
}

func TestSaleMirrorAppendsRow(t *testing.T) {
	rows := &recordingAppender{}
	mirror := NewSaleMirror(rows, "")

	sale := models.Sale{
		Kind:     models.SaleAnimal,
		AnimalID: "a-1",
		Price:    decimal.RequireFromString("45.50"),
		Quantity: decimal.NewFromInt(1),
		Weight:   decimal.RequireFromString("2.3"),
		SoldBy:   "maria",
		Reason:   models.DefaultSaleReason,
		SoldAt:   time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}
	sale.ID = "s-1"

	if err := mirror.MirrorSale(context.Background(), sale); err != nil {
		t.Fatalf("mirror sale: %v", err)
	}
	if len(rows.rows) != 1 || rows.ranges[0] != DefaultSalesRange {
		t.Fatalf("expected one row in %s, got %v", DefaultSalesRange, rows.ranges)
	}

	row := rows.rows[0]
	if row[0] != "2026-03-04 10:30" || row[1] != "s-1" || row[2] != "ANIMAL" || row[7] != "45.5" {
		t.Fatalf("unexpected row layout: %v", row)
	}
}

func TestSaleMirrorPropagatesErrors(t *testing.T) {
	rows := &recordingAppender{err: errors.New("quota exceeded")}
	mirror := NewSaleMirror(rows, "Ventas!A:K")

	if err := mirror.MirrorSale(context.Background(), models.Sale{}); err == nil {
		t.Fatal("expected append error")
	}
}
