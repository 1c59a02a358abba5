package sheets

import (
	"context"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

const (
	// DefaultSalesRange is the sheet range committed sales are appended to.
	DefaultSalesRange = "Sales!A:K"
	dateTimeFormat    = "2006-01-02 15:04"
)

// SaleMirror copies committed sales into a spreadsheet for the bookkeeper.
type SaleMirror struct {
	rows       Appender
	sheetRange string
}

// NewSaleMirror wires a mirror. An empty range falls back to DefaultSalesRange.
func NewSaleMirror(rows Appender, sheetRange string) *SaleMirror {
	if sheetRange == "" {
		sheetRange = DefaultSalesRange
	}
	return &SaleMirror{rows: rows, sheetRange: sheetRange}
}

// MirrorSale appends one row per sale.
func (m *SaleMirror) MirrorSale(ctx context.Context, sale models.Sale) error {
	return m.rows.AppendRow(ctx, m.sheetRange, SaleRow(sale))
}

// SaleRow lays a sale out in column order: date, id, kind, animal, product,
// quantity, weight, price, sold by, reason, notes.
func SaleRow(sale models.Sale) []interface{} {
	return []interface{}{
		sale.SoldAt.Format(dateTimeFormat),
		sale.ID,
		string(sale.Kind),
		sale.AnimalID,
		sale.ProductID,
		sale.Quantity.String(),
		sale.Weight.String(),
		sale.Price.String(),
		sale.SoldBy,
		sale.Reason,
		sale.Notes,
	}
}
