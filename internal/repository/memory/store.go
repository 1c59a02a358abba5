// Package memory provides an in-process Store. Units of work are serialized by a
// single mutex and buffer their writes in an overlay that is folded into the
// committed state only when the work function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

type entity[T any] interface {
	*T
	Meta() *models.Record
}

type table[T any, P entity[T]] struct {
	label string
	rows  map[string]T
	order []string
	clone func(T) T
}

func newTable[T any, P entity[T]](label string, clone func(T) T) *table[T, P] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T, P]{label: label, rows: make(map[string]T), clone: clone}
}

// overlay buffers the writes of one unit of work on top of a committed table.
type overlay[T any, P entity[T]] struct {
	base    *table[T, P]
	writes  map[string]T
	added   []string
	deleted map[string]struct{}
}

func newOverlay[T any, P entity[T]](base *table[T, P]) *overlay[T, P] {
	return &overlay[T, P]{base: base, writes: make(map[string]T), deleted: make(map[string]struct{})}
}

func (o *overlay[T, P]) get(id string) (T, bool) {
	var zero T
	if _, gone := o.deleted[id]; gone {
		return zero, false
	}
	if v, ok := o.writes[id]; ok {
		return o.base.clone(v), true
	}
	v, ok := o.base.rows[id]
	if !ok {
		return zero, false
	}
	return o.base.clone(v), true
}

func (o *overlay[T, P]) find(id string) (T, error) {
	v, ok := o.get(id)
	if !ok {
		return v, models.NotFound(o.base.label, id)
	}
	return v, nil
}

// all returns rows in insertion order, committed rows first.
func (o *overlay[T, P]) all(keep func(T) bool) []T {
	out := make([]T, 0, len(o.base.order)+len(o.added))
	visit := func(id string) {
		v, ok := o.get(id)
		if ok && (keep == nil || keep(v)) {
			out = append(out, v)
		}
	}
	for _, id := range o.base.order {
		visit(id)
	}
	for _, id := range o.added {
		visit(id)
	}
	return out
}

func (o *overlay[T, P]) insert(v T) (T, error) {
	meta := P(&v).Meta()
	if meta.ID == "" {
		return v, fmt.Errorf("insert %s: empty id", o.base.label)
	}
	if _, exists := o.get(meta.ID); exists {
		return v, fmt.Errorf("insert %s: id %q already exists", o.base.label, meta.ID)
	}
	meta.Version = 1
	if _, committed := o.base.rows[meta.ID]; !committed {
		o.added = append(o.added, meta.ID)
	}
	delete(o.deleted, meta.ID)
	o.writes[meta.ID] = o.base.clone(v)
	return v, nil
}

func (o *overlay[T, P]) update(v T) (T, error) {
	meta := P(&v).Meta()
	current, ok := o.get(meta.ID)
	if !ok {
		return v, models.NotFound(o.base.label, meta.ID)
	}
	if stored := P(&current).Meta().Version; stored != meta.Version {
		return v, models.NewError(models.KindConcurrentModification,
			"%s %s changed concurrently (have version %d, stored %d)", o.base.label, meta.ID, meta.Version, stored)
	}
	meta.Version++
	o.writes[meta.ID] = o.base.clone(v)
	return v, nil
}

func (o *overlay[T, P]) remove(id string) error {
	if _, ok := o.get(id); !ok {
		return models.NotFound(o.base.label, id)
	}
	delete(o.writes, id)
	o.deleted[id] = struct{}{}
	return nil
}

func (o *overlay[T, P]) commit() {
	t := o.base
	for id := range o.deleted {
		delete(t.rows, id)
	}
	for id, v := range o.writes {
		t.rows[id] = v
	}
	t.order = append(t.order, o.added...)
	if len(o.deleted) > 0 {
		kept := t.order[:0]
		for _, id := range t.order {
			if _, ok := t.rows[id]; ok {
				kept = append(kept, id)
			}
		}
		t.order = kept
	}
}

// Store is the in-memory repository.Store implementation.
type Store struct {
	mu           sync.Mutex
	animals      *table[models.Animal, *models.Animal]
	products     *table[models.InventoryProduct, *models.InventoryProduct]
	transactions *table[models.InventoryTransaction, *models.InventoryTransaction]
	alerts       *table[models.Alert, *models.Alert]
	sales        *table[models.Sale, *models.Sale]
	stock        *table[models.StockItem, *models.StockItem]
}

var _ repository.Store = (*Store)(nil)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		animals:      newTable[models.Animal]("animal", nil),
		products:     newTable[models.InventoryProduct]("inventory product", nil),
		transactions: newTable[models.InventoryTransaction]("inventory transaction", nil),
		alerts:       newTable[models.Alert]("alert", models.Alert.Clone),
		sales:        newTable[models.Sale]("sale", nil),
		stock:        newTable[models.StockItem]("stock item", nil),
	}
}

// RunInTransaction runs fn against a private overlay and commits it when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.run(ctx, fn)
	if err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// run executes fn under the store lock and commits on success. The lock is
// released even when fn panics.
func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (*memTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin()
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}
	tx.commit()
	return tx, nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) begin() *memTx {
	return &memTx{
		animals:      newOverlay(s.animals),
		products:     newOverlay(s.products),
		transactions: newOverlay(s.transactions),
		alerts:       newOverlay(s.alerts),
		sales:        newOverlay(s.sales),
		stock:        newOverlay(s.stock),
	}
}

type memTx struct {
	animals      *overlay[models.Animal, *models.Animal]
	products     *overlay[models.InventoryProduct, *models.InventoryProduct]
	transactions *overlay[models.InventoryTransaction, *models.InventoryTransaction]
	alerts       *overlay[models.Alert, *models.Alert]
	sales        *overlay[models.Sale, *models.Sale]
	stock        *overlay[models.StockItem, *models.StockItem]
	hooks        []func()
}

func (tx *memTx) commit() {
	tx.animals.commit()
	tx.products.commit()
	tx.transactions.commit()
	tx.alerts.commit()
	tx.sales.commit()
	tx.stock.commit()
}

func (tx *memTx) AfterCommit(fn func()) { tx.hooks = append(tx.hooks, fn) }

func (tx *memTx) GetAnimal(_ context.Context, id string) (models.Animal, error) {
	return tx.animals.find(id)
}

func (tx *memTx) ListAnimals(_ context.Context, f repository.AnimalFilter) ([]models.Animal, error) {
	return tx.animals.all(func(a models.Animal) bool {
		if f.Species != "" && a.Species != f.Species {
			return false
		}
		if f.Gender != "" && a.Gender != f.Gender {
			return false
		}
		if f.Discarded != nil && a.Discarded() != *f.Discarded {
			return false
		}
		return true
	}), nil
}

func (tx *memTx) InsertAnimal(_ context.Context, a models.Animal) (models.Animal, error) {
	return tx.animals.insert(a)
}

func (tx *memTx) UpdateAnimal(_ context.Context, a models.Animal) (models.Animal, error) {
	return tx.animals.update(a)
}

func (tx *memTx) DeleteAnimal(_ context.Context, id string) error {
	return tx.animals.remove(id)
}

func (tx *memTx) GetProduct(_ context.Context, id string) (models.InventoryProduct, error) {
	return tx.products.find(id)
}

func (tx *memTx) ListProducts(_ context.Context, f repository.ProductFilter) ([]models.InventoryProduct, error) {
	return tx.products.all(func(p models.InventoryProduct) bool {
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		if f.ProductType != "" && p.ProductType != f.ProductType {
			return false
		}
		if f.Location != "" && p.Location != f.Location {
			return false
		}
		if f.AnimalID != "" && p.AnimalID != f.AnimalID {
			return false
		}
		return true
	}), nil
}

func (tx *memTx) InsertProduct(_ context.Context, p models.InventoryProduct) (models.InventoryProduct, error) {
	return tx.products.insert(p)
}

func (tx *memTx) UpdateProduct(_ context.Context, p models.InventoryProduct) (models.InventoryProduct, error) {
	return tx.products.update(p)
}

func (tx *memTx) InsertTransaction(_ context.Context, t models.InventoryTransaction) (models.InventoryTransaction, error) {
	return tx.transactions.insert(t)
}

func (tx *memTx) ListTransactions(_ context.Context, productID string) ([]models.InventoryTransaction, error) {
	return tx.transactions.all(func(t models.InventoryTransaction) bool {
		return t.ProductID == productID
	}), nil
}

func (tx *memTx) GetAlert(_ context.Context, id string) (models.Alert, error) {
	return tx.alerts.find(id)
}

func (tx *memTx) ListAlerts(_ context.Context, f repository.AlertFilter) ([]models.Alert, error) {
	return tx.alerts.all(func(a models.Alert) bool {
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if f.Name != "" && a.Name != f.Name {
			return false
		}
		if f.AnimalID != "" && !a.HasMember(f.AnimalID) {
			return false
		}
		return true
	}), nil
}

func (tx *memTx) InsertAlert(_ context.Context, a models.Alert) (models.Alert, error) {
	return tx.alerts.insert(a)
}

func (tx *memTx) UpdateAlert(_ context.Context, a models.Alert) (models.Alert, error) {
	return tx.alerts.update(a)
}

func (tx *memTx) GetSale(_ context.Context, id string) (models.Sale, error) {
	return tx.sales.find(id)
}

func (tx *memTx) ListSales(_ context.Context, f repository.SaleFilter) ([]models.Sale, error) {
	out := tx.sales.all(func(s models.Sale) bool {
		if f.Kind != "" && s.Kind != f.Kind {
			return false
		}
		if f.AnimalID != "" && s.AnimalID != f.AnimalID {
			return false
		}
		if f.ProductID != "" && s.ProductID != f.ProductID {
			return false
		}
		if f.From != nil && s.SoldAt.Before(*f.From) {
			return false
		}
		if f.To != nil && !s.SoldAt.Before(*f.To) {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].SoldAt.Before(out[j].SoldAt) })
	return out, nil
}

func (tx *memTx) InsertSale(_ context.Context, s models.Sale) (models.Sale, error) {
	return tx.sales.insert(s)
}

func (tx *memTx) GetStockItem(_ context.Context, id string) (models.StockItem, error) {
	return tx.stock.find(id)
}

func (tx *memTx) ListStockItems(context.Context) ([]models.StockItem, error) {
	return tx.stock.all(nil), nil
}

func (tx *memTx) InsertStockItem(_ context.Context, item models.StockItem) (models.StockItem, error) {
	return tx.stock.insert(item)
}

func (tx *memTx) UpdateStockItem(_ context.Context, item models.StockItem) (models.StockItem, error) {
	return tx.stock.update(item)
}
