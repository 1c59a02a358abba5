package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/repository/memory"
	"github.com/mamadbah2/farmcore/internal/service/animals"
	"github.com/mamadbah2/farmcore/internal/service/ledger"
	"github.com/mamadbah2/farmcore/internal/service/sales"
)

type fixture struct {
	store    *memory.Store
	uow      *repository.Runner
	registry *animals.Registry
	ledger   *ledger.Service
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	uow := repository.NewRunner(store, 3, nil)
	recorder := sales.NewRecorder(uow, nil, nil)
	registry := animals.NewRegistry(uow, recorder, nil)
	products := ledger.NewService(uow, recorder, nil)
	return &fixture{
		store:    store,
		uow:      uow,
		registry: registry,
		ledger:   products,
		engine:   NewEngine(uow, registry, products, nil),
	}
}

func (f *fixture) rabbit(t *testing.T, name string, weight string) models.Animal {
	t.Helper()
	birth := time.Now().UTC().AddDate(0, -3, 0)
	a, err := f.registry.Create(context.Background(), models.SpeciesRabbit, animals.AnimalInput{
		Name:      name,
		Gender:    models.GenderMale,
		Origin:    models.OriginBirth,
		BirthDate: &birth,
		Weight:    decimal.RequireFromString(weight),
	})
	if err != nil {
		t.Fatalf("create rabbit: %v", err)
	}
	return a
}

func (f *fixture) reminder(t *testing.T, ids ...string) models.Alert {
	t.Helper()
	alert, err := f.engine.Create(context.Background(), AlertInput{
		Name:      models.AlertSlaughterReminder,
		Priority:  models.PriorityHigh,
		MaxDate:   time.Now().Add(7 * 24 * time.Hour),
		AnimalIDs: ids,
	})
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	return alert
}

func (f *fixture) productCount(t *testing.T) int {
	t.Helper()
	products, err := f.ledger.ListProducts(context.Background(), repository.ProductFilter{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	return len(products)
}

func TestCompleteGroupSlaughter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2.5")
	a2 := f.rabbit(t, "a2", "0")
	a3 := f.rabbit(t, "a3", "2.1")
	alert := f.reminder(t, a1.ID, a2.ID, a3.ID)

	res, err := f.engine.Complete(ctx, alert.ID, CompletionInput{
		SlaughteredAnimalIDs: []string{a1.ID, a2.ID},
		CarcassWeights:       map[string]decimal.Decimal{a1.ID: decimal.RequireFromString("1.4")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Alert.Status != models.AlertDone || res.Alert.Declined() || res.Alert.CompletedAt == nil {
		t.Fatalf("unexpected alert %+v", res.Alert)
	}
	if len(res.Slaughtered) != 2 || len(res.Products) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result: %d slaughtered, %d products, %d skipped", len(res.Slaughtered), len(res.Products), len(res.Skipped))
	}

	for _, id := range []string{a1.ID, a2.ID} {
		got, _ := f.registry.Get(ctx, models.SpeciesRabbit, id)
		if !got.InFreezer() || got.Discarded() {
			t.Fatalf("%s should be SLAUGHTERED_IN_FREEZER and active, got %+v", got.Name, got.Slaughter)
		}
	}
	untouched, _ := f.registry.Get(ctx, models.SpeciesRabbit, a3.ID)
	if untouched.Slaughtered() {
		t.Fatal("a3 was not selected and must stay unslaughtered")
	}

	if f.productCount(t) != 2 {
		t.Fatalf("expected exactly two products, got %d", f.productCount(t))
	}
	byAnimal := map[string]models.InventoryProduct{}
	for _, p := range res.Products {
		byAnimal[p.AnimalID] = p
	}
	if p := byAnimal[a1.ID]; p.Unit != models.UnitKG || !p.Quantity.Equal(decimal.RequireFromString("1.4")) || p.ProductType != models.ProductMeat {
		t.Fatalf("a1 carcass should be 1.4 KG of MEAT, got %s %s %s", p.Quantity, p.Unit, p.ProductType)
	}
	if p := byAnimal[a2.ID]; p.Unit != models.UnitUnits || !p.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("a2 has no weight and should be one unit, got %s %s", p.Quantity, p.Unit)
	}
}

func TestCompleteReportsSkippedAnimals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	a2 := f.rabbit(t, "a2", "2")
	stranger := f.rabbit(t, "stranger", "2")
	alert := f.reminder(t, a1.ID, a2.ID)

	if _, err := f.registry.Slaughter(ctx, models.SpeciesRabbit, a1.ID); err != nil {
		t.Fatalf("slaughter by hand: %v", err)
	}

	res, err := f.engine.Complete(ctx, alert.ID, CompletionInput{SlaughteredAnimalIDs: []string{a1.ID, a2.ID, stranger.ID}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Alert.Status != models.AlertDone {
		t.Fatalf("partial prior state must not block completion, got %s", res.Alert.Status)
	}
	if len(res.Slaughtered) != 1 || res.Slaughtered[0].ID != a2.ID {
		t.Fatalf("only a2 should be slaughtered, got %+v", res.Slaughtered)
	}

	skipped := map[string]models.ErrorKind{}
	for _, s := range res.Skipped {
		skipped[s.ID] = s.Kind
	}
	if skipped[a1.ID] != models.KindInvalidStatusTransition {
		t.Fatalf("a1 should be skipped as already slaughtered, got %q", skipped[a1.ID])
	}
	if skipped[stranger.ID] != models.KindValidation {
		t.Fatalf("unlinked animal should be skipped, got %q", skipped[stranger.ID])
	}
	if got, _ := f.registry.Get(ctx, models.SpeciesRabbit, stranger.ID); got.Slaughtered() {
		t.Fatal("an animal outside the alert must not be slaughtered")
	}
	if f.productCount(t) != 1 {
		t.Fatalf("expected one product, got %d", f.productCount(t))
	}
}

func TestCompleteSlaughterReminderRequiresSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	alert := f.reminder(t, a1.ID)

	if _, err := f.engine.Complete(ctx, alert.ID, CompletionInput{}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	res, err := f.engine.Complete(ctx, alert.ID, CompletionInput{SlaughteredAnimalIDs: []string{}})
	if err != nil {
		t.Fatalf("empty selection should complete: %v", err)
	}
	if len(res.Slaughtered) != 0 || res.Alert.Status != models.AlertDone {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := f.engine.Complete(ctx, alert.ID, CompletionInput{SlaughteredAnimalIDs: []string{}}); !errors.Is(err, models.ErrAlertNotPending) {
		t.Fatalf("completing a DONE alert: expected AlertNotPending, got %v", err)
	}
}

// crashingStore fails the n-th animal update of every unit of work with a storage error.
type crashingStore struct {
	repository.Store
	failOn int
}

func (s crashingStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &crashingTx{Tx: tx, failOn: s.failOn})
	})
}

type crashingTx struct {
	repository.Tx
	failOn  int
	updates int
}

var errStorageDown = errors.New("storage unavailable")

func (tx *crashingTx) UpdateAnimal(ctx context.Context, a models.Animal) (models.Animal, error) {
	tx.updates++
	if tx.updates == tx.failOn {
		return models.Animal{}, errStorageDown
	}
	return tx.Tx.UpdateAnimal(ctx, a)
}

func TestCompleteIsAtomicUnderCrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	a2 := f.rabbit(t, "a2", "2")
	a3 := f.rabbit(t, "a3", "2")
	alert := f.reminder(t, a1.ID, a2.ID, a3.ID)

	crashing := repository.NewRunner(crashingStore{Store: f.store, failOn: 2}, 3, nil)
	engine := NewEngine(crashing, f.registry, f.ledger, nil)

	_, err := engine.Complete(ctx, alert.ID, CompletionInput{SlaughteredAnimalIDs: []string{a1.ID, a2.ID}})
	if !errors.Is(err, errStorageDown) {
		t.Fatalf("expected the storage failure to abort completion, got %v", err)
	}

	for _, a := range []models.Animal{a1, a2, a3} {
		got, _ := f.registry.Get(ctx, models.SpeciesRabbit, a.ID)
		if got.Slaughtered() || got.Version != a.Version {
			t.Fatalf("%s changed despite the rollback: %+v", a.Name, got.Slaughter)
		}
	}
	if n := f.productCount(t); n != 0 {
		t.Fatalf("no product may survive the rollback, got %d", n)
	}
	stored, _ := f.engine.Get(ctx, alert.ID)
	if stored.Status != models.AlertPending {
		t.Fatalf("alert must stay PENDING, got %s", stored.Status)
	}

	if _, err := f.engine.Complete(ctx, alert.ID, CompletionInput{SlaughteredAnimalIDs: []string{a1.ID, a2.ID}}); err != nil {
		t.Fatalf("retry after the crash: %v", err)
	}
}

func TestDeclineIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	alert, err := f.engine.Create(ctx, AlertInput{Name: models.AlertDeworming, AnimalID: a1.ID, MaxDate: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.engine.Decline(ctx, alert.ID, "too short"); !errors.Is(err, models.ErrReasonTooShort) {
		t.Fatalf("expected ReasonTooShort, got %v", err)
	}
	declined, err := f.engine.Decline(ctx, alert.ID, "dewormed last week by the vet")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != models.AlertDone || !declined.Declined() {
		t.Fatalf("unexpected declined alert %+v", declined)
	}
	if _, err := f.engine.Decline(ctx, alert.ID, "dewormed last week by the vet"); !errors.Is(err, models.ErrAlertNotPending) {
		t.Fatalf("expected AlertNotPending, got %v", err)
	}
	if got, _ := f.registry.Get(ctx, models.SpeciesRabbit, a1.ID); got.Version != a1.Version {
		t.Fatal("decline must not touch animals")
	}
}

func TestAcknowledgeThenExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	due := time.Now().UTC().Add(time.Hour)
	alert, err := f.engine.Create(ctx, AlertInput{Name: models.AlertLitterSeparation, AnimalID: a1.ID, MaxDate: due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := f.engine.Create(ctx, AlertInput{Name: models.AlertDeworming, MaxDate: due.Add(48 * time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	acked, err := f.engine.Acknowledge(ctx, alert.ID)
	if err != nil || acked.Status != models.AlertAcknowledged {
		t.Fatalf("acknowledge: %v %s", err, acked.Status)
	}
	if _, err := f.engine.Acknowledge(ctx, alert.ID); !errors.Is(err, models.ErrAlertNotPending) {
		t.Fatalf("second acknowledge: expected AlertNotPending, got %v", err)
	}
	if _, err := f.engine.Decline(ctx, alert.ID, "not needed this season"); !errors.Is(err, models.ErrAlertNotPending) {
		t.Fatalf("decline of ACKNOWLEDGED: expected AlertNotPending, got %v", err)
	}
	if _, err := f.engine.Expire(ctx, alert.ID); !errors.Is(err, models.ErrInvalidStatusTransition) {
		t.Fatalf("expire before max date: expected InvalidStatusTransition, got %v", err)
	}

	f.engine.now = func() time.Time { return due.Add(time.Minute) }
	expired, err := f.engine.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != alert.ID || expired[0].Status != models.AlertExpired {
		t.Fatalf("expected only the acknowledged alert to expire, got %+v", expired)
	}
	if still, _ := f.engine.Get(ctx, other.ID); still.Status != models.AlertPending {
		t.Fatalf("alert not yet due changed to %s", still.Status)
	}
	if _, err := f.engine.Complete(ctx, alert.ID, CompletionInput{}); !errors.Is(err, models.ErrAlertNotPending) {
		t.Fatalf("EXPIRED is terminal, got %v", err)
	}
}

func TestMembersAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.rabbit(t, "a1", "2")
	a2 := f.rabbit(t, "a2", "2")
	alert := f.reminder(t, a1.ID, a2.ID, a1.ID)

	members, err := f.engine.Members(ctx, alert.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected two distinct members, got %d", len(members))
	}

	pending, err := f.engine.List(ctx, repository.AlertFilter{Status: models.AlertPending, AnimalID: a2.ID})
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected the reminder listed for a2, got %d (%v)", len(pending), err)
	}
	if _, err := f.engine.List(ctx, repository.AlertFilter{Status: "SNOOZED"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	if _, err := f.engine.Create(ctx, AlertInput{Name: models.AlertSlaughterReminder, MaxDate: time.Now().Add(time.Hour), AnimalIDs: []string{"ghost"}}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected NotFound for unknown animal, got %v", err)
	}
}
