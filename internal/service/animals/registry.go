// Package animals is the species-agnostic animal registry and its lifecycle operations.
package animals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/sales"
)

// Sort orders for List.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// AnimalInput carries the ordinary fields of an animal.
type AnimalInput struct {
	Name         string
	Breed        string
	Gender       models.Gender
	Origin       models.Origin
	BirthDate    *time.Time
	PurchaseDate *time.Time
	Breeder      bool
	MotherID     string
	FatherID     string
	Weight       decimal.Decimal
	Notes        string
}

// LitterInput registers several newborns sharing parents and birth date.
type LitterInput struct {
	MotherID  string
	FatherID  string
	BirthDate time.Time
	Breed     string
	Kits      []Kit
}

// Kit is one newborn of a litter.
type Kit struct {
	Name   string
	Gender models.Gender
	Weight decimal.Decimal
}

// ListQuery narrows List. Sort is "asc" or "desc" on the birth or purchase date.
type ListQuery struct {
	Gender    models.Gender
	Discarded *bool
	Sort      string
}

// SaleInput is the payload of an animal sale.
type SaleInput struct {
	Price  decimal.Decimal
	Weight decimal.Decimal
	Height decimal.Decimal
	Notes  string
	SoldBy string
	Reason string
}

// Registry manages animals of every species.
type Registry struct {
	uow    *repository.Runner
	sales  *sales.Recorder
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistry wires a registry.
func NewRegistry(uow *repository.Runner, recorder *sales.Recorder, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		uow:    uow,
		sales:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an animal of the given species on the initial lifecycle states.
func (r *Registry) Create(ctx context.Context, species models.Species, in AnimalInput) (models.Animal, error) {
	if err := validateAnimal(species, in); err != nil {
		return models.Animal{}, err
	}

	var created models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := checkParents(ctx, tx, species, in.MotherID, in.FatherID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertAnimal(ctx, r.newAnimal(species, in))
		return err
	})
	if err != nil {
		return models.Animal{}, err
	}

	r.logger.Info("animal created",
		zap.String("animal_id", created.ID),
		zap.String("species", string(species)),
		zap.String("origin", string(created.Origin)))
	return created, nil
}

// RegisterLitter creates one BIRTH animal per kit in a single unit of work.
func (r *Registry) RegisterLitter(ctx context.Context, species models.Species, in LitterInput) ([]models.Animal, error) {
	if len(in.Kits) == 0 {
		return nil, models.Invalid("a litter needs at least one kit")
	}
	if in.MotherID == "" {
		return nil, models.Invalid("a litter needs a mother")
	}
	if in.BirthDate.IsZero() {
		return nil, models.Invalid("birth date is required")
	}

	inputs := make([]AnimalInput, 0, len(in.Kits))
	for i, kit := range in.Kits {
		birth := in.BirthDate
		input := AnimalInput{
			Name:      strings.TrimSpace(kit.Name),
			Breed:     in.Breed,
			Gender:    kit.Gender,
			Origin:    models.OriginBirth,
			BirthDate: &birth,
			MotherID:  in.MotherID,
			FatherID:  in.FatherID,
			Weight:    kit.Weight,
		}
		if input.Name == "" {
			input.Name = litterName(in.BirthDate, i+1)
		}
		if err := validateAnimal(species, input); err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}

	var litter []models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		litter = litter[:0]
		if err := checkParents(ctx, tx, species, in.MotherID, in.FatherID); err != nil {
			return err
		}
		for _, input := range inputs {
			created, err := tx.InsertAnimal(ctx, r.newAnimal(species, input))
			if err != nil {
				return err
			}
			litter = append(litter, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("litter registered",
		zap.String("species", string(species)),
		zap.String("mother_id", in.MotherID),
		zap.Int("kits", len(litter)))
	return litter, nil
}

// Get returns one animal of the given species.
func (r *Registry) Get(ctx context.Context, species models.Species, id string) (models.Animal, error) {
	var animal models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		animal, err = getOfSpecies(ctx, tx, species, id)
		return err
	})
	return animal, err
}

// List returns animals of the given species matching q.
func (r *Registry) List(ctx context.Context, species models.Species, q ListQuery) ([]models.Animal, error) {
	if q.Gender != "" && !q.Gender.Valid() {
		return nil, models.Invalid("unknown gender %q", q.Gender)
	}
	if q.Sort != "" && q.Sort != SortAsc && q.Sort != SortDesc {
		return nil, models.Invalid("sort must be %q or %q", SortAsc, SortDesc)
	}

	var out []models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListAnimals(ctx, repository.AnimalFilter{Species: species, Gender: q.Gender, Discarded: q.Discarded})
		return err
	})
	if err != nil {
		return nil, err
	}

	switch q.Sort {
	case SortAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].BirthOrPurchase().Before(out[j].BirthOrPurchase()) })
	case SortDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].BirthOrPurchase().After(out[j].BirthOrPurchase()) })
	}
	return out, nil
}

// Update replaces the ordinary fields of an animal. Lifecycle state is untouched.
func (r *Registry) Update(ctx context.Context, species models.Species, id string, in AnimalInput) (models.Animal, error) {
	if err := validateAnimal(species, in); err != nil {
		return models.Animal{}, err
	}
	if in.MotherID == id || in.FatherID == id {
		return models.Animal{}, models.Invalid("an animal cannot be its own parent")
	}

	var updated models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		animal, err := getOfSpecies(ctx, tx, species, id)
		if err != nil {
			return err
		}
		if err := checkParents(ctx, tx, species, in.MotherID, in.FatherID); err != nil {
			return err
		}
		applyInput(&animal, in)
		animal.UpdatedAt = r.now()
		updated, err = tx.UpdateAnimal(ctx, animal)
		return err
	})
	return updated, err
}

// Delete removes an animal that has no sale or inventory history.
func (r *Registry) Delete(ctx context.Context, species models.Species, id string) error {
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := getOfSpecies(ctx, tx, species, id); err != nil {
			return err
		}
		sold, err := tx.ListSales(ctx, repository.SaleFilter{AnimalID: id})
		if err != nil {
			return err
		}
		products, err := tx.ListProducts(ctx, repository.ProductFilter{AnimalID: id})
		if err != nil {
			return err
		}
		if len(sold) > 0 || len(products) > 0 {
			return models.NewError(models.KindAnimalHasHistory,
				"animal %s has %d sales and %d inventory products", id, len(sold), len(products))
		}
		return tx.DeleteAnimal(ctx, id)
	})
	if err != nil {
		return err
	}
	r.logger.Info("animal deleted", zap.String("animal_id", id))
	return nil
}

// Discard removes the animal from the active herd for a non-sale reason.
func (r *Registry) Discard(ctx context.Context, species models.Species, id, reason string) (models.Animal, error) {
	reason, err := models.NormalizeReason(reason)
	if err != nil {
		return models.Animal{}, err
	}

	var updated models.Animal
	err = r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		animal, err := getOfSpecies(ctx, tx, species, id)
		if err != nil {
			return err
		}
		now := r.now()
		if err := animal.MarkDiscarded(reason, now); err != nil {
			return err
		}
		animal.UpdatedAt = now
		updated, err = tx.UpdateAnimal(ctx, animal)
		return err
	})
	if err != nil {
		return models.Animal{}, err
	}

	r.logger.Info("animal discarded",
		zap.String("animal_id", id),
		zap.String("slaughter_state", string(updated.Slaughter.State)))
	return updated, nil
}

// Sell records an animal sale and retires the animal. Frozen stock leaves the freezer.
func (r *Registry) Sell(ctx context.Context, species models.Species, id string, in SaleInput) (models.Sale, error) {
	if strings.TrimSpace(in.SoldBy) == "" {
		return models.Sale{}, models.Invalid("sold_by is required")
	}
	if in.Price.IsNegative() || in.Weight.IsNegative() || in.Height.IsNegative() {
		return models.Sale{}, models.Invalid("sale amounts must not be negative")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = models.DefaultSaleReason
	}

	var sale models.Sale
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		animal, err := getOfSpecies(ctx, tx, species, id)
		if err != nil {
			return err
		}
		now := r.now()
		if err := animal.MarkSold(reason, now); err != nil {
			return err
		}

		sale, err = r.sales.RecordTx(ctx, tx, models.Sale{
			Kind:     models.SaleAnimal,
			AnimalID: animal.ID,
			Price:    in.Price,
			Quantity: decimal.NewFromInt(1),
			Weight:   in.Weight,
			Height:   in.Height,
			Notes:    in.Notes,
			SoldBy:   strings.TrimSpace(in.SoldBy),
			Reason:   reason,
			SoldAt:   now,
		})
		if err != nil {
			return err
		}

		animal.UpdatedAt = now
		_, err = tx.UpdateAnimal(ctx, animal)
		return err
	})
	if err != nil {
		return models.Sale{}, err
	}

	r.logger.Info("animal sold",
		zap.String("animal_id", id),
		zap.String("sale_id", sale.ID),
		zap.String("price", sale.Price.String()))
	return sale, nil
}

// Slaughter converts a live animal into frozen stock.
func (r *Registry) Slaughter(ctx context.Context, species models.Species, id string) (models.Animal, error) {
	if !species.CanSlaughter() {
		return models.Animal{}, models.NewError(models.KindSlaughterUnsupported, "species %s cannot be slaughtered", species)
	}

	var updated models.Animal
	err := r.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := getOfSpecies(ctx, tx, species, id); err != nil {
			return err
		}
		var err error
		updated, err = r.SlaughterTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Animal{}, err
	}

	r.logger.Info("animal slaughtered", zap.String("animal_id", id))
	return updated, nil
}

// SlaughterTx is Slaughter inside an existing unit of work, for any species.
func (r *Registry) SlaughterTx(ctx context.Context, tx repository.Tx, id string) (models.Animal, error) {
	animal, err := tx.GetAnimal(ctx, id)
	if err != nil {
		return models.Animal{}, err
	}
	now := r.now()
	if err := animal.MarkSlaughtered(now); err != nil {
		return models.Animal{}, err
	}
	animal.UpdatedAt = now
	return tx.UpdateAnimal(ctx, animal)
}

func (r *Registry) newAnimal(species models.Species, in AnimalInput) models.Animal {
	animal := models.Animal{Species: species}
	applyInput(&animal, in)
	animal.ResetLifecycle()
	animal.Stamp(uuid.NewString(), r.now())
	return animal
}

func applyInput(a *models.Animal, in AnimalInput) {
	a.Name = strings.TrimSpace(in.Name)
	a.Breed = strings.TrimSpace(in.Breed)
	a.Gender = in.Gender
	a.Origin = in.Origin
	a.BirthDate = in.BirthDate
	a.PurchaseDate = in.PurchaseDate
	a.Breeder = in.Breeder
	a.MotherID = in.MotherID
	a.FatherID = in.FatherID
	a.Weight = in.Weight
	a.Notes = in.Notes
}

func getOfSpecies(ctx context.Context, tx repository.Tx, species models.Species, id string) (models.Animal, error) {
	animal, err := tx.GetAnimal(ctx, id)
	if err != nil {
		return models.Animal{}, err
	}
	if animal.Species != species {
		return models.Animal{}, models.NotFound(strings.ToLower(string(species)), id)
	}
	return animal, nil
}

func checkParents(ctx context.Context, tx repository.Tx, species models.Species, motherID, fatherID string) error {
	parents := []struct {
		id     string
		role   string
		gender models.Gender
	}{
		{motherID, "mother", models.GenderFemale},
		{fatherID, "father", models.GenderMale},
	}
	for _, p := range parents {
		if p.id == "" {
			continue
		}
		parent, err := tx.GetAnimal(ctx, p.id)
		if err != nil {
			return err
		}
		if parent.Species != species {
			return models.Invalid("%s %s is a %s, not a %s", p.role, p.id, parent.Species, species)
		}
		if parent.Gender != p.gender {
			return models.Invalid("%s %s must be %s", p.role, p.id, p.gender)
		}
	}
	return nil
}

func validateAnimal(species models.Species, in AnimalInput) error {
	if _, ok := models.LookupSpecies(species); !ok {
		return models.Invalid("unknown species %q", species)
	}
	if strings.TrimSpace(in.Name) == "" {
		return models.Invalid("name is required")
	}
	if !in.Gender.Valid() {
		return models.Invalid("gender must be MALE or FEMALE")
	}
	if !in.Origin.Valid() {
		return models.Invalid("origin must be BIRTH or PURCHASE")
	}
	if in.Origin == models.OriginBirth && in.BirthDate == nil {
		return models.Invalid("birth date is required for born animals")
	}
	if in.Origin == models.OriginPurchase && in.PurchaseDate == nil {
		return models.Invalid("purchase date is required for purchased animals")
	}
	if in.Weight.IsNegative() {
		return models.Invalid("weight must not be negative")
	}
	if in.MotherID != "" && in.MotherID == in.FatherID {
		return models.Invalid("mother and father must differ")
	}
	return nil
}

func litterName(birth time.Time, n int) string {
	return fmt.Sprintf("%s-%d", birth.Format("20060102"), n)
}
