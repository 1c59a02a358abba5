package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Species enumerates the animal kinds the registry tracks.
type Species string

const (
	SpeciesRabbit Species = "RABBIT"
	SpeciesCow    Species = "COW"
	SpeciesSheep  Species = "SHEEP"
)

// SpeciesInfo describes the capabilities and URL collection of a species.
type SpeciesInfo struct {
	Species      Species
	Path         string
	CanSlaughter bool
}

var speciesTable = []SpeciesInfo{
	{Species: SpeciesRabbit, Path: "rabbits", CanSlaughter: true},
	{Species: SpeciesCow, Path: "cows"},
	{Species: SpeciesSheep, Path: "sheep"},
}

// AllSpecies lists every registered species.
func AllSpecies() []SpeciesInfo {
	return append([]SpeciesInfo(nil), speciesTable...)
}

// LookupSpecies returns the descriptor for s.
func LookupSpecies(s Species) (SpeciesInfo, bool) {
	for _, info := range speciesTable {
		if info.Species == s {
			return info, true
		}
	}
	return SpeciesInfo{}, false
}

// CanSlaughter reports whether the species supports the slaughter capability.
func (s Species) CanSlaughter() bool {
	info, ok := LookupSpecies(s)
	return ok && info.CanSlaughter
}

// Gender of an animal.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }

// Origin records how an animal entered the herd.
type Origin string

const (
	OriginBirth    Origin = "BIRTH"
	OriginPurchase Origin = "PURCHASE"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool { return o == OriginBirth || o == OriginPurchase }

// DiscardState is the discard axis of the lifecycle.
type DiscardState string

const (
	DiscardActive    DiscardState = "ACTIVE"
	DiscardDiscarded DiscardState = "DISCARDED"
)

// SlaughterState is the slaughter axis of the lifecycle.
type SlaughterState string

const (
	NotSlaughtered       SlaughterState = "NOT_SLAUGHTERED"
	SlaughteredInFreezer SlaughterState = "SLAUGHTERED_IN_FREEZER"
	SoldFromFreezer      SlaughterState = "SOLD_FROM_FREEZER"
	DisposedFromFreezer  SlaughterState = "DISPOSED_FROM_FREEZER"
)

// DiscardAxis holds the discard state and the data only meaningful once discarded.
type DiscardAxis struct {
	State  DiscardState `json:"state" bson:"state"`
	Reason string       `json:"reason,omitempty" bson:"reason,omitempty"`
	At     *time.Time   `json:"at,omitempty" bson:"at,omitempty"`
}

// SlaughterAxis holds the slaughter state and its date once slaughtered.
type SlaughterAxis struct {
	State SlaughterState `json:"state" bson:"state"`
	Date  *time.Time     `json:"date,omitempty" bson:"date,omitempty"`
}

// Animal is a species-agnostic herd member.
type Animal struct {
	Record       `bson:",inline"`
	Species      Species         `json:"species" bson:"species"`
	Name         string          `json:"name" bson:"name"`
	Breed        string          `json:"breed,omitempty" bson:"breed,omitempty"`
	Gender       Gender          `json:"gender" bson:"gender"`
	Origin       Origin          `json:"origin" bson:"origin"`
	BirthDate    *time.Time      `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	PurchaseDate *time.Time      `json:"purchase_date,omitempty" bson:"purchase_date,omitempty"`
	Breeder      bool            `json:"breeder" bson:"breeder"`
	MotherID     string          `json:"mother_id,omitempty" bson:"mother_id,omitempty"`
	FatherID     string          `json:"father_id,omitempty" bson:"father_id,omitempty"`
	Weight       decimal.Decimal `json:"weight" bson:"weight"`
	Notes        string          `json:"notes,omitempty" bson:"notes,omitempty"`
	Discard      DiscardAxis     `json:"discard" bson:"discard"`
	Slaughter    SlaughterAxis   `json:"slaughter" bson:"slaughter"`
}

// ResetLifecycle puts a freshly created animal on both initial axis states.
func (a *Animal) ResetLifecycle() {
	a.Discard = DiscardAxis{State: DiscardActive}
	a.Slaughter = SlaughterAxis{State: NotSlaughtered}
}

// Discarded reports whether the animal left the herd on the discard axis.
func (a Animal) Discarded() bool { return a.Discard.State == DiscardDiscarded }

// Slaughtered reports whether the animal has ever been slaughtered.
func (a Animal) Slaughtered() bool {
	return a.Slaughter.State != "" && a.Slaughter.State != NotSlaughtered
}

// InFreezer reports whether the animal is frozen stock awaiting sale.
func (a Animal) InFreezer() bool { return a.Slaughter.State == SlaughteredInFreezer }

// Sellable reports whether a sale may be recorded against the animal.
func (a Animal) Sellable() bool { return !a.Discarded() || a.InFreezer() }

// BirthOrPurchase returns the date the animal entered the herd, if known.
func (a Animal) BirthOrPurchase() time.Time {
	switch {
	case a.BirthDate != nil:
		return *a.BirthDate
	case a.PurchaseDate != nil:
		return *a.PurchaseDate
	default:
		return a.CreatedAt
	}
}

// MarkDiscarded moves the animal to DISCARDED. Frozen stock leaves the freezer.
func (a *Animal) MarkDiscarded(reason string, at time.Time) error {
	if a.Discarded() {
		return NewError(KindAlreadyDiscarded, "animal %s is already discarded", a.ID)
	}
	if a.InFreezer() {
		a.Slaughter.State = DisposedFromFreezer
	}
	a.Discard = DiscardAxis{State: DiscardDiscarded, Reason: reason, At: &at}
	return nil
}

// MarkSlaughtered converts a live animal into frozen stock without touching the discard axis.
func (a *Animal) MarkSlaughtered(at time.Time) error {
	if !a.Species.CanSlaughter() {
		return NewError(KindSlaughterUnsupported, "species %s cannot be slaughtered", a.Species)
	}
	if a.Discarded() {
		return NewError(KindAlreadyDiscarded, "animal %s is already discarded", a.ID)
	}
	if a.Slaughtered() {
		return NewError(KindInvalidStatusTransition, "animal %s is already slaughtered", a.ID)
	}
	a.Slaughter = SlaughterAxis{State: SlaughteredInFreezer, Date: &at}
	return nil
}

// MarkSold records the lifecycle effect of a sale.
func (a *Animal) MarkSold(reason string, at time.Time) error {
	if !a.Sellable() {
		return NewError(KindAnimalNotSellable, "animal %s is discarded and not in the freezer", a.ID)
	}
	if a.InFreezer() {
		a.Slaughter.State = SoldFromFreezer
	}
	a.Discard = DiscardAxis{State: DiscardDiscarded, Reason: reason, At: &at}
	return nil
}

// MarshalJSON adds the flat lifecycle flags the console reads.
func (a Animal) MarshalJSON() ([]byte, error) {
	type plain Animal
	return json.Marshal(struct {
		plain
		Discarded       bool       `json:"discarded"`
		DiscardedReason string     `json:"discarded_reason,omitempty"`
		Slaughtered     bool       `json:"slaughtered"`
		SlaughteredDate *time.Time `json:"slaughtered_date,omitempty"`
		InFreezer       bool       `json:"in_freezer"`
	}{
		plain:           plain(a),
		Discarded:       a.Discarded(),
		DiscardedReason: a.Discard.Reason,
		Slaughtered:     a.Slaughtered(),
		SlaughteredDate: a.Slaughter.Date,
		InFreezer:       a.InFreezer(),
	})
}
