// Package alerts drives husbandry alerts through their lifecycle. Completing a slaughter
// reminder slaughters the selected animals and seeds one meat product per animal, all in
// the same unit of work as the alert update.
package alerts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/ledger"
)

// Slaughterer converts an animal into frozen stock inside a unit of work.
type Slaughterer interface {
	SlaughterTx(ctx context.Context, tx repository.Tx, id string) (models.Animal, error)
}

// ProductSeeder creates inventory products inside a unit of work.
type ProductSeeder interface {
	CreateProductTx(ctx context.Context, tx repository.Tx, in ledger.ProductInput) (models.InventoryProduct, error)
}

// AlertInput is the producer-facing payload of a new alert.
type AlertInput struct {
	Name      string
	Priority  models.AlertPriority
	InitDate  time.Time
	MaxDate   time.Time
	AnimalID  string
	AnimalIDs []string
	Notes     string
}

// CompletionInput is the optional payload of Complete. SlaughteredAnimalIDs is required
// for slaughter reminders and may be empty; CarcassWeights maps animal ids to kg.
type CompletionInput struct {
	SlaughteredAnimalIDs []string
	CarcassWeights       map[string]decimal.Decimal
	Notes                string
}

// SkippedAnimal explains why a selected animal was not slaughtered.
type SkippedAnimal struct {
	ID      string           `json:"id"`
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// CompletionResult is the outcome of Complete.
type CompletionResult struct {
	Alert       models.Alert              `json:"alert"`
	Slaughtered []models.Animal           `json:"slaughtered"`
	Skipped     []SkippedAnimal           `json:"skipped"`
	Products    []models.InventoryProduct `json:"products"`
}

// Engine owns alerts.
type Engine struct {
	uow     *repository.Runner
	animals Slaughterer
	ledger  ProductSeeder
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine wires an engine.
func NewEngine(uow *repository.Runner, animals Slaughterer, products ProductSeeder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		uow:     uow,
		animals: animals,
		ledger:  products,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a PENDING alert. Every referenced animal must exist.
func (e *Engine) Create(ctx context.Context, in AlertInput) (models.Alert, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Alert{}, models.Invalid("alert name is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return models.Alert{}, models.Invalid("unknown priority %q", in.Priority)
	}
	now := e.now()
	if in.InitDate.IsZero() {
		in.InitDate = now
	}
	if in.MaxDate.IsZero() {
		return models.Alert{}, models.Invalid("max date is required")
	}
	if in.MaxDate.Before(in.InitDate) {
		return models.Alert{}, models.Invalid("max date precedes init date")
	}

	alert := models.Alert{
		Name:      name,
		Status:    models.AlertPending,
		Priority:  in.Priority,
		InitDate:  in.InitDate,
		MaxDate:   in.MaxDate,
		AnimalID:  in.AnimalID,
		AnimalIDs: in.AnimalIDs,
		Notes:     in.Notes,
	}
	alert.AnimalIDs = alert.Members()
	if in.AnimalID == "" && len(alert.AnimalIDs) == 1 {
		alert.AnimalID = alert.AnimalIDs[0]
	}
	if alert.IsSlaughterReminder() && len(alert.AnimalIDs) == 0 {
		return models.Alert{}, models.Invalid("a slaughter reminder needs at least one animal")
	}
	alert.Stamp(uuid.NewString(), now)

	var created models.Alert
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, id := range alert.AnimalIDs {
			if _, err := tx.GetAnimal(ctx, id); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.InsertAlert(ctx, alert)
		return err
	})
	if err != nil {
		return models.Alert{}, err
	}

	e.logger.Info("alert created",
		zap.String("alert_id", created.ID),
		zap.String("name", created.Name),
		zap.Int("animals", len(created.AnimalIDs)))
	return created, nil
}

// Get returns one alert.
func (e *Engine) Get(ctx context.Context, id string) (models.Alert, error) {
	var alert models.Alert
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		alert, err = tx.GetAlert(ctx, id)
		return err
	})
	return alert, err
}

// List returns alerts matching filter.
func (e *Engine) List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Invalid("unknown alert status %q", filter.Status)
	}
	var out []models.Alert
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListAlerts(ctx, filter)
		return err
	})
	return out, err
}

// Members returns the animals a group alert references. Animals deleted since the
// alert was raised are left out.
func (e *Engine) Members(ctx context.Context, id string) ([]models.Animal, error) {
	var out []models.Animal
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = out[:0]
		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		for _, animalID := range alert.Members() {
			animal, err := tx.GetAnimal(ctx, animalID)
			if err != nil {
				if kind, ok := models.KindOf(err); ok && kind == models.KindNotFound {
					continue
				}
				return err
			}
			out = append(out, animal)
		}
		return nil
	})
	return out, err
}

// Acknowledge marks a PENDING alert as seen.
func (e *Engine) Acknowledge(ctx context.Context, id string) (models.Alert, error) {
	return e.transition(ctx, id, func(a *models.Alert, _ time.Time) error {
		if a.Status != models.AlertPending {
			return models.NewError(models.KindAlertNotPending, "alert %s is %s", a.ID, a.Status)
		}
		a.Status = models.AlertAcknowledged
		return nil
	})
}

// Decline resolves a PENDING alert without side effects.
func (e *Engine) Decline(ctx context.Context, id, reason string) (models.Alert, error) {
	reason, err := models.NormalizeReason(reason)
	if err != nil {
		return models.Alert{}, err
	}
	alert, err := e.transition(ctx, id, func(a *models.Alert, now time.Time) error {
		if a.Status != models.AlertPending {
			return models.NewError(models.KindAlertNotPending, "alert %s is %s", a.ID, a.Status)
		}
		a.Status = models.AlertDone
		a.DeclinedReason = reason
		a.CompletedAt = &now
		return nil
	})
	if err != nil {
		return models.Alert{}, err
	}
	e.logger.Info("alert declined", zap.String("alert_id", id))
	return alert, nil
}

// Expire moves an open alert past its max date to EXPIRED.
func (e *Engine) Expire(ctx context.Context, id string) (models.Alert, error) {
	return e.transition(ctx, id, func(a *models.Alert, now time.Time) error {
		if !a.Open() {
			return models.NewError(models.KindAlertNotPending, "alert %s is %s", a.ID, a.Status)
		}
		if !now.After(a.MaxDate) {
			return models.NewError(models.KindInvalidStatusTransition, "alert %s is due %s", a.ID, a.MaxDate.Format(time.RFC3339))
		}
		a.Status = models.AlertExpired
		return nil
	})
}

// ExpireDue expires every open alert past its max date. Each alert is expired in its
// own unit of work.
func (e *Engine) ExpireDue(ctx context.Context) ([]models.Alert, error) {
	var open []models.Alert
	for _, status := range []models.AlertStatus{models.AlertPending, models.AlertAcknowledged} {
		batch, err := e.List(ctx, repository.AlertFilter{Status: status})
		if err != nil {
			return nil, err
		}
		open = append(open, batch...)
	}

	now := e.now()
	var expired []models.Alert
	for _, alert := range open {
		if !now.After(alert.MaxDate) {
			continue
		}
		updated, err := e.Expire(ctx, alert.ID)
		if err != nil {
			if _, domain := models.KindOf(err); domain {
				e.logger.Debug("skip alert expiry", zap.String("alert_id", alert.ID), zap.Error(err))
				continue
			}
			return expired, err
		}
		expired = append(expired, updated)
	}
	if len(expired) > 0 {
		e.logger.Info("expired alerts", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// Complete resolves an open alert. For slaughter reminders the selected animals are
// slaughtered and seeded into the ledger; animals that cannot be slaughtered are
// reported in Skipped and do not block completion. Any other failure rolls back the
// whole unit of work.
func (e *Engine) Complete(ctx context.Context, id string, in CompletionInput) (CompletionResult, error) {
	var result CompletionResult
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = CompletionResult{
			Slaughtered: []models.Animal{},
			Skipped:     []SkippedAnimal{},
			Products:    []models.InventoryProduct{},
		}

		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		if !alert.Open() {
			return models.NewError(models.KindAlertNotPending, "alert %s is %s", alert.ID, alert.Status)
		}

		if alert.IsSlaughterReminder() {
			if err := e.slaughterSelected(ctx, tx, alert, in, &result); err != nil {
				return err
			}
		}

		now := e.now()
		alert.Status = models.AlertDone
		alert.CompletedAt = &now
		alert.UpdatedAt = now
		if in.Notes != "" {
			alert.Notes = in.Notes
		}
		result.Alert, err = tx.UpdateAlert(ctx, alert)
		return err
	})
	if err != nil {
		return CompletionResult{}, err
	}

	e.logger.Info("alert completed",
		zap.String("alert_id", id),
		zap.String("name", result.Alert.Name),
		zap.Int("slaughtered", len(result.Slaughtered)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (e *Engine) slaughterSelected(ctx context.Context, tx repository.Tx, alert models.Alert, in CompletionInput, result *CompletionResult) error {
	if in.SlaughteredAnimalIDs == nil {
		return models.Invalid("slaughter reminder completion requires the slaughtered animal ids")
	}

	seen := make(map[string]struct{}, len(in.SlaughteredAnimalIDs))
	for _, animalID := range in.SlaughteredAnimalIDs {
		if _, dup := seen[animalID]; dup {
			continue
		}
		seen[animalID] = struct{}{}

		if !alert.HasMember(animalID) {
			result.Skipped = append(result.Skipped, SkippedAnimal{
				ID:      animalID,
				Kind:    models.KindValidation,
				Message: "animal is not linked to this alert",
			})
			continue
		}

		animal, err := e.animals.SlaughterTx(ctx, tx, animalID)
		if err != nil {
			kind, domain := models.KindOf(err)
			if !domain || kind == models.KindConcurrentModification {
				return err
			}
			result.Skipped = append(result.Skipped, SkippedAnimal{ID: animalID, Kind: kind, Message: err.Error()})
			continue
		}

		product, err := e.ledger.CreateProductTx(ctx, tx, carcassProduct(animal, in.CarcassWeights[animalID]))
		if err != nil {
			return err
		}
		result.Slaughtered = append(result.Slaughtered, animal)
		result.Products = append(result.Products, product)
	}
	return nil
}

// carcassProduct seeds a meat row in KG when a weight is known, otherwise as one unit.
func carcassProduct(animal models.Animal, carcass decimal.Decimal) ledger.ProductInput {
	in := ledger.ProductInput{
		ProductType:    models.ProductMeat,
		Name:           "Carcass " + animal.Name,
		Quantity:       decimal.NewFromInt(1),
		Unit:           models.UnitUnits,
		AnimalID:       animal.ID,
		ProductionDate: animal.Slaughter.Date,
	}
	switch {
	case carcass.IsPositive():
		in.Quantity, in.Unit = carcass, models.UnitKG
	case animal.Weight.IsPositive():
		in.Quantity, in.Unit = animal.Weight, models.UnitKG
	}
	return in
}

func (e *Engine) transition(ctx context.Context, id string, change func(a *models.Alert, now time.Time) error) (models.Alert, error) {
	var updated models.Alert
	err := e.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		now := e.now()
		if err := change(&alert, now); err != nil {
			return err
		}
		alert.UpdatedAt = now
		updated, err = tx.UpdateAlert(ctx, alert)
		return err
	})
	return updated, err
}
