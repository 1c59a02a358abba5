package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/service/animals"
)

// AnimalHandler serves the per-species animal collections.
type AnimalHandler struct {
	registry *animals.Registry
	logger   *zap.Logger
}

// NewAnimalHandler constructs the HTTP adapter of the animal registry.
func NewAnimalHandler(registry *animals.Registry, logger *zap.Logger) *AnimalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimalHandler{registry: registry, logger: logger}
}

type animalRequest struct {
	Name         string          `json:"name"`
	Breed        string          `json:"breed"`
	Gender       models.Gender   `json:"gender"`
	Origin       models.Origin   `json:"origin"`
	BirthDate    *Date           `json:"birth_date"`
	PurchaseDate *Date           `json:"purchase_date"`
	Breeder      bool            `json:"breeder"`
	MotherID     string          `json:"mother_id"`
	FatherID     string          `json:"father_id"`
	Weight       decimal.Decimal `json:"weight"`
	Notes        string          `json:"notes"`
}

func (r animalRequest) input() animals.AnimalInput {
	return animals.AnimalInput{
		Name:         r.Name,
		Breed:        r.Breed,
		Gender:       models.Gender(strings.ToUpper(string(r.Gender))),
		Origin:       models.Origin(strings.ToUpper(string(r.Origin))),
		BirthDate:    r.BirthDate.Ptr(),
		PurchaseDate: r.PurchaseDate.Ptr(),
		Breeder:      r.Breeder,
		MotherID:     r.MotherID,
		FatherID:     r.FatherID,
		Weight:       r.Weight,
		Notes:        r.Notes,
	}
}

type litterRequest struct {
	MotherID  string `json:"mother_id"`
	FatherID  string `json:"father_id"`
	BirthDate Date   `json:"birth_date"`
	Breed     string `json:"breed"`
	Kits      []struct {
		Name   string          `json:"name"`
		Gender models.Gender   `json:"gender"`
		Weight decimal.Decimal `json:"weight"`
	} `json:"kits"`
}

type discardRequest struct {
	Reason string `json:"reason"`
}

type animalSaleRequest struct {
	Price  decimal.Decimal `json:"price"`
	Weight decimal.Decimal `json:"weight"`
	Height decimal.Decimal `json:"height"`
	Notes  string          `json:"notes"`
	SoldBy string          `json:"sold_by"`
	Reason string          `json:"reason"`
}

// Create handles POST /{species}/add.
func (h *AnimalHandler) Create(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req animalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: %v", err)
			return
		}
		animal, err := h.registry.Create(c.Request.Context(), species, req.input())
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, animal)
	}
}

// RegisterLitter handles POST /{species}/litters.
func (h *AnimalHandler) RegisterLitter(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req litterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: %v", err)
			return
		}
		in := animals.LitterInput{MotherID: req.MotherID, FatherID: req.FatherID, BirthDate: req.BirthDate.Time, Breed: req.Breed}
		for _, kit := range req.Kits {
			in.Kits = append(in.Kits, animals.Kit{Name: kit.Name, Gender: models.Gender(strings.ToUpper(string(kit.Gender))), Weight: kit.Weight})
		}
		litter, err := h.registry.RegisterLitter(c.Request.Context(), species, in)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, litter)
	}
}

// List handles GET /{species} with the sort and discarded filters.
func (h *AnimalHandler) List(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.list(c, species, models.Gender(strings.ToUpper(c.Query("gender"))))
	}
}

// ListByGender handles GET /{species}/gender/{g}.
func (h *AnimalHandler) ListByGender(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		gender := models.Gender(strings.ToUpper(c.Param("gender")))
		if !gender.Valid() {
			badRequest(c, "gender must be MALE or FEMALE")
			return
		}
		h.list(c, species, gender)
	}
}

func (h *AnimalHandler) list(c *gin.Context, species models.Species, gender models.Gender) {
	discarded, ok := parseTriState(c.Query("discarded"))
	if !ok {
		badRequest(c, "discarded must be true, false or null")
		return
	}
	out, err := h.registry.List(c.Request.Context(), species, animals.ListQuery{
		Gender:    gender,
		Discarded: discarded,
		Sort:      strings.ToLower(c.Query("sort")),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.Animal{}
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /{species}/{id}.
func (h *AnimalHandler) Get(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		animal, err := h.registry.Get(c.Request.Context(), species, c.Param("id"))
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, animal)
	}
}

// Update handles PUT /{species}/{id}.
func (h *AnimalHandler) Update(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req animalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: %v", err)
			return
		}
		animal, err := h.registry.Update(c.Request.Context(), species, c.Param("id"), req.input())
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, animal)
	}
}

// Delete handles DELETE /{species}/{id}.
func (h *AnimalHandler) Delete(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.registry.Delete(c.Request.Context(), species, c.Param("id")); err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Discard handles POST /{species}/{id}/discard.
func (h *AnimalHandler) Discard(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: %v", err)
			return
		}
		animal, err := h.registry.Discard(c.Request.Context(), species, c.Param("id"), req.Reason)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, animal)
	}
}

// Sell handles POST /{species}/{id}/sell.
func (h *AnimalHandler) Sell(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req animalSaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: %v", err)
			return
		}
		sale, err := h.registry.Sell(c.Request.Context(), species, c.Param("id"), animals.SaleInput{
			Price:  req.Price,
			Weight: req.Weight,
			Height: req.Height,
			Notes:  req.Notes,
			SoldBy: req.SoldBy,
			Reason: req.Reason,
		})
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	}
}

// Slaughter handles POST /{species}/{id}/slaughter.
func (h *AnimalHandler) Slaughter(species models.Species) gin.HandlerFunc {
	return func(c *gin.Context) {
		animal, err := h.registry.Slaughter(c.Request.Context(), species, c.Param("id"))
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, animal)
	}
}

// parseTriState reads "true", "false", "null" or an empty value.
func parseTriState(v string) (*bool, bool) {
	switch strings.ToLower(v) {
	case "", "null":
		return nil, true
	case "true":
		b := true
		return &b, true
	case "false":
		b := false
		return &b, true
	}
	return nil, false
}
