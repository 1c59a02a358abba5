package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/ledger"
)

// InventoryHandler serves the inventory product ledger.
type InventoryHandler struct {
	ledger *ledger.Service
	logger *zap.Logger
}

// NewInventoryHandler constructs the HTTP adapter of the ledger.
func NewInventoryHandler(svc *ledger.Service, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{ledger: svc, logger: logger}
}

type productRequest struct {
	ProductType    models.ProductType `json:"product_type"`
	Name           string             `json:"name"`
	Quantity       decimal.Decimal    `json:"quantity"`
	Unit           models.Unit        `json:"unit"`
	AnimalID       string             `json:"animal_id"`
	Location       string             `json:"location"`
	ProductionDate *Date              `json:"production_date"`
	ExpirationDate *Date              `json:"expiration_date"`
	Notes          string             `json:"notes"`
}

type productUpdateRequest struct {
	Name           *string          `json:"name"`
	Location       *string          `json:"location"`
	Notes          *string          `json:"notes"`
	ProductionDate *Date            `json:"production_date"`
	ExpirationDate *Date            `json:"expiration_date"`
	Quantity       *decimal.Decimal `json:"quantity"`
}

type productSellRequest struct {
	Quantity decimal.Decimal  `json:"quantity"`
	SaleID   string           `json:"sale_id"`
	Price    *decimal.Decimal `json:"price"`
	SoldBy   string           `json:"sold_by"`
	Notes    string           `json:"notes"`
}

type adjustRequest struct {
	Op     models.AdjustOp `json:"op"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Create handles POST /inventory-products.
func (h *InventoryHandler) Create(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	product, err := h.ledger.CreateProduct(c.Request.Context(), ledger.ProductInput{
		ProductType:    models.ProductType(strings.ToUpper(string(req.ProductType))),
		Name:           req.Name,
		Quantity:       req.Quantity,
		Unit:           models.Unit(strings.ToUpper(string(req.Unit))),
		AnimalID:       req.AnimalID,
		Location:       req.Location,
		ProductionDate: req.ProductionDate.Ptr(),
		ExpirationDate: req.ExpirationDate.Ptr(),
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// List handles GET /inventory-products.
func (h *InventoryHandler) List(c *gin.Context) {
	out, err := h.ledger.ListProducts(c.Request.Context(), repository.ProductFilter{
		Status:      models.ProductStatus(strings.ToUpper(c.Query("status"))),
		ProductType: models.ProductType(strings.ToUpper(c.Query("product_type"))),
		Location:    c.Query("location"),
		AnimalID:    c.Query("animal_id"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.InventoryProduct{}
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /inventory-products/{id}.
func (h *InventoryHandler) Get(c *gin.Context) {
	product, err := h.ledger.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Update handles PUT /inventory-products/{id}.
func (h *InventoryHandler) Update(c *gin.Context) {
	var req productUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	product, err := h.ledger.UpdateProduct(c.Request.Context(), c.Param("id"), ledger.ProductUpdate{
		Name:           req.Name,
		Location:       req.Location,
		Notes:          req.Notes,
		ProductionDate: req.ProductionDate.Ptr(),
		ExpirationDate: req.ExpirationDate.Ptr(),
		Quantity:       req.Quantity,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Sell handles POST /inventory-products/{id}/sell.
func (h *InventoryHandler) Sell(c *gin.Context) {
	var req productSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	res, err := h.ledger.Sell(c.Request.Context(), ledger.SellInput{
		ProductID: c.Param("id"),
		Quantity:  req.Quantity,
		SaleID:    req.SaleID,
		Price:     req.Price,
		SoldBy:    req.SoldBy,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Adjust handles POST /inventory-products/{id}/adjust.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	op := models.AdjustOp(strings.ToUpper(string(req.Op)))
	product, err := h.ledger.AdjustQuantity(c.Request.Context(), c.Param("id"), op, req.Amount, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Transactions handles GET /inventory-products/{id}/transactions.
func (h *InventoryHandler) Transactions(c *gin.Context) {
	out, err := h.ledger.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.InventoryTransaction{}
	}
	c.JSON(http.StatusOK, out)
}

// Reserve handles POST /inventory-products/{id}/reserve.
func (h *InventoryHandler) Reserve(c *gin.Context) { h.transition(c, h.ledger.Reserve) }

// Release handles POST /inventory-products/{id}/release.
func (h *InventoryHandler) Release(c *gin.Context) { h.transition(c, h.ledger.Release) }

// Expire handles POST /inventory-products/{id}/expire.
func (h *InventoryHandler) Expire(c *gin.Context) { h.transition(c, h.ledger.Expire) }

// Discard handles POST /inventory-products/{id}/discard with an optional {reason}.
func (h *InventoryHandler) Discard(c *gin.Context) {
	var req discardRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	h.transition(c, func(ctx context.Context, id string) (models.InventoryProduct, error) {
		return h.ledger.Discard(ctx, id, req.Reason)
	})
}

func (h *InventoryHandler) transition(c *gin.Context, op func(ctx context.Context, id string) (models.InventoryProduct, error)) {
	product, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}
