package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/service/stock"
)

// StockHandler serves the legacy simple-count inventory.
type StockHandler struct {
	counter *stock.Counter
	logger  *zap.Logger
}

// NewStockHandler constructs the HTTP adapter of the stock counter.
func NewStockHandler(counter *stock.Counter, logger *zap.Logger) *StockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockHandler{counter: counter, logger: logger}
}

type stockItemRequest struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type quantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

// Create handles POST /inventory.
func (h *StockHandler) Create(c *gin.Context) {
	var req stockItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	item, err := h.counter.Create(c.Request.Context(), stock.ItemInput{Name: req.Name, Quantity: req.Quantity, Unit: req.Unit, Notes: req.Notes})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// List handles GET /inventory.
func (h *StockHandler) List(c *gin.Context) {
	out, err := h.counter.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.StockItem{}
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /inventory/{id}.
func (h *StockHandler) Get(c *gin.Context) {
	item, err := h.counter.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Add handles POST /inventory/{id}/add.
func (h *StockHandler) Add(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	item, err := h.counter.Add(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Subtract handles POST /inventory/{id}/subtract.
func (h *StockHandler) Subtract(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	item, err := h.counter.Subtract(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// SetQuantity handles PUT /inventory/{id}/quantity.
func (h *StockHandler) SetQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	if req.Quantity == nil {
		badRequest(c, "quantity is required")
		return
	}
	item, err := h.counter.SetQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
