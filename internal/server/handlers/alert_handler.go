package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/alerts"
)

// AlertHandler serves alerts and their resolution.
type AlertHandler struct {
	engine *alerts.Engine
	logger *zap.Logger
}

// NewAlertHandler constructs the HTTP adapter of the alert engine.
func NewAlertHandler(engine *alerts.Engine, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{engine: engine, logger: logger}
}

type alertRequest struct {
	Name      string               `json:"name"`
	Priority  models.AlertPriority `json:"priority"`
	InitDate  Date                 `json:"init_date"`
	MaxDate   Date                 `json:"max_date"`
	AnimalID  string               `json:"animal_id"`
	AnimalIDs []string             `json:"animal_ids"`
	Notes     string               `json:"notes"`
}

type completeRequest struct {
	SlaughteredRabbitIDs []string                   `json:"slaughtered_rabbit_ids"`
	SlaughteredAnimalIDs []string                   `json:"slaughtered_animal_ids"`
	CarcassWeights       map[string]decimal.Decimal `json:"carcass_weights"`
	Notes                string                     `json:"notes"`
}

// Create handles POST /alerts.
func (h *AlertHandler) Create(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	alert, err := h.engine.Create(c.Request.Context(), alerts.AlertInput{
		Name:      strings.ToUpper(strings.TrimSpace(req.Name)),
		Priority:  models.AlertPriority(strings.ToUpper(string(req.Priority))),
		InitDate:  req.InitDate.Time,
		MaxDate:   req.MaxDate.Time,
		AnimalID:  req.AnimalID,
		AnimalIDs: req.AnimalIDs,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// List handles GET /alerts?status=&animal_id=&name=.
func (h *AlertHandler) List(c *gin.Context) {
	out, err := h.engine.List(c.Request.Context(), repository.AlertFilter{
		Status:   models.AlertStatus(strings.ToUpper(c.Query("status"))),
		Name:     strings.ToUpper(c.Query("name")),
		AnimalID: c.Query("animal_id"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.Alert{}
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /alerts/{id}.
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Members handles GET /alerts/{id}/rabbits and /alerts/{id}/animals.
func (h *AlertHandler) Members(c *gin.Context) {
	out, err := h.engine.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.Animal{}
	}
	c.JSON(http.StatusOK, out)
}

// Complete handles POST /alerts/{id}/complete. The body is optional.
func (h *AlertHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	ids := req.SlaughteredRabbitIDs
	if ids == nil {
		ids = req.SlaughteredAnimalIDs
	}
	res, err := h.engine.Complete(c.Request.Context(), c.Param("id"), alerts.CompletionInput{
		SlaughteredAnimalIDs: ids,
		CarcassWeights:       req.CarcassWeights,
		Notes:                req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Decline handles POST /alerts/{id}/decline.
func (h *AlertHandler) Decline(c *gin.Context) {
	var req discardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: %v", err)
		return
	}
	alert, err := h.engine.Decline(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Acknowledge handles POST /alerts/{id}/acknowledge.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.engine.Acknowledge(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Expire handles POST /alerts/{id}/expire.
func (h *AlertHandler) Expire(c *gin.Context) {
	alert, err := h.engine.Expire(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
