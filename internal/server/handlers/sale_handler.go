package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/service/sales"
)

// SaleHandler serves the read side of the sale feed.
type SaleHandler struct {
	recorder *sales.Recorder
	logger   *zap.Logger
}

// NewSaleHandler constructs the HTTP adapter of the sale recorder.
func NewSaleHandler(recorder *sales.Recorder, logger *zap.Logger) *SaleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleHandler{recorder: recorder, logger: logger}
}

// List handles GET /sales?kind=&animal_id=&product_id=&from=&to=.
func (h *SaleHandler) List(c *gin.Context) {
	filter := repository.SaleFilter{
		Kind:      models.SaleKind(strings.ToUpper(c.Query("kind"))),
		AnimalID:  c.Query("animal_id"),
		ProductID: c.Query("product_id"),
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			badRequest(c, "%s must be a date: %v", param, err)
			return
		}
		*dst = &t
	}

	out, err := h.recorder.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if out == nil {
		out = []models.Sale{}
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /sales/{id}.
func (h *SaleHandler) Get(c *gin.Context) {
	sale, err := h.recorder.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
