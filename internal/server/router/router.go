package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted by New.
type Handlers struct {
	Animals   *handlers.AnimalHandler
	Inventory *handlers.InventoryHandler
	Alerts    *handlers.AlertHandler
	Sales     *handlers.SaleHandler
	Stock     *handlers.StockHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	for _, info := range models.AllSpecies() {
		registerSpecies(r.Group("/"+info.Path), h.Animals, info)
	}

	alerts := r.Group("/alerts")
	alerts.GET("", h.Alerts.List)
	alerts.POST("", h.Alerts.Create)
	alerts.GET("/:id", h.Alerts.Get)
	alerts.GET("/:id/rabbits", h.Alerts.Members)
	alerts.GET("/:id/animals", h.Alerts.Members)
	alerts.POST("/:id/complete", h.Alerts.Complete)
	alerts.POST("/:id/decline", h.Alerts.Decline)
	alerts.POST("/:id/acknowledge", h.Alerts.Acknowledge)
	alerts.POST("/:id/expire", h.Alerts.Expire)

	products := r.Group("/inventory-products")
	products.GET("", h.Inventory.List)
	products.POST("", h.Inventory.Create)
	products.GET("/:id", h.Inventory.Get)
	products.PUT("/:id", h.Inventory.Update)
	products.POST("/:id/sell", h.Inventory.Sell)
	products.POST("/:id/adjust", h.Inventory.Adjust)
	products.POST("/:id/reserve", h.Inventory.Reserve)
	products.POST("/:id/release", h.Inventory.Release)
	products.POST("/:id/discard", h.Inventory.Discard)
	products.POST("/:id/expire", h.Inventory.Expire)
	products.GET("/:id/transactions", h.Inventory.Transactions)

	stock := r.Group("/inventory")
	stock.GET("", h.Stock.List)
	stock.POST("", h.Stock.Create)
	stock.GET("/:id", h.Stock.Get)
	stock.POST("/:id/add", h.Stock.Add)
	stock.POST("/:id/subtract", h.Stock.Subtract)
	stock.PUT("/:id/quantity", h.Stock.SetQuantity)

	r.GET("/sales", h.Sales.List)
	r.GET("/sales/:id", h.Sales.Get)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

// registerSpecies mounts the animal collection of one species. The slaughter
// route only exists for species that support it.
func registerSpecies(g *gin.RouterGroup, h *handlers.AnimalHandler, info models.SpeciesInfo) {
	s := info.Species
	g.GET("", h.List(s))
	g.POST("/add", h.Create(s))
	g.POST("/litters", h.RegisterLitter(s))
	g.GET("/gender/:gender", h.ListByGender(s))
	g.GET("/:id", h.Get(s))
	g.PUT("/:id", h.Update(s))
	g.DELETE("/:id", h.Delete(s))
	g.POST("/:id/discard", h.Discard(s))
	g.POST("/:id/sell", h.Sell(s))
	if info.CanSlaughter {
		g.POST("/:id/slaughter", h.Slaughter(s))
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
