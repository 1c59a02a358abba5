package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/config"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/repository/memory"
	"github.com/mamadbah2/farmcore/internal/repository/mongodb"
	"github.com/mamadbah2/farmcore/internal/repository/sheets"
	"github.com/mamadbah2/farmcore/internal/scheduler"
	"github.com/mamadbah2/farmcore/internal/server/handlers"
	"github.com/mamadbah2/farmcore/internal/server/router"
	alertsvc "github.com/mamadbah2/farmcore/internal/service/alerts"
	animalsvc "github.com/mamadbah2/farmcore/internal/service/animals"
	ledgersvc "github.com/mamadbah2/farmcore/internal/service/ledger"
	"github.com/mamadbah2/farmcore/internal/service/notify"
	reportingsvc "github.com/mamadbah2/farmcore/internal/service/reporting"
	salesvc "github.com/mamadbah2/farmcore/internal/service/sales"
	stocksvc "github.com/mamadbah2/farmcore/internal/service/stock"
	whatsappclient "github.com/mamadbah2/farmcore/pkg/clients/whatsapp"
	"github.com/mamadbah2/farmcore/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close storage", zap.Error(err))
		}
	}()

	uow := repository.NewRunner(store, cfg.Storage.ConflictAttempts, baseLogger.Named("repo.uow"))

	var mirror salesvc.Mirror
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheets.NewSaleMirror(sheetsRepo, cfg.Sheets.SalesRange)
		baseLogger.Info("sale mirror enabled", zap.String("range", cfg.Sheets.SalesRange))
	}

	recorder := salesvc.NewRecorder(uow, mirror, baseLogger.Named("svc.sales"))
	registry := animalsvc.NewRegistry(uow, recorder, baseLogger.Named("svc.animals"))
	ledger := ledgersvc.NewService(uow, recorder, baseLogger.Named("svc.ledger"))
	alertEngine := alertsvc.NewEngine(uow, registry, ledger, baseLogger.Named("svc.alerts"))
	counter := stocksvc.NewCounter(uow, baseLogger.Named("svc.stock"))

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		baseLogger.Fatal("failed to load timezone", zap.Error(err))
	}
	reportingSvc := reportingsvc.NewService(recorder, alertEngine, loc, baseLogger.Named("svc.reporting"))

	var notifier notify.Notifier = notify.Nop{}
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		notifier = notify.NewWhatsAppNotifier(whatsClient, cfg.WhatsApp.NotifyTo, baseLogger.Named("svc.notify"))
		baseLogger.Info("whatsapp notifications enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, operator notifications disabled")
	}

	sched, err := scheduler.NewScheduler(cfg.Scheduler, alertEngine, ledger, reportingSvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	engine := router.New(router.Handlers{
		Animals:   handlers.NewAnimalHandler(registry, baseLogger.Named("handlers.animals")),
		Inventory: handlers.NewInventoryHandler(ledger, baseLogger.Named("handlers.inventory")),
		Alerts:    handlers.NewAlertHandler(alertEngine, baseLogger.Named("handlers.alerts")),
		Sales:     handlers.NewSaleHandler(recorder, baseLogger.Named("handlers.sales")),
		Stock:     handlers.NewStockHandler(counter, baseLogger.Named("handlers.stock")),
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (repository.Store, error) {
	if cfg.Storage.Driver != config.StorageMongoDB {
		baseLogger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	store, err := mongodb.NewStore(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
	if err != nil {
		return nil, err
	}
	return store, nil
}
