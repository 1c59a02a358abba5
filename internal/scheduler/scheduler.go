package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/config"
	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/service/notify"
)

const (
	sweepTimeout  = time.Minute
	reportTimeout = 2 * time.Minute
)

// AlertSweeper expires overdue alerts.
type AlertSweeper interface {
	ExpireDue(ctx context.Context) ([]models.Alert, error)
}

// ProductSweeper expires products past their expiration date.
type ProductSweeper interface {
	ExpireDue(ctx context.Context) ([]models.InventoryProduct, error)
}

// Reporter renders the weekly report.
type Reporter interface {
	GenerateWeeklyReport(ctx context.Context, now time.Time) (string, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	alerts   AlertSweeper
	products ProductSweeper
	reporter Reporter
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewScheduler creates a scheduler whose jobs run in the configured timezone.
func NewScheduler(cfg config.SchedulerConfig, alerts AlertSweeper, products ProductSweeper, reporter Reporter, notifier notify.Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
		alerts:   alerts,
		products: products,
		reporter: reporter,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("sweep", s.cfg.SweepSchedule),
		zap.String("report", s.cfg.ReportSchedule),
		zap.String("timezone", s.cfg.Timezone))

	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.ReportSchedule, s.sendWeeklyReport); err != nil {
		return fmt.Errorf("schedule weekly report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.runSweep(ctx); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}

// runSweep expires overdue alerts and products and tells the operator about them.
func (s *Scheduler) runSweep(ctx context.Context) error {
	expiredAlerts, alertErr := s.alerts.ExpireDue(ctx)
	if alertErr != nil {
		s.logger.Error("alert sweep failed", zap.Error(alertErr))
	}
	expiredProducts, productErr := s.products.ExpireDue(ctx)
	if productErr != nil {
		s.logger.Error("product sweep failed", zap.Error(productErr))
	}

	for _, msg := range []string{
		notify.ExpiredAlertsMessage(expiredAlerts),
		notify.ExpiredProductsMessage(expiredProducts),
	} {
		if msg == "" {
			continue
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.Warn("failed to notify sweep result", zap.Error(err))
		}
	}

	s.logger.Debug("expiry sweep finished",
		zap.Int("alerts", len(expiredAlerts)),
		zap.Int("products", len(expiredProducts)))

	if alertErr != nil {
		return alertErr
	}
	return productErr
}

func (s *Scheduler) sendWeeklyReport() {
	s.logger.Info("generating weekly report")
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := s.runWeeklyReport(ctx, time.Now()); err != nil {
		s.logger.Error("weekly report failed", zap.Error(err))
		return
	}
	s.logger.Info("weekly report sent successfully")
}

func (s *Scheduler) runWeeklyReport(ctx context.Context, now time.Time) error {
	report, err := s.reporter.GenerateWeeklyReport(ctx, now)
	if err != nil {
		return fmt.Errorf("generate weekly report: %w", err)
	}
	if err := s.notifier.Notify(ctx, report); err != nil {
		return fmt.Errorf("send weekly report: %w", err)
	}
	return nil
}
