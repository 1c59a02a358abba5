package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/farmcore/internal/config"
	"github.com/mamadbah2/farmcore/internal/domain/models"
)

type alertSweep struct {
	out []models.Alert
	err error
}

func (a alertSweep) ExpireDue(context.Context) ([]models.Alert, error) { return a.out, a.err }

type productSweep struct {
	out []models.InventoryProduct
	err error
}

func (p productSweep) ExpireDue(context.Context) ([]models.InventoryProduct, error) {
	return p.out, p.err
}

type reporterFunc func(ctx context.Context, now time.Time) (string, error)

func (f reporterFunc) GenerateWeeklyReport(ctx context.Context, now time.Time) (string, error) {
	return f(ctx, now)
}

type inbox struct{ messages []string }

func (i *inbox) Notify(_ context.Context, message string) error {
	i.messages = append(i.messages, message)
	return nil
}

var testCfg = config.SchedulerConfig{SweepSchedule: "*/15 * * * *", ReportSchedule: "0 20 * * 5", Timezone: "UTC"}

func TestRunSweepNotifiesExpirations(t *testing.T) {
	box := &inbox{}
	s, err := NewScheduler(testCfg,
		alertSweep{out: []models.Alert{{Name: models.AlertDeworming, Priority: models.PriorityLow}}},
		productSweep{},
		nil, box, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := s.runSweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(box.messages) != 1 || !strings.Contains(box.messages[0], "DEWORMING") {
		t.Fatalf("expected one alert notification, got %v", box.messages)
	}
}

func TestRunSweepContinuesAfterAlertFailure(t *testing.T) {
	box := &inbox{}
	boom := errors.New("alerts down")
	s, err := NewScheduler(testCfg,
		alertSweep{err: boom},
		productSweep{out: []models.InventoryProduct{{ProductType: models.ProductEgg, Unit: models.UnitDozens}}},
		nil, box, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := s.runSweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected alert failure to surface, got %v", err)
	}
	if len(box.messages) != 1 || !strings.Contains(box.messages[0], "EGG") {
		t.Fatalf("product sweep should still notify, got %v", box.messages)
	}
}

func TestRunWeeklyReport(t *testing.T) {
	box := &inbox{}
	s, err := NewScheduler(testCfg, alertSweep{}, productSweep{},
		reporterFunc(func(context.Context, time.Time) (string, error) { return "Weekly report", nil }), box, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.runWeeklyReport(context.Background(), time.Now()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(box.messages) != 1 || box.messages[0] != "Weekly report" {
		t.Fatalf("unexpected messages %v", box.messages)
	}
}

func TestNewSchedulerRejectsUnknownTimezone(t *testing.T) {
	cfg := testCfg
	cfg.Timezone = "Atlantis/Center"
	if _, err := NewScheduler(cfg, alertSweep{}, productSweep{}, nil, nil, nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testCfg
	cfg.SweepSchedule = "whenever"
	s, err := NewScheduler(cfg, alertSweep{}, productSweep{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected an error")
	}
}
