package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

type staticFeed []models.Sale

func (f staticFeed) List(_ context.Context, filter repository.SaleFilter) ([]models.Sale, error) {
	var out []models.Sale
	for _, s := range f {
		if filter.From != nil && s.SoldAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !s.SoldAt.Before(*filter.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type staticAlerts []models.Alert

func (a staticAlerts) List(_ context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	var out []models.Alert
	for _, alert := range a {
		if filter.Status == "" || alert.Status == filter.Status {
			out = append(out, alert)
		}
	}
	return out, nil
}

func TestMondayStart(t *testing.T) {
	cases := map[string]string{
		"2026-10-12T09:00:00Z": "2026-10-12",
		"2026-10-16T20:00:00Z": "2026-10-12",
		"2026-10-18T23:59:00Z": "2026-10-12",
		"2026-10-19T00:00:00Z": "2026-10-19",
	}
	for in, want := range cases {
		ts, _ := time.Parse(time.RFC3339, in)
		if got := mondayStart(ts).Format(dateLayout); got != want {
			t.Errorf("mondayStart(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestWeeklyReport(t *testing.T) {
	friday := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	feed := staticFeed{
		{Kind: models.SaleAnimal, Price: decimal.NewFromInt(120), SoldBy: "lucia", SoldAt: friday.Add(-48 * time.Hour)},
		{Kind: models.SaleProduct, Price: decimal.RequireFromString("18.5"), SoldBy: "mario", SoldAt: friday.Add(-time.Hour)},
		{Kind: models.SaleProduct, Price: decimal.RequireFromString("1.5"), SoldBy: "lucia", SoldAt: friday.Add(-2 * time.Hour)},
		{Kind: models.SaleAnimal, Price: decimal.NewFromInt(999), SoldBy: "old", SoldAt: friday.AddDate(0, 0, -7)},
	}
	alerts := staticAlerts{
		{Status: models.AlertPending},
		{Status: models.AlertAcknowledged},
		{Status: models.AlertDone},
	}

	svc := NewService(feed, alerts, time.UTC, nil)
	summary, err := svc.Summarize(context.Background(), friday)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.AnimalSales != 1 || summary.ProductSales != 2 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if !summary.Total().Equal(decimal.NewFromInt(140)) {
		t.Fatalf("expected 140 total, got %s", summary.Total())
	}
	if summary.OpenAlerts != 2 {
		t.Fatalf("expected two open alerts, got %d", summary.OpenAlerts)
	}

	report, err := svc.GenerateWeeklyReport(context.Background(), friday)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{
		"Weekly report (2026-10-12 to 2026-10-18)",
		"Animals sold: 1 for 120.00",
		"Total revenue: 140.00",
		"  lucia: 121.50",
		"Open alerts: 2",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestWeeklyReportWithoutSales(t *testing.T) {
	svc := NewService(staticFeed{}, nil, nil, nil)
	report, err := svc.GenerateWeeklyReport(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(report, "No sales recorded this week.") {
		t.Fatalf("unexpected report %q", report)
	}
}
