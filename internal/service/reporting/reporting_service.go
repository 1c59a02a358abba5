package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

const dateLayout = "2006-01-02"

// SaleFeed is the read side of the sale recorder.
type SaleFeed interface {
	List(ctx context.Context, filter repository.SaleFilter) ([]models.Sale, error)
}

// AlertLister reads alerts.
type AlertLister interface {
	List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error)
}

// WeeklySummary aggregates the sale feed over one Monday-to-Monday window.
type WeeklySummary struct {
	Start          time.Time
	End            time.Time
	AnimalSales    int
	ProductSales   int
	AnimalRevenue  decimal.Decimal
	ProductRevenue decimal.Decimal
	BySeller       map[string]decimal.Decimal
	OpenAlerts     int
}

// Total is the revenue across both sale kinds.
func (w WeeklySummary) Total() decimal.Decimal { return w.AnimalRevenue.Add(w.ProductRevenue) }

// Service builds the weekly operator report.
type Service struct {
	sales  SaleFeed
	alerts AlertLister
	loc    *time.Location
	logger *zap.Logger
}

// NewService wires a reporting service. Weeks are cut in loc.
func NewService(sales SaleFeed, alerts AlertLister, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{sales: sales, alerts: alerts, loc: loc, logger: logger}
}

// Summarize aggregates the week containing now.
func (s *Service) Summarize(ctx context.Context, now time.Time) (WeeklySummary, error) {
	start := mondayStart(now.In(s.loc))
	end := start.AddDate(0, 0, 7)

	feed, err := s.sales.List(ctx, repository.SaleFilter{From: &start, To: &end})
	if err != nil {
		return WeeklySummary{}, fmt.Errorf("load weekly sales: %w", err)
	}

	summary := WeeklySummary{
		Start:          start,
		End:            end,
		AnimalRevenue:  decimal.Zero,
		ProductRevenue: decimal.Zero,
		BySeller:       make(map[string]decimal.Decimal),
	}
	for _, sale := range feed {
		switch sale.Kind {
		case models.SaleAnimal:
			summary.AnimalSales++
			summary.AnimalRevenue = summary.AnimalRevenue.Add(sale.Price)
		case models.SaleProduct:
			summary.ProductSales++
			summary.ProductRevenue = summary.ProductRevenue.Add(sale.Price)
		default:
			s.logger.Debug("skip sale with unknown kind", zap.String("sale_id", sale.ID))
			continue
		}
		summary.BySeller[sale.SoldBy] = summary.BySeller[sale.SoldBy].Add(sale.Price)
	}

	if s.alerts != nil {
		for _, status := range []models.AlertStatus{models.AlertPending, models.AlertAcknowledged} {
			open, err := s.alerts.List(ctx, repository.AlertFilter{Status: status})
			if err != nil {
				return WeeklySummary{}, fmt.Errorf("load open alerts: %w", err)
			}
			summary.OpenAlerts += len(open)
		}
	}
	return summary, nil
}

// GenerateWeeklyReport renders the summary of the week containing now as plain text.
func (s *Service) GenerateWeeklyReport(ctx context.Context, now time.Time) (string, error) {
	summary, err := s.Summarize(ctx, now)
	if err != nil {
		return "", err
	}
	return Render(summary), nil
}

// Render formats a summary for a chat message.
func Render(w WeeklySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly report (%s to %s)\n", w.Start.Format(dateLayout), w.End.AddDate(0, 0, -1).Format(dateLayout))

	if w.AnimalSales+w.ProductSales == 0 {
		b.WriteString("No sales recorded this week.\n")
	} else {
		fmt.Fprintf(&b, "Animals sold: %d for %s\n", w.AnimalSales, w.AnimalRevenue.StringFixed(2))
		fmt.Fprintf(&b, "Product sales: %d for %s\n", w.ProductSales, w.ProductRevenue.StringFixed(2))
		fmt.Fprintf(&b, "Total revenue: %s\n", w.Total().StringFixed(2))

		sellers := make([]string, 0, len(w.BySeller))
		for name := range w.BySeller {
			sellers = append(sellers, name)
		}
		sort.Strings(sellers)
		for _, name := range sellers {
			fmt.Fprintf(&b, "  %s: %s\n", name, w.BySeller[name].StringFixed(2))
		}
	}

	fmt.Fprintf(&b, "Open alerts: %d", w.OpenAlerts)
	return b.String()
}

func mondayStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
