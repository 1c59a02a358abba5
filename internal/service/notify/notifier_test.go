package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmcore/internal/domain/models"
)

type fakeSender struct {
	to, body string
	err      error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (string, error) {
	f.to, f.body = to, body
	return "wamid.x", f.err
}

func TestWhatsAppNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := NewWhatsAppNotifier(sender, "34600111222", nil)

	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sender.to != "34600111222" || sender.body != "hello" {
		t.Fatalf("unexpected delivery %+v", sender)
	}
	if err := n.Notify(context.Background(), "   "); err == nil {
		t.Fatal("blank message should be rejected")
	}

	sender.err = errors.New("boom")
	if err := n.Notify(context.Background(), "hello"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped sender error, got %v", err)
	}
}

func TestMessages(t *testing.T) {
	if ExpiredAlertsMessage(nil) != "" || ExpiredProductsMessage(nil) != "" {
		t.Fatal("empty input should render nothing")
	}

	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	msg := ExpiredAlertsMessage([]models.Alert{{Name: models.AlertDeworming, Priority: models.PriorityHigh, MaxDate: due, AnimalIDs: []string{"a", "b"}}})
	if !strings.Contains(msg, "DEWORMING [HIGH] due 2026-05-01 (2 animal(s))") {
		t.Fatalf("unexpected alert message %q", msg)
	}

	msg = ExpiredProductsMessage([]models.InventoryProduct{{ProductType: models.ProductDairy, Quantity: decimal.RequireFromString("3.5"), Unit: models.UnitLiters}})
	if !strings.Contains(msg, "DAIRY: 3.5 LITERS") {
		t.Fatalf("unexpected product message %q", msg)
	}
}
