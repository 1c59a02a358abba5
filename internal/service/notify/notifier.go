// Package notify sends operator notifications for scheduled events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	client "github.com/mamadbah2/farmcore/pkg/clients/whatsapp"
)

// Notifier delivers a text message to the farm operator.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop drops every message. Used when no channel is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

// WhatsAppNotifier sends messages to a fixed recipient through WhatsApp.
type WhatsAppNotifier struct {
	sender client.Sender
	to     string
	logger *zap.Logger
}

// NewWhatsAppNotifier wires a notifier for the given recipient.
func NewWhatsAppNotifier(sender client.Sender, to string, logger *zap.Logger) *WhatsAppNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppNotifier{sender: sender, to: to, logger: logger}
}

// Notify implements Notifier.
func (n *WhatsAppNotifier) Notify(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message body is required")
	}
	id, err := n.sender.SendText(ctx, n.to, message)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.to, err)
	}
	n.logger.Info("notification sent", zap.String("to", n.to), zap.String("message_id", id))
	return nil
}

// ExpiredAlertsMessage renders the operator message for alerts the sweep expired.
func ExpiredAlertsMessage(expired []models.Alert) string {
	if len(expired) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d alert(s) expired without being resolved:", len(expired))
	for _, a := range expired {
		fmt.Fprintf(&b, "\n- %s [%s] due %s", a.Name, a.Priority, a.MaxDate.Format("2006-01-02"))
		if members := a.Members(); len(members) > 0 {
			fmt.Fprintf(&b, " (%d animal(s))", len(members))
		}
	}
	return b.String()
}

// ExpiredProductsMessage renders the operator message for products the sweep expired.
func ExpiredProductsMessage(expired []models.InventoryProduct) string {
	if len(expired) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d inventory product(s) expired:", len(expired))
	for _, p := range expired {
		label := p.Name
		if label == "" {
			label = string(p.ProductType)
		}
		fmt.Fprintf(&b, "\n- %s: %s %s", label, p.Quantity.String(), p.Unit)
	}
	return b.String()
}
