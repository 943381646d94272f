// Package notification delivers scanner alerts to external channels
// (Telegram, webhooks) and formats trade signals for humans.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"wavescan/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (useful for development).
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans an alert out to every configured backend.
// Delivery failures are logged and do not stop the remaining backends.
type MultiNotifier struct {
	backends []Notifier
}

func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed: %v", b, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SignalAlert renders a trade signal as an alert. Entries carry the full
// setup (trade direction, targets); exits just name the fill.
func SignalAlert(sig model.Signal) Alert {
	price := formatCents(sig.Price)
	switch sig.Kind {
	case model.SignalEnter:
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s @ %s (bar %d)", directionWord(sig.Direction), sig.Key(), price, sig.Index)
		if sig.TakeProfit != nil {
			fmt.Fprintf(&b, "\ntake profit %s", formatCents(sig.TakeProfit.Price))
		}
		if sig.StopLoss != nil {
			fmt.Fprintf(&b, "\nstop loss %s", formatCents(sig.StopLoss.Price))
		}
		return Alert{
			Level:   AlertInfo,
			Title:   fmt.Sprintf("Setup triggered: %s", sig.Key()),
			Message: b.String(),
		}
	case model.SignalTakeProfit:
		return Alert{
			Level:   AlertInfo,
			Title:   fmt.Sprintf("Take profit: %s", sig.Key()),
			Message: fmt.Sprintf("filled @ %s (bar %d)", price, sig.Index),
		}
	case model.SignalStopLoss:
		return Alert{
			Level:   AlertWarning,
			Title:   fmt.Sprintf("Stop loss: %s", sig.Key()),
			Message: fmt.Sprintf("filled @ %s (bar %d)", price, sig.Index),
		}
	}
	return Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("Signal: %s", sig.Key()),
		Message: fmt.Sprintf("%s @ %s (bar %d)", sig.Kind, price, sig.Index),
	}
}

func directionWord(d model.Direction) string {
	if d == model.Up {
		return "LONG"
	}
	return "SHORT"
}

// formatCents renders a minor-unit price with two decimals.
func formatCents(p int64) string {
	neg := ""
	if p < 0 {
		neg = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", neg, p/100, p%100)
}
