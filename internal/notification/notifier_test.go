package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wavescan/internal/model"
)

type recordNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordNotifier) Send(ctx context.Context, alert Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

func enterSignal() model.Signal {
	return model.Signal{
		Kind:       model.SignalEnter,
		Token:      "2885",
		Exchange:   "NSE",
		TF:         60,
		Price:      24250,
		Index:      28,
		Direction:  model.Up,
		TakeProfit: &model.PriceLevel{Price: 38500, Index: 25},
		StopLoss:   &model.PriceLevel{Price: 10000, Index: 1},
		StartIndex: 1,
		EndIndex:   25,
	}
}

func TestSignalAlert_Enter(t *testing.T) {
	a := SignalAlert(enterSignal())
	if a.Level != AlertInfo {
		t.Fatalf("entry alerts are informational, got %s", a.Level)
	}
	if a.Title != "Setup triggered: NSE:2885" {
		t.Fatalf("title = %q", a.Title)
	}
	for _, want := range []string{"LONG NSE:2885 @ 242.50 (bar 28)", "take profit 385.00", "stop loss 100.00"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}
}

func TestSignalAlert_Exits(t *testing.T) {
	sig := enterSignal()
	sig.TakeProfit, sig.StopLoss = nil, nil

	sig.Kind = model.SignalTakeProfit
	sig.Price = 38500
	sig.Index = 31
	a := SignalAlert(sig)
	if a.Level != AlertInfo || a.Title != "Take profit: NSE:2885" {
		t.Fatalf("take profit alert: %+v", a)
	}
	if a.Message != "filled @ 385.00 (bar 31)" {
		t.Fatalf("message = %q", a.Message)
	}

	sig.Kind = model.SignalStopLoss
	sig.Price = 10000
	a = SignalAlert(sig)
	if a.Level != AlertWarning || a.Title != "Stop loss: NSE:2885" {
		t.Fatalf("stop loss alert: %+v", a)
	}
}

func TestSignalAlert_ShortDirection(t *testing.T) {
	sig := enterSignal()
	sig.Direction = model.Down
	a := SignalAlert(sig)
	if !strings.Contains(a.Message, "SHORT NSE:2885") {
		t.Fatalf("message %q missing SHORT", a.Message)
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{24250, "242.50"},
		{1234567, "12345.67"},
		{-150, "-1.50"},
	}
	for _, tc := range cases {
		if got := formatCents(tc.in); got != tc.want {
			t.Errorf("formatCents(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	good := &recordNotifier{}
	bad := &recordNotifier{err: errors.New("telegram down")}
	tail := &recordNotifier{}
	m := NewMultiNotifier(good, bad, tail)

	alert := Alert{Level: AlertInfo, Title: "t", Message: "m"}
	err := m.Send(context.Background(), alert)
	if err == nil || err.Error() != "telegram down" {
		t.Fatalf("first backend error must surface, got %v", err)
	}
	if len(good.alerts) != 1 || len(tail.alerts) != 1 {
		t.Fatal("a failing backend must not stop the fan-out")
	}
	if good.alerts[0] != alert {
		t.Fatalf("alert mangled: %+v", good.alerts[0])
	}
}
