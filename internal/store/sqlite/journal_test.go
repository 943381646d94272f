package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"wavescan/internal/model"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "signals.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RoundTrip(t *testing.T) {
	j := testJournal(t)

	ts := time.Date(2025, 6, 2, 9, 43, 0, 0, time.UTC)
	enter := model.Signal{
		Kind:       model.SignalEnter,
		Token:      "2885",
		Exchange:   "NSE",
		TF:         60,
		Price:      24250,
		Index:      28,
		TS:         ts,
		Direction:  model.Up,
		TakeProfit: &model.PriceLevel{Price: 38500, Index: 25},
		StopLoss:   &model.PriceLevel{Price: 10000, Index: 1},
		StartIndex: 1,
		EndIndex:   25,
	}
	exit := model.Signal{
		Kind:       model.SignalTakeProfit,
		Token:      "2885",
		Exchange:   "NSE",
		TF:         60,
		Price:      38500,
		Index:      31,
		TS:         ts.Add(3 * time.Minute),
		Direction:  model.Up,
		StartIndex: 1,
		EndIndex:   25,
	}
	if err := j.RecordSignal(enter); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordSignal(exit); err != nil {
		t.Fatal(err)
	}

	got, err := j.Signals(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got))
	}

	// Newest first.
	if got[0].Kind != model.SignalTakeProfit || got[1].Kind != model.SignalEnter {
		t.Fatalf("order wrong: %s then %s", got[0].Kind, got[1].Kind)
	}

	e := got[1]
	if e.Token != "2885" || e.Exchange != "NSE" || e.TF != 60 {
		t.Fatalf("instrument fields: %+v", e)
	}
	if e.Price != 24250 || e.Index != 28 || e.Direction != model.Up {
		t.Fatalf("entry fields: %+v", e)
	}
	if !e.TS.Equal(ts) {
		t.Fatalf("ts = %v, want %v", e.TS, ts)
	}
	if e.TakeProfit == nil || e.TakeProfit.Price != 38500 || e.TakeProfit.Index != 25 {
		t.Fatalf("take profit: %+v", e.TakeProfit)
	}
	if e.StopLoss == nil || e.StopLoss.Price != 10000 || e.StopLoss.Index != 1 {
		t.Fatalf("stop loss: %+v", e.StopLoss)
	}

	x := got[0]
	if x.TakeProfit != nil || x.StopLoss != nil {
		t.Fatalf("exit signals carry no levels: %+v", x)
	}
}

func TestJournal_LimitAndEmpty(t *testing.T) {
	j := testJournal(t)

	got, err := j.Signals(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("fresh journal must be empty, got %d", len(got))
	}

	for i := 0; i < 7; i++ {
		sig := model.Signal{
			Kind: model.SignalStopLoss, Token: "2885", Exchange: "NSE", TF: 60,
			Price: int64(10000 + i), Index: i, TS: time.Now(), Direction: model.Down,
		}
		if err := j.RecordSignal(sig); err != nil {
			t.Fatal(err)
		}
	}
	got, err = j.Signals(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("limit not applied: got %d", len(got))
	}
	if got[0].Price != 10006 {
		t.Fatalf("newest signal first, got price %d", got[0].Price)
	}
}
